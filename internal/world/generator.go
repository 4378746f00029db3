package world

import (
	"math/rand"

	"github.com/annel0/voxel-render/internal/util"
	"github.com/annel0/voxel-render/internal/vec"
	"github.com/annel0/voxel-render/internal/world/block"
)

// BiomeType представляет тип биома
type BiomeType int

const (
	BiomePlains BiomeType = iota
	BiomeDesert
	BiomeForest
	BiomeMountains
	BiomeWater
)

// Константы высот для генерации
const (
	SeaLevel      = 62  // Уровень моря в блоках
	BaseHeight    = 40  // Минимальная высота поверхности
	HeightRange   = 72  // Разброс высоты поверхности
	MountainStart = 0.7 // Выше - горы
	CaveThreshold = 0.78
	LavaLevel     = 12
)

// Generator генерирует ландшафт мира
type Generator struct {
	Seed          int64   // Сид для генерации шума
	NoiseScale    float64 // Масштаб основного шума (высота)
	BiomeScale    float64 // Масштаб шума биомов
	CaveScale     float64 // Масштаб шума пещер
	ForestDensity float64 // Плотность лесов (от 0 до 1)
	ChestChance   float64 // Шанс сундука на поверхности

	height *util.Noise
	biome  *util.Noise
	caves  *util.Noise
}

// NewGenerator создаёт новый генератор мира
func NewGenerator(seed int64) *Generator {
	return &Generator{
		Seed:          seed,
		NoiseScale:    0.01,
		BiomeScale:    0.005,
		CaveScale:     0.06,
		ForestDensity: 0.02,
		ChestChance:   0.002,
		height:        util.NewNoise(seed),
		biome:         util.NewNoise(seed + 42),
		caves:         util.NewNoise(seed + 1337),
	}
}

// GenerateColumn генерирует столб по координатам в секциях
func (g *Generator) GenerateColumn(coords vec.Vec2, bottom, top int) *Column {
	col := NewColumn(coords, bottom, top)

	// Для каждого столба создаем уникальный сид на основе глобального сида и координат
	columnSeed := g.Seed + int64(coords.X*31) + int64(coords.Y*17)
	rng := rand.New(rand.NewSource(columnSeed))

	minY := bottom << 4
	maxY := top << 4

	for z := 0; z < SectionSize; z++ {
		for x := 0; x < SectionSize; x++ {
			globalX := coords.X<<4 + x
			globalZ := coords.Y<<4 + z

			h := g.height.Noise2D(float64(globalX)*g.NoiseScale, float64(globalZ)*g.NoiseScale)
			surface := BaseHeight + int(h*HeightRange)
			if surface >= maxY {
				surface = maxY - 1
			}

			biome := g.biomeType(h, surface, g.biome.Noise2D(float64(globalX)*g.BiomeScale, float64(globalZ)*g.BiomeScale))
			surfaceID, filler := g.surfaceBlocks(biome)

			for y := minY; y <= surface; y++ {
				id := block.StoneBlockID
				switch {
				case y == surface:
					id = surfaceID
				case y > surface-4:
					id = filler
				}

				if y < surface-4 && y > minY && g.isCave(globalX, y, globalZ) {
					id = block.AirBlockID
					if y <= LavaLevel {
						id = block.LavaBlockID
					}
				}
				col.SetBlock(x, y, z, id)
			}

			// Вода до уровня моря
			for y := surface + 1; y <= SeaLevel && y < maxY; y++ {
				col.SetBlock(x, y, z, block.WaterBlockID)
			}

			if surface <= SeaLevel {
				continue
			}

			// Добавляем деревья и другие объекты
			switch {
			case biome == BiomeForest && rng.Float64() < 0.08:
				g.placeTree(col, x, surface+1, z, rng)
			case biome == BiomePlains && rng.Float64() < g.ForestDensity:
				g.placeTree(col, x, surface+1, z, rng)
			case rng.Float64() < g.ChestChance:
				col.SetBlock(x, surface+1, z, block.ChestBlockID)
			}
		}
	}

	col.ChangeCounter = 0
	return col
}

func (g *Generator) isCave(x, y, z int) bool {
	return g.caves.Noise3D(float64(x)*g.CaveScale, float64(y)*g.CaveScale, float64(z)*g.CaveScale) > CaveThreshold
}

// placeTree ставит ствол и крону внутри столба
func (g *Generator) placeTree(col *Column, x, y, z int, rng *rand.Rand) {
	treeHeight := 3 + rng.Intn(3) // Высота дерева 3-5 блоков

	for i := 0; i < treeHeight; i++ {
		col.SetBlock(x, y+i, z, block.LogBlockID)
	}

	crown := y + treeHeight
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			for dz := -1; dz <= 1; dz++ {
				lx, lz := x+dx, z+dz
				if lx < 0 || lx >= SectionSize || lz < 0 || lz >= SectionSize {
					continue
				}
				if dx == 0 && dz == 0 && dy < 1 {
					continue
				}
				col.SetBlock(lx, crown+dy, lz, block.LeavesBlockID)
			}
		}
	}
}

// surfaceBlocks возвращает верхний блок и наполнитель для биома
func (g *Generator) surfaceBlocks(biome BiomeType) (top, filler block.BlockID) {
	switch biome {
	case BiomeDesert, BiomeWater:
		return block.SandBlockID, block.SandBlockID
	case BiomeMountains:
		return block.StoneBlockID, block.StoneBlockID
	default:
		return block.GrassBlockID, block.DirtBlockID
	}
}

// biomeType определяет тип биома на основе значений шума
func (g *Generator) biomeType(height float64, surface int, biomeValue float64) BiomeType {
	if surface <= SeaLevel {
		return BiomeWater
	}
	if height > MountainStart {
		return BiomeMountains
	}

	if biomeValue < 0.35 {
		return BiomeDesert
	} else if biomeValue > 0.65 {
		return BiomeForest
	}

	return BiomePlains
}
