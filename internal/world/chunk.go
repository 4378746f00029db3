package world

import (
	"sync"

	"github.com/annel0/voxel-render/internal/vec"
	"github.com/annel0/voxel-render/internal/world/block"
)

// Размеры секции
const (
	SectionSize   = 16
	SectionArea   = SectionSize * SectionSize
	SectionVolume = SectionArea * SectionSize
)

// SectionIndex индекс блока внутри секции
func SectionIndex(x, y, z int) int {
	return y<<8 | z<<4 | x
}

// Section куб 16x16x16 блоков
type Section struct {
	blocks [SectionVolume]block.BlockID
	nonAir int
}

// NewSection создаёт пустую секцию
func NewSection() *Section {
	return &Section{}
}

// Get возвращает блок по локальным координатам
func (s *Section) Get(x, y, z int) block.BlockID {
	return s.blocks[SectionIndex(x, y, z)]
}

// Set устанавливает блок и возвращает предыдущий
func (s *Section) Set(x, y, z int, id block.BlockID) block.BlockID {
	idx := SectionIndex(x, y, z)
	old := s.blocks[idx]
	if old == id {
		return old
	}

	if old == block.AirBlockID {
		s.nonAir++
	} else if id == block.AirBlockID {
		s.nonAir--
	}
	s.blocks[idx] = id
	return old
}

// IsEmpty true если в секции только воздух
func (s *Section) IsEmpty() bool {
	return s == nil || s.nonAir == 0
}

// NonAirCount количество не-воздушных блоков
func (s *Section) NonAirCount() int {
	return s.nonAir
}

// Blocks возвращает копию массива блоков
func (s *Section) Blocks() [SectionVolume]block.BlockID {
	return s.blocks
}

// SetBlocks заменяет содержимое секции
func (s *Section) SetBlocks(blocks [SectionVolume]block.BlockID) {
	s.blocks = blocks
	s.nonAir = 0
	for _, id := range blocks {
		if id != block.AirBlockID {
			s.nonAir++
		}
	}
}

// Column вертикальный столб секций мира
type Column struct {
	Coords vec.Vec2 // Координаты столба в секциях

	// Sections[i] соответствует секции с Y = bottom + i
	Sections []*Section

	// BlockEntities блочные сущности столба по мировой позиции
	BlockEntities map[vec.Vec3]string

	ChangeCounter int          // Счетчик изменений
	Mu            sync.RWMutex // Мьютекс для безопасного доступа

	bottom int
}

// NewColumn создаёт пустой столб с секциями в диапазоне [bottom, top)
func NewColumn(coords vec.Vec2, bottom, top int) *Column {
	sections := make([]*Section, top-bottom)
	for i := range sections {
		sections[i] = NewSection()
	}

	return &Column{
		Coords:        coords,
		Sections:      sections,
		BlockEntities: make(map[vec.Vec3]string),
		bottom:        bottom,
	}
}

// Bottom нижняя секция столба
func (c *Column) Bottom() int {
	return c.bottom
}

// Section возвращает секцию по координате Y в секциях, nil вне диапазона
func (c *Column) Section(sy int) *Section {
	i := sy - c.bottom
	if i < 0 || i >= len(c.Sections) {
		return nil
	}
	return c.Sections[i]
}

// GetBlock возвращает блок по локальным X/Z и мировому Y
func (c *Column) GetBlock(x, y, z int) block.BlockID {
	c.Mu.RLock()
	defer c.Mu.RUnlock()

	s := c.Section(y >> 4)
	if s == nil {
		return block.AirBlockID
	}
	return s.Get(x, y&15, z)
}

// SetBlock устанавливает блок по локальным X/Z и мировому Y
func (c *Column) SetBlock(x, y, z int, id block.BlockID) bool {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	s := c.Section(y >> 4)
	if s == nil {
		return false
	}

	old := s.Set(x, y&15, z, id)
	if old == id {
		return false
	}

	worldPos := vec.Vec3{X: c.Coords.X<<4 | x, Y: y, Z: c.Coords.Y<<4 | z}
	if be := block.MustGet(id).BlockEntity; be != "" {
		c.BlockEntities[worldPos] = be
	} else {
		delete(c.BlockEntities, worldPos)
	}

	c.ChangeCounter++
	return true
}

// SectionEntities возвращает блочные сущности секции sy
func (c *Column) SectionEntities(sy int) map[vec.Vec3]string {
	c.Mu.RLock()
	defer c.Mu.RUnlock()

	var out map[vec.Vec3]string
	for pos, kind := range c.BlockEntities {
		if pos.Y>>4 != sy {
			continue
		}
		if out == nil {
			out = make(map[vec.Vec3]string)
		}
		out[pos] = kind
	}
	return out
}
