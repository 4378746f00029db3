package world

import (
	"github.com/elliotchance/orderedmap/v2"

	"github.com/annel0/voxel-render/internal/vec"
	"github.com/annel0/voxel-render/internal/world/block"
)

// ClonedSection неизменяемая копия секции на момент клонирования
type ClonedSection struct {
	Pos           vec.Vec3
	blocks        [SectionVolume]block.BlockID
	empty         bool
	BlockEntities map[vec.Vec3]string
}

// Get возвращает блок по локальным координатам
func (c *ClonedSection) Get(x, y, z int) block.BlockID {
	return c.blocks[SectionIndex(x, y, z)]
}

// IsEmpty true если в копии только воздух
func (c *ClonedSection) IsEmpty() bool {
	return c.empty
}

// CloneSection копирует секцию мира. Отсутствующая секция копируется как пустая.
func CloneSection(w *World, pos vec.Vec3) *ClonedSection {
	clone := &ClonedSection{Pos: pos, empty: true}

	col := w.Column(pos.X, pos.Z)
	if col == nil {
		return clone
	}

	col.Mu.RLock()
	if s := col.Section(pos.Y); s != nil {
		clone.blocks = s.blocks
		clone.empty = s.IsEmpty()
	}
	col.Mu.RUnlock()

	clone.BlockEntities = col.SectionEntities(pos.Y)
	return clone
}

// SectionCache LRU-кэш клонированных секций.
// Используется только из потока рендера.
type SectionCache struct {
	entries  *orderedmap.OrderedMap[int64, *ClonedSection]
	capacity int
}

// NewSectionCache создаёт кэш на capacity секций
func NewSectionCache(capacity int) *SectionCache {
	if capacity < 27 {
		capacity = 27
	}
	return &SectionCache{
		entries:  orderedmap.NewOrderedMap[int64, *ClonedSection](),
		capacity: capacity,
	}
}

// Acquire возвращает копию секции из кэша или клонирует её
func (c *SectionCache) Acquire(w *World, pos vec.Vec3) *ClonedSection {
	key := pos.Pack()
	if clone, ok := c.entries.Get(key); ok {
		// Перемещаем в конец очереди вытеснения
		c.entries.Delete(key)
		c.entries.Set(key, clone)
		return clone
	}

	clone := CloneSection(w, pos)
	c.entries.Set(key, clone)

	for c.entries.Len() > c.capacity {
		c.entries.Delete(c.entries.Front().Key)
	}
	return clone
}

// Invalidate удаляет копию секции
func (c *SectionCache) Invalidate(pos vec.Vec3) {
	c.entries.Delete(pos.Pack())
}

// Len количество копий в кэше
func (c *SectionCache) Len() int {
	return c.entries.Len()
}

// SliceData снимок секции и её 26 соседей для построения меша
type SliceData struct {
	Origin   vec.Vec3
	sections [27]*ClonedSection
}

// PrepareSlice снимает данные секции и соседей.
// Возвращает nil, если центральная секция пуста.
func PrepareSlice(w *World, cache *SectionCache, pos vec.Vec3) *SliceData {
	center := cache.Acquire(w, pos)
	if center.IsEmpty() {
		return nil
	}

	slice := &SliceData{Origin: pos}
	for dy := -1; dy <= 1; dy++ {
		for dz := -1; dz <= 1; dz++ {
			for dx := -1; dx <= 1; dx++ {
				idx := sliceIndex(dx, dy, dz)
				if dx == 0 && dy == 0 && dz == 0 {
					slice.sections[idx] = center
					continue
				}
				slice.sections[idx] = cache.Acquire(w, pos.Add(vec.Vec3{X: dx, Y: dy, Z: dz}))
			}
		}
	}
	return slice
}

func sliceIndex(dx, dy, dz int) int {
	return (dy+1)*9 + (dz+1)*3 + (dx + 1)
}

// Center возвращает копию центральной секции
func (s *SliceData) Center() *ClonedSection {
	return s.sections[sliceIndex(0, 0, 0)]
}

// GetBlock возвращает блок по координатам относительно начала центральной секции.
// Допустимый диапазон [-16, 32) по каждой оси.
func (s *SliceData) GetBlock(x, y, z int) block.BlockID {
	sx, sy, sz := x>>4, y>>4, z>>4
	if sx < -1 || sx > 1 || sy < -1 || sy > 1 || sz < -1 || sz > 1 {
		return block.AirBlockID
	}
	return s.sections[sliceIndex(sx, sy, sz)].Get(x&15, y&15, z&15)
}
