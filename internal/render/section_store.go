package render

import (
	"fmt"

	"github.com/annel0/voxel-render/internal/geom"
	"github.com/annel0/voxel-render/internal/render/region"
	"github.com/annel0/voxel-render/internal/render/state"
	"github.com/annel0/voxel-render/internal/vec"
)

// SectionStore хранит секции в арене со взаимными ссылками на соседей
type SectionStore struct {
	slots []*Section
	free  []int32
	keys  map[int64]int32

	regions *region.Manager
	nextID  uint64

	// Сущности, которые рисуются независимо от видимости секции
	globalBlockEntities map[vec.Vec3]state.BlockEntity
}

// NewSectionStore создаёт пустое хранилище
func NewSectionStore(regions *region.Manager) *SectionStore {
	return &SectionStore{
		keys:                make(map[int64]int32),
		regions:             regions,
		globalBlockEntities: make(map[vec.Vec3]state.BlockEntity),
	}
}

// Len количество загруженных секций
func (st *SectionStore) Len() int {
	return len(st.keys)
}

// Get возвращает секцию по координатам или nil
func (st *SectionStore) Get(x, y, z int) *Section {
	idx, ok := st.keys[vec.Vec3{X: x, Y: y, Z: z}.Pack()]
	if !ok {
		return nil
	}
	return st.slots[idx]
}

// At возвращает секцию по индексу слота или nil
func (st *SectionStore) At(idx int32) *Section {
	if idx == noSection {
		return nil
	}
	return st.slots[idx]
}

// Adjacent возвращает соседа секции в направлении dir
func (st *SectionStore) Adjacent(s *Section, dir geom.Direction) *Section {
	return st.At(s.adjacent[dir])
}

// Load создаёт секцию, добавляет её в регион и связывает с соседями
func (st *SectionStore) Load(x, y, z int) *Section {
	pos := vec.Vec3{X: x, Y: y, Z: z}
	key := pos.Pack()
	if _, exists := st.keys[key]; exists {
		panic(fmt.Sprintf("section %v is already loaded", pos))
	}

	reg := st.regions.CreateRegionForSection(x, y, z)
	reg.AddSection(x, y, z)

	st.nextID++
	s := NewSection(st.nextID, pos, reg, st)

	if n := len(st.free); n > 0 {
		s.index = st.free[n-1]
		st.free = st.free[:n-1]
		st.slots[s.index] = s
	} else {
		s.index = int32(len(st.slots))
		st.slots = append(st.slots, s)
	}
	st.keys[key] = s.index

	st.connectNeighbors(s)
	return s
}

// Unload удаляет секцию. Выгрузка незагруженной секции является ошибкой программы.
func (st *SectionStore) Unload(x, y, z int) *Section {
	pos := vec.Vec3{X: x, Y: y, Z: z}
	key := pos.Pack()

	idx, ok := st.keys[key]
	if !ok {
		panic(fmt.Sprintf("section %v is not loaded", pos))
	}
	s := st.slots[idx]

	s.Delete()
	st.disconnectNeighbors(s)
	s.region.RemoveSection(x, y, z)

	delete(st.keys, key)
	st.slots[idx] = nil
	st.free = append(st.free, idx)
	return s
}

func (st *SectionStore) connectNeighbors(s *Section) {
	for _, dir := range geom.AllDirections {
		adj := st.Get(s.pos.X+dir.Offset().X, s.pos.Y+dir.Offset().Y, s.pos.Z+dir.Offset().Z)
		if adj == nil {
			continue
		}
		adj.adjacent[dir.Opposite()] = s.index
		s.adjacent[dir] = adj.index
	}
}

func (st *SectionStore) disconnectNeighbors(s *Section) {
	for _, dir := range geom.AllDirections {
		adj := st.At(s.adjacent[dir])
		if adj == nil {
			continue
		}
		adj.adjacent[dir.Opposite()] = noSection
		s.adjacent[dir] = noSection
	}
}

// ForEach вызывает fn для каждой загруженной секции
func (st *SectionStore) ForEach(fn func(s *Section)) {
	for _, s := range st.slots {
		if s != nil {
			fn(s)
		}
	}
}

// OnSectionDataChanged реализует DataListener
func (st *SectionStore) OnSectionDataChanged(s *Section, prev, next *state.RenderData) {
	s.graph.SetOcclusionData(next.Occlusion)

	for _, e := range prev.GlobalBlockEntities {
		delete(st.globalBlockEntities, e.Pos)
	}
	for _, e := range next.GlobalBlockEntities {
		st.globalBlockEntities[e.Pos] = e
	}
}

// GlobalBlockEntities возвращает сущности, рисуемые вне зависимости от видимости
func (st *SectionStore) GlobalBlockEntities() []state.BlockEntity {
	out := make([]state.BlockEntity, 0, len(st.globalBlockEntities))
	for _, e := range st.globalBlockEntities {
		out = append(out, e)
	}
	return out
}
