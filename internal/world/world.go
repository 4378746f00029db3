package world

import (
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/voxel-render/internal/vec"
	"github.com/annel0/voxel-render/internal/world/block"
)

// ErrColumnExists возвращается при повторной загрузке столба
var ErrColumnExists = errors.New("column already loaded")

// ErrColumnNotLoaded возвращается при обращении к незагруженному столбу
var ErrColumnNotLoaded = errors.New("column not loaded")

// Listener получает уведомления о загрузке столбов и изменениях блоков.
// Вызывается в потоке, изменяющем мир.
type Listener interface {
	OnChunkAdded(x, z int)
	OnChunkRemoved(x, z int)
	ScheduleRebuild(x, y, z int, important bool)
}

// World хранит загруженные столбы и уведомляет слушателя об изменениях
type World struct {
	columns map[vec.Vec2]*Column
	bottom  int // Нижняя секция (включительно)
	top     int // Верхняя секция (исключительно)

	tracker  *Tracker
	cache    *SectionCache
	listener Listener

	mu sync.RWMutex
}

// NewWorld создаёт мир с секциями в диапазоне [bottom, top)
func NewWorld(bottom, top, cacheSize int) *World {
	return &World{
		columns: make(map[vec.Vec2]*Column),
		bottom:  bottom,
		top:     top,
		tracker: NewTracker(),
		cache:   NewSectionCache(cacheSize),
	}
}

// SetListener устанавливает слушателя изменений
func (w *World) SetListener(l Listener) {
	w.listener = l
}

// BottomSection нижняя секция мира
func (w *World) BottomSection() int { return w.bottom }

// TopSection секция сразу над миром
func (w *World) TopSection() int { return w.top }

// Tracker возвращает трекер флагов загрузки
func (w *World) Tracker() *Tracker { return w.tracker }

// Cache возвращает кэш клонированных секций
func (w *World) Cache() *SectionCache { return w.cache }

// Column возвращает столб по координатам или nil
func (w *World) Column(x, z int) *Column {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.columns[vec.Vec2{X: x, Y: z}]
}

// Columns возвращает координаты всех загруженных столбов
func (w *World) Columns() []vec.Vec2 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]vec.Vec2, 0, len(w.columns))
	for coords := range w.columns {
		out = append(out, coords)
	}
	return out
}

// Section возвращает секцию по координатам секции или nil
func (w *World) Section(x, y, z int) *Section {
	col := w.Column(x, z)
	if col == nil {
		return nil
	}
	return col.Section(y)
}

// IsSectionEmpty true если секции нет или в ней только воздух
func (w *World) IsSectionEmpty(x, y, z int) bool {
	col := w.Column(x, z)
	if col == nil {
		return true
	}
	col.Mu.RLock()
	defer col.Mu.RUnlock()
	return col.Section(y).IsEmpty()
}

// GetBlock возвращает блок по мировым координатам
func (w *World) GetBlock(pos vec.Vec3) block.BlockID {
	col := w.Column(pos.X>>4, pos.Z>>4)
	if col == nil {
		return block.AirBlockID
	}
	return col.GetBlock(pos.X&15, pos.Y, pos.Z&15)
}

// IsOpaqueAt true если блок в позиции полностью непрозрачен
func (w *World) IsOpaqueAt(pos vec.Vec3) bool {
	return block.IsOpaque(w.GetBlock(pos))
}

// AddColumn добавляет столб, выставляет флаги трекера и уведомляет слушателя
func (w *World) AddColumn(col *Column) error {
	w.mu.Lock()
	if _, exists := w.columns[col.Coords]; exists {
		w.mu.Unlock()
		return fmt.Errorf("add column %v: %w", col.Coords, ErrColumnExists)
	}
	w.columns[col.Coords] = col
	w.mu.Unlock()

	w.tracker.Set(col.Coords.X, col.Coords.Y, FlagAll)
	for sy := w.bottom; sy < w.top; sy++ {
		w.cache.Invalidate(vec.Vec3{X: col.Coords.X, Y: sy, Z: col.Coords.Y})
	}

	if w.listener != nil {
		w.listener.OnChunkAdded(col.Coords.X, col.Coords.Y)
	}
	return nil
}

// RemoveColumn выгружает столб
func (w *World) RemoveColumn(x, z int) error {
	coords := vec.Vec2{X: x, Y: z}

	w.mu.Lock()
	if _, exists := w.columns[coords]; !exists {
		w.mu.Unlock()
		return fmt.Errorf("remove column %v: %w", coords, ErrColumnNotLoaded)
	}
	delete(w.columns, coords)
	w.mu.Unlock()

	w.tracker.Clear(x, z)
	for sy := w.bottom; sy < w.top; sy++ {
		w.cache.Invalidate(vec.Vec3{X: x, Y: sy, Z: z})
	}

	if w.listener != nil {
		w.listener.OnChunkRemoved(x, z)
	}
	return nil
}

// SetBlock изменяет блок и планирует перестройку затронутых секций.
// Секции-соседи перестраиваются, если блок лежит на их границе.
func (w *World) SetBlock(pos vec.Vec3, id block.BlockID, important bool) error {
	col := w.Column(pos.X>>4, pos.Z>>4)
	if col == nil {
		return fmt.Errorf("set block %v: %w", pos, ErrColumnNotLoaded)
	}

	if !col.SetBlock(pos.X&15, pos.Y, pos.Z&15, id) {
		return nil
	}

	section := pos.ToSectionCoords()
	local := pos.LocalInSection()

	w.scheduleRebuild(section, important)

	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				if !touchesBorder(local.X, dx) || !touchesBorder(local.Y, dy) || !touchesBorder(local.Z, dz) {
					continue
				}
				w.scheduleRebuild(section.Add(vec.Vec3{X: dx, Y: dy, Z: dz}), important)
			}
		}
	}
	return nil
}

func touchesBorder(local, d int) bool {
	switch d {
	case -1:
		return local == 0
	case 1:
		return local == SectionSize-1
	}
	return true
}

func (w *World) scheduleRebuild(section vec.Vec3, important bool) {
	w.cache.Invalidate(section)
	if w.listener != nil {
		w.listener.ScheduleRebuild(section.X, section.Y, section.Z, important)
	}
}

// HasMergedFlags true если столб и все его соседи получили данные flags
func (w *World) HasMergedFlags(x, z int, flags uint8) bool {
	return w.tracker.HasMergedFlags(x, z, flags)
}

// PrepareSlice снимает неизменяемые данные секции и соседей.
// Вызывается только из потока рендера.
func (w *World) PrepareSlice(pos vec.Vec3) *SliceData {
	return PrepareSlice(w, w.cache, pos)
}

// InvalidateSection сбрасывает копию секции в кэше
func (w *World) InvalidateSection(pos vec.Vec3) {
	w.cache.Invalidate(pos)
}
