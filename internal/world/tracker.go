package world

import (
	"sync"

	"github.com/annel0/voxel-render/internal/vec"
)

// Флаги готовности столба
const (
	FlagHasBlockData uint8 = 1 << iota
	FlagHasLightData

	FlagAll = FlagHasBlockData | FlagHasLightData
)

// Tracker отслеживает, какие данные столбов уже получены
type Tracker struct {
	flags map[vec.Vec2]uint8
	mu    sync.RWMutex
}

// NewTracker создаёт пустой трекер
func NewTracker() *Tracker {
	return &Tracker{flags: make(map[vec.Vec2]uint8)}
}

// Set добавляет флаги столбу
func (t *Tracker) Set(x, z int, flags uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flags[vec.Vec2{X: x, Y: z}] |= flags
}

// Clear удаляет все флаги столба
func (t *Tracker) Clear(x, z int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.flags, vec.Vec2{X: x, Y: z})
}

// Flags возвращает флаги столба
func (t *Tracker) Flags(x, z int) uint8 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.flags[vec.Vec2{X: x, Y: z}]
}

// HasMergedFlags true если все столбы 3x3 вокруг (x, z) имеют флаги
func (t *Tracker) HasMergedFlags(x, z int, flags uint8) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			if t.flags[vec.Vec2{X: x + dx, Y: z + dz}]&flags != flags {
				return false
			}
		}
	}
	return true
}

// Columns возвращает столбы, у которых выставлены флаги
func (t *Tracker) Columns(flags uint8) []vec.Vec2 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []vec.Vec2
	for coords, f := range t.flags {
		if f&flags == flags {
			out = append(out, coords)
		}
	}
	return out
}
