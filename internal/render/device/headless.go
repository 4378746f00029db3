package device

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/annel0/voxel-render/internal/render/state"
)

// arenaPageSize шаг роста буфера арены
const arenaPageSize = 1 << 20

// Headless устройство без GPU, хранящее буферы в памяти
type Headless struct {
	arenas atomic.Int64
}

// NewHeadless создаёт устройство без GPU
func NewHeadless() *Headless {
	return &Headless{}
}

// CreateArena реализует Device
func (d *Headless) CreateArena() Arena {
	d.arenas.Add(1)
	return &headlessArena{device: d}
}

// ArenaCount количество живых арен
func (d *Headless) ArenaCount() int {
	return int(d.arenas.Load())
}

// headlessArena арена с first-fit размещением
type headlessArena struct {
	device  *Headless
	buffer  []byte
	free    []Allocation // Отсортированы по смещению
	used    int64
	deleted bool
}

func (a *headlessArena) Upload(data []byte) (Allocation, error) {
	if a.deleted {
		return Allocation{}, ErrArenaDeleted
	}

	length := int64(len(data))
	alloc, ok := a.takeFree(length)
	if !ok {
		alloc = Allocation{Offset: int64(len(a.buffer)), Length: length}
		a.grow(alloc.Offset + length)
	}

	copy(a.buffer[alloc.Offset:alloc.Offset+length], data)
	a.used += length
	return alloc, nil
}

func (a *headlessArena) takeFree(length int64) (Allocation, bool) {
	for i, f := range a.free {
		if f.Length < length {
			continue
		}
		alloc := Allocation{Offset: f.Offset, Length: length}
		if f.Length == length {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i] = Allocation{Offset: f.Offset + length, Length: f.Length - length}
		}
		return alloc, true
	}
	return Allocation{}, false
}

func (a *headlessArena) grow(size int64) {
	if size <= int64(cap(a.buffer)) {
		a.buffer = a.buffer[:size]
		return
	}

	capacity := (size + arenaPageSize - 1) / arenaPageSize * arenaPageSize
	buffer := make([]byte, size, capacity)
	copy(buffer, a.buffer)
	a.buffer = buffer
}

func (a *headlessArena) Free(alloc Allocation) {
	if a.deleted || alloc.Length == 0 {
		return
	}

	a.used -= alloc.Length
	a.free = append(a.free, alloc)
	sort.Slice(a.free, func(i, j int) bool { return a.free[i].Offset < a.free[j].Offset })

	// Склеиваем соседние свободные участки
	merged := a.free[:1]
	for _, f := range a.free[1:] {
		last := &merged[len(merged)-1]
		if last.Offset+last.Length == f.Offset {
			last.Length += f.Length
			continue
		}
		merged = append(merged, f)
	}
	a.free = merged

	// Свободный хвост возвращаем буферу
	last := a.free[len(a.free)-1]
	if last.Offset+last.Length == int64(len(a.buffer)) {
		a.buffer = a.buffer[:last.Offset]
		a.free = a.free[:len(a.free)-1]
	}
}

func (a *headlessArena) UsedMemory() int64 {
	return a.used
}

func (a *headlessArena) AllocatedMemory() int64 {
	return int64(cap(a.buffer))
}

func (a *headlessArena) IsEmpty() bool {
	return a.used == 0
}

func (a *headlessArena) Delete() {
	if a.deleted {
		return
	}
	a.deleted = true
	a.buffer = nil
	a.free = nil
	a.used = 0
	a.device.arenas.Add(-1)
}

// RenderStats счетчики отрисовки
type RenderStats struct {
	DrawCalls [state.PassCount]int
	Vertices  [state.PassCount]int
}

// CountingRenderer считает команды и вершины вместо отрисовки
type CountingRenderer struct {
	mu      sync.Mutex
	stats   RenderStats
	deleted bool
}

// NewCountingRenderer создаёт счетчик отрисовки
func NewCountingRenderer() *CountingRenderer {
	return &CountingRenderer{}
}

// Render реализует ChunkRenderer
func (r *CountingRenderer) Render(list *RenderList, pass state.Pass, _ Matrices) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted || list == nil {
		return
	}

	for _, batch := range list.Batches {
		for _, cmd := range batch.Commands {
			for face, part := range cmd.Parts {
				if cmd.FaceMask&(1<<face) == 0 || part.Count == 0 {
					continue
				}
				r.stats.DrawCalls[pass]++
				r.stats.Vertices[pass] += part.Count
			}
		}
	}
}

// Stats возвращает накопленные счетчики и сбрасывает их
func (r *CountingRenderer) Stats() RenderStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.stats
	r.stats = RenderStats{}
	return s
}

// Delete реализует ChunkRenderer
func (r *CountingRenderer) Delete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = true
}
