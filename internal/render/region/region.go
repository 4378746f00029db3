// Package region группирует секции в регионы, разделяющие одну арену устройства.
package region

import (
	"fmt"

	"github.com/annel0/voxel-render/internal/geom"
	"github.com/annel0/voxel-render/internal/render/device"
	"github.com/annel0/voxel-render/internal/render/state"
)

// Размеры региона в секциях
const (
	Width  = 8
	Height = 4
	Length = 8

	widthShift  = 3
	heightShift = 2
	lengthShift = 3

	SectionsPerRegion = Width * Height * Length
)

// Key координаты региона
type Key struct {
	X, Y, Z int
}

// KeyForSection возвращает регион секции
func KeyForSection(x, y, z int) Key {
	return Key{X: x >> widthShift, Y: y >> heightShift, Z: z >> lengthShift}
}

// LocalIndex индекс секции внутри региона
func LocalIndex(x, y, z int) int {
	return (x&(Width-1))<<(heightShift+lengthShift) | (y&(Height-1))<<lengthShift | (z & (Length - 1))
}

// Region группа секций с общей ареной
type Region struct {
	key        Key
	device     device.Device
	arena      device.Arena
	sections   [SectionsPerRegion]bool
	count      int
	visibility geom.Visibility
}

func newRegion(key Key, dev device.Device) *Region {
	return &Region{key: key, device: dev, visibility: geom.Intersect}
}

// Key возвращает координаты региона
func (r *Region) Key() Key {
	return r.key
}

// AddSection отмечает секцию как принадлежащую региону
func (r *Region) AddSection(x, y, z int) {
	idx := LocalIndex(x, y, z)
	if r.sections[idx] {
		panic(fmt.Sprintf("section %d,%d,%d already in region %v", x, y, z, r.key))
	}
	r.sections[idx] = true
	r.count++
}

// RemoveSection удаляет секцию из региона
func (r *Region) RemoveSection(x, y, z int) {
	idx := LocalIndex(x, y, z)
	if !r.sections[idx] {
		panic(fmt.Sprintf("section %d,%d,%d not in region %v", x, y, z, r.key))
	}
	r.sections[idx] = false
	r.count--
}

// SectionCount количество секций в регионе
func (r *Region) SectionCount() int {
	return r.count
}

// IsEmpty true если в регионе нет секций
func (r *Region) IsEmpty() bool {
	return r.count == 0
}

// Visibility результат последней проверки пирамиды видимости
func (r *Region) Visibility() geom.Visibility {
	return r.visibility
}

// Arena возвращает арену региона или nil, если она ещё не создана
func (r *Region) Arena() device.Arena {
	return r.arena
}

// UpdateVisibility проверяет регион пирамидой видимости
func (r *Region) UpdateVisibility(frustum geom.Frustum) {
	x := float32(r.key.X << (widthShift + 4))
	y := float32(r.key.Y << (heightShift + 4))
	z := float32(r.key.Z << (lengthShift + 4))

	r.visibility = frustum.TestBox(x, y, z, x+Width*16, y+Height*16, z+Length*16)
}

// Upload загружает меши секции в арену региона
func (r *Region) Upload(meshes [state.PassCount]*state.MeshData) (*Geometry, error) {
	if r.arena == nil {
		r.arena = r.device.CreateArena()
	}

	g := &Geometry{arena: r.arena}
	for pass, mesh := range meshes {
		if mesh == nil {
			continue
		}

		alloc, err := r.arena.Upload(mesh.Vertices)
		if err != nil {
			g.Delete()
			return nil, fmt.Errorf("upload pass %s: %w", state.Pass(pass), err)
		}
		g.passes[pass] = &PassGeometry{Alloc: alloc, Parts: mesh.Parts}
	}
	return g, nil
}

// releaseEmptyArena удаляет арену без данных
func (r *Region) releaseEmptyArena() {
	if r.arena != nil && r.arena.IsEmpty() {
		r.arena.Delete()
		r.arena = nil
	}
}

func (r *Region) delete() {
	if r.arena != nil {
		r.arena.Delete()
		r.arena = nil
	}
}

// PassGeometry геометрия одного прохода в арене
type PassGeometry struct {
	Alloc device.Allocation
	Parts [state.FaceCount]state.VertexRange
}

// BaseVertex первая вершина участка в арене
func (p *PassGeometry) BaseVertex() int64 {
	return p.Alloc.Offset / state.VertexSize
}

// Geometry загруженная геометрия секции, владеет участками арены
type Geometry struct {
	arena  device.Arena
	passes [state.PassCount]*PassGeometry
}

// Pass возвращает геометрию прохода или nil
func (g *Geometry) Pass(p state.Pass) *PassGeometry {
	return g.passes[p]
}

// Arena возвращает арену геометрии
func (g *Geometry) Arena() device.Arena {
	return g.arena
}

// Size занятая память в байтах
func (g *Geometry) Size() int64 {
	var n int64
	for _, p := range g.passes {
		if p != nil {
			n += p.Alloc.Length
		}
	}
	return n
}

// Delete освобождает участки арены
func (g *Geometry) Delete() {
	for i, p := range g.passes {
		if p != nil {
			g.arena.Free(p.Alloc)
			g.passes[i] = nil
		}
	}
}
