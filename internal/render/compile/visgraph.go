package compile

import (
	"github.com/annel0/voxel-render/internal/geom"
	"github.com/annel0/voxel-render/internal/render/state"
	"github.com/annel0/voxel-render/internal/world"
)

// minOpenCells при меньшем числе прозрачных ячеек все грани считаются видимыми
const minOpenCells = 256

// VisGraph вычисляет видимость между гранями секции заливкой прозрачных ячеек
type VisGraph struct {
	opaque [world.SectionVolume]bool
	open   int
	queue  []int
}

// NewVisGraph создаёт граф полностью прозрачной секции
func NewVisGraph() *VisGraph {
	return &VisGraph{open: world.SectionVolume}
}

// SetOpaque отмечает ячейку непрозрачной
func (g *VisGraph) SetOpaque(x, y, z int) {
	idx := world.SectionIndex(x, y, z)
	if !g.opaque[idx] {
		g.opaque[idx] = true
		g.open--
	}
}

// Resolve возвращает таблицу видимости граней
func (g *VisGraph) Resolve() state.OcclusionData {
	if g.open < minOpenCells {
		return state.AllVisible()
	}

	data := state.NoneVisible()
	var visited [world.SectionVolume]bool

	for idx := 0; idx < world.SectionVolume; idx++ {
		if g.opaque[idx] || visited[idx] || !onBorder(idx) {
			continue
		}

		faces := g.flood(idx, &visited)
		for _, a := range geom.AllDirections {
			if faces&a.Bit() == 0 {
				continue
			}
			for _, b := range geom.AllDirections {
				if faces&b.Bit() != 0 {
					data.SetVisible(a, b, true)
				}
			}
		}
	}
	return data
}

// flood заливает связную область и возвращает маску затронутых граней
func (g *VisGraph) flood(start int, visited *[world.SectionVolume]bool) uint8 {
	var faces uint8
	g.queue = append(g.queue[:0], start)
	visited[start] = true

	for len(g.queue) > 0 {
		idx := g.queue[len(g.queue)-1]
		g.queue = g.queue[:len(g.queue)-1]

		x, y, z := idx&15, idx>>8, (idx>>4)&15
		faces |= borderFaces(x, y, z)

		for _, d := range geom.AllDirections {
			off := d.Offset()
			nx, ny, nz := x+off.X, y+off.Y, z+off.Z
			if nx < 0 || nx > 15 || ny < 0 || ny > 15 || nz < 0 || nz > 15 {
				continue
			}
			n := world.SectionIndex(nx, ny, nz)
			if g.opaque[n] || visited[n] {
				continue
			}
			visited[n] = true
			g.queue = append(g.queue, n)
		}
	}
	return faces
}

func onBorder(idx int) bool {
	x, y, z := idx&15, idx>>8, (idx>>4)&15
	return borderFaces(x, y, z) != 0
}

func borderFaces(x, y, z int) uint8 {
	var faces uint8
	if x == 0 {
		faces |= geom.West.Bit()
	} else if x == 15 {
		faces |= geom.East.Bit()
	}
	if y == 0 {
		faces |= geom.Down.Bit()
	} else if y == 15 {
		faces |= geom.Up.Bit()
	}
	if z == 0 {
		faces |= geom.North.Bit()
	} else if z == 15 {
		faces |= geom.South.Bit()
	}
	return faces
}
