package compile

import (
	"hash/fnv"

	"github.com/annel0/voxel-render/internal/geom"
	"github.com/annel0/voxel-render/internal/render/state"
	"github.com/annel0/voxel-render/internal/world"
	"github.com/annel0/voxel-render/internal/world/block"
)

// TerrainTask строит меш секции по снимку мира
type TerrainTask struct {
	target Target
	slice  *world.SliceData
}

// NewTerrainTask создаёт задачу построения по снимку
func NewTerrainTask(target Target, slice *world.SliceData) *TerrainTask {
	return &TerrainTask{target: target, slice: slice}
}

// Target реализует Task
func (t *TerrainTask) Target() Target { return t.target }

// Execute реализует Task. Возвращает nil, если задача отменена.
func (t *TerrainTask) Execute(c Cancellation) (*BuildResult, error) {
	var (
		data     state.RenderDataBuilder
		bounds   state.BoundsBuilder
		occluder = NewVisGraph()
		meshes   [state.PassCount]meshBuilder
	)

	center := t.slice.Center()

	for y := 0; y < world.SectionSize; y++ {
		if c.IsCancelled() {
			return nil, nil
		}

		for z := 0; z < world.SectionSize; z++ {
			for x := 0; x < world.SectionSize; x++ {
				id := center.Get(x, y, z)
				if id == block.AirBlockID {
					continue
				}

				props := block.MustGet(id)
				if props.Opaque {
					occluder.SetOpaque(x, y, z)
				}
				if props.Invisible {
					continue
				}

				pass := state.PassForLayer(props.Layer)
				color := blockColor(id)
				rendered := false
				for _, dir := range geom.AllDirections {
					off := dir.Offset()
					neighbour := t.slice.GetBlock(x+off.X, y+off.Y, z+off.Z)
					if !shouldDrawFace(id, props, neighbour) {
						continue
					}
					meshes[pass].addQuad(x, y, z, dir, color)
					rendered = true
				}

				if rendered {
					data.SetPass(pass)
					if props.AnimatedSprite != "" {
						data.AddSprite(props.AnimatedSprite)
					}
				}

				if props.BlockEntity != "" {
					rendered = true
				}
				if rendered {
					bounds.AddBlock(x, y, z)
				}
			}
		}
	}

	for pos, kind := range center.BlockEntities {
		props := block.MustGet(center.Get(pos.X&15, pos.Y&15, pos.Z&15))
		data.AddBlockEntity(state.BlockEntity{Pos: pos, Kind: kind}, !props.RenderOffScreen)
	}

	data.SetOcclusion(occluder.Resolve())
	data.SetBounds(bounds.Build(t.target.Pos))

	result := &BuildResult{Target: t.target, Data: data.Build()}
	for pass := range meshes {
		result.Meshes[pass] = meshes[pass].build()
	}
	return result, nil
}

// shouldDrawFace грань видна, если сосед не закрывает её полностью
func shouldDrawFace(id block.BlockID, props block.Properties, neighbour block.BlockID) bool {
	if neighbour == block.AirBlockID {
		return true
	}
	if block.IsOpaque(neighbour) {
		return false
	}
	// Соседние одинаковые прозрачные блоки (вода, стекло) не рисуют общую грань
	return neighbour != id || props.Layer == block.LayerSolid
}

// blockColor стабильный цвет блока для отладочной отрисовки
func blockColor(id block.BlockID) uint32 {
	h := fnv.New32a()
	h.Write([]byte(block.MustGet(id).Name))
	return h.Sum32() | 0xFF000000
}
