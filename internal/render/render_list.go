package render

import (
	"github.com/annel0/voxel-render/internal/render/device"
	"github.com/annel0/voxel-render/internal/render/region"
	"github.com/annel0/voxel-render/internal/render/state"
)

// buildRenderLists группирует видимые секции по проходам и регионам.
// Прозрачный проход рисуется от дальних секций к ближним.
func buildRenderLists(visible []*Section) [state.PassCount]*device.RenderList {
	var lists [state.PassCount]*device.RenderList

	for _, pass := range state.AllPasses {
		list := &device.RenderList{}
		batches := make(map[*region.Region]int)

		for i := range visible {
			s := visible[i]
			if pass.IsTranslucent() {
				s = visible[len(visible)-1-i]
			}

			g := s.Geometry()
			if g == nil {
				continue
			}
			part := g.Pass(pass)
			if part == nil {
				continue
			}

			idx, ok := batches[s.Region()]
			if !ok {
				idx = len(list.Batches)
				batches[s.Region()] = idx
				list.Batches = append(list.Batches, device.DrawBatch{Arena: g.Arena()})
			}

			list.Batches[idx].Commands = append(list.Batches[idx].Commands, device.DrawCommand{
				BaseVertex: part.BaseVertex(),
				Parts:      part.Parts,
				FaceMask:   s.VisibilityFlags(),
			})
		}

		if len(list.Batches) > 0 {
			lists[pass] = list
		}
	}
	return lists
}
