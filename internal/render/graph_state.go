package render

import (
	"github.com/annel0/voxel-render/internal/geom"
	"github.com/annel0/voxel-render/internal/render/state"
	"github.com/annel0/voxel-render/internal/vec"
)

// GraphState состояние секции в графе видимости
type GraphState struct {
	pos vec.Vec3

	lastVisibleFrame int
	cullingState     uint8

	// Бит (from<<3)+to выставлен, если грань to видна при входе через from
	visibilityData uint64
}

func newGraphState(pos vec.Vec3) GraphState {
	return GraphState{
		pos:              pos,
		lastVisibleFrame: -1,
		visibilityData:   state.AllVisible().VisibilityMask(),
	}
}

// SetOcclusionData обновляет таблицу видимости граней
func (g *GraphState) SetOcclusionData(data state.OcclusionData) {
	g.visibilityData = data.VisibilityMask()
}

// IsVisibleThrough true если из грани from видна грань to
func (g *GraphState) IsVisibleThrough(from, to geom.Direction) bool {
	return g.visibilityData&(1<<(uint(from)<<3+uint(to))) != 0
}

// ResetCullingState сбрасывает накопленные направления для корня обхода
func (g *GraphState) ResetCullingState() {
	g.cullingState = 0
}

// SetCullingState наследует направления родителя и добавляет направление входа
func (g *GraphState) SetCullingState(parent uint8, incoming geom.Direction) {
	g.cullingState = parent | incoming.Bit()
}

// CullingState накопленные направления
func (g *GraphState) CullingState() uint8 {
	return g.cullingState
}

// CanCull true если выход через dir уже запрещён путём обхода
func (g *GraphState) CanCull(dir geom.Direction) bool {
	return g.cullingState&dir.Bit() != 0
}

// LastVisibleFrame кадр последнего посещения
func (g *GraphState) LastVisibleFrame() int {
	return g.lastVisibleFrame
}

// SetLastVisibleFrame отмечает посещение в кадре
func (g *GraphState) SetLastVisibleFrame(frame int) {
	g.lastVisibleFrame = frame
}

// IsCulledByFrustum true если куб секции вне пирамиды видимости
func (g *GraphState) IsCulledByFrustum(frustum geom.Frustum) bool {
	o := g.pos.Origin()
	x, y, z := float32(o.X), float32(o.Y), float32(o.Z)
	return !geom.IsBoxVisible(frustum, x, y, z, x+16, y+16, z+16)
}
