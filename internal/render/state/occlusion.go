package state

import "github.com/annel0/voxel-render/internal/geom"

// OcclusionData таблица видимости между гранями секции.
// Нулевое значение означает, что все грани видят друг друга.
type OcclusionData struct {
	// Бит (from<<3)+to выставлен, если грань to не видна при входе через from
	blocked uint64
}

func occlusionBit(from, to geom.Direction) uint64 {
	return 1 << (uint(from)<<3 + uint(to))
}

// AllVisible все пары граней видимы
func AllVisible() OcclusionData {
	return OcclusionData{}
}

// NoneVisible ни одна пара граней не видна
func NoneVisible() OcclusionData {
	var o OcclusionData
	for _, from := range geom.AllDirections {
		for _, to := range geom.AllDirections {
			o.blocked |= occlusionBit(from, to)
		}
	}
	return o
}

// SetVisible задает видимость пары граней в обе стороны
func (o *OcclusionData) SetVisible(a, b geom.Direction, visible bool) {
	if visible {
		o.blocked &^= occlusionBit(a, b) | occlusionBit(b, a)
	} else {
		o.blocked |= occlusionBit(a, b) | occlusionBit(b, a)
	}
}

// IsVisibleBetween true если грань to видна при входе через from
func (o OcclusionData) IsVisibleBetween(from, to geom.Direction) bool {
	return o.blocked&occlusionBit(from, to) == 0
}

// VisibilityMask возвращает маску видимых пар в формате (from<<3)+to
func (o OcclusionData) VisibilityMask() uint64 {
	var mask uint64
	for _, from := range geom.AllDirections {
		for _, to := range geom.AllDirections {
			if o.IsVisibleBetween(from, to) {
				mask |= occlusionBit(from, to)
			}
		}
	}
	return mask
}
