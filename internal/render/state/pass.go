// Package state описывает данные отрисовки секции, которые строитель передает потоку рендера.
package state

import "github.com/annel0/voxel-render/internal/world/block"

// Pass проход отрисовки
type Pass uint8

const (
	PassSolid Pass = iota
	PassCutout
	PassTranslucent
)

// PassCount количество проходов
const PassCount = 3

// AllPasses все проходы в порядке отрисовки
var AllPasses = [PassCount]Pass{PassSolid, PassCutout, PassTranslucent}

func (p Pass) String() string {
	switch p {
	case PassSolid:
		return "solid"
	case PassCutout:
		return "cutout"
	case PassTranslucent:
		return "translucent"
	}
	return "unknown"
}

// IsTranslucent true для прохода с сортировкой по глубине
func (p Pass) IsTranslucent() bool {
	return p == PassTranslucent
}

// PassForLayer возвращает проход для слоя блока
func PassForLayer(layer block.Layer) Pass {
	switch layer {
	case block.LayerCutout:
		return PassCutout
	case block.LayerTranslucent:
		return PassTranslucent
	}
	return PassSolid
}
