package state

import (
	"errors"

	"github.com/annel0/voxel-render/internal/vec"
)

// ErrNilRenderData возвращается при попытке назначить секции отсутствующие данные
var ErrNilRenderData = errors.New("render data must not be nil, use state.Empty")

// BlockEntity блочная сущность для отрисовки вне меша
type BlockEntity struct {
	Pos  vec.Vec3
	Kind string
}

// RenderData неизменяемые данные отрисовки секции
type RenderData struct {
	Bounds              Bounds
	Occlusion           OcclusionData
	BlockEntities       []BlockEntity
	GlobalBlockEntities []BlockEntity
	AnimatedSprites     []string

	passes [PassCount]bool
	empty  bool
}

var (
	// Absent секция ещё не построена
	Absent = &RenderData{empty: true}

	// Empty секция построена и не содержит геометрии
	Empty = &RenderData{empty: true}
)

// IsEmpty true если нечего рисовать
func (d *RenderData) IsEmpty() bool {
	return d.empty
}

// HasPass true если у секции есть геометрия прохода
func (d *RenderData) HasPass(p Pass) bool {
	return d.passes[p]
}

// RenderDataBuilder собирает RenderData в строителе
type RenderDataBuilder struct {
	data RenderData
}

// AddBlockEntity добавляет сущность. Сущности без отсечения попадают в глобальный список.
func (b *RenderDataBuilder) AddBlockEntity(e BlockEntity, cull bool) {
	if cull {
		b.data.BlockEntities = append(b.data.BlockEntities, e)
	} else {
		b.data.GlobalBlockEntities = append(b.data.GlobalBlockEntities, e)
	}
}

// AddSprite добавляет анимированную текстуру без повторов
func (b *RenderDataBuilder) AddSprite(name string) {
	for _, s := range b.data.AnimatedSprites {
		if s == name {
			return
		}
	}
	b.data.AnimatedSprites = append(b.data.AnimatedSprites, name)
}

// SetPass отмечает наличие геометрии прохода
func (b *RenderDataBuilder) SetPass(p Pass) {
	b.data.passes[p] = true
}

// SetBounds задает границы геометрии
func (b *RenderDataBuilder) SetBounds(bounds Bounds) {
	b.data.Bounds = bounds
}

// SetOcclusion задает таблицу видимости граней
func (b *RenderDataBuilder) SetOcclusion(o OcclusionData) {
	b.data.Occlusion = o
}

// Build возвращает данные
func (b *RenderDataBuilder) Build() *RenderData {
	d := b.data
	d.empty = true
	for _, has := range d.passes {
		if has {
			d.empty = false
		}
	}
	if len(d.BlockEntities) > 0 || len(d.GlobalBlockEntities) > 0 {
		d.empty = false
	}
	return &d
}
