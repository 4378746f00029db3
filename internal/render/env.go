package render

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/voxel-render/internal/config"
	"github.com/annel0/voxel-render/internal/logging"
	"github.com/annel0/voxel-render/internal/vec"
	"github.com/annel0/voxel-render/internal/world"
)

// SpriteActivator отмечает анимированные текстуры, которые нужно обновить в этом кадре
type SpriteActivator interface {
	MarkSpriteActive(name string)
}

// WorldSource источник данных мира для менеджера секций
type WorldSource interface {
	BottomSection() int
	TopSection() int
	IsSectionEmpty(x, y, z int) bool
	IsOpaqueAt(pos vec.Vec3) bool
	HasMergedFlags(x, z int, flags uint8) bool
	PrepareSlice(pos vec.Vec3) *world.SliceData
	InvalidateSection(pos vec.Vec3)
}

// Env зависимости менеджера секций, создаётся один раз и передаётся явно
type Env struct {
	// Config читается один раз за кадр, изменения применяются со следующего кадра
	Config  *config.RenderConfig
	Logger  *logging.Logger
	Metrics *Metrics
	Sprites SpriteActivator
}

func (e *Env) withDefaults() *Env {
	out := *e
	if out.Config == nil {
		cfg := config.Default().Render
		out.Config = &cfg
	}
	if out.Logger == nil {
		out.Logger = logging.GetRenderLogger()
	}
	if out.Metrics == nil {
		out.Metrics = NewMetrics(nil)
	}
	if out.Sprites == nil {
		out.Sprites = noopSprites{}
	}
	return &out
}

type noopSprites struct{}

func (noopSprites) MarkSpriteActive(string) {}

// Camera положение камеры и дальность тумана на кадр
type Camera struct {
	Pos    mgl32.Vec3
	FogEnd float32
}

// BlockPos блок, в котором находится камера
func (c Camera) BlockPos() vec.Vec3 {
	return vec.Vec3{
		X: int(math32.Floor(c.Pos.X())),
		Y: int(math32.Floor(c.Pos.Y())),
		Z: int(math32.Floor(c.Pos.Z())),
	}
}
