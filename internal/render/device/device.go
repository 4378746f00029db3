// Package device описывает графическое устройство, в которое загружается геометрия секций.
package device

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/voxel-render/internal/render/state"
)

// ErrArenaDeleted возвращается при работе с удалённой ареной
var ErrArenaDeleted = errors.New("arena deleted")

// Allocation участок буфера арены
type Allocation struct {
	Offset int64
	Length int64
}

// Arena буфер устройства, общий для секций одного региона
type Arena interface {
	Upload(data []byte) (Allocation, error)
	Free(a Allocation)
	UsedMemory() int64
	AllocatedMemory() int64
	IsEmpty() bool
	Delete()
}

// Matrices матрицы камеры для отрисовки
type Matrices struct {
	Projection mgl32.Mat4
	ModelView  mgl32.Mat4
}

// DrawCommand отрисовка одной секции в арене
type DrawCommand struct {
	BaseVertex int64
	Parts      [state.FaceCount]state.VertexRange
	FaceMask   uint8
}

// DrawBatch команды одного региона
type DrawBatch struct {
	Arena    Arena
	Commands []DrawCommand
}

// RenderList пакеты отрисовки одного прохода
type RenderList struct {
	Batches []DrawBatch
}

// Commands общее количество команд
func (l *RenderList) Commands() int {
	n := 0
	for _, b := range l.Batches {
		n += len(b.Commands)
	}
	return n
}

// Device создаёт арены
type Device interface {
	CreateArena() Arena
}

// ChunkRenderer рисует списки секций
type ChunkRenderer interface {
	Render(list *RenderList, pass state.Pass, matrices Matrices)
	Delete()
}
