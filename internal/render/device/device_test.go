package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-render/internal/render/state"
)

func TestHeadlessArena_UploadFree(t *testing.T) {
	d := NewHeadless()
	a := d.CreateArena()
	assert.Equal(t, 1, d.ArenaCount())
	assert.True(t, a.IsEmpty())

	first, err := a.Upload(make([]byte, 100))
	require.NoError(t, err)
	second, err := a.Upload(make([]byte, 50))
	require.NoError(t, err)

	assert.Equal(t, int64(0), first.Offset)
	assert.Equal(t, int64(100), second.Offset)
	assert.Equal(t, int64(150), a.UsedMemory())
	assert.Equal(t, int64(arenaPageSize), a.AllocatedMemory())

	a.Free(first)
	assert.Equal(t, int64(50), a.UsedMemory())

	// Освобождённое место используется повторно
	third, err := a.Upload(make([]byte, 60))
	require.NoError(t, err)
	assert.Equal(t, int64(0), third.Offset)

	a.Free(second)
	a.Free(third)
	assert.True(t, a.IsEmpty())

	a.Delete()
	a.Delete()
	assert.Equal(t, 0, d.ArenaCount())

	_, err = a.Upload([]byte{1})
	assert.ErrorIs(t, err, ErrArenaDeleted)
}

func TestCountingRenderer(t *testing.T) {
	r := NewCountingRenderer()

	cmd := DrawCommand{FaceMask: state.FaceUpBits | state.FaceDownBits}
	cmd.Parts[state.FaceUp] = state.VertexRange{Start: 0, Count: 8}
	cmd.Parts[state.FaceDown] = state.VertexRange{Start: 8, Count: 4}
	cmd.Parts[state.FaceEast] = state.VertexRange{Start: 12, Count: 4}

	list := &RenderList{Batches: []DrawBatch{{Commands: []DrawCommand{cmd}}}}
	assert.Equal(t, 1, list.Commands())

	r.Render(list, state.PassSolid, Matrices{})
	stats := r.Stats()
	assert.Equal(t, 2, stats.DrawCalls[state.PassSolid])
	assert.Equal(t, 12, stats.Vertices[state.PassSolid])
	assert.Zero(t, r.Stats().DrawCalls[state.PassSolid], "счетчики сбрасываются")
}
