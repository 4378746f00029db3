package compile

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-render/internal/geom"
	"github.com/annel0/voxel-render/internal/logging"
	"github.com/annel0/voxel-render/internal/render/state"
	"github.com/annel0/voxel-render/internal/vec"
	"github.com/annel0/voxel-render/internal/world"
	"github.com/annel0/voxel-render/internal/world/block"
)

type funcTask struct {
	target Target
	fn     func(c Cancellation) (*BuildResult, error)
}

func (t *funcTask) Target() Target { return t.target }

func (t *funcTask) Execute(c Cancellation) (*BuildResult, error) {
	return t.fn(c)
}

func resultTask(frame int) *funcTask {
	target := Target{Pos: vec.Vec3{X: frame}, Frame: frame}
	return &funcTask{target: target, fn: func(Cancellation) (*BuildResult, error) {
		return &BuildResult{Target: target, Data: state.Empty}, nil
	}}
}

func testLogger() *logging.Logger {
	return logging.New("test", nil, logging.ERROR)
}

func TestHandle_RunInlineOnce(t *testing.T) {
	var runs atomic.Int32
	task := &funcTask{fn: func(Cancellation) (*BuildResult, error) {
		runs.Add(1)
		return &BuildResult{Data: state.Empty}, nil
	}}

	h := newHandle(task, false)
	assert.True(t, h.TryRunInline())
	assert.False(t, h.TryRunInline(), "задача выполняется не более одного раза")
	assert.EqualValues(t, 1, runs.Load())

	result, err := h.Result()
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Same(t, state.Empty, result.Data)
}

func TestHandle_CancelledBeforeStart(t *testing.T) {
	var runs atomic.Int32
	task := &funcTask{fn: func(Cancellation) (*BuildResult, error) {
		runs.Add(1)
		return &BuildResult{}, nil
	}}

	h := newHandle(task, false)
	h.Cancel()
	require.True(t, h.TryRunInline())

	result, err := h.Result()
	assert.NoError(t, err)
	assert.Nil(t, result, "отменённая задача не даёт результата")
	assert.Zero(t, runs.Load())
}

func TestHandle_PanicBecomesError(t *testing.T) {
	task := &funcTask{fn: func(Cancellation) (*BuildResult, error) {
		panic("boom")
	}}

	h := newHandle(task, false)
	h.TryRunInline()

	_, err := h.Result()
	assert.True(t, errors.Is(err, ErrTaskPanicked))
}

func TestPool_DeferredResults(t *testing.T) {
	p := NewPool(2, 2, testLogger())
	defer p.Stop()

	assert.Equal(t, 4, p.SchedulingBudget())

	var handles []*Handle
	for i := 0; i < 4; i++ {
		h, err := p.ScheduleDeferred(resultTask(i))
		require.NoError(t, err)
		handles = append(handles, h)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, h := range handles {
		_, err := h.Wait(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, 4, p.SchedulingBudget())
	drained := p.DrainDeferred()
	assert.Len(t, drained, 4)
	assert.Empty(t, p.DrainDeferred(), "результаты забираются один раз")
}

func TestPool_DrainStealsUnstarted(t *testing.T) {
	p := NewPool(1, 2, testLogger())
	defer p.Stop()

	// Занимаем единственного воркера
	release := make(chan struct{})
	started := make(chan struct{})
	blocker := &funcTask{fn: func(Cancellation) (*BuildResult, error) {
		close(started)
		<-release
		return nil, nil
	}}
	_, err := p.ScheduleDeferred(blocker)
	require.NoError(t, err)
	<-started

	var handles []*Handle
	for i := 0; i < 3; i++ {
		h, err := p.Schedule(resultTask(i))
		require.NoError(t, err)
		handles = append(handles, h)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done, err := p.Drain(ctx, handles)
	require.NoError(t, err)
	assert.Len(t, done, 3, "все задачи выполнены в потоке ожидания")
	assert.GreaterOrEqual(t, p.Stats().Stolen.Load(), int64(3))

	close(release)
}

func TestPool_StopRejects(t *testing.T) {
	p := NewPool(1, 1, testLogger())
	p.Stop()
	p.Stop()

	_, err := p.Schedule(resultTask(0))
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestVisGraph_Resolve(t *testing.T) {
	t.Run("мало прозрачных ячеек", func(t *testing.T) {
		g := NewVisGraph()
		for y := 0; y < 16; y++ {
			for z := 0; z < 16; z++ {
				for x := 0; x < 16; x++ {
					g.SetOpaque(x, y, z)
				}
			}
		}
		data := g.Resolve()
		assert.True(t, data.IsVisibleBetween(geom.Up, geom.Down))
	})

	t.Run("стена по Y", func(t *testing.T) {
		g := NewVisGraph()
		for z := 0; z < 16; z++ {
			for x := 0; x < 16; x++ {
				g.SetOpaque(x, 8, z)
			}
		}
		data := g.Resolve()
		assert.False(t, data.IsVisibleBetween(geom.Up, geom.Down))
		assert.True(t, data.IsVisibleBetween(geom.Up, geom.North))
		assert.True(t, data.IsVisibleBetween(geom.Down, geom.East))
		assert.True(t, data.IsVisibleBetween(geom.North, geom.South))
	})
}

func TestTerrainTask_Execute(t *testing.T) {
	w := world.NewWorld(0, 4, 64)
	require.NoError(t, w.AddColumn(world.NewColumn(vec.Vec2{X: 0, Y: 0}, 0, 4)))

	require.NoError(t, w.SetBlock(vec.Vec3{X: 4, Y: 20, Z: 4}, block.StoneBlockID, false))
	require.NoError(t, w.SetBlock(vec.Vec3{X: 5, Y: 20, Z: 4}, block.StoneBlockID, false))
	require.NoError(t, w.SetBlock(vec.Vec3{X: 8, Y: 24, Z: 8}, block.LavaBlockID, false))
	require.NoError(t, w.SetBlock(vec.Vec3{X: 2, Y: 30, Z: 2}, block.SignBlockID, false))

	pos := vec.Vec3{X: 0, Y: 1, Z: 0}
	slice := world.PrepareSlice(w, w.Cache(), pos)
	require.NotNil(t, slice)

	task := NewTerrainTask(Target{Pos: pos, SectionID: 7, Frame: 3}, slice)
	result, err := task.Execute(newHandle(task, false))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 3, result.Frame)
	assert.False(t, result.Data.IsEmpty())
	assert.True(t, result.Data.HasPass(state.PassSolid))
	assert.True(t, result.Data.HasPass(state.PassCutout))
	assert.Equal(t, []string{"lava_still"}, result.Data.AnimatedSprites)
	assert.Empty(t, result.Data.BlockEntities)
	assert.Len(t, result.Data.GlobalBlockEntities, 1)

	// Два камня рядом: 10 граней, лава: 6 граней
	solid := result.Meshes[state.PassSolid]
	require.NotNil(t, solid)
	assert.Equal(t, 16*4, solid.VertexCount())
	assert.Nil(t, result.Meshes[state.PassTranslucent])

	assert.Equal(t, state.Bounds{MinX: 2, MinY: 20, MinZ: 2, MaxX: 9, MaxY: 31, MaxZ: 9}, result.Data.Bounds)
}

func TestTerrainTask_Cancelled(t *testing.T) {
	w := world.NewWorld(0, 4, 64)
	require.NoError(t, w.AddColumn(world.NewColumn(vec.Vec2{X: 0, Y: 0}, 0, 4)))
	require.NoError(t, w.SetBlock(vec.Vec3{X: 1, Y: 1, Z: 1}, block.StoneBlockID, false))

	slice := world.PrepareSlice(w, w.Cache(), vec.Vec3{})
	require.NotNil(t, slice)

	h := newHandle(NewTerrainTask(Target{}, slice), false)
	h.Cancel()
	result, err := h.task.Execute(h)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestEmptyTask(t *testing.T) {
	task := NewEmptyTask(Target{Frame: 9})
	result, err := task.Execute(nil)
	require.NoError(t, err)
	assert.Same(t, state.Empty, result.Data)
	assert.Equal(t, 9, result.Frame)
}
