package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-render/internal/config"
	"github.com/annel0/voxel-render/internal/geom"
	"github.com/annel0/voxel-render/internal/logging"
	"github.com/annel0/voxel-render/internal/render/compile"
	"github.com/annel0/voxel-render/internal/render/device"
	"github.com/annel0/voxel-render/internal/render/state"
	"github.com/annel0/voxel-render/internal/vec"
	"github.com/annel0/voxel-render/internal/world"
	"github.com/annel0/voxel-render/internal/world/block"
)

var _ world.Listener = (*SectionManager)(nil)

type funcTask struct {
	target compile.Target
	fn     func(c compile.Cancellation) (*compile.BuildResult, error)
}

func (t *funcTask) Target() compile.Target { return t.target }

func (t *funcTask) Execute(c compile.Cancellation) (*compile.BuildResult, error) {
	return t.fn(c)
}

func testLogger() *logging.Logger {
	return logging.New("test", nil, logging.ERROR)
}

// stubWorld мир из одной плоскости секций, данные блоков не нужны
type stubWorld struct {
	bottom, top int
	empty       map[vec.Vec3]bool
	opaque      map[vec.Vec3]bool
	invalidated []vec.Vec3
}

func newStubWorld() *stubWorld {
	return &stubWorld{
		bottom: 0,
		top:    1,
		empty:  make(map[vec.Vec3]bool),
		opaque: make(map[vec.Vec3]bool),
	}
}

func (w *stubWorld) BottomSection() int                       { return w.bottom }
func (w *stubWorld) TopSection() int                          { return w.top }
func (w *stubWorld) IsSectionEmpty(x, y, z int) bool          { return w.empty[vec.Vec3{X: x, Y: y, Z: z}] }
func (w *stubWorld) IsOpaqueAt(pos vec.Vec3) bool             { return w.opaque[pos] }
func (w *stubWorld) HasMergedFlags(_, _ int, _ uint8) bool    { return true }
func (w *stubWorld) PrepareSlice(_ vec.Vec3) *world.SliceData { return nil }
func (w *stubWorld) InvalidateSection(pos vec.Vec3) {
	w.invalidated = append(w.invalidated, pos)
}

type recordingSprites struct {
	active map[string]int
}

func (r *recordingSprites) MarkSpriteActive(name string) {
	r.active[name]++
}

type testManager struct {
	*SectionManager
	world    *stubWorld
	cfg      *config.RenderConfig
	metrics  *Metrics
	sprites  *recordingSprites
	renderer *device.CountingRenderer
}

func newTestManager(t *testing.T, renderDistance int) *testManager {
	t.Helper()

	cfg := config.Default().Render
	cfg.FogCulling = false
	cfg.OcclusionCulling = true
	cfg.AlwaysDeferUpdates = false

	w := newStubWorld()
	metrics := NewMetrics(nil)
	sprites := &recordingSprites{active: make(map[string]int)}
	renderer := device.NewCountingRenderer()

	env := &Env{Config: &cfg, Logger: testLogger(), Metrics: metrics, Sprites: sprites}
	pool := compile.NewPool(2, 2, testLogger())
	m := NewSectionManager(env, w, pool, device.NewHeadless(), renderer, renderDistance)
	t.Cleanup(m.Destroy)

	return &testManager{SectionManager: m, world: w, cfg: &cfg, metrics: metrics, sprites: sprites, renderer: renderer}
}

// loadGrid загружает столбы в квадрате и помечает их секции построенными
func (tm *testManager) loadGrid(t *testing.T, minX, maxX, minZ, maxZ int) {
	t.Helper()

	for x := minX; x <= maxX; x++ {
		for z := minZ; z <= maxZ; z++ {
			pos := vec.Vec3{X: x, Z: z}

			// Пустая при загрузке секция не ставится в очередь начальной сборки
			tm.world.empty[pos] = true
			tm.OnChunkAdded(x, z)
			delete(tm.world.empty, pos)

			s := tm.store.Get(x, 0, z)
			require.NotNil(t, s)
			require.NoError(t, s.SetData(solidData(s.Pos())))
		}
	}
}

func sectionCamera(x, y, z int) Camera {
	return Camera{Pos: mgl32.Vec3{float32(x*16 + 8), float32(y*16 + 8), float32(z*16 + 8)}}
}

func visiblePositions(m *SectionManager) map[vec.Vec3]bool {
	out := make(map[vec.Vec3]bool)
	for _, s := range m.VisibleSections() {
		out[s.Pos()] = true
	}
	return out
}

func TestSectionManager_VisibleGrid(t *testing.T) {
	tm := newTestManager(t, 2)
	tm.loadGrid(t, -2, 2, -2, 2)

	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 1, false)

	assert.Equal(t, 25, tm.VisibleSectionCount())
	assert.False(t, tm.IsGraphDirty())
}

func TestSectionManager_VisibleGridSkipsEmpty(t *testing.T) {
	tm := newTestManager(t, 2)
	tm.loadGrid(t, -2, 2, -2, 2)

	require.NoError(t, tm.store.Get(1, 0, 1).SetData(state.Empty))
	require.NoError(t, tm.store.Get(-2, 0, 0).SetData(state.Empty))

	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 1, false)

	assert.Equal(t, 23, tm.VisibleSectionCount())
	// Пустые секции посещаются, но не рисуются
	assert.True(t, tm.IsSectionVisible(1, 0, 1))
}

func TestSectionManager_RenderDistanceLimitsSearch(t *testing.T) {
	tm := newTestManager(t, 1)
	tm.loadGrid(t, -3, 3, -3, 3)

	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 1, false)

	assert.Equal(t, 9, tm.VisibleSectionCount())
	assert.False(t, tm.IsSectionVisible(2, 0, 0))
}

func TestSectionManager_OcclusionBlocksPropagation(t *testing.T) {
	tm := newTestManager(t, 4)
	tm.loadGrid(t, 0, 2, 0, 0)

	var b state.RenderDataBuilder
	b.SetPass(state.PassSolid)
	b.SetBounds(state.SectionBounds(vec.Vec3{X: 1}))
	b.SetOcclusion(state.NoneVisible())
	require.NoError(t, tm.store.Get(1, 0, 0).SetData(b.Build()))

	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 1, false)

	visible := visiblePositions(tm.SectionManager)
	assert.True(t, visible[vec.Vec3{X: 0}])
	assert.True(t, visible[vec.Vec3{X: 1}])
	assert.False(t, visible[vec.Vec3{X: 2}])
	assert.False(t, tm.IsSectionVisible(2, 0, 0))

	tm.cfg.OcclusionCulling = false
	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 2, false)
	assert.Equal(t, 3, tm.VisibleSectionCount())
}

func TestSectionManager_SpectatorInsideOpaqueIgnoresOcclusion(t *testing.T) {
	tm := newTestManager(t, 4)
	tm.loadGrid(t, 0, 2, 0, 0)

	var b state.RenderDataBuilder
	b.SetPass(state.PassSolid)
	b.SetOcclusion(state.NoneVisible())
	require.NoError(t, tm.store.Get(1, 0, 0).SetData(b.Build()))

	camera := sectionCamera(0, 0, 0)
	tm.world.opaque[camera.BlockPos()] = true

	tm.Update(camera, geom.AcceptAll(), 1, false)
	assert.Equal(t, 2, tm.VisibleSectionCount())

	tm.Update(camera, geom.AcceptAll(), 2, true)
	assert.Equal(t, 3, tm.VisibleSectionCount())
}

func TestSectionManager_CameraOutsideWorld(t *testing.T) {
	tm := newTestManager(t, 2)
	tm.loadGrid(t, -2, 2, -2, 2)

	tm.Update(sectionCamera(0, 40, 0), geom.AcceptAll(), 1, false)

	assert.Equal(t, 25, tm.VisibleSectionCount())
	// Ближайшие к камере секции идут первыми
	assert.Equal(t, vec.Vec3{}, tm.VisibleSections()[0].Pos())

	origin := sectionCamera(0, 40, 0).BlockPos()
	ox, oy, oz := float32(origin.X)+0.5, float32(origin.Y)+0.5, float32(origin.Z)+0.5

	visible := tm.VisibleSections()
	for i := 1; i < len(visible); i++ {
		prev := visible[i-1].SquaredDistance(ox, oy, oz)
		cur := visible[i].SquaredDistance(ox, oy, oz)
		assert.LessOrEqual(t, prev, cur, "секция %v раньше %v", visible[i-1], visible[i])
	}
}

func TestSectionManager_FogCulling(t *testing.T) {
	tm := newTestManager(t, 8)
	tm.loadGrid(t, 0, 3, 0, 0)
	tm.cfg.FogCulling = true

	camera := sectionCamera(0, 0, 0)
	camera.FogEnd = 20

	tm.Update(camera, geom.AcceptAll(), 1, false)

	visible := visiblePositions(tm.SectionManager)
	assert.Len(t, visible, 2)
	assert.True(t, visible[vec.Vec3{X: 1}])
	assert.False(t, visible[vec.Vec3{X: 2}])
	// Секции за туманом всё равно обходятся
	assert.True(t, tm.IsSectionVisible(3, 0, 0))

	camera.FogEnd = -12
	tm.Update(camera, geom.AcceptAll(), 2, false)
	assert.Equal(t, 4, tm.VisibleSectionCount())
}

// halfSpaceFrustum принимает всё с X меньше limit и считает проверки секций
type halfSpaceFrustum struct {
	limit        float32
	sectionTests int
}

func (f *halfSpaceFrustum) TestBox(minX, _, _, maxX, _, _ float32) geom.Visibility {
	if maxX-minX == 16 {
		f.sectionTests++
	}
	switch {
	case maxX <= f.limit:
		return geom.Inside
	case minX >= f.limit:
		return geom.Outside
	}
	return geom.Intersect
}

func TestSectionManager_RegionFrustumShortCircuit(t *testing.T) {
	tm := newTestManager(t, 12)
	tm.loadGrid(t, 0, 11, 0, 0)

	frustum := &halfSpaceFrustum{limit: 128}
	tm.Update(sectionCamera(0, 0, 0), frustum, 1, false)

	assert.Equal(t, 8, tm.VisibleSectionCount())
	assert.False(t, tm.IsSectionVisible(8, 0, 0))
	assert.Zero(t, frustum.sectionTests)

	// Граница пирамиды проходит через регион, секции проверяются по одной
	frustum = &halfSpaceFrustum{limit: 40}
	tm.Update(sectionCamera(0, 0, 0), frustum, 2, false)

	assert.Equal(t, 3, tm.VisibleSectionCount())
	assert.Positive(t, frustum.sectionTests)
}

func TestSectionManager_ScheduleRebuildFarIsDeferred(t *testing.T) {
	tm := newTestManager(t, 12)
	tm.loadGrid(t, 0, 10, 0, 0)
	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 1, false)

	tm.ScheduleRebuild(10, 0, 0, false)

	assert.Equal(t, UpdateRebuild, tm.store.Get(10, 0, 0).PendingUpdate())
	assert.True(t, tm.IsGraphDirty())
	assert.Contains(t, tm.world.invalidated, vec.Vec3{X: 10})
}

func TestSectionManager_ScheduleRebuildEscalates(t *testing.T) {
	tm := newTestManager(t, 12)
	tm.loadGrid(t, 0, 10, 0, 0)
	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 1, false)

	tm.ScheduleRebuild(10, 0, 0, false)
	tm.ScheduleRebuild(10, 0, 0, true)
	assert.Equal(t, UpdateImportantRebuild, tm.store.Get(10, 0, 0).PendingUpdate())

	tm.ScheduleRebuild(1, 0, 0, false)
	assert.Equal(t, UpdateImportantRebuild, tm.store.Get(1, 0, 0).PendingUpdate())
}

func TestSectionManager_ScheduleRebuildAlwaysDefer(t *testing.T) {
	tm := newTestManager(t, 4)
	tm.loadGrid(t, 0, 1, 0, 0)
	tm.cfg.AlwaysDeferUpdates = true
	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 1, false)

	tm.ScheduleRebuild(0, 0, 0, true)
	assert.Equal(t, UpdateRebuild, tm.store.Get(0, 0, 0).PendingUpdate())
}

func TestSectionManager_ScheduleRebuildUnbuiltSection(t *testing.T) {
	tm := newTestManager(t, 4)
	tm.OnChunkAdded(0, 0)

	s := tm.store.Get(0, 0, 0)
	require.Equal(t, UpdateInitialBuild, s.PendingUpdate())

	tm.ScheduleRebuild(0, 0, 0, true)
	assert.Equal(t, UpdateInitialBuild, s.PendingUpdate())

	// Незагруженная секция только помечает граф
	tm.ScheduleRebuild(50, 0, 50, true)
	assert.True(t, tm.IsGraphDirty())
}

func TestSectionManager_ImportantRebuildCompletesInFrame(t *testing.T) {
	tm := newTestManager(t, 4)
	tm.loadGrid(t, 0, 1, 0, 0)
	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 1, false)

	tm.ScheduleRebuild(0, 0, 0, true)
	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 2, false)
	require.NoError(t, tm.UpdateChunks(context.Background()))

	s := tm.store.Get(0, 0, 0)
	assert.Same(t, state.Empty, s.Data())
	assert.Equal(t, UpdateNone, s.PendingUpdate())
	assert.Equal(t, 2, s.LastAcceptedBuildTime())
	assert.Nil(t, s.BuildTask())
	assert.True(t, tm.IsGraphDirty())
	assert.Equal(t, 1.0, testutil.ToFloat64(tm.metrics.AcceptedResults))
}

func TestSectionManager_InitialBuildsAreDeferred(t *testing.T) {
	tm := newTestManager(t, 2)
	for x := -1; x <= 1; x++ {
		tm.OnChunkAdded(x, 0)
	}
	tm.world.empty[vec.Vec3{Z: 1}] = true
	tm.OnChunkAdded(0, 1)

	assert.Same(t, state.Empty, tm.store.Get(0, 0, 1).Data())

	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 1, false)
	assert.Zero(t, tm.VisibleSectionCount())
	require.NoError(t, tm.UpdateChunks(context.Background()))

	for x := -1; x <= 1; x++ {
		assert.Equal(t, UpdateNone, tm.store.Get(x, 0, 0).PendingUpdate())
	}

	require.Eventually(t, func() bool {
		if err := tm.UpdateChunks(context.Background()); err != nil {
			return false
		}
		for x := -1; x <= 1; x++ {
			if !tm.store.Get(x, 0, 0).IsBuilt() {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSectionManager_DeferredBudgetLeavesRestQueued(t *testing.T) {
	tm := newTestManager(t, 8)
	for x := 0; x < 8; x++ {
		tm.OnChunkAdded(x, 0)
	}
	require.Equal(t, 4, tm.pool.SchedulingBudget())

	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 1, false)
	require.Equal(t, 8, tm.rebuildQueues[UpdateInitialBuild].count())
	require.NoError(t, tm.UpdateChunks(context.Background()))

	pending := 0
	for x := 0; x < 8; x++ {
		if tm.store.Get(x, 0, 0).PendingUpdate() == UpdateInitialBuild {
			pending++
		}
	}
	assert.Equal(t, 4, pending)
	assert.Equal(t, 4, tm.rebuildQueues[UpdateInitialBuild].count())
	assert.Equal(t, 4.0, testutil.ToFloat64(tm.metrics.SubmittedTasks.WithLabelValues(UpdateInitialBuild.String())))

	// Оставшиеся секции уходят в следующих кадрах
	frame := 1
	require.Eventually(t, func() bool {
		frame++
		tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), frame, false)
		if err := tm.UpdateChunks(context.Background()); err != nil {
			return false
		}
		for x := 0; x < 8; x++ {
			if !tm.store.Get(x, 0, 0).IsBuilt() {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSectionManager_RebuildQueueOverflowRetriesNextFrame(t *testing.T) {
	tm := newTestManager(t, 3)
	for x := -3; x <= 3; x++ {
		for z := -3; z <= 3; z++ {
			tm.OnChunkAdded(x, z)
		}
	}

	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 1, false)

	require.Equal(t, rebuildQueueCapacity, tm.rebuildQueues[UpdateInitialBuild].count())
	assert.Equal(t, float64(49-rebuildQueueCapacity), testutil.ToFloat64(tm.metrics.DroppedOffers))

	queued := make(map[*Section]bool)
	snapshot := tm.rebuildQueues[UpdateInitialBuild]
	for !snapshot.isEmpty() {
		s, _ := snapshot.poll()
		queued[s] = true
	}

	var dropped []*Section
	tm.store.ForEach(func(s *Section) {
		if !queued[s] {
			dropped = append(dropped, s)
		}
	})
	require.Len(t, dropped, 49-rebuildQueueCapacity)

	// Уровень не потерян, секции снова попадут в очередь при следующем обходе
	for _, s := range dropped {
		assert.Equal(t, UpdateInitialBuild, s.PendingUpdate())
	}

	frame := 1
	require.Eventually(t, func() bool {
		frame++
		tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), frame, false)
		if err := tm.UpdateChunks(context.Background()); err != nil {
			return false
		}
		for _, s := range dropped {
			if !s.IsBuilt() {
				return false
			}
		}
		return true
	}, 5*time.Second, 5*time.Millisecond)
}

func TestSectionManager_StaleQueueEntrySkipped(t *testing.T) {
	tm := newTestManager(t, 12)
	tm.loadGrid(t, 0, 10, 0, 0)
	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 1, false)

	tm.ScheduleRebuild(10, 0, 0, false)
	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 2, false)
	require.Equal(t, 1, tm.rebuildQueues[UpdateRebuild].count())

	// Уровень поднят после постановки в очередь обычных перестроек
	tm.ScheduleRebuild(10, 0, 0, true)
	require.NoError(t, tm.UpdateChunks(context.Background()))

	s := tm.store.Get(10, 0, 0)
	assert.Zero(t, tm.rebuildQueues[UpdateRebuild].count())
	assert.Nil(t, s.BuildTask())
	assert.Equal(t, UpdateImportantRebuild, s.PendingUpdate())
	assert.Zero(t, testutil.ToFloat64(tm.metrics.SubmittedTasks.WithLabelValues(UpdateRebuild.String())))
	assert.Zero(t, testutil.ToFloat64(tm.metrics.SubmittedTasks.WithLabelValues(UpdateImportantRebuild.String())))

	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 3, false)
	require.NoError(t, tm.UpdateChunks(context.Background()))

	assert.Equal(t, UpdateNone, s.PendingUpdate())
	assert.Equal(t, 3, s.LastAcceptedBuildTime())
}

func TestSectionManager_StaleAndFailedResults(t *testing.T) {
	tm := newTestManager(t, 4)
	tm.loadGrid(t, 0, 0, 0, 0)
	s := tm.store.Get(0, 0, 0)

	stale, err := tm.pool.Schedule(&funcTask{
		target: compile.Target{Pos: s.Pos(), SectionID: s.ID() + 100, Frame: 9},
		fn: func(compile.Cancellation) (*compile.BuildResult, error) {
			return &compile.BuildResult{Target: compile.Target{Pos: s.Pos(), SectionID: s.ID() + 100, Frame: 9}, Data: state.Empty}, nil
		},
	})
	require.NoError(t, err)

	failed, err := tm.pool.Schedule(&funcTask{
		target: compile.Target{Pos: s.Pos(), SectionID: s.ID(), Frame: 9},
		fn: func(compile.Cancellation) (*compile.BuildResult, error) {
			return nil, errors.New("boom")
		},
	})
	require.NoError(t, err)

	done, err := tm.pool.Drain(context.Background(), []*compile.Handle{stale, failed})
	require.NoError(t, err)
	tm.upload(done)

	assert.Equal(t, 1.0, testutil.ToFloat64(tm.metrics.StaleResults))
	assert.Equal(t, 1.0, testutil.ToFloat64(tm.metrics.FailedBuilds))
	assert.NotSame(t, state.Empty, s.Data())
	assert.Equal(t, UpdateRebuild, s.PendingUpdate())
}

func TestSectionManager_UnloadedSectionIgnoresResult(t *testing.T) {
	tm := newTestManager(t, 4)
	tm.loadGrid(t, 0, 0, 0, 0)
	old := tm.store.Get(0, 0, 0)

	h, err := tm.pool.Schedule(compile.NewEmptyTask(compile.Target{Pos: old.Pos(), SectionID: old.ID(), Frame: 3}))
	require.NoError(t, err)
	_, err = h.Wait(context.Background())
	require.NoError(t, err)

	tm.OnChunkRemoved(0, 0)
	tm.OnChunkAdded(0, 0)
	tm.upload([]*compile.Handle{h})

	fresh := tm.store.Get(0, 0, 0)
	assert.NotSame(t, old, fresh)
	assert.Same(t, state.Absent, fresh.Data())
	assert.Equal(t, 1.0, testutil.ToFloat64(tm.metrics.StaleResults))
}

func TestSectionManager_DisposedNeverVisible(t *testing.T) {
	tm := newTestManager(t, 2)
	tm.loadGrid(t, -1, 1, 0, 0)

	tm.OnChunkRemoved(1, 0)
	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 1, false)

	for _, s := range tm.VisibleSections() {
		assert.False(t, s.IsDisposed())
	}
	assert.Equal(t, 2, tm.VisibleSectionCount())
	assert.Equal(t, 2, tm.TotalSections())
}

func TestSectionManager_UnloadPrunesFrameLists(t *testing.T) {
	tm := newTestManager(t, 2)
	tm.loadGrid(t, -1, 1, 0, 0)

	chest := state.BlockEntity{Pos: vec.Vec3{X: 20, Y: 3, Z: 4}, Kind: "chest"}

	var b state.RenderDataBuilder
	b.SetPass(state.PassSolid)
	b.AddSprite("lava_still")
	b.AddBlockEntity(chest, true)
	require.NoError(t, tm.store.Get(1, 0, 0).SetData(b.Build()))

	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 1, false)
	require.Equal(t, 3, tm.VisibleSectionCount())
	require.Len(t, tm.TickableSections(), 1)
	require.Equal(t, []state.BlockEntity{chest}, tm.VisibleBlockEntities())

	tm.OnChunkRemoved(1, 0)

	for _, s := range tm.VisibleSections() {
		assert.False(t, s.IsDisposed())
	}
	assert.Equal(t, 2, tm.VisibleSectionCount())
	assert.Empty(t, tm.TickableSections())
	assert.Empty(t, tm.VisibleBlockEntities())
	assert.True(t, tm.listsStale)

	tm.TickVisibleRenders()
	assert.Zero(t, tm.sprites.active["lava_still"])

	tm.RenderLayer(device.Matrices{}, state.PassSolid)
	assert.False(t, tm.listsStale)
	assert.Zero(t, tm.renderer.Stats().DrawCalls[state.PassSolid])
}

func TestSectionManager_TickAndEntities(t *testing.T) {
	tm := newTestManager(t, 2)
	tm.loadGrid(t, 0, 1, 0, 0)

	chest := state.BlockEntity{Pos: vec.Vec3{X: 20, Y: 3, Z: 4}, Kind: "chest"}
	sign := state.BlockEntity{Pos: vec.Vec3{X: 21, Y: 3, Z: 4}, Kind: "sign"}

	var b state.RenderDataBuilder
	b.SetPass(state.PassTranslucent)
	b.AddSprite("water_still")
	b.AddBlockEntity(chest, true)
	b.AddBlockEntity(sign, false)
	require.NoError(t, tm.store.Get(1, 0, 0).SetData(b.Build()))

	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 1, false)
	tm.TickVisibleRenders()

	assert.Len(t, tm.TickableSections(), 1)
	assert.Equal(t, 1, tm.sprites.active["water_still"])
	assert.Equal(t, []state.BlockEntity{chest}, tm.VisibleBlockEntities())
	assert.Equal(t, []state.BlockEntity{sign}, tm.GlobalBlockEntities())
}

func TestSectionManager_VisibilityFlags(t *testing.T) {
	tm := newTestManager(t, 2)
	tm.loadGrid(t, 0, 1, 0, 0)

	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 1, false)

	// Камера западнее секции (1,0,0): восточные грани не видны
	flags := tm.store.Get(1, 0, 0).VisibilityFlags()
	assert.Zero(t, flags&state.FaceEastBits)
	assert.NotZero(t, flags&state.FaceWestBits)
	assert.NotZero(t, flags&state.FaceUnassignedBits)

	tm.cfg.BlockFaceCulling = false
	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 2, false)
	assert.Equal(t, uint8(state.FaceAllBits), tm.store.Get(1, 0, 0).VisibilityFlags())
}

func TestSectionManager_ReloadChunksSkipsLoaded(t *testing.T) {
	tm := newTestManager(t, 2)
	tm.OnChunkAdded(0, 0)

	tracker := world.NewTracker()
	tracker.Set(0, 0, world.FlagAll)
	tracker.Set(1, 0, world.FlagHasBlockData)
	tracker.Set(2, 0, world.FlagHasLightData)

	tm.ReloadChunks(tracker)

	assert.NotNil(t, tm.store.Get(1, 0, 0))
	assert.Nil(t, tm.store.Get(2, 0, 0))
	assert.Equal(t, 2, tm.store.Len())
}

func TestSectionManager_DebugStrings(t *testing.T) {
	tm := newTestManager(t, 2)
	tm.loadGrid(t, 0, 0, 0, 0)
	tm.Update(sectionCamera(0, 0, 0), geom.AcceptAll(), 1, false)

	lines := tm.DebugStrings()
	require.Len(t, lines, 3)
	assert.Equal(t, "Sections: 1 visible/1 loaded", lines[2])
}

func TestSectionManager_RendersRealWorld(t *testing.T) {
	cfg := config.Default().Render
	cfg.FogCulling = false

	w := world.NewWorld(0, 2, 64)
	renderer := device.NewCountingRenderer()
	dev := device.NewHeadless()
	pool := compile.NewPool(2, 2, testLogger())

	m := NewSectionManager(&Env{Config: &cfg, Logger: testLogger()}, w, pool, dev, renderer, 2)
	defer m.Destroy()
	w.SetListener(m)

	for x := -2; x <= 2; x++ {
		for z := -2; z <= 2; z++ {
			col := world.NewColumn(vec.Vec2{X: x, Y: z}, 0, 2)
			for bx := 0; bx < 16; bx++ {
				for bz := 0; bz < 16; bz++ {
					col.SetBlock(bx, 0, bz, block.StoneBlockID)
				}
			}
			require.NoError(t, w.AddColumn(col))
		}
	}
	assert.Equal(t, 50, m.TotalSections())
	assert.Same(t, state.Empty, m.store.Get(0, 1, 0).Data())

	camera := Camera{Pos: mgl32.Vec3{8, 10, 8}}
	frame := 0
	require.Eventually(t, func() bool {
		frame++
		m.Update(camera, geom.AcceptAll(), frame, false)
		if err := m.UpdateChunks(context.Background()); err != nil {
			return false
		}
		return m.store.Get(0, 0, 0).Geometry() != nil
	}, 2*time.Second, 5*time.Millisecond)

	frame++
	m.Update(camera, geom.AcceptAll(), frame, false)
	require.NotZero(t, m.VisibleSectionCount())

	m.RenderLayer(device.Matrices{}, state.PassSolid)
	stats := renderer.Stats()
	assert.Positive(t, stats.DrawCalls[state.PassSolid])
	assert.Positive(t, stats.Vertices[state.PassSolid])
	assert.Positive(t, dev.ArenaCount())

	// Изменение блока рядом с камерой перестраивается в том же кадре
	require.NoError(t, w.SetBlock(vec.Vec3{X: 5, Y: 1, Z: 5}, block.StoneBlockID, false))
	frame++
	m.Update(camera, geom.AcceptAll(), frame, false)
	require.NoError(t, m.UpdateChunks(context.Background()))
	assert.Equal(t, frame, m.store.Get(0, 0, 0).LastAcceptedBuildTime())
}
