package render

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/annel0/voxel-render/internal/geom"
	"github.com/annel0/voxel-render/internal/render/compile"
	"github.com/annel0/voxel-render/internal/render/device"
	"github.com/annel0/voxel-render/internal/render/region"
	"github.com/annel0/voxel-render/internal/render/state"
	"github.com/annel0/voxel-render/internal/vec"
	"github.com/annel0/voxel-render/internal/world"
)

const (
	// nearbySectionDistance квадрат расстояния, ближе которого перестройка ждётся в кадре
	nearbySectionDistance = 32 * 32

	// fogPlaneMinDistance минимальный квадрат расстояния до плоскости тумана
	fogPlaneMinDistance = 8 * 8

	// fogPlaneOffset запас за дальней плоскостью тумана, расстояние меряется от центра секции
	fogPlaneOffset = 12
)

// SectionManager строит граф видимости секций и планирует их перестройку.
// Все методы вызываются из потока рендера.
type SectionManager struct {
	env      *Env
	world    WorldSource
	pool     *compile.Pool
	regions  *region.Manager
	store    *SectionStore
	renderer device.ChunkRenderer

	rebuildQueues  [updateTypeCount]rebuildQueue
	iterationQueue iterationQueue

	visible              []*Section
	tickable             []*Section
	visibleBlockEntities []state.BlockEntity
	renderLists          [state.PassCount]*device.RenderList
	listsStale           bool

	renderDistance int

	cameraX, cameraY, cameraZ  float32
	centerChunkX, centerChunkZ int

	needsUpdate bool

	useFogCulling       bool
	useOcclusionCulling bool
	alwaysDeferUpdates  bool
	blockFaceCulling    bool
	fogRenderCutoff     float32

	frustum      geom.Frustum
	currentFrame int
}

// NewSectionManager создаёт менеджер секций
func NewSectionManager(env *Env, w WorldSource, pool *compile.Pool, dev device.Device, renderer device.ChunkRenderer, renderDistance int) *SectionManager {
	env = env.withDefaults()
	regions := region.NewManager(dev)

	return &SectionManager{
		env:            env,
		world:          w,
		pool:           pool,
		regions:        regions,
		store:          NewSectionStore(regions),
		renderer:       renderer,
		renderDistance: renderDistance,
		needsUpdate:    true,
		frustum:        geom.AcceptAll(),
	}
}

// Store возвращает хранилище секций
func (m *SectionManager) Store() *SectionStore {
	return m.store
}

// Regions возвращает менеджер регионов
func (m *SectionManager) Regions() *region.Manager {
	return m.regions
}

// ReloadChunks загружает все столбы, для которых уже есть данные блоков
func (m *SectionManager) ReloadChunks(tracker *world.Tracker) {
	for _, coords := range tracker.Columns(world.FlagHasBlockData) {
		if m.store.Get(coords.X, m.world.BottomSection(), coords.Y) != nil {
			continue
		}
		m.OnChunkAdded(coords.X, coords.Y)
	}
}

// Update обходит граф видимости для нового кадра
func (m *SectionManager) Update(camera Camera, frustum geom.Frustum, frame int, spectator bool) {
	start := time.Now()

	m.resetLists()

	m.regions.UpdateVisibility(frustum)

	m.setup(camera)
	m.iterateChunks(camera, frustum, frame, spectator)

	m.renderLists = buildRenderLists(m.visible)
	m.listsStale = false
	m.needsUpdate = false

	m.env.Metrics.FrameDuration.Observe(time.Since(start).Seconds())
	m.updateGauges()
}

func (m *SectionManager) setup(camera Camera) {
	m.cameraX = camera.Pos.X()
	m.cameraY = camera.Pos.Y()
	m.cameraZ = camera.Pos.Z()

	cfg := m.env.Config
	m.useFogCulling = cfg.FogCulling
	m.alwaysDeferUpdates = cfg.AlwaysDeferUpdates
	m.blockFaceCulling = cfg.BlockFaceCulling

	if m.useFogCulling {
		dist := camera.FogEnd + fogPlaneOffset

		if dist == 0 {
			m.fogRenderCutoff = float32(math.Inf(1))
		} else {
			m.fogRenderCutoff = max(fogPlaneMinDistance, dist*dist)
		}
	}
}

func (m *SectionManager) iterateChunks(camera Camera, frustum geom.Frustum, frame int, spectator bool) {
	m.initSearch(camera, frustum, frame, spectator)

	queue := &m.iterationQueue

	for i := 0; i < queue.size(); i++ {
		section := queue.section(i)
		flow := queue.direction(i)

		m.schedulePendingUpdates(section)

		for _, dir := range geom.AllDirections {
			if m.isCulled(&section.graph, flow, dir) {
				continue
			}

			adj := m.store.Adjacent(section, dir)

			if adj != nil && m.isWithinRenderDistance(adj) {
				m.bfsEnqueue(section, adj, dir.Opposite())
			}
		}
	}
}

func (m *SectionManager) schedulePendingUpdates(section *Section) {
	if section.pending == UpdateNone || !m.world.HasMergedFlags(section.pos.X, section.pos.Z, world.FlagAll) {
		return
	}

	if !m.rebuildQueues[section.pending].offer(section) {
		m.env.Metrics.DroppedOffers.Inc()
	}
}

func (m *SectionManager) addChunkToVisible(render *Section) {
	m.visible = append(m.visible, render)

	if render.IsTickable() {
		m.tickable = append(m.tickable, render)
	}

	render.UpdateVisibilityFlags(m.calculateVisibilityFlags(render.Bounds()))
}

func (m *SectionManager) calculateVisibilityFlags(bounds state.Bounds) uint8 {
	if !m.blockFaceCulling {
		return state.FaceAllBits
	}

	flags := uint8(state.FaceUnassignedBits)

	if m.cameraY > bounds.MinY {
		flags |= state.FaceUpBits
	}

	if m.cameraY < bounds.MaxY {
		flags |= state.FaceDownBits
	}

	if m.cameraX > bounds.MinX {
		flags |= state.FaceEastBits
	}

	if m.cameraX < bounds.MaxX {
		flags |= state.FaceWestBits
	}

	if m.cameraZ > bounds.MinZ {
		flags |= state.FaceSouthBits
	}

	if m.cameraZ < bounds.MaxZ {
		flags |= state.FaceNorthBits
	}

	return flags
}

func (m *SectionManager) addEntitiesToRenderLists(render *Section) {
	if entities := render.Data().BlockEntities; len(entities) > 0 {
		m.visibleBlockEntities = append(m.visibleBlockEntities, entities...)
	}
}

func (m *SectionManager) resetLists() {
	for i := range m.rebuildQueues {
		m.rebuildQueues[i].clear()
	}

	m.visibleBlockEntities = m.visibleBlockEntities[:0]
	m.visible = m.visible[:0]
	m.tickable = m.tickable[:0]
}

// VisibleBlockEntities сущности видимых секций
func (m *SectionManager) VisibleBlockEntities() []state.BlockEntity {
	return m.visibleBlockEntities
}

// GlobalBlockEntities сущности, рисуемые вне зависимости от видимости секции
func (m *SectionManager) GlobalBlockEntities() []state.BlockEntity {
	return m.store.GlobalBlockEntities()
}

// VisibleSections видимые секции в порядке обнаружения
func (m *SectionManager) VisibleSections() []*Section {
	return m.visible
}

// TickableSections видимые секции с анимированными текстурами
func (m *SectionManager) TickableSections() []*Section {
	return m.tickable
}

// OnChunkAdded создаёт секции загруженного столба
func (m *SectionManager) OnChunkAdded(x, z int) {
	for y := m.world.BottomSection(); y < m.world.TopSection(); y++ {
		m.needsUpdate = m.loadSection(x, y, z) || m.needsUpdate
	}
}

// OnChunkRemoved удаляет секции выгруженного столба
func (m *SectionManager) OnChunkRemoved(x, z int) {
	for y := m.world.BottomSection(); y < m.world.TopSection(); y++ {
		m.needsUpdate = m.unloadSection(x, y, z) || m.needsUpdate
	}

	m.pruneDisposed()
}

// pruneDisposed убирает выгруженные секции из списков кадра.
// Их геометрия уже освобождена, поэтому списки отрисовки собираются заново.
func (m *SectionManager) pruneDisposed() {
	visible := m.visible[:0]
	m.tickable = m.tickable[:0]
	m.visibleBlockEntities = m.visibleBlockEntities[:0]

	for _, render := range m.visible {
		if render.IsDisposed() {
			continue
		}
		visible = append(visible, render)

		if render.IsTickable() {
			m.tickable = append(m.tickable, render)
		}
		m.addEntitiesToRenderLists(render)
	}

	clear(m.visible[len(visible):])
	m.visible = visible
	m.listsStale = true
}

func (m *SectionManager) loadSection(x, y, z int) bool {
	render := m.store.Load(x, y, z)

	if m.world.IsSectionEmpty(x, y, z) {
		_ = render.SetData(state.Empty)
	} else {
		render.MarkForUpdate(UpdateInitialBuild)
	}

	return true
}

func (m *SectionManager) unloadSection(x, y, z int) bool {
	m.store.Unload(x, y, z)
	return true
}

// RenderLayer рисует видимые секции одного прохода
func (m *SectionManager) RenderLayer(matrices device.Matrices, pass state.Pass) {
	if m.listsStale {
		m.renderLists = buildRenderLists(m.visible)
		m.listsStale = false
	}

	list := m.renderLists[pass]
	if list == nil {
		return
	}

	m.renderer.Render(list, pass, matrices)
}

// TickVisibleRenders отмечает анимированные текстуры видимых секций
func (m *SectionManager) TickVisibleRenders() {
	for _, render := range m.tickable {
		for _, sprite := range render.Data().AnimatedSprites {
			m.env.Sprites.MarkSpriteActive(sprite)
		}
	}
}

// IsSectionVisible true если секция была посещена в последнем кадре
func (m *SectionManager) IsSectionVisible(x, y, z int) bool {
	render := m.store.Get(x, y, z)

	if render == nil {
		return false
	}

	return render.graph.LastVisibleFrame() == m.currentFrame
}

// UpdateChunks отправляет перестройки в пул и загружает готовые результаты.
// Срочные перестройки ожидаются до возврата.
func (m *SectionManager) UpdateChunks(ctx context.Context) error {
	ctx, span := otel.Tracer("render").Start(ctx, "SectionManager.UpdateChunks")
	defer span.End()

	blocking := m.submitRebuildTasks(UpdateImportantRebuild)
	span.SetAttributes(
		attribute.Int("render.frame", m.currentFrame),
		attribute.Int("render.blocking_tasks", len(blocking)),
	)

	m.submitRebuildTasks(UpdateInitialBuild)
	m.submitRebuildTasks(UpdateRebuild)

	// Пока срочные задачи строятся, загружаем готовые отложенные
	if m.performPendingUploads() {
		m.needsUpdate = true
	}

	var err error
	if len(blocking) > 0 {
		m.needsUpdate = true

		var done []*compile.Handle
		done, err = m.pool.Drain(ctx, blocking)
		if err != nil {
			m.requeueUnfinished(blocking)

			// Задачи, завершившиеся после отмены ожидания, тоже загружаются
			done = done[:0]
			for _, h := range blocking {
				if h.IsDone() {
					done = append(done, h)
				}
			}

			err = fmt.Errorf("wait important rebuilds: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "important rebuilds interrupted")
		}
		m.upload(done)
	}

	m.regions.Cleanup()
	m.updateGauges()
	return err
}

func (m *SectionManager) submitRebuildTasks(filterType UpdateType) []*compile.Handle {
	budget := math.MaxInt
	if !filterType.IsImportant() {
		budget = m.pool.SchedulingBudget()
	}

	var immediate []*compile.Handle
	queue := &m.rebuildQueues[filterType]

	for budget > 0 && !queue.isEmpty() {
		section, _ := queue.poll()

		if section.IsDisposed() {
			continue
		}

		// Секция могла сменить уровень после постановки в очередь, старые записи отфильтровываются здесь
		if section.PendingUpdate() != filterType {
			continue
		}

		task := m.createTerrainBuildTask(section)

		var (
			handle *compile.Handle
			err    error
		)
		if filterType.IsImportant() {
			handle, err = m.pool.Schedule(task)
		} else {
			handle, err = m.pool.ScheduleDeferred(task)
		}
		if err != nil {
			m.env.Logger.Warn("Не удалось запланировать %s для %v: %v", filterType, section, err)
			break
		}

		if filterType.IsImportant() {
			immediate = append(immediate, handle)
		}

		section.OnBuildSubmitted(handle)
		m.env.Metrics.SubmittedTasks.WithLabelValues(filterType.String()).Inc()

		budget--
	}

	return immediate
}

// requeueUnfinished отменяет срочные задачи, которые не дождались, и возвращает секции в очередь
func (m *SectionManager) requeueUnfinished(handles []*compile.Handle) {
	for _, h := range handles {
		if h.IsDone() {
			continue
		}
		h.Cancel()

		target := h.Target()
		section := m.store.Get(target.Pos.X, target.Pos.Y, target.Pos.Z)
		if section == nil || section.ID() != target.SectionID || section.task != h {
			continue
		}
		section.task = nil
		section.MarkForUpdate(UpdateImportantRebuild)
	}
}

func (m *SectionManager) performPendingUploads() bool {
	done := m.pool.DrainDeferred()

	if len(done) == 0 {
		return false
	}

	m.upload(done)
	return true
}

// upload применяет результаты и загружает геометрию в арены регионов
func (m *SectionManager) upload(handles []*compile.Handle) {
	for _, h := range handles {
		target := h.Target()
		result, err := h.Result()

		section := m.store.Get(target.Pos.X, target.Pos.Y, target.Pos.Z)
		if section != nil && section.ID() != target.SectionID {
			section = nil
		}
		if section != nil && section.task == h {
			section.task = nil
		}

		if err != nil {
			m.env.Metrics.FailedBuilds.Inc()
			if section != nil && !section.IsDisposed() {
				section.MarkForUpdate(UpdateRebuild)
				m.needsUpdate = true
			}
			continue
		}

		if result == nil {
			continue
		}

		if section == nil || !section.OnBuildFinished(result) {
			m.env.Metrics.StaleResults.Inc()
			m.env.Logger.Debug("Отброшен устаревший результат %v кадра %d", target.Pos, target.Frame)
			continue
		}
		m.env.Metrics.AcceptedResults.Inc()

		m.listsStale = true

		if !hasMeshes(result) {
			section.DeleteGeometry()
			continue
		}

		geometry, err := section.Region().Upload(result.Meshes)
		if err != nil {
			m.env.Logger.Error("Ошибка загрузки геометрии %v: %v", section, err)
			section.DeleteGeometry()
			continue
		}
		section.UpdateGeometry(geometry)
	}
}

func hasMeshes(result *compile.BuildResult) bool {
	for _, mesh := range result.Meshes {
		if mesh != nil {
			return true
		}
	}
	return false
}

// createTerrainBuildTask снимает данные мира и создаёт задачу построения
func (m *SectionManager) createTerrainBuildTask(render *Section) compile.Task {
	target := compile.Target{
		Pos:       render.Pos(),
		SectionID: render.ID(),
		Frame:     m.currentFrame,
	}

	data := m.world.PrepareSlice(render.Pos())
	if data == nil {
		return compile.NewEmptyTask(target)
	}

	return compile.NewTerrainTask(target, data)
}

// MarkGraphDirty требует обхода графа в следующем кадре
func (m *SectionManager) MarkGraphDirty() {
	m.needsUpdate = true
}

// IsGraphDirty true если граф нужно обойти заново
func (m *SectionManager) IsGraphDirty() bool {
	return m.needsUpdate
}

// Pool возвращает пул строителей
func (m *SectionManager) Pool() *compile.Pool {
	return m.pool
}

// Destroy освобождает все ресурсы менеджера
func (m *SectionManager) Destroy() {
	m.resetLists()
	m.renderLists = [state.PassCount]*device.RenderList{}

	m.regions.Delete()
	m.renderer.Delete()
	m.pool.Stop()

	m.env.Logger.Info("Менеджер секций остановлен")
}

// TotalSections количество загруженных секций
func (m *SectionManager) TotalSections() int {
	sum := 0

	for _, r := range m.regions.LoadedRegions() {
		sum += r.SectionCount()
	}

	return sum
}

// VisibleSectionCount количество видимых секций
func (m *SectionManager) VisibleSectionCount() int {
	return len(m.visible)
}

// ScheduleRebuild помечает секцию для перестройки после изменения мира
func (m *SectionManager) ScheduleRebuild(x, y, z int, important bool) {
	m.world.InvalidateSection(vec.Vec3{X: x, Y: y, Z: z})

	section := m.store.Get(x, y, z)

	if section != nil && section.IsBuilt() {
		if !m.alwaysDeferUpdates && (important || m.isChunkPrioritized(section)) {
			section.MarkForUpdate(UpdateImportantRebuild)
		} else {
			section.MarkForUpdate(UpdateRebuild)
		}
	}

	m.needsUpdate = true
}

func (m *SectionManager) isChunkPrioritized(render *Section) bool {
	return render.SquaredDistance(m.cameraX, m.cameraY, m.cameraZ) <= nearbySectionDistance
}

func (m *SectionManager) isWithinRenderDistance(adj *Section) bool {
	return vec.Vec2{X: adj.pos.X, Y: adj.pos.Z}.ChebyshevTo(vec.Vec2{X: m.centerChunkX, Y: m.centerChunkZ}) <= m.renderDistance
}

func (m *SectionManager) isCulled(node *GraphState, from, to geom.Direction) bool {
	if node.CanCull(to) {
		return true
	}

	return m.useOcclusionCulling && from != geom.NoDirection && !node.IsVisibleThrough(from, to)
}

func (m *SectionManager) initSearch(camera Camera, frustum geom.Frustum, frame int, spectator bool) {
	m.currentFrame = frame
	m.frustum = frustum
	m.useOcclusionCulling = m.env.Config.OcclusionCulling

	m.iterationQueue.clear()

	origin := camera.BlockPos()
	chunk := origin.ToSectionCoords()

	m.centerChunkX = chunk.X
	m.centerChunkZ = chunk.Z

	rootRender := m.store.Get(chunk.X, chunk.Y, chunk.Z)

	if rootRender != nil {
		rootInfo := &rootRender.graph
		rootInfo.ResetCullingState()
		rootInfo.SetLastVisibleFrame(frame)

		if spectator && m.world.IsOpaqueAt(origin) {
			m.useOcclusionCulling = false
		}

		m.addVisible(rootRender, geom.NoDirection)
		return
	}

	chunkY := min(max(chunk.Y, m.world.BottomSection()), m.world.TopSection()-1)

	var sorted []*Section

	for x2 := -m.renderDistance; x2 <= m.renderDistance; x2++ {
		for z2 := -m.renderDistance; z2 <= m.renderDistance; z2++ {
			render := m.store.Get(chunk.X+x2, chunkY, chunk.Z+z2)

			if render == nil {
				continue
			}

			info := &render.graph

			if info.IsCulledByFrustum(frustum) {
				continue
			}

			info.ResetCullingState()
			info.SetLastVisibleFrame(frame)

			sorted = append(sorted, render)
		}
	}

	ox, oy, oz := float32(origin.X)+0.5, float32(origin.Y)+0.5, float32(origin.Z)+0.5
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SquaredDistance(ox, oy, oz) < sorted[j].SquaredDistance(ox, oy, oz)
	})

	for _, render := range sorted {
		m.addVisible(render, geom.NoDirection)
	}
}

func (m *SectionManager) bfsEnqueue(parent, render *Section, flow geom.Direction) {
	info := &render.graph

	if info.LastVisibleFrame() == m.currentFrame {
		return
	}

	// Регион целиком снаружи отбрасывается, целиком внутри принимается без проверки секции
	switch render.Region().Visibility() {
	case geom.Outside:
		return
	case geom.Intersect:
		if info.IsCulledByFrustum(m.frustum) {
			return
		}
	}

	info.SetLastVisibleFrame(m.currentFrame)
	info.SetCullingState(parent.graph.CullingState(), flow)

	m.addVisible(render, flow)
}

func (m *SectionManager) addVisible(render *Section, flow geom.Direction) {
	m.iterationQueue.add(render, flow)

	if m.useFogCulling && render.SquaredDistanceXZ(m.cameraX, m.cameraZ) >= m.fogRenderCutoff {
		return
	}

	if !render.IsEmpty() {
		m.addChunkToVisible(render)
		m.addEntitiesToRenderLists(render)
	}
}

// DebugStrings строки для отладочного экрана
func (m *SectionManager) DebugStrings() []string {
	count := 0

	var deviceUsed, deviceAllocated int64

	for _, r := range m.regions.LoadedRegions() {
		arena := r.Arena()
		if arena == nil {
			continue
		}

		deviceUsed += arena.UsedMemory()
		deviceAllocated += arena.AllocatedMemory()

		count++
	}

	return []string{
		fmt.Sprintf("Device buffer objects: %d", count),
		fmt.Sprintf("Device memory: %d MiB used/%d MiB alloc", toMiB(deviceUsed), toMiB(deviceAllocated)),
		fmt.Sprintf("Sections: %d visible/%d loaded", len(m.visible), m.store.Len()),
	}
}

func toMiB(bytes int64) int64 {
	return bytes / 1024 / 1024
}

func (m *SectionManager) updateGauges() {
	metrics := m.env.Metrics

	metrics.TotalSections.Set(float64(m.store.Len()))
	metrics.VisibleSections.Set(float64(len(m.visible)))
	metrics.TickableSections.Set(float64(len(m.tickable)))

	for t := UpdateRebuild; t <= UpdateImportantRebuild; t++ {
		metrics.QueuedRebuilds.WithLabelValues(t.String()).Set(float64(m.rebuildQueues[t].count()))
	}

	var used, allocated int64
	for _, r := range m.regions.LoadedRegions() {
		if arena := r.Arena(); arena != nil {
			used += arena.UsedMemory()
			allocated += arena.AllocatedMemory()
		}
	}
	metrics.DeviceMemory.WithLabelValues("used").Set(float64(used))
	metrics.DeviceMemory.WithLabelValues("allocated").Set(float64(allocated))
}
