package render

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/annel0/voxel-render/internal/geom"
	"github.com/annel0/voxel-render/internal/render/compile"
	"github.com/annel0/voxel-render/internal/render/region"
	"github.com/annel0/voxel-render/internal/render/state"
	"github.com/annel0/voxel-render/internal/vec"
)

// noSection пустой слот соседства
const noSection int32 = -1

// DataListener получает изменения данных секции
type DataListener interface {
	OnSectionDataChanged(s *Section, prev, next *state.RenderData)
}

// Section состояние отрисовки одной секции мира
type Section struct {
	id    uint64 // Уникален для каждого экземпляра
	index int32  // Слот в хранилище секций
	pos   vec.Vec3

	region     *region.Region
	localIndex int
	graph      GraphState
	adjacent   [geom.DirectionCount]int32

	data     *state.RenderData
	task     *compile.Handle
	pending  UpdateType
	geometry *region.Geometry

	tickable bool
	disposed bool

	lastAcceptedBuildTime int
	visibilityFlags       uint8

	listener DataListener
}

// NewSection создаёт секцию без данных
func NewSection(id uint64, pos vec.Vec3, reg *region.Region, listener DataListener) *Section {
	s := &Section{
		id:                    id,
		index:                 noSection,
		pos:                   pos,
		region:                reg,
		localIndex:            region.LocalIndex(pos.X, pos.Y, pos.Z),
		graph:                 newGraphState(pos),
		data:                  state.Absent,
		lastAcceptedBuildTime: -1,
		listener:              listener,
	}
	for i := range s.adjacent {
		s.adjacent[i] = noSection
	}
	return s
}

// ID экземпляр секции
func (s *Section) ID() uint64 { return s.id }

// Pos координаты секции
func (s *Section) Pos() vec.Vec3 { return s.pos }

// Region регион секции
func (s *Section) Region() *region.Region { return s.region }

// LocalIndex индекс секции в регионе
func (s *Section) LocalIndex() int { return s.localIndex }

// Graph состояние в графе видимости
func (s *Section) Graph() *GraphState { return &s.graph }

// Data текущие данные отрисовки
func (s *Section) Data() *state.RenderData { return s.data }

// IsEmpty true если рисовать нечего
func (s *Section) IsEmpty() bool { return s.data.IsEmpty() }

// IsBuilt true если секция хотя бы раз получила данные
func (s *Section) IsBuilt() bool { return s.data != state.Absent }

// IsTickable true если в секции есть анимированные текстуры
func (s *Section) IsTickable() bool { return s.tickable }

// IsDisposed true после Delete
func (s *Section) IsDisposed() bool { return s.disposed }

// PendingUpdate ожидающий уровень обновления
func (s *Section) PendingUpdate() UpdateType { return s.pending }

// BuildTask текущая задача построения
func (s *Section) BuildTask() *compile.Handle { return s.task }

// Geometry загруженная геометрия или nil
func (s *Section) Geometry() *region.Geometry { return s.geometry }

// LastAcceptedBuildTime кадр последнего принятого результата
func (s *Section) LastAcceptedBuildTime() int { return s.lastAcceptedBuildTime }

// VisibilityFlags маска граней, видимых из камеры
func (s *Section) VisibilityFlags() uint8 { return s.visibilityFlags }

// Bounds границы геометрии
func (s *Section) Bounds() state.Bounds { return s.data.Bounds }

// SetData заменяет данные отрисовки и уведомляет слушателя
func (s *Section) SetData(data *state.RenderData) error {
	if data == nil {
		return state.ErrNilRenderData
	}

	if s.listener != nil {
		s.listener.OnSectionDataChanged(s, s.data, data)
	}
	s.data = data
	s.tickable = len(data.AnimatedSprites) > 0
	return nil
}

// MarkForUpdate повышает уровень ожидающего обновления, никогда не понижая его
func (s *Section) MarkForUpdate(t UpdateType) {
	if t > s.pending {
		s.pending = t
	}
}

// CancelRebuildTask запрашивает отмену текущей задачи построения
func (s *Section) CancelRebuildTask() {
	if s.task != nil {
		s.task.Cancel()
		s.task = nil
	}
}

// OnBuildSubmitted запоминает новую задачу, отменяя предыдущую
func (s *Section) OnBuildSubmitted(task *compile.Handle) {
	s.CancelRebuildTask()
	s.task = task
	s.pending = UpdateNone
}

// CanAcceptBuildResults true если результат новее последнего принятого
func (s *Section) CanAcceptBuildResults(result *compile.BuildResult) bool {
	return !s.disposed && result.Frame > s.lastAcceptedBuildTime
}

// OnBuildFinished применяет результат. Устаревший результат молча отбрасывается.
func (s *Section) OnBuildFinished(result *compile.BuildResult) bool {
	if !s.CanAcceptBuildResults(result) {
		return false
	}
	if err := s.SetData(result.Data); err != nil {
		return false
	}
	s.lastAcceptedBuildTime = result.Frame
	return true
}

// UpdateGeometry заменяет загруженную геометрию
func (s *Section) UpdateGeometry(g *region.Geometry) {
	s.DeleteGeometry()
	s.geometry = g
}

// DeleteGeometry освобождает загруженную геометрию
func (s *Section) DeleteGeometry() {
	if s.geometry != nil {
		s.geometry.Delete()
		s.geometry = nil
	}
}

// UpdateVisibilityFlags сохраняет маску видимых граней
func (s *Section) UpdateVisibilityFlags(flags uint8) {
	s.visibilityFlags = flags
}

// Delete освобождает ресурсы секции. После вызова секция не используется.
func (s *Section) Delete() {
	s.CancelRebuildTask()
	_ = s.SetData(state.Absent)
	s.DeleteGeometry()
	s.disposed = true
}

// CenterX центр секции по X в блоках
func (s *Section) CenterX() float32 { return float32(s.pos.X<<4) + 8 }

// CenterY центр секции по Y в блоках
func (s *Section) CenterY() float32 { return float32(s.pos.Y<<4) + 8 }

// CenterZ центр секции по Z в блоках
func (s *Section) CenterZ() float32 { return float32(s.pos.Z<<4) + 8 }

// SquaredDistance квадрат расстояния от центра секции до точки
func (s *Section) SquaredDistance(x, y, z float32) float32 {
	dx := x - s.CenterX()
	dy := y - s.CenterY()
	dz := z - s.CenterZ()
	return dx*dx + dy*dy + dz*dz
}

// SquaredDistanceXZ квадрат горизонтального расстояния от центра секции до точки
func (s *Section) SquaredDistanceXZ(x, z float32) float32 {
	dx := x - s.CenterX()
	dz := z - s.CenterZ()
	return dx*dx + dz*dz
}

// Distance расстояние от центра секции до точки
func (s *Section) Distance(x, y, z float32) float32 {
	return math32.Sqrt(s.SquaredDistance(x, y, z))
}

func (s *Section) String() string {
	return fmt.Sprintf("Section{x=%d, y=%d, z=%d}", s.pos.X, s.pos.Y, s.pos.Z)
}
