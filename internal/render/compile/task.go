package compile

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/annel0/voxel-render/internal/render/state"
	"github.com/annel0/voxel-render/internal/vec"
)

// Target идентифицирует секцию и кадр, для которых строится меш
type Target struct {
	Pos       vec.Vec3
	SectionID uint64 // Экземпляр секции, выгруженная и заново загруженная секция получает новый
	Frame     int
}

// BuildResult неизменяемый результат построения секции
type BuildResult struct {
	Target
	Data   *state.RenderData
	Meshes [state.PassCount]*state.MeshData
}

// Task единица работы пула
type Task interface {
	Target() Target
	Execute(c Cancellation) (*BuildResult, error)
}

// safeExecute выполняет задачу и превращает панику в ошибку
func safeExecute(task Task, c Cancellation) (result *BuildResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			hub := sentry.CurrentHub().Clone()
			hub.ConfigureScope(func(scope *sentry.Scope) {
				scope.SetTag("section", fmt.Sprint(task.Target().Pos))
			})
			hub.Recover(r)
			hub.Flush(time.Second)

			result = nil
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()

	return task.Execute(c)
}

// EmptyTask строит пустую секцию без обращения к миру
type EmptyTask struct {
	target Target
}

// NewEmptyTask создаёт задачу для пустой секции
func NewEmptyTask(target Target) *EmptyTask {
	return &EmptyTask{target: target}
}

// Target реализует Task
func (t *EmptyTask) Target() Target { return t.target }

// Execute реализует Task
func (t *EmptyTask) Execute(Cancellation) (*BuildResult, error) {
	return &BuildResult{Target: t.target, Data: state.Empty}, nil
}
