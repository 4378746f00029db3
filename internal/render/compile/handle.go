// Package compile выполняет построение мешей секций на пуле воркеров.
package compile

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrTaskPanicked возвращается, если задача завершилась паникой
var ErrTaskPanicked = errors.New("build task panicked")

// ErrPoolStopped возвращается при планировании после остановки пула
var ErrPoolStopped = errors.New("build pool stopped")

// Состояния выполнения задачи
const (
	handlePending int32 = iota
	handleRunning
	handleDone
)

// Cancellation источник кооперативной отмены
type Cancellation interface {
	IsCancelled() bool
}

// Handle отменяемый результат задачи с меткой кадра
type Handle struct {
	task     Task
	target   Target
	deferred bool

	state     atomic.Int32
	cancelled atomic.Bool
	done      chan struct{}

	result *BuildResult
	err    error

	onComplete func(h *Handle)
}

func newHandle(task Task, deferred bool) *Handle {
	return &Handle{
		task:     task,
		target:   task.Target(),
		deferred: deferred,
		done:     make(chan struct{}),
	}
}

// Target возвращает секцию и кадр задачи
func (h *Handle) Target() Target {
	return h.target
}

// Deferred true для задач без ожидания в кадре
func (h *Handle) Deferred() bool {
	return h.deferred
}

// Cancel запрашивает отмену. Уже выполняющаяся задача может завершиться с результатом.
func (h *Handle) Cancel() {
	h.cancelled.Store(true)
}

// IsCancelled реализует Cancellation
func (h *Handle) IsCancelled() bool {
	return h.cancelled.Load()
}

// IsStarted true если задачу уже забрал воркер или поток рендера
func (h *Handle) IsStarted() bool {
	return h.state.Load() != handlePending
}

// IsDone true если результат готов
func (h *Handle) IsDone() bool {
	return h.state.Load() == handleDone
}

// Done закрывается по завершении задачи
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result возвращает результат завершённой задачи.
// nil без ошибки означает, что задача была отменена.
func (h *Handle) Result() (*BuildResult, error) {
	if !h.IsDone() {
		return nil, nil
	}
	return h.result, h.err
}

// Wait ждёт завершения задачи
func (h *Handle) Wait(ctx context.Context) (*BuildResult, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// claim переводит задачу в состояние выполнения. Только один вызов вернёт true.
func (h *Handle) claim() bool {
	return h.state.CompareAndSwap(handlePending, handleRunning)
}

// TryRunInline выполняет ещё не начатую задачу в текущей горутине
func (h *Handle) TryRunInline() bool {
	if !h.claim() {
		return false
	}
	h.run()
	return true
}

func (h *Handle) run() {
	if h.IsCancelled() {
		h.complete(nil, nil)
		return
	}

	result, err := safeExecute(h.task, h)
	if h.IsCancelled() && err == nil {
		result = nil
	}
	h.complete(result, err)
}

func (h *Handle) complete(result *BuildResult, err error) {
	h.result = result
	h.err = err
	h.state.Store(handleDone)

	if h.onComplete != nil {
		h.onComplete(h)
	}
	close(h.done)
}
