package compile

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/annel0/voxel-render/internal/logging"
)

// Лимиты очереди
const (
	DefaultTasksPerWorker = 2
	blockingQueueReserve  = 64
)

// Pool пул воркеров для построения мешей
type Pool struct {
	workers        int
	tasksPerWorker int

	queue    chan *Handle
	stopChan chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool
	wg       sync.WaitGroup

	deferredPending atomic.Int64
	resultsMu       sync.Mutex
	results         []*Handle

	stats  PoolStats
	logger *logging.Logger
}

// PoolStats счетчики пула
type PoolStats struct {
	Completed atomic.Int64
	Cancelled atomic.Int64
	Panicked  atomic.Int64
	Stolen    atomic.Int64
}

// OptimalWorkerCount возвращает число воркеров по количеству ядер
func OptimalWorkerCount() int {
	cpus, err := cpu.Counts(true)
	if err != nil || cpus <= 0 {
		cpus = runtime.NumCPU()
	}

	n := cpus / 3
	if cpus-6 > n {
		n = cpus - 6
	}
	if n < 1 {
		n = 1
	}
	if n > 10 {
		n = 10
	}
	return n
}

// NewPool создаёт и запускает пул воркеров
func NewPool(workers, tasksPerWorker int, logger *logging.Logger) *Pool {
	if workers <= 0 {
		workers = OptimalWorkerCount()
	}
	if tasksPerWorker <= 0 {
		tasksPerWorker = DefaultTasksPerWorker
	}
	if logger == nil {
		logger = logging.GetBuilderLogger()
	}

	p := &Pool{
		workers:        workers,
		tasksPerWorker: tasksPerWorker,
		queue:          make(chan *Handle, workers*tasksPerWorker+blockingQueueReserve),
		stopChan:       make(chan struct{}),
		logger:         logger,
	}

	// Запускаем воркеров
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	logger.Info("Пул строителей запущен: %d воркеров, %d задач на воркер", workers, tasksPerWorker)
	return p
}

// Workers количество воркеров
func (p *Pool) Workers() int {
	return p.workers
}

// Stats возвращает счетчики пула
func (p *Pool) Stats() *PoolStats {
	return &p.stats
}

// worker выполняет задачи из очереди
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case h := <-p.queue:
			if h.claim() {
				h.run()
			}
		}
	}
}

// Schedule ставит задачу, результат которой будет ожидаться в этом кадре
func (p *Pool) Schedule(task Task) (*Handle, error) {
	return p.submit(newHandle(task, false))
}

// ScheduleDeferred ставит задачу, результат которой заберёт DrainDeferred
func (p *Pool) ScheduleDeferred(task Task) (*Handle, error) {
	return p.submit(newHandle(task, true))
}

func (p *Pool) submit(h *Handle) (*Handle, error) {
	if p.stopped.Load() {
		return nil, ErrPoolStopped
	}

	h.onComplete = p.onComplete
	if h.deferred {
		p.deferredPending.Add(1)
	}

	select {
	case p.queue <- h:
		return h, nil
	case <-p.stopChan:
		if h.deferred {
			p.deferredPending.Add(-1)
		}
		return nil, ErrPoolStopped
	}
}

func (p *Pool) onComplete(h *Handle) {
	switch {
	case h.err != nil:
		p.stats.Panicked.Add(1)
		p.logger.Error("Ошибка построения секции %v: %v", h.target.Pos, h.err)
	case h.result == nil:
		p.stats.Cancelled.Add(1)
	default:
		p.stats.Completed.Add(1)
	}

	if !h.deferred {
		return
	}

	p.deferredPending.Add(-1)

	if h.result == nil && h.err == nil {
		return
	}

	p.resultsMu.Lock()
	p.results = append(p.results, h)
	p.resultsMu.Unlock()
}

// DrainDeferred забирает завершённые отложенные задачи
func (p *Pool) DrainDeferred() []*Handle {
	p.resultsMu.Lock()
	defer p.resultsMu.Unlock()

	out := p.results
	p.results = nil
	return out
}

// StealTask выполняет одну ожидающую задачу в текущей горутине
func (p *Pool) StealTask() bool {
	select {
	case h := <-p.queue:
		if h.claim() {
			p.stats.Stolen.Add(1)
			h.run()
		}
		return true
	default:
		return false
	}
}

// SchedulingBudget сколько отложенных задач можно поставить сейчас
func (p *Pool) SchedulingBudget() int {
	budget := p.workers*p.tasksPerWorker - int(p.deferredPending.Load())
	if budget < 0 {
		return 0
	}
	return budget
}

// Drain ждёт завершения задач, выполняя ещё не начатые в текущей горутине.
// Возвращает задачи в порядке завершения.
func (p *Pool) Drain(ctx context.Context, handles []*Handle) ([]*Handle, error) {
	remaining := append([]*Handle(nil), handles...)
	out := make([]*Handle, 0, len(handles))

	for len(remaining) > 0 {
		progressed := false
		kept := remaining[:0]
		for _, h := range remaining {
			if !h.IsDone() && h.TryRunInline() {
				p.stats.Stolen.Add(1)
			}
			if h.IsDone() {
				out = append(out, h)
				progressed = true
				continue
			}
			kept = append(kept, h)
		}
		remaining = kept

		if len(remaining) == 0 || progressed {
			continue
		}

		// Все оставшиеся уже выполняются, помогаем с чужими задачами
		if p.StealTask() {
			continue
		}

		select {
		case <-remaining[0].Done():
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}

	return out, nil
}

// Stop останавливает воркеров и отменяет задачи в очереди
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		close(p.stopChan)
		p.wg.Wait()

		for {
			select {
			case h := <-p.queue:
				h.Cancel()
				if h.claim() {
					h.run()
				}
			default:
				p.resultsMu.Lock()
				p.results = nil
				p.resultsMu.Unlock()
				p.logger.Info("Пул строителей остановлен")
				return
			}
		}
	})
}
