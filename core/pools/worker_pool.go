package pools

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Task represents a unit of work
type Task func()

// WorkerPool is a work-stealing goroutine pool
type WorkerPool struct {
	numWorkers int
	queues     []chan Task
	closed     atomic.Bool
	wg         sync.WaitGroup

	stats struct {
		tasksSubmitted atomic.Uint64
		tasksCompleted atomic.Uint64
		tasksInline    atomic.Uint64
		stealsSuccess  atomic.Uint64
	}
}

// NewWorkerPool starts numWorkers workers, or one per CPU when numWorkers
// is not positive.
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	pool := &WorkerPool{
		numWorkers: numWorkers,
		queues:     make([]chan Task, numWorkers),
	}
	for i := range pool.queues {
		pool.queues[i] = make(chan Task, 256)
	}

	pool.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go pool.run(i)
	}

	return pool
}

// Submit queues a task round-robin. When both the chosen queue and its
// neighbour are full the task runs on the caller. Submit must not race
// with Close and returns false once the pool is closed.
func (p *WorkerPool) Submit(task Task) bool {
	if p.closed.Load() {
		return false
	}

	n := p.stats.tasksSubmitted.Add(1)
	idx := int(n % uint64(p.numWorkers))

	select {
	case p.queues[idx] <- task:
		return true
	default:
	}

	idx = (idx + 1) % p.numWorkers
	select {
	case p.queues[idx] <- task:
		return true
	default:
		p.stats.tasksInline.Add(1)
		p.execute(task)
		return true
	}
}

func (p *WorkerPool) execute(task Task) {
	defer p.stats.tasksCompleted.Add(1)
	task()
}

func (p *WorkerPool) run(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		select {
		case task, ok := <-own:
			if !ok {
				p.drainOthers(id)
				return
			}
			p.execute(task)
			continue
		default:
		}

		if p.trySteal(id) {
			continue
		}

		task, ok := <-own
		if !ok {
			p.drainOthers(id)
			return
		}
		p.execute(task)
	}
}

// trySteal runs one task taken from another worker's queue
func (p *WorkerPool) trySteal(id int) bool {
	for i := 1; i < p.numWorkers; i++ {
		victim := p.queues[(id+i)%p.numWorkers]
		select {
		case task, ok := <-victim:
			if ok {
				p.stats.stealsSuccess.Add(1)
				p.execute(task)
				return true
			}
		default:
		}
	}
	return false
}

// drainOthers helps finish queued work after Close
func (p *WorkerPool) drainOthers(id int) {
	for p.trySteal(id) {
	}
}

// Close stops accepting tasks and waits for every queued task to finish.
func (p *WorkerPool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	for _, q := range p.queues {
		close(q)
	}
	p.wg.Wait()
}

// Stats returns pool statistics
func (p *WorkerPool) Stats() WorkerPoolStats {
	completed := p.stats.tasksCompleted.Load()
	submitted := p.stats.tasksSubmitted.Load()
	return WorkerPoolStats{
		NumWorkers:     p.numWorkers,
		TasksSubmitted: submitted,
		TasksCompleted: completed,
		TasksPending:   submitted - completed,
		TasksInline:    p.stats.tasksInline.Load(),
		StealsSuccess:  p.stats.stealsSuccess.Load(),
	}
}

// WorkerPoolStats contains pool statistics
type WorkerPoolStats struct {
	NumWorkers     int
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksPending   uint64
	TasksInline    uint64
	StealsSuccess  uint64
}
