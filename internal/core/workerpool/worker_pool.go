package workerpool

import (
	"context"
	"errors"
	"sync"
	"time"

	"face-door-lock/internal/util/timezone"

	log "github.com/sirupsen/logrus"
)

// ErrQueueFull is returned by TrySubmit when no slot is free
var ErrQueueFull = errors.New("worker pool queue full")

// ErrClosed is returned after Shutdown
var ErrClosed = errors.New("worker pool closed")

// Job is a side effect executed off the control loop
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// WorkerPool runs jobs on a fixed set of goroutines. The control loop hands
// actuator-independent side effects (alerts, persistence, publishing) to the
// pool so a slow transport never delays a tick.
type WorkerPool struct {
	jobs            chan Job
	workerCount     int
	activeJobs      int
	activeJobsMutex sync.Mutex
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	mu              sync.RWMutex
	closed          bool
}

// New starts a pool with workers goroutines and a queue of queueSize jobs
func New(workers, queueSize int) *WorkerPool {
	workers = max(1, workers)
	queueSize = max(1, queueSize)

	log.Infof("Initializing side effect worker pool with %d workers", workers)

	ctx, cancel := context.WithCancel(context.Background())
	pool := &WorkerPool{
		jobs:        make(chan Job, queueSize),
		workerCount: workers,
		ctx:         ctx,
		cancel:      cancel,
	}
	pool.startWorkers()
	return pool
}

func (p *WorkerPool) startWorkers() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			log.Debugf("Worker %d started", workerID)

			for job := range p.jobs {
				p.run(workerID, job)
			}
			log.Debugf("Worker %d shutting down (job channel closed)", workerID)
		}(i)
	}
}

func (p *WorkerPool) run(workerID int, job Job) {
	p.activeJobsMutex.Lock()
	p.activeJobs++
	p.activeJobsMutex.Unlock()

	defer func() {
		p.activeJobsMutex.Lock()
		p.activeJobs--
		p.activeJobsMutex.Unlock()

		if r := recover(); r != nil {
			log.Errorf("Worker %d: job %s panicked: %v", workerID, job.Name, r)
		}
	}()

	start := timezone.Now()
	if err := job.Run(p.ctx); err != nil {
		log.WithError(err).Warnf("Worker %d: job %s failed", workerID, job.Name)
		return
	}
	log.Debugf("Worker %d completed %s in %v", workerID, job.Name, time.Since(start))
}

// Submit queues a job, blocking until a slot is free or ctx is done
func (p *WorkerPool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit queues a job without blocking
func (p *WorkerPool) TrySubmit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// ActiveJobCount returns the number of jobs currently running
func (p *WorkerPool) ActiveJobCount() int {
	p.activeJobsMutex.Lock()
	defer p.activeJobsMutex.Unlock()
	return p.activeJobs
}

// GetWorkerCount returns the number of workers
func (p *WorkerPool) GetWorkerCount() int {
	return p.workerCount
}

// GetQueueCapacity returns the job queue capacity
func (p *WorkerPool) GetQueueCapacity() int {
	return cap(p.jobs)
}

// Shutdown stops accepting jobs and waits for queued jobs to finish. Jobs
// still running when ctx expires see their context cancelled.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
