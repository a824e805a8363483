// Package batch provides a bounded-concurrency worker pool for running
// independent Orchestrator jobs across multiple Host instances, per
// SPEC_FULL.md §14. pkg/cip itself is single-threaded and cooperative
// (spec.md §5); this package is the Host-side layer that fans a batch
// of independent solves out across a worker pool, adapted from the
// teacher's dynamic-scaling WorkerPool.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one unit of work submitted to the Pool: an independent
// Orchestrator run against its own Host, returning an error if the run
// failed.
type Job func(ctx context.Context) error

// Pool manages a dynamically-scaled set of goroutines draining a job
// queue, with backpressure and basic execution statistics, the same
// shape as the teacher's WorkerPool generalised from goal evaluation to
// batch CIP jobs.
type Pool struct {
	maxWorkers     int
	minWorkers     int
	currentWorkers int

	jobChan      chan Job
	shutdownChan chan struct{}
	scaleChan    chan int
	workerWg     sync.WaitGroup
	once         sync.Once
	mu           sync.RWMutex

	scaleUpThreshold   int
	scaleDownThreshold int
	scaleCheckInterval time.Duration
	scaleCooldown      time.Duration
	lastScaleTime      time.Time

	stats *liveStats
}

// Config configures a Pool's scaling behaviour. Zero values take the
// same defaults as the teacher's DynamicConfig.
type Config struct {
	MaxWorkers         int
	MinWorkers         int
	ScaleUpThreshold   int
	ScaleDownThreshold int
	ScaleCheckInterval time.Duration
	ScaleCooldown      time.Duration
}

// NewPool constructs a Pool with dynamic worker scaling. MaxWorkers <= 0
// defaults to runtime.NumCPU(); MinWorkers <= 0 defaults to 1.
func NewPool(cfg Config) *Pool {
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	minWorkers := cfg.MinWorkers
	if minWorkers <= 0 {
		minWorkers = 1
	}
	if minWorkers > maxWorkers {
		minWorkers = maxWorkers
	}

	scaleUp := cfg.ScaleUpThreshold
	if scaleUp <= 0 {
		scaleUp = maxWorkers * 2
	}
	scaleDown := cfg.ScaleDownThreshold
	if scaleDown <= 0 {
		scaleDown = maxWorkers / 2
		if scaleDown <= 0 {
			scaleDown = 1
		}
	}
	checkInterval := cfg.ScaleCheckInterval
	if checkInterval <= 0 {
		checkInterval = 100 * time.Millisecond
	}
	cooldown := cfg.ScaleCooldown
	if cooldown <= 0 {
		cooldown = 500 * time.Millisecond
	}

	p := &Pool{
		maxWorkers:         maxWorkers,
		minWorkers:         minWorkers,
		currentWorkers:     minWorkers,
		jobChan:            make(chan Job, maxWorkers*4),
		shutdownChan:       make(chan struct{}),
		scaleChan:          make(chan int, 1),
		scaleUpThreshold:   scaleUp,
		scaleDownThreshold: scaleDown,
		scaleCheckInterval: checkInterval,
		scaleCooldown:      cooldown,
		lastScaleTime:      time.Now(),
		stats:              newStats(),
	}

	for i := 0; i < minWorkers; i++ {
		p.workerWg.Add(1)
		go p.worker()
	}
	go p.scalingMonitor()

	return p
}

func (p *Pool) worker() {
	defer p.workerWg.Done()
	for {
		select {
		case job := <-p.jobChan:
			if job == nil {
				continue
			}
			p.runJob(job)
		case <-p.shutdownChan:
			return
		}
	}
}

func (p *Pool) runJob(job Job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.stats.recordFailed(fmt.Errorf("batch job panicked: %v", r))
		}
	}()
	err := job(context.Background())
	if err != nil {
		p.stats.recordFailed(err)
		return
	}
	p.stats.recordCompleted(time.Since(start))
}

// Submit enqueues job, blocking until capacity is available, ctx is
// cancelled, or the Pool is shutting down.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.stats.recordSubmitted()
	select {
	case <-p.shutdownChan:
		p.stats.recordCancelled()
		return ErrPoolShutdown
	default:
	}
	select {
	case p.jobChan <- job:
		return nil
	case <-ctx.Done():
		p.stats.recordCancelled()
		return ctx.Err()
	case <-p.shutdownChan:
		p.stats.recordCancelled()
		return ErrPoolShutdown
	}
}

// Shutdown stops accepting jobs and waits for in-flight jobs to finish.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		close(p.shutdownChan)
		p.workerWg.Wait()
	})
}

func (p *Pool) scalingMonitor() {
	ticker := time.NewTicker(p.scaleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.checkScaling()
		case n := <-p.scaleChan:
			p.adjustWorkers(n)
		case <-p.shutdownChan:
			return
		}
	}
}

func (p *Pool) checkScaling() {
	p.mu.RLock()
	if time.Since(p.lastScaleTime) < p.scaleCooldown {
		p.mu.RUnlock()
		return
	}
	current, max, min := p.currentWorkers, p.maxWorkers, p.minWorkers
	up, down := p.scaleUpThreshold, p.scaleDownThreshold
	p.mu.RUnlock()

	depth := len(p.jobChan)
	switch {
	case depth > up && current < max:
		p.requestScale(current + 1)
	case depth < down && current > min:
		p.requestScale(current - 1)
	}
}

func (p *Pool) requestScale(n int) {
	select {
	case p.scaleChan <- n:
	default:
	}
}

func (p *Pool) adjustWorkers(target int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	current := p.currentWorkers
	if target == current {
		return
	}
	if target > current {
		for i := current; i < target; i++ {
			p.workerWg.Add(1)
			go p.worker()
		}
		p.stats.recordScaleUp()
	} else {
		// Workers terminate naturally as they drain the queue; no forced
		// interruption of in-flight jobs.
		p.stats.recordScaleDown()
	}
	p.currentWorkers = target
	p.lastScaleTime = time.Now()
}

// WorkerCount returns the current number of active workers.
func (p *Pool) WorkerCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentWorkers
}

// QueueDepth returns the current number of queued jobs.
func (p *Pool) QueueDepth() int { return len(p.jobChan) }

// StatsSnapshot returns a copy of the pool's execution statistics.
func (p *Pool) StatsSnapshot() Stats { return p.stats.snapshot() }

// ErrPoolShutdown is returned by Submit once the pool has been shut down.
var ErrPoolShutdown = fmt.Errorf("batch: pool has been shut down")

// Stats holds the execution counters the teacher's ExecutionStats
// tracked, trimmed to what a batch of independent CIP solves needs
// (no per-sample history: each job is a full presolve/propagation run,
// not a fine-grained goal evaluation, so aggregate counts suffice). It
// is a plain value type, safe to copy, returned by StatsSnapshot.
type Stats struct {
	Submitted int64
	Completed int64
	Failed    int64
	Cancelled int64

	ScaleUpEvents   int64
	ScaleDownEvents int64

	LastError error
}

// liveStats is the pool's own mutable counters, accessed from every
// worker goroutine concurrently. LastError needs a mutex since it isn't
// word-sized like the other counters, which stay lock-free atomics.
type liveStats struct {
	Stats
	errMu sync.Mutex
}

func newStats() *liveStats { return &liveStats{} }

func (s *liveStats) recordSubmitted()  { atomic.AddInt64(&s.Submitted, 1) }
func (s *liveStats) recordCancelled()  { atomic.AddInt64(&s.Cancelled, 1) }
func (s *liveStats) recordScaleUp()    { atomic.AddInt64(&s.ScaleUpEvents, 1) }
func (s *liveStats) recordScaleDown()  { atomic.AddInt64(&s.ScaleDownEvents, 1) }

func (s *liveStats) recordCompleted(time.Duration) { atomic.AddInt64(&s.Completed, 1) }

func (s *liveStats) recordFailed(err error) {
	atomic.AddInt64(&s.Failed, 1)
	s.errMu.Lock()
	s.LastError = err
	s.errMu.Unlock()
}

func (s *liveStats) snapshot() Stats {
	s.errMu.Lock()
	lastErr := s.LastError
	s.errMu.Unlock()
	return Stats{
		Submitted:       atomic.LoadInt64(&s.Submitted),
		Completed:       atomic.LoadInt64(&s.Completed),
		Failed:          atomic.LoadInt64(&s.Failed),
		Cancelled:       atomic.LoadInt64(&s.Cancelled),
		ScaleUpEvents:   atomic.LoadInt64(&s.ScaleUpEvents),
		ScaleDownEvents: atomic.LoadInt64(&s.ScaleDownEvents),
		LastError:       lastErr,
	}
}
