package utils

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pacer enforces a minimum interval between consecutive calls to Wait,
// across all goroutines sharing it.
type Pacer struct {
	interval    time.Duration
	mu          sync.Mutex
	lastRequest time.Time
}

// NewPacer creates a Pacer spacing calls by rateLimitMs milliseconds.
func NewPacer(rateLimitMs int) *Pacer {
	return &Pacer{interval: time.Duration(rateLimitMs) * time.Millisecond}
}

// Wait blocks until the interval since the previous call has elapsed.
// It returns ctx.Err() if ctx ends first.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interval > 0 && !p.lastRequest.IsZero() {
		if wait := p.interval - time.Since(p.lastRequest); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	p.lastRequest = time.Now()
	return ctx.Err()
}

// WorkerPool manages a pool of goroutines with rate limiting.
type WorkerPool struct {
	group *errgroup.Group
	pacer *Pacer
}

// NewWorkerPool creates a WorkerPool with the given concurrency and rate limit.
func NewWorkerPool(maxWorkers, rateLimitMs int) *WorkerPool {
	return NewPacedWorkerPool(maxWorkers, NewPacer(rateLimitMs))
}

// NewPacedWorkerPool creates a WorkerPool whose job starts draw on pacer,
// which may be shared with callers outside the pool.
func NewPacedWorkerPool(maxWorkers int, pacer *Pacer) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	g := &errgroup.Group{}
	g.SetLimit(maxWorkers)
	return &WorkerPool{group: g, pacer: pacer}
}

// Submit enqueues a job for execution in the pool. It blocks while the pool is
// full. Jobs start no closer together than the pool's rate limit. If ctx ends
// before the job gets a slot or its pacing turn, the job is not run and
// Submit reports false.
func (wp *WorkerPool) Submit(ctx context.Context, job func()) bool {
	if ctx.Err() != nil {
		return false
	}
	started := make(chan bool, 1)
	wp.group.Go(func() error {
		if err := wp.pacer.Wait(ctx); err != nil {
			started <- false
			return nil
		}
		started <- true
		job()
		return nil
	})
	return <-started
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	_ = wp.group.Wait()
}

// URLSet is a thread-safe set for tracking visited URLs.
type URLSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewURLSet creates an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]struct{})}
}

// Add returns true if the URL was newly added, false if already present.
func (s *URLSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[url]; exists {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

// Contains returns true if the URL has already been visited.
func (s *URLSet) Contains(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[url]
	return exists
}

// Size returns the number of unique URLs tracked.
func (s *URLSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
