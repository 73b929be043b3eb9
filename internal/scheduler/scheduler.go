// Package scheduler runs named periodic jobs for bookkeeping work:
// health checks, journal flushes, metadata snapshots.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// JobFunc is one periodic unit of work. Errors are logged and counted;
// they never stop the job's loop.
type JobFunc func(ctx context.Context) error

type job struct {
	name           string
	fn             JobFunc
	interval       time.Duration
	runImmediately bool

	mu        sync.Mutex
	lastRun   int64 // unix milliseconds, zero until the first run
	runCount  uint64
	errCount  uint64
}

// JobStatus is a point-in-time view of one job for diagnostics.
type JobStatus struct {
	Name       string        `json:"name"`
	Interval   time.Duration `json:"interval"`
	LastRun    int64         `json:"last_run"`
	RunCount   uint64        `json:"run_count"`
	ErrorCount uint64        `json:"error_count"`
}

// Scheduler owns a set of jobs and a goroutine per job while running.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*job
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func New() *Scheduler {
	return &Scheduler{jobs: make(map[string]*job)}
}

// AddJob registers a job under name, replacing any previous job with
// the same name. Jobs added after Start are picked up on the next
// Start only.
func (s *Scheduler) AddJob(name string, interval time.Duration, runImmediately bool, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[name] = &job{
		name:           name,
		fn:             fn,
		interval:       interval,
		runImmediately: runImmediately,
	}
}

// RemoveJob drops a job. A running loop for it finishes its current
// iteration and exits at the next tick.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, name)
}

// Start launches one loop per registered job. No-op when already
// running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(ctx, j)
	}
}

// Stop cancels every job loop and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, j *job) {
	defer s.wg.Done()

	if j.runImmediately {
		s.runOnce(ctx, j)
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.hasJob(j.name) {
				return
			}
			s.runOnce(ctx, j)
		}
	}
}

func (s *Scheduler) hasJob(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[name]
	return ok
}

func (s *Scheduler) runOnce(ctx context.Context, j *job) {
	err := j.fn(ctx)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.lastRun = time.Now().UnixMilli()
	j.runCount++
	if err != nil {
		j.errCount++
		log.Printf("[scheduler] job %s failed: %v", j.name, err)
	}
}

// Status reports every registered job.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	out := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		j.mu.Lock()
		out = append(out, JobStatus{
			Name:       j.name,
			Interval:   j.interval,
			LastRun:    j.lastRun,
			RunCount:   j.runCount,
			ErrorCount: j.errCount,
		})
		j.mu.Unlock()
	}
	return out
}
