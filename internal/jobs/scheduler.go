package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job interface that all scheduled jobs must implement
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// Scheduler runs registered jobs on their fixed intervals
type Scheduler struct {
	jobs    []Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a new job scheduler
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a job to the scheduler
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = append(s.jobs, job)
	log.Printf("✅ [SCHEDULER] Registered job: %s (every %v)", job.Name(), job.Interval())
}

// Start begins running all registered jobs on their intervals
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	log.Printf("🚀 [SCHEDULER] Starting job scheduler with %d job(s)", len(s.jobs))

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(job)
	}
}

// runLoop runs one job on its ticker until the scheduler stops
func (s *Scheduler) runLoop(job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runJob(job)
		case <-s.ctx.Done():
			return
		}
	}
}

// runJob executes a job once and logs its outcome
func (s *Scheduler) runJob(job Job) {
	startTime := time.Now()

	if err := job.Run(s.ctx); err != nil {
		log.Printf("❌ [SCHEDULER] Job '%s' failed: %v", job.Name(), err)
		return
	}

	log.Printf("✅ [SCHEDULER] Job '%s' completed in %v", job.Name(), time.Since(startTime))
}

// RunNow immediately runs a specific job (useful for testing)
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		if job.Name() == name {
			return job.Run(s.ctx)
		}
	}

	log.Printf("⚠️ [SCHEDULER] Job '%s' not found", name)
	return nil
}

// Stop gracefully stops all jobs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	log.Println("✅ [SCHEDULER] Job scheduler stopped")
}
