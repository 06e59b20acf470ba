// Package sched runs the gateway's background jobs on cron schedules:
// unhealthy-key probes, expired-stream sweeps, cache purges, and usage
// event pruning.
package sched

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled task. Run must be safe to call concurrently with
// the rest of the gateway and should respect the context.
type Job struct {
	// Name identifies the job in logs.
	Name string

	// Spec is the cron expression, including @every forms.
	Spec string

	// Run executes one cycle.
	Run func(ctx context.Context)
}

// Scheduler drives the registered jobs with a single cron runner.
type Scheduler struct {
	cron    *cron.Cron
	jobs    []Job
	logger  *slog.Logger
	mu      sync.Mutex
	running bool
}

// New creates a scheduler for the given jobs. Jobs with an empty spec
// are skipped at Start.
func New(jobs ...Job) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		jobs:   jobs,
		logger: slog.Default().With("component", "sched"),
	}
}

// Start validates every spec, registers the jobs, and starts the cron
// runner. The scheduler stops itself when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already started")
	}

	for _, job := range s.jobs {
		if job.Spec == "" {
			s.logger.Info("job has no schedule, skipping", "job", job.Name)
			continue
		}
		job := job
		_, err := s.cron.AddFunc(job.Spec, func() {
			s.runJob(ctx, job)
		})
		if err != nil {
			return fmt.Errorf("invalid schedule %q for job %s: %w", job.Spec, job.Name, err)
		}
		s.logger.Info("job scheduled", "job", job.Name, "spec", job.Spec)
	}

	s.cron.Start()
	s.running = true

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "job", job.Name, "panic", r)
		}
	}()
	s.logger.Debug("job starting", "job", job.Name)
	job.Run(ctx)
}

// Stop stops the cron runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	done := s.cron.Stop()
	<-done.Done()
	s.running = false
	s.logger.Info("scheduler stopped")
}

// Running reports whether the scheduler has been started and not stopped.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
