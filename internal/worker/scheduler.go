// Package worker runs the periodic update cycle and ranking jobs.
package worker

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/monitor"
)

// Schedule returns the next time a job should run after now
type Schedule func(now time.Time) time.Time

// Every runs a job at a fixed interval
func Every(interval time.Duration) Schedule {
	return func(now time.Time) time.Time {
		return now.Add(interval)
	}
}

// Aligned runs a job offset into every period, e.g. two minutes past each hour
func Aligned(period, offset time.Duration) Schedule {
	return func(now time.Time) time.Time {
		next := now.UTC().Truncate(period).Add(offset)
		if !next.After(now) {
			next = next.Add(period)
		}
		return next
	}
}

// Job is a named periodic task
type Job struct {
	Name       string
	Schedule   Schedule
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Scheduler runs jobs concurrently, each on its own schedule. A failing job
// is logged and runs again at its next slot.
type Scheduler struct {
	jobs   []Job
	logger *logging.Logger
	now    func() time.Time
}

// NewScheduler creates a scheduler with no jobs
func NewScheduler(logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Scheduler{
		logger: logger.WithField("component", "scheduler"),
		now:    time.Now,
	}
}

// Add registers a job. Jobs must be added before Start.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" {
		return stderrors.New("job name is required")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s has no run function", job.Name)
	}
	if job.Schedule == nil {
		return fmt.Errorf("job %s has no schedule", job.Name)
	}
	for _, j := range s.jobs {
		if j.Name == job.Name {
			return fmt.Errorf("job %s already registered", job.Name)
		}
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Jobs returns the names of the registered jobs
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.Name)
	}
	return names
}

// Start runs every job until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.jobs) == 0 {
		return stderrors.New("no jobs registered")
	}

	s.logger.WithField("jobs", s.Jobs()).Info("Scheduler started")

	g, ctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		g.Go(func() error {
			s.loop(ctx, job)
			return nil
		})
	}
	err := g.Wait()

	s.logger.Info("Scheduler stopped")
	return err
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	logger := s.logger.WithField("job", job.Name)

	if job.RunOnStart {
		s.execute(ctx, job)
	}

	for {
		next := job.Schedule(s.now())
		wait := time.Until(next)
		logger.WithField("next_run", next.UTC().Format(time.RFC3339)).Debug("Job scheduled")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.execute(ctx, job)
	}
}

// RunOnce runs the named jobs one after another, or every job when no names
// are given. A failing job does not stop the ones after it.
func (s *Scheduler) RunOnce(ctx context.Context, names ...string) error {
	jobs := s.jobs
	if len(names) > 0 {
		jobs = make([]Job, 0, len(names))
		for _, name := range names {
			job, ok := s.find(name)
			if !ok {
				return fmt.Errorf("unknown job %s", name)
			}
			jobs = append(jobs, job)
		}
	}

	var errs []error
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.execute(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.Name, err))
		}
	}
	return stderrors.Join(errs...)
}

func (s *Scheduler) find(name string) (Job, bool) {
	for _, j := range s.jobs {
		if j.Name == name {
			return j, true
		}
	}
	return Job{}, false
}

func (s *Scheduler) execute(ctx context.Context, job Job) (err error) {
	logger := s.logger.WithField("job", job.Name)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
			logger.WithField("stack", string(debug.Stack())).Error("Recovered from job panic")
		}

		status := "success"
		if err != nil {
			status = "error"
			logger.WithError(err).WithField("duration", time.Since(start).String()).Error("Job failed")
		} else {
			logger.WithField("duration", time.Since(start).String()).Info("Job complete")
		}
		monitor.JobRuns.WithLabelValues(job.Name, status).Inc()
	}()

	logger.Info("Job started")
	return job.Run(logging.WithLogger(ctx, logger))
}
