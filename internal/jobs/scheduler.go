// Package jobs runs periodic maintenance work on a cron schedule.
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is a unit of scheduled work.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Schedule is a cron spec such as "@every 1h". Empty means on demand only.
	Schedule() string

	Run(ctx context.Context) error
}

type Scheduler struct {
	cron *cron.Cron
	jobs []Job
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		jobs: make([]Job, 0),
	}
}

// Register adds job and schedules it when it has a cron spec.
func (s *Scheduler) Register(job Job) error {
	s.jobs = append(s.jobs, job)

	log := logrus.WithField("job", job.Name())
	if job.Schedule() == "" {
		log.Info("job registered for on-demand runs")
		return nil
	}

	_, err := s.cron.AddFunc(job.Schedule(), func() {
		if err := s.run(context.Background(), job); err != nil {
			log.WithError(err).Error("scheduled job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name(), err)
	}

	log.WithField("schedule", job.Schedule()).Info("job scheduled")
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logrus.WithField("jobs", len(s.jobs)).Info("scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logrus.Info("scheduler stopped")
}

// RunByName runs a registered job immediately.
func (s *Scheduler) RunByName(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name() == name {
			return s.run(ctx, job)
		}
	}
	return fmt.Errorf("job %q is not registered", name)
}

func (s *Scheduler) Names() []string {
	names := make([]string, len(s.jobs))
	for i, job := range s.jobs {
		names[i] = job.Name()
	}
	return names
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	logrus.WithField("job", job.Name()).Debug("job starting")
	return job.Run(ctx)
}
