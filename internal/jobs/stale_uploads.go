package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// StaleUploadCleaner is the part of the media service the sweep needs.
type StaleUploadCleaner interface {
	CleanupStaleUploads(ctx context.Context, cutoff time.Time) (int, error)
}

// StaleUploadJob removes media whose bytes never reached storage within maxAge
// of allocation.
type StaleUploadJob struct {
	cleaner  StaleUploadCleaner
	schedule string
	maxAge   time.Duration
	now      func() time.Time
}

func NewStaleUploadJob(cleaner StaleUploadCleaner, schedule string, maxAge time.Duration) *StaleUploadJob {
	return &StaleUploadJob{
		cleaner:  cleaner,
		schedule: schedule,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

func (j *StaleUploadJob) Name() string { return "stale-uploads" }

func (j *StaleUploadJob) Schedule() string { return j.schedule }

func (j *StaleUploadJob) Run(ctx context.Context) error {
	removed, err := j.cleaner.CleanupStaleUploads(ctx, j.now().Add(-j.maxAge))
	if err != nil {
		return err
	}
	logrus.WithField("removed", removed).Info("stale uploads swept")
	return nil
}
