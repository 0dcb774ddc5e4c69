// Package scheduler re-enters interrupted migration jobs on a cron cadence.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"assetmigration/pkg/job"
)

// Resumer is the slice of the job controller the scheduler drives.
type Resumer interface {
	Continue(ctx context.Context) (string, error)
}

// Scheduler fires Continue at each cron tick. A job that is running,
// completed or never started is left alone.
type Scheduler struct {
	cron    *cron.Cron
	resumer Resumer
	log     *zap.Logger
}

// New builds a scheduler for the given cron expression (standard five-field
// syntax).
func New(cronExpr string, resumer Resumer, log *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		resumer: resumer,
		log:     log,
	}

	_, err := s.cron.AddFunc(cronExpr, s.tick)
	if err != nil {
		return nil, fmt.Errorf("invalid auto-continue cron expression %q: %w", cronExpr, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	jobID, err := s.resumer.Continue(context.Background())
	switch {
	case err == nil:
		s.log.Info("auto-continue resumed interrupted job", zap.String("job_id", jobID))
	case errors.Is(err, job.ErrNotResumable):
		// Nothing to resume.
	default:
		s.log.Warn("auto-continue failed", zap.Error(err))
	}
}

// Start begins firing ticks. It returns immediately.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the cron loop and waits for an in-flight tick to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
