// Package job orchestrates a migration run: it resolves skips, drives the
// transfer pipeline over the submitted asset list, keeps counters and the
// bounded error ring, and flushes the checkpoint at a fixed cadence.
//
// Processing is deliberately sequential: one asset is fully resolved,
// transferred and checkpointed before the next begins. The destination
// enforces per-account rate limits, and a sequential loop respects them
// without a limiter component. Counters are guarded by a mutex so Status
// and Cancel stay safe from other goroutines; the loop is the only writer.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"assetmigration/pkg/checkpoint"
	"assetmigration/pkg/metrics"
	"assetmigration/pkg/models"
	"assetmigration/pkg/provider"
	"assetmigration/pkg/resolver"
	"assetmigration/pkg/state"
	"assetmigration/pkg/structures"
	"assetmigration/pkg/transfer"
)

var (
	// ErrJobInProgress rejects Start while a job is running.
	ErrJobInProgress = errors.New("a migration job is already in progress")
	// ErrNoActiveJob rejects Cancel without a running job.
	ErrNoActiveJob = errors.New("no migration job is in progress")
	// ErrNotResumable rejects Continue unless the job is failed or cancelled.
	ErrNotResumable = errors.New("job is not in a resumable state")
	// ErrBadCredentials blocks Start when the destination rejects the
	// supplied credentials.
	ErrBadCredentials = errors.New("destination rejected the supplied credentials")
)

const (
	defaultFlushEvery    = 10
	defaultErrorRingSize = 20
)

// Options tune the controller.
type Options struct {
	// FlushEvery is the checkpoint flush cadence in successful transfers.
	FlushEvery int
	// ErrorRingSize bounds the recent-errors ring.
	ErrorRingSize int
	Timeouts      transfer.Timeouts
}

// Controller owns the migration job state machine:
// idle -> in_progress -> {completed, failed, cancelled}, with failed and
// cancelled resumable via Continue.
type Controller struct {
	provider provider.Client
	store    checkpoint.Store
	states   state.Manager      // optional
	metrics  *metrics.Collector // optional
	pipeline *transfer.Pipeline
	log      *zap.Logger
	opts     Options

	cancelRequested atomic.Bool

	mu           sync.Mutex
	jobID        string
	status       models.JobStatus
	creds        models.DestinationCredentials
	refs         []models.AssetRef
	total        int
	copied       int
	failed       int
	skipped      int
	recentErrors *structures.Ring[models.ItemError]
	startedAt    time.Time
	completedAt  *time.Time
	record       *checkpoint.Record
	done         chan struct{}
}

// New wires a controller. states and collector may be nil.
func New(p provider.Client, store checkpoint.Store, states state.Manager, collector *metrics.Collector, log *zap.Logger, opts Options) *Controller {
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = defaultFlushEvery
	}
	if opts.ErrorRingSize <= 0 {
		opts.ErrorRingSize = defaultErrorRingSize
	}
	return &Controller{
		provider: p,
		store:    store,
		states:   states,
		metrics:  collector,
		pipeline: transfer.New(p, opts.Timeouts, log),
		log:      log,
		opts:     opts,
		status:   models.StatusIdle,
	}
}

// Validate performs one lightweight authenticated call against the
// destination account. It changes no state.
func (c *Controller) Validate(ctx context.Context, creds models.DestinationCredentials) (bool, error) {
	err := c.provider.Validate(ctx, creds)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, provider.ErrInvalidCredentials) {
		return false, nil
	}
	return false, err
}

// Start validates the credentials, loads the checkpoint for the destination
// account and launches the processing loop. It returns the job id
// immediately; progress is observed through Status.
func (c *Controller) Start(ctx context.Context, creds models.DestinationCredentials, refs []models.AssetRef) (string, error) {
	c.mu.Lock()
	if c.status == models.StatusInProgress {
		c.mu.Unlock()
		return "", ErrJobInProgress
	}
	c.mu.Unlock()

	if err := c.provider.Validate(ctx, creds); err != nil {
		if errors.Is(err, provider.ErrInvalidCredentials) {
			return "", ErrBadCredentials
		}
		return "", fmt.Errorf("credential validation failed: %w", err)
	}

	mode := resolver.ModeLiveCheck
	record, err := c.store.Load(creds.AccountName)
	switch {
	case errors.Is(err, checkpoint.ErrAccountMismatch):
		// The persisted checkpoint belongs to another account; trusting it
		// would mark assets as migrated on an account that has never seen
		// them.
		c.log.Warn("discarding checkpoint written for a different destination account",
			zap.String("destination_account", creds.AccountName),
			zap.Error(err))
		record = nil
	case err != nil:
		c.log.Warn("failed to load checkpoint, falling back to live existence checks",
			zap.Error(err))
		record = nil
	}
	if record != nil {
		mode = resolver.ModeCheckpointFast
		c.log.Info("resuming from checkpoint",
			zap.String("destination_account", creds.AccountName),
			zap.Int("completed_ids", record.Len()))
	} else {
		record = checkpoint.NewRecord(creds.AccountName)
	}

	c.mu.Lock()
	if c.status == models.StatusInProgress {
		c.mu.Unlock()
		return "", ErrJobInProgress
	}
	c.jobID = uuid.New().String()
	c.status = models.StatusInProgress
	c.creds = creds
	c.refs = append([]models.AssetRef(nil), refs...)
	c.total = len(refs)
	c.copied, c.failed, c.skipped = 0, 0, 0
	c.recentErrors = structures.NewRing[models.ItemError](c.opts.ErrorRingSize)
	c.startedAt = time.Now()
	c.completedAt = nil
	c.record = record
	c.done = make(chan struct{})
	jobID := c.jobID
	items := c.refs
	done := c.done
	c.mu.Unlock()

	c.cancelRequested.Store(false)

	res := resolver.New(c.provider, record, creds, mode, c.log)
	c.log.Info("migration started",
		zap.String("job_id", jobID),
		zap.String("mode", string(mode)),
		zap.Int("total", len(items)))

	// The loop outlives the caller's request or signal context; stopping a
	// running job goes through Cancel only, so the in-flight item always
	// finishes and is counted.
	go c.run(context.Background(), items, res, done)
	return jobID, nil
}

// Cancel requests cooperative cancellation. The in-flight item finishes and
// its outcome is counted; no further items are started.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != models.StatusInProgress {
		return ErrNoActiveJob
	}
	c.cancelRequested.Store(true)
	c.log.Info("cancellation requested", zap.String("job_id", c.jobID))
	return nil
}

// Continue re-enters a failed or cancelled job against the same destination.
// Only assets whose public id is absent from the checkpoint are
// re-submitted, independent of the resolver, as an extra safety net.
// Undecomposable refs are permanent failures and are never retried.
func (c *Controller) Continue(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.status != models.StatusFailed && c.status != models.StatusCancelled {
		c.mu.Unlock()
		return "", ErrNotResumable
	}

	var remaining []models.AssetRef
	for _, ref := range c.refs {
		if ref.PublicID == "" {
			continue
		}
		if c.record.Has(ref.PublicID) {
			continue
		}
		remaining = append(remaining, ref)
	}

	c.status = models.StatusInProgress
	c.refs = remaining
	c.total = len(remaining)
	c.copied, c.failed, c.skipped = 0, 0, 0
	c.recentErrors = structures.NewRing[models.ItemError](c.opts.ErrorRingSize)
	c.completedAt = nil
	c.done = make(chan struct{})
	jobID := c.jobID
	record := c.record
	creds := c.creds
	done := c.done
	c.mu.Unlock()

	c.cancelRequested.Store(false)

	// The in-memory working set is authoritative here, so the fast path
	// applies even when the original run used live checks.
	res := resolver.New(c.provider, record, creds, resolver.ModeCheckpointFast, c.log)
	c.log.Info("continuing migration",
		zap.String("job_id", jobID),
		zap.Int("remaining", len(remaining)))

	go c.run(context.Background(), remaining, res, done)
	return jobID, nil
}

// Status returns a read-only snapshot of the current job.
func (c *Controller) Status() models.MigrationStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	processed := c.copied + c.failed + c.skipped
	percentage := 0.0
	if c.total > 0 {
		percentage = float64(processed) / float64(c.total) * 100
	}

	var errs []models.ItemError
	if c.recentErrors != nil {
		errs = c.recentErrors.Items()
	}

	return models.MigrationStatus{
		JobID:              c.jobID,
		Status:             c.status,
		DestinationAccount: c.creds.AccountName,
		Total:              c.total,
		Copied:             c.copied,
		Failed:             c.failed,
		Skipped:            c.skipped,
		Percentage:         percentage,
		RecentErrors:       errs,
		StartedAt:          c.startedAt,
		CompletedAt:        c.completedAt,
	}
}

// Wait blocks until the current run's loop has exited. It returns
// immediately when no run was ever started.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (c *Controller) run(ctx context.Context, items []models.AssetRef, res *resolver.Resolver, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic in migration loop", zap.Any("panic", r))
			c.finish(models.StatusFailed)
		}
	}()

	if c.metrics != nil {
		c.metrics.SetJobRunning(true)
		defer c.metrics.SetJobRunning(false)
	}

	outcome := models.StatusCompleted
	for _, ref := range items {
		// Cancellation is cooperative and checked only between items; the
		// in-flight item always finishes.
		if c.cancelRequested.Load() {
			outcome = models.StatusCancelled
			break
		}
		c.processItem(ctx, ref, res)
	}

	c.finish(outcome)
}

func (c *Controller) processItem(ctx context.Context, ref models.AssetRef, res *resolver.Resolver) {
	if ref.PublicID == "" {
		// Undecomposable source URL: permanent per-item failure.
		c.recordFailure(ref, "source URL could not be decomposed")
		return
	}

	if res.ShouldSkip(ctx, ref) {
		c.mu.Lock()
		c.skipped++
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.ObserveAsset("skipped", 0)
		}
		return
	}

	start := time.Now()
	if err := c.pipeline.Transfer(ctx, ref, c.creds); err != nil {
		c.log.Warn("asset transfer failed",
			zap.String("public_id", ref.PublicID),
			zap.Error(err))
		c.recordFailure(ref, err.Error())
		if c.metrics != nil {
			c.metrics.ObserveAsset("failed", time.Since(start))
		}
		return
	}

	c.record.MarkCompleted(ref.PublicID)

	c.mu.Lock()
	c.copied++
	copied := c.copied
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.ObserveAsset("copied", time.Since(start))
	}

	if copied%c.opts.FlushEvery == 0 {
		c.flushCheckpoint()
		c.persistState()
	}
}

func (c *Controller) recordFailure(ref models.AssetRef, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failed++
	c.recentErrors.Add(models.ItemError{
		Asset:   ref,
		Message: message,
		At:      time.Now(),
	})
}

// finish flushes the checkpoint unconditionally and persists the final job
// state, whatever the outcome.
func (c *Controller) finish(outcome models.JobStatus) {
	c.flushCheckpoint()

	c.mu.Lock()
	c.status = outcome
	now := time.Now()
	c.completedAt = &now
	jobID := c.jobID
	copied, failed, skipped, total := c.copied, c.failed, c.skipped, c.total
	c.mu.Unlock()

	c.persistState()

	c.log.Info("migration finished",
		zap.String("job_id", jobID),
		zap.String("status", string(outcome)),
		zap.Int("total", total),
		zap.Int("copied", copied),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped))
}

func (c *Controller) flushCheckpoint() {
	c.mu.Lock()
	record := c.record
	c.mu.Unlock()

	if record == nil {
		return
	}
	if err := c.store.Save(record); err != nil {
		// A failed flush degrades resumability but never aborts the job.
		c.log.Error("failed to flush checkpoint", zap.Error(err))
	}
}

func (c *Controller) persistState() {
	if c.states == nil {
		return
	}

	snapshot := c.Status()
	err := c.states.SaveJob(&state.JobState{
		ID:                 snapshot.JobID,
		Status:             snapshot.Status,
		DestinationAccount: snapshot.DestinationAccount,
		Total:              snapshot.Total,
		Copied:             snapshot.Copied,
		Failed:             snapshot.Failed,
		Skipped:            snapshot.Skipped,
		Errors:             snapshot.RecentErrors,
		StartedAt:          snapshot.StartedAt,
		CompletedAt:        snapshot.CompletedAt,
	})
	if err != nil {
		c.log.Error("failed to persist job state", zap.Error(err))
	}
}
