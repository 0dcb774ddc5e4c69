// Package resolver decides whether a single asset can skip migration,
// either from the checkpoint working set or from a live existence check at
// the destination.
package resolver

import (
	"context"

	"go.uber.org/zap"

	"assetmigration/pkg/checkpoint"
	"assetmigration/pkg/models"
	"assetmigration/pkg/provider"
)

// Mode selects the skip source.
type Mode string

const (
	// ModeCheckpointFast trusts the loaded checkpoint: O(1), no network.
	// This is the common path on a resumed job.
	ModeCheckpointFast Mode = "checkpoint_fast"
	// ModeLiveCheck asks the destination provider, used when no usable
	// checkpoint exists.
	ModeLiveCheck Mode = "live_check"
)

// Resolver answers skip decisions for one job run.
type Resolver struct {
	provider provider.Client
	record   *checkpoint.Record
	creds    models.DestinationCredentials
	mode     Mode
	log      *zap.Logger
}

// New creates a resolver bound to a job's checkpoint record and credentials.
func New(p provider.Client, record *checkpoint.Record, creds models.DestinationCredentials, mode Mode, log *zap.Logger) *Resolver {
	return &Resolver{
		provider: p,
		record:   record,
		creds:    creds,
		mode:     mode,
		log:      log,
	}
}

// ShouldSkip reports whether the asset is already at the destination.
//
// In live-check mode a confirmed hit is fed back into the checkpoint record
// so a later resume takes the fast path. A rate-limited check does NOT
// block: a spurious re-upload is cheap and idempotent, stalling the whole
// job on the provider's limiter is not. Any other check failure is treated
// as "not found" and the transfer is attempted.
func (r *Resolver) ShouldSkip(ctx context.Context, ref models.AssetRef) bool {
	if r.mode == ModeCheckpointFast {
		return r.record.Has(ref.PublicID)
	}

	// Even in live-check mode, ids confirmed earlier in this run are known.
	if r.record.Has(ref.PublicID) {
		return true
	}

	existence, err := r.provider.Exists(ctx, ref.PublicID, ref.ResourceType, r.creds)
	if err != nil {
		r.log.Warn("existence check failed, attempting transfer",
			zap.String("public_id", ref.PublicID),
			zap.Error(err))
		return false
	}

	switch existence {
	case provider.Found:
		r.record.MarkCompleted(ref.PublicID)
		return true
	case provider.RateLimited:
		r.log.Warn("existence check rate-limited, attempting transfer anyway",
			zap.String("public_id", ref.PublicID))
		return false
	default:
		return false
	}
}
