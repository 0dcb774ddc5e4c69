// Package transfer moves one asset's bytes from its source URL to the
// destination account. The pipeline has no side effects beyond the two
// network calls: checkpointing and counters belong to the caller, which
// keeps a transfer independently testable and safely retryable.
package transfer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"assetmigration/pkg/models"
	"assetmigration/pkg/provider"
)

// DownloadError wraps a failure to fetch source bytes. Transient-assumed:
// the item is counted failed and the job continues.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// UploadError wraps a failure to store bytes at the destination.
type UploadError struct {
	PublicID string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.PublicID, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Timeouts bound the two network calls of a transfer.
type Timeouts struct {
	Download time.Duration
	Upload   time.Duration
}

// DefaultTimeouts allow large video downloads while keeping uploads bounded.
var DefaultTimeouts = Timeouts{
	Download: 2 * time.Minute,
	Upload:   2 * time.Minute,
}

// Pipeline copies single assets.
type Pipeline struct {
	provider provider.Client
	timeouts Timeouts
	log      *zap.Logger
}

// New creates a pipeline over the given provider client. Zero timeout
// fields fall back to DefaultTimeouts.
func New(p provider.Client, timeouts Timeouts, log *zap.Logger) *Pipeline {
	if timeouts.Download <= 0 {
		timeouts.Download = DefaultTimeouts.Download
	}
	if timeouts.Upload <= 0 {
		timeouts.Upload = DefaultTimeouts.Upload
	}
	return &Pipeline{provider: p, timeouts: timeouts, log: log}
}

// Transfer downloads the asset from its source URL and uploads it to the
// destination under the same identifier. A nil return means the asset is at
// the destination, either freshly copied or already present (a
// no-overwrite rejection counts as success).
func (p *Pipeline) Transfer(ctx context.Context, ref models.AssetRef, creds models.DestinationCredentials) error {
	downloadCtx, cancelDownload := context.WithTimeout(ctx, p.timeouts.Download)
	defer cancelDownload()

	body, contentType, err := p.provider.Download(downloadCtx, ref.SourceURL)
	if err != nil {
		return &DownloadError{URL: ref.SourceURL, Err: err}
	}

	if contentType == "" {
		contentType = mimeForFormat(ref.Format)
	}

	uploadCtx, cancelUpload := context.WithTimeout(ctx, p.timeouts.Upload)
	defer cancelUpload()

	result, err := p.provider.Upload(uploadCtx, ref, body, contentType, creds)
	if err != nil {
		return &UploadError{PublicID: ref.PublicID, Err: err}
	}

	if result == provider.UploadExists {
		p.log.Debug("destination already holds asset, upload treated as copied",
			zap.String("public_id", ref.PublicID))
	}
	return nil
}
