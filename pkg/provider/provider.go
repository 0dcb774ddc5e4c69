// Package provider defines the storage-provider client consumed by the
// migration engine, plus the HTTP download helper shared by its
// implementations.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"assetmigration/pkg/models"
)

// ErrInvalidCredentials is returned by Validate when the destination
// account rejects the supplied credentials.
var ErrInvalidCredentials = errors.New("destination rejected credentials")

// Existence is the outcome of an existence check at the destination.
type Existence string

const (
	Found       Existence = "found"
	NotFound    Existence = "not_found"
	RateLimited Existence = "rate_limited"
)

// UploadResult is the outcome of an upload attempt.
type UploadResult string

const (
	// UploadOK means the asset was stored.
	UploadOK UploadResult = "ok"
	// UploadExists means the destination already holds an asset at this id
	// and the no-overwrite upload was rejected or ignored.
	UploadExists UploadResult = "exists"
)

// Client talks to a storage provider. Implementations must be safe for use
// by a single migration loop plus concurrent Validate calls.
type Client interface {
	// Validate performs one lightweight authenticated call against the
	// destination account. A nil error means the credentials are usable;
	// ErrInvalidCredentials means they were rejected.
	Validate(ctx context.Context, creds models.DestinationCredentials) error

	// Download fetches the source bytes for a stored URL, following
	// redirects. It returns the body and the terminal response's
	// Content-Type (which may be empty).
	Download(ctx context.Context, sourceURL string) ([]byte, string, error)

	// Upload stores bytes at the asset's identifier with do-not-overwrite,
	// do-not-rename semantics.
	Upload(ctx context.Context, ref models.AssetRef, body []byte, contentType string, creds models.DestinationCredentials) (UploadResult, error)

	// Exists asks the destination whether an asset with this identifier is
	// already present. RateLimited is reported as a value, not an error, so
	// callers can degrade instead of aborting.
	Exists(ctx context.Context, publicID string, resourceType models.ResourceType, creds models.DestinationCredentials) (Existence, error)
}

// DownloadURL performs an HTTP GET with redirect following and returns the
// body plus the final response's Content-Type. A non-2xx terminal status is
// a hard failure.
func DownloadURL(ctx context.Context, client *http.Client, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read download body: %w", err)
	}

	return body, resp.Header.Get("Content-Type"), nil
}
