// Package mediacdn implements the provider client against the media CDN's
// REST API: basic-auth admin lookups for existence, signed multipart form
// uploads, and plain HTTP delivery URLs for downloads.
package mediacdn

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"assetmigration/pkg/models"
	"assetmigration/pkg/provider"
)

// Client talks to a media-CDN account over its HTTP API.
type Client struct {
	apiBase string
	http    *http.Client
	now     func() time.Time
}

// New creates a client for the given API base URL, e.g.
// "https://api.mediacdn.example". A nil httpClient falls back to a default
// with a 30s timeout.
func New(apiBase string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		apiBase: strings.TrimRight(apiBase, "/"),
		http:    httpClient,
		now:     time.Now,
	}
}

// Validate pings the account endpoint with basic auth.
func (c *Client) Validate(ctx context.Context, creds models.DestinationCredentials) error {
	endpoint := fmt.Sprintf("%s/v1/%s/ping", c.apiBase, url.PathEscape(creds.AccountName))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build ping request: %w", err)
	}
	req.SetBasicAuth(creds.APIKey, creds.APISecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return provider.ErrInvalidCredentials
	default:
		return fmt.Errorf("ping returned status %d", resp.StatusCode)
	}
}

// Download fetches the stored URL directly; delivery URLs are public and
// redirect-heavy, so this goes through the shared HTTP helper.
func (c *Client) Download(ctx context.Context, sourceURL string) ([]byte, string, error) {
	return provider.DownloadURL(ctx, c.http, sourceURL)
}

// Exists queries the admin API for a resource by public id.
func (c *Client) Exists(ctx context.Context, publicID string, resourceType models.ResourceType, creds models.DestinationCredentials) (provider.Existence, error) {
	endpoint := fmt.Sprintf("%s/v1/%s/resources/%s/upload/%s",
		c.apiBase,
		url.PathEscape(creds.AccountName),
		url.PathEscape(string(resourceType)),
		escapePath(publicID),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return provider.NotFound, fmt.Errorf("failed to build existence request: %w", err)
	}
	req.SetBasicAuth(creds.APIKey, creds.APISecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return provider.NotFound, fmt.Errorf("existence request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return provider.Found, nil
	case http.StatusNotFound:
		return provider.NotFound, nil
	case statusEnhanceYourCalm, http.StatusTooManyRequests:
		return provider.RateLimited, nil
	default:
		return provider.NotFound, fmt.Errorf("existence check returned status %d", resp.StatusCode)
	}
}

// Upload posts the bytes as a signed multipart form with overwrite disabled.
// The API answers an existing id either with 409 or with 200 and
// "existing": true; both count as UploadExists.
func (c *Client) Upload(ctx context.Context, ref models.AssetRef, body []byte, contentType string, creds models.DestinationCredentials) (provider.UploadResult, error) {
	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	params := map[string]string{
		"public_id":       ref.PublicID,
		"overwrite":       "false",
		"unique_filename": "false",
		"timestamp":       timestamp,
	}

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	for key, value := range params {
		writer.WriteField(key, value)
	}
	writer.WriteField("api_key", creds.APIKey)
	writer.WriteField("signature", signParams(params, creds.APISecret))

	part, err := writer.CreateFormFile("file", ref.Filename)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(body); err != nil {
		return "", fmt.Errorf("failed to write upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload form: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/%s/%s/upload",
		c.apiBase,
		url.PathEscape(creds.AccountName),
		url.PathEscape(string(ref.ResourceType)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &form)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if contentType != "" {
		req.Header.Set("X-Asset-Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var result struct {
			Existing bool `json:"existing"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return "", fmt.Errorf("failed to decode upload response: %w", err)
		}
		if result.Existing {
			return provider.UploadExists, nil
		}
		return provider.UploadOK, nil
	case http.StatusConflict:
		return provider.UploadExists, nil
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("upload returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
}

// statusEnhanceYourCalm is the legacy rate-limit status some CDN endpoints
// still answer with instead of 429.
const statusEnhanceYourCalm = 420

// signParams produces the request signature: the sorted key=value pairs
// joined with '&', concatenated with the API secret, SHA-1 hashed.
func signParams(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+params[key])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}

func escapePath(publicID string) string {
	segments := strings.Split(publicID, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
