// Package s3compat implements the provider client for destination accounts
// hosted on S3-compatible object storage. The account name maps to a
// bucket; assets are keyed by resource type and public id so existence
// checks need nothing beyond the identifier.
package s3compat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"assetmigration/pkg/models"
	"assetmigration/pkg/provider"
)

// Options configure the S3-compatible endpoint.
type Options struct {
	EndpointURL    string
	Region         string
	ForcePathStyle bool
}

// Client talks to one S3-compatible storage service. The underlying SDK
// client is rebuilt only when the credentials change.
type Client struct {
	opts Options
	http *http.Client

	mu         sync.Mutex
	cached     *s3.Client
	cachedKey  string
	cachedAcct string
}

// New creates a client for the given endpoint options.
func New(opts Options) *Client {
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	return &Client{
		opts: opts,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) api(ctx context.Context, creds models.DestinationCredentials) (*s3.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && c.cachedKey == creds.APIKey && c.cachedAcct == creds.AccountName {
		return c.cached, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(c.opts.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.APIKey, creds.APISecret, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(c.opts.EndpointURL)
		}
		o.UsePathStyle = c.opts.ForcePathStyle
	})

	c.cached = client
	c.cachedKey = creds.APIKey
	c.cachedAcct = creds.AccountName
	return client, nil
}

// objectKey derives the storage key from the asset identifier alone, so
// Exists and Upload always agree on the location.
func objectKey(publicID string, resourceType models.ResourceType) string {
	return string(resourceType) + "/" + publicID
}

// Validate issues a HeadBucket against the account's bucket.
func (c *Client) Validate(ctx context.Context, creds models.DestinationCredentials) error {
	api, err := c.api(ctx, creds)
	if err != nil {
		return err
	}

	_, err = api.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(creds.AccountName),
	})
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "Forbidden", "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "NotFound", "NoSuchBucket":
			return fmt.Errorf("%w: %s", provider.ErrInvalidCredentials, apiErr.ErrorCode())
		}
	}
	return fmt.Errorf("bucket check failed: %w", err)
}

// Download fetches the stored URL over plain HTTP; source URLs stay
// authoritative regardless of where the destination lives.
func (c *Client) Download(ctx context.Context, sourceURL string) ([]byte, string, error) {
	return provider.DownloadURL(ctx, c.http, sourceURL)
}

// Exists heads the object derived from the public id.
func (c *Client) Exists(ctx context.Context, publicID string, resourceType models.ResourceType, creds models.DestinationCredentials) (provider.Existence, error) {
	api, err := c.api(ctx, creds)
	if err != nil {
		return provider.NotFound, err
	}

	_, err = api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(creds.AccountName),
		Key:    aws.String(objectKey(publicID, resourceType)),
	})
	if err == nil {
		return provider.Found, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return provider.NotFound, nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "SlowDown", "TooManyRequests", "RequestLimitExceeded", "Throttling", "ThrottlingException":
			return provider.RateLimited, nil
		case "NotFound", "NoSuchKey":
			return provider.NotFound, nil
		}
	}
	return provider.NotFound, fmt.Errorf("existence check failed: %w", err)
}

// Upload puts the object with a conditional write so an existing key is
// reported as UploadExists rather than overwritten.
func (c *Client) Upload(ctx context.Context, ref models.AssetRef, body []byte, contentType string, creds models.DestinationCredentials) (provider.UploadResult, error) {
	api, err := c.api(ctx, creds)
	if err != nil {
		return "", err
	}

	_, err = api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(creds.AccountName),
		Key:         aws.String(objectKey(ref.PublicID, ref.ResourceType)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		IfNoneMatch: aws.String("*"),
	})
	if err == nil {
		return provider.UploadOK, nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
		return provider.UploadExists, nil
	}
	return "", fmt.Errorf("upload failed: %w", err)
}
