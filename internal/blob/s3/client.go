// Package s3blob archives run reports to S3 or an S3-compatible store such as
// MinIO or Cloudflare R2, using AWS SDK v2.
package s3blob

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig holds the configuration for connecting to an object store.
type ClientConfig struct {
	// Endpoint overrides the AWS endpoint for S3-compatible providers. Leave
	// empty for AWS S3.
	Endpoint string
	Region   string
	Bucket   string
	// AccessKey and SecretKey select static credentials. When both are empty
	// the default AWS credential chain is used.
	AccessKey string
	SecretKey string
	// UseSSL picks the scheme for an Endpoint given without one.
	UseSSL bool
	// ForcePathStyle puts the bucket in the path rather than the host name,
	// as most S3-compatible providers require.
	ForcePathStyle bool
}

// Client wraps the AWS S3 SDK client and the target bucket.
type Client struct {
	s3     *s3.Client
	bucket string
}

// New creates a client for cfg.Bucket. It does not contact the store; use
// Health for that.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normaliseEndpoint(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &Client{s3: client, bucket: cfg.Bucket}, nil
}

// Health verifies with HeadBucket that the bucket exists and is reachable
// with the configured credentials.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		return fmt.Errorf("s3blob: bucket %s unavailable: %w", c.bucket, err)
	}
	return nil
}

// Bucket returns the target bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// normaliseEndpoint prepends http:// or https:// to an endpoint given
// without a scheme. A bare "host:port" has no scheme even though url.Parse
// would read the host as one.
func normaliseEndpoint(endpoint string, useSSL bool) string {
	endpoint = strings.TrimSpace(endpoint)
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + endpoint
}
