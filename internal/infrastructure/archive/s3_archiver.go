// Package archive mirrors raw upstream pages to S3-compatible object storage
// for long-term retention. The database ledger remains the primary copy; this
// mirror exists so old raw payloads can be replayed without bloating Postgres.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/domain/sync"
	infraconfig "github.com/possync/backend/internal/infrastructure/config"
)

// Ensure S3PageArchiver implements sync.PageArchiver
var _ sync.PageArchiver = (*S3PageArchiver)(nil)

// S3PageArchiver stores raw pages in any S3-compatible backend (AWS S3,
// RustFS, MinIO, etc.)
type S3PageArchiver struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

// NewS3PageArchiver creates an archiver from configuration.
func NewS3PageArchiver(cfg *infraconfig.ArchiveConfig, logger *zap.Logger) (*S3PageArchiver, error) {
	if cfg == nil {
		return nil, errors.New("archive configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("archive access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("archive secret key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			endpoint, err := normalizeEndpoint(cfg.Endpoint)
			if err == nil {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}
	})

	return &S3PageArchiver{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist. Call during startup.
func (a *S3PageArchiver) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("creating archive bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// ArchivePage uploads one raw page body under a per-run key.
func (a *S3PageArchiver) ArchivePage(ctx context.Context, runID uuid.UUID, pageIndex int, payload []byte) error {
	key := PageKey(runID, pageIndex)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload page %s: %w", key, err)
	}
	return nil
}

// PageKey renders the object key for one archived page.
func PageKey(runID uuid.UUID, pageIndex int) string {
	return fmt.Sprintf("runs/%s/page-%04d.json", runID, pageIndex)
}

// normalizeEndpoint ensures the endpoint carries a scheme and parses cleanly
func normalizeEndpoint(endpoint string) (string, error) {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return "", fmt.Errorf("invalid archive endpoint: %w", err)
	}
	return endpoint, nil
}
