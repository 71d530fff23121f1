// Package storage provides the S3-compatible report cache gateway.
//
// The cache is an optimization, never a dependency: lookups fail open
// (a storage error reads as a cache miss) and uploads are best-effort.
// A dead bucket degrades the service to rendering every report fresh,
// it never breaks a request.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	reportapp "github.com/inzighted/report-service/internal/application/report"
	"github.com/inzighted/report-service/internal/domain/report"
	"github.com/inzighted/report-service/internal/infrastructure/config"
)

// Both gateways satisfy the orchestrator's store port.
var (
	_ reportapp.ObjectStore = (*S3Gateway)(nil)
	_ reportapp.ObjectStore = (*DisabledGateway)(nil)
)

// S3Gateway caches rendered report PDFs in an S3-compatible bucket
// (AWS S3, MinIO, and friends).
type S3Gateway struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

// NewS3Gateway builds the gateway from storage configuration.
func NewS3Gateway(cfg config.StorageConfig, logger *zap.Logger) (*S3Gateway, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage credentials are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	region := cfg.Region
	if region == "" {
		region = "ap-south-1"
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
			endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
			if err == nil {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}
	})

	return &S3Gateway{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if useSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return "", fmt.Errorf("invalid storage endpoint: %w", err)
	}
	return endpoint, nil
}

// EnsureBucket creates the bucket if it does not exist. Called once at
// startup; an error here is fatal because it means credentials or the
// endpoint are wrong, not that a single object is missing.
func (g *S3Gateway) EnsureBucket(ctx context.Context) error {
	_, err := g.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(g.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	g.logger.Info("creating report cache bucket", zap.String("bucket", g.bucket))
	_, err = g.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(g.bucket),
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

// Exists reports whether a cached report is present under key. Any
// storage error reads as false so a flaky bucket only costs a re-render.
func (g *S3Gateway) Exists(ctx context.Context, key string) bool {
	if key == "" {
		return false
	}

	_, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true
	}

	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return false
	}
	// Some S3-compatible services surface not-found as a generic API
	// error instead of the typed ones.
	if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey") {
		return false
	}

	g.logger.Warn("cache existence check failed, treating as miss",
		zap.String("key", key), zap.Error(err))
	return false
}

// Upload stores a rendered PDF under key and returns the key, or ""
// when the upload failed. Callers treat "" as "not cached" and move on.
// Metadata becomes S3 user metadata on the object, so cached reports
// stay attributable without parsing keys.
func (g *S3Gateway) Upload(ctx context.Context, key string, data []byte, metadata map[string]string) string {
	if key == "" || len(data) == 0 {
		return ""
	}

	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/pdf"),
		Metadata:    metadata,
	})
	if err != nil {
		g.logger.Warn("cache upload failed",
			zap.String("key", key), zap.Int("size", len(data)), zap.Error(err))
		return ""
	}

	g.logger.Info("report cached",
		zap.String("key", key), zap.Int("size", len(data)))
	return key
}

// Fetch reads a cached report into memory. Used by bulk generation,
// which needs the bytes to add them to a zip.
func (g *S3Gateway) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cached report %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached report %s: %w", key, err)
	}
	return data, nil
}

// StreamTo writes a cached report directly to the HTTP response,
// setting the PDF headers from object metadata.
func (g *S3Gateway) StreamTo(ctx context.Context, key string, w http.ResponseWriter) error {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to fetch cached report %s: %w", key, err)
	}
	defer out.Body.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.KeyFilename(key)+`"`)
	if out.ContentLength != nil && *out.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(*out.ContentLength, 10))
	}

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("failed to stream cached report %s: %w", key, err)
	}
	return nil
}

// Bucket returns the configured bucket name.
func (g *S3Gateway) Bucket() string {
	return g.bucket
}
