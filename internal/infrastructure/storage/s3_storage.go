// Package storage provides the remote destinations for rendered invoices.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
	infraconfig "github.com/dandroos/node-invoicer/internal/infrastructure/config"
)

const pdfContentType = "application/pdf"

// Ensure S3ArtifactStorage implements invoicing.ArtifactStorage
var _ invoicing.ArtifactStorage = (*S3ArtifactStorage)(nil)

// S3ArtifactStorage uploads invoices to a bucket using AWS S3 SDK v2.
// It is compatible with any S3-compatible storage (AWS S3, MinIO, etc.)
type S3ArtifactStorage struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// S3ArtifactStorageOption is a functional option for configuring S3ArtifactStorage
type S3ArtifactStorageOption func(*S3ArtifactStorage)

// WithLogger sets a custom logger for S3ArtifactStorage
func WithLogger(logger *zap.Logger) S3ArtifactStorageOption {
	return func(s *S3ArtifactStorage) {
		s.logger = logger
	}
}

// NewS3ArtifactStorage creates a new S3ArtifactStorage from configuration.
// storage.prefix becomes the folder of every uploaded object.
func NewS3ArtifactStorage(ctx context.Context, cfg *infraconfig.StorageConfig, opts ...S3ArtifactStorageOption) (*S3ArtifactStorage, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	s3cfg := cfg.S3
	if s3cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if s3cfg.AccessKeyID == "" || s3cfg.SecretAccessKey == "" {
		return nil, errors.New("storage access key and secret key are required")
	}

	region := s3cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s3cfg.AccessKeyID,
			s3cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	var endpoint string
	if s3cfg.Endpoint != "" {
		endpoint = s3cfg.Endpoint
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = s3cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		// the issuance pipeline owns retries
		o.RetryMaxAttempts = 1
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	storage := &S3ArtifactStorage{
		client: client,
		bucket: s3cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(storage)
	}
	return storage, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *S3ArtifactStorage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return invoicing.NewStorageError("check bucket "+s.bucket, err)
	}

	s.logger.Info("Creating storage bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return invoicing.NewStorageError("create bucket "+s.bucket, err)
	}
	return nil
}

// Upload stores content under <prefix>/<filename>, replacing any object
// with the same key.
func (s *S3ArtifactStorage) Upload(ctx context.Context, filename string, content io.Reader) error {
	if filename == "" {
		return invoicing.NewStorageError("upload", errors.New("filename is required"))
	}
	key := s.Key(filename)

	body, ok := content.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(content)
		if err != nil {
			return invoicing.NewStorageError("read "+filename, err)
		}
		body = bytes.NewReader(data)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(pdfContentType),
	})
	if err != nil {
		return invoicing.NewStorageError("upload "+key, err)
	}

	s.logger.Info("Invoice uploaded",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
	)
	return nil
}

// Key returns the object key used for filename
func (s *S3ArtifactStorage) Key(filename string) string {
	if s.prefix == "" {
		return filename
	}
	return path.Join(s.prefix, filename)
}

// Bucket returns the bucket name
func (s *S3ArtifactStorage) Bucket() string {
	return s.bucket
}
