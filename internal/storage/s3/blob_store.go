// Package s3 stores downloaded PDFs and cover images in an S3-compatible
// bucket (AWS, MinIO, or any provider that speaks the S3 API).
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// Config holds the bucket and connection settings.
type Config struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint for S3-compatible providers.
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// BlobStore writes artifacts to an S3 bucket.
type BlobStore struct {
	client objectPutter
	bucket string
	logger *zap.Logger
}

// Open builds an S3 client from cfg. Static credentials are used when both
// keys are set, otherwise the default AWS credential chain applies.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*BlobStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return New(client, cfg, logger)
}

// New wraps an existing client.
func New(client objectPutter, cfg Config, logger *zap.Logger) (*BlobStore, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlobStore{client: client, bucket: cfg.Bucket, logger: logger.Named("s3_blobs")}, nil
}

// PutObject uploads data under key path and returns an s3:// URI.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("path is required")
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
		Body:   data,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", path, err)
	}
	s.logger.Debug("stored object", zap.String("bucket", s.bucket), zap.String("key", path))
	return fmt.Sprintf("s3://%s/%s", s.bucket, path), nil
}
