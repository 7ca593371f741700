// Package storage selects the blob store that receives downloaded PDFs and
// cover images. The importer only sees nepjol.BlobStore, so the backend can
// be swapped through configuration.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
	"github.com/JakeFAU/nepjol-importer/internal/storage/gcs"
	"github.com/JakeFAU/nepjol-importer/internal/storage/local"
	"github.com/JakeFAU/nepjol-importer/internal/storage/memory"
	"github.com/JakeFAU/nepjol-importer/internal/storage/s3"
)

// Supported backends.
const (
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendS3     = "s3"
)

// Config picks a backend and carries the settings each one needs.
type Config struct {
	Backend   string
	BaseDir   string
	GCSBucket string
	S3        s3.Config
}

// Provider is an opened blob store plus whatever must be released on
// shutdown.
type Provider struct {
	nepjol.BlobStore
	closer func() error
}

// Close releases backend clients. It is safe to call on every backend.
func (p *Provider) Close() error {
	if p == nil || p.closer == nil {
		return nil
	}
	return p.closer()
}

// Open builds the configured backend.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case "", BackendMemory:
		return &Provider{BlobStore: memory.NewBlobStore()}, nil
	case BackendLocal:
		store, err := local.New(local.Config{BaseDir: cfg.BaseDir}, logger)
		if err != nil {
			return nil, fmt.Errorf("open local blob store: %w", err)
		}
		return &Provider{BlobStore: store}, nil
	case BackendGCS:
		store, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.GCSBucket}, logger)
		if err != nil {
			return nil, fmt.Errorf("open gcs blob store: %w", err)
		}
		return &Provider{BlobStore: store, closer: store.Close}, nil
	case BackendS3:
		store, err := s3.Open(ctx, cfg.S3, logger)
		if err != nil {
			return nil, fmt.Errorf("open s3 blob store: %w", err)
		}
		return &Provider{BlobStore: store}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
