package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/timmy/stylematch/internal/config"
)

// StorageType names a storage backend.
type StorageType string

const (
	StorageTypeLocal        StorageType = "local"
	StorageTypeR2           StorageType = "r2"
	StorageTypeS3           StorageType = "s3"
	StorageTypeS3Compatible StorageType = "s3compatible"
	StorageTypeMinIO        StorageType = "minio"
)

// NewStorage creates the configured backend and makes sure its bucket exists.
func NewStorage(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch StorageType(cfg.Type) {
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.LocalDir, cfg.PublicURL)
	case StorageTypeMinIO:
		s, err := NewMinIOStorage(cfg)
		if err != nil {
			return nil, err
		}
		return s, s.EnsureBucket(ctx)
	case StorageTypeS3, StorageTypeR2, StorageTypeS3Compatible:
		t := StorageType(cfg.Type)
		if t == StorageTypeS3 && !strings.Contains(strings.ToLower(cfg.Endpoint), "amazonaws.com") && cfg.Endpoint != "" {
			t = detectStorageType(cfg.Endpoint)
		}
		s, err := NewS3Storage(ctx, cfg, t)
		if err != nil {
			return nil, err
		}
		return s, s.EnsureBucket(ctx)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}

// detectStorageType guesses the flavor of an S3-compatible endpoint.
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
