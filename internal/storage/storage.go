// Package storage persists uploaded images and serves them back under the
// canonical /static/uploads/<file> URL regardless of backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/iliyamo/car-marketplace/internal/config"
)

const (
	// TypeLocal stores files on the local filesystem.
	TypeLocal = "local"
	// TypeS3 stores files in Amazon S3 or a compatible service.
	TypeS3 = "s3"
)

// ErrNotFound is returned by Open for an unknown file.
var ErrNotFound = errors.New("file not found")

// Storage saves and reads back flat, uniquely named files.
type Storage interface {
	// Save stores data under a unique name derived from original and
	// returns that name (no directory part).
	Save(ctx context.Context, data []byte, original string) (string, error)
	// Open streams a stored file. The caller closes the reader.
	Open(ctx context.Context, name string) (io.ReadCloser, string, error)
}

// New instantiates the backend selected by cfg.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", TypeLocal:
		s, err := NewLocalStorage(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case TypeS3:
		s, err := NewS3Storage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
