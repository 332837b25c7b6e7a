package store

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/giftswap/internal/bucket"
	"github.com/Iron-Ham/giftswap/internal/config"
)

// Open builds the backend selected by cfg. The returned close function
// releases backend resources and is never nil.
func Open(ctx context.Context, cfg config.StoreConfig, opts ...Option) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendFile, "":
		s, err := NewFileStore(cfg.File.Path, opts...)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case config.BackendSQLite:
		b, err := bucket.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, noop, err
		}
		s, err := NewObjectStore(b, cfg.SQLite.Key, opts...)
		if err != nil {
			_ = b.Close()
			return nil, noop, err
		}
		return s, b.Close, nil

	case config.BackendS3:
		b, err := bucket.NewS3FromConfig(ctx, bucket.S3Options{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
			Conditional:  cfg.S3.ConditionalWrites,
		})
		if err != nil {
			return nil, noop, err
		}
		s, err := NewObjectStore(b, cfg.S3.Key, opts...)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case config.BackendMemory:
		s, err := NewObjectStore(bucket.NewMemory(), "state", opts...)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
