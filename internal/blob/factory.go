package blob

import (
	"context"
	"fmt"

	"jobsdashboard/internal/config"
	"jobsdashboard/internal/infra/blob/fs"
	"jobsdashboard/internal/infra/blob/memory"
	"jobsdashboard/internal/infra/blob/s3"
)

// Open selects a Store implementation from cfg. An empty driver means fs.
func Open(ctx context.Context, cfg config.Blob) (Store, error) {
	driver := Driver(cfg.Driver)
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(cfg.Root)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			PathStyle:       cfg.PathStyle,
			AccessKeyID:     cfg.AccessKey,
			SecretAccessKey: cfg.SecretKey,
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewFilesystem constructs a filesystem-backed Store rooted at root.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}

// NewMemory returns an in-memory Store.
func NewMemory() Store { return memory.New() }

// S3Config re-exports the S3 driver configuration.
type S3Config = s3.Config

// NewS3 constructs an S3-backed Store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return s3.New(ctx, cfg)
}

// NewMockS3 returns an S3 store whose requests are served by an in-process
// fake bucket. It exercises the real SDK request path without a network.
func NewMockS3() Store {
	s, _ := s3.NewMock()
	return s
}
