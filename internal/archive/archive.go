// Package archive selects and constructs the report snapshot store.
package archive

import (
	"context"
	"fmt"
	"strings"

	"labcore/internal/archive/fs"
	"labcore/internal/archive/memory"
	"labcore/internal/archive/object"
	"labcore/internal/archive/s3"
)

type (
	// Driver identifies an archive backend.
	Driver = object.Driver
	// Info describes a stored snapshot.
	Info = object.Info
	// Store is implemented by every backend.
	Store = object.Store
)

const (
	DriverMemory     = object.DriverMemory
	DriverFilesystem = object.DriverFilesystem
	DriverS3         = object.DriverS3
)

var (
	ErrExists   = object.ErrExists
	ErrNotFound = object.ErrNotFound
)

// Config selects a backend. An empty Driver disables archiving.
type Config struct {
	Driver Driver
	FSRoot string
	S3     s3.Config
}

// Open builds the configured store. It returns (nil, nil) when archiving is
// disabled so callers can skip wiring it.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(string(cfg.Driver)))) {
	case "", "none":
		return nil, nil
	case DriverMemory:
		return memory.New(), nil
	case DriverFilesystem:
		store, err := fs.New(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverS3:
		store, err := s3.New(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}
