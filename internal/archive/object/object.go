// Package object defines the shared contract of report archive backends.
package object

import (
	"context"
	"errors"
	"time"
)

// Driver identifies an archive backend.
type Driver string

const (
	DriverMemory     Driver = "memory"
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

var (
	// ErrExists is returned when a key is written twice. Snapshots are immutable.
	ErrExists = errors.New("archive object already exists")
	// ErrNotFound is returned for unknown keys.
	ErrNotFound = errors.New("archive object not found")
)

// Info describes a stored snapshot.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is implemented by every archive backend. Put is create-only.
type Store interface {
	Driver() Driver
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) (Info, []byte, error)
	List(ctx context.Context, prefix string) ([]Info, error)
}
