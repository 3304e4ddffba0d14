// Package memory implements an in-process report archive for tests and the
// default development setup.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"labcore/internal/archive/object"
)

type entry struct {
	info object.Info
	data []byte
}

// Store keeps snapshots in a map guarded by a RWMutex.
type Store struct {
	mu    sync.RWMutex
	objs  map[string]entry
	nowFn func() time.Time
}

// New returns an empty archive.
func New() *Store {
	return &Store{objs: make(map[string]entry), nowFn: time.Now}
}

func (s *Store) Driver() object.Driver { return object.DriverMemory }

// Put stores body under key and fails when the key is taken.
func (s *Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("empty key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objs[key]; exists {
		return fmt.Errorf("%s: %w", key, object.ErrExists)
	}
	sum := sha256.Sum256(body)
	s.objs[key] = entry{
		info: object.Info{
			Key:          key,
			Size:         int64(len(body)),
			ContentType:  contentType,
			ETag:         hex.EncodeToString(sum[:]),
			LastModified: s.nowFn().UTC(),
		},
		data: append([]byte(nil), body...),
	}
	return nil
}

// Get returns a copy of the stored bytes.
func (s *Store) Get(_ context.Context, key string) (object.Info, []byte, error) {
	s.mu.RLock()
	obj, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return object.Info{}, nil, fmt.Errorf("%s: %w", key, object.ErrNotFound)
	}
	return obj.info, append([]byte(nil), obj.data...), nil
}

// List returns snapshots whose key starts with prefix, sorted by key.
func (s *Store) List(_ context.Context, prefix string) ([]object.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]object.Info, 0, len(s.objs))
	for k, obj := range s.objs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, obj.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
