// Package memory is an in-process Store, used in tests and single-node dev runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cimillas/checkin-pay/internal/storage"
)

type Store struct {
	mu   sync.Mutex
	data map[string][]byte
}

func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(v), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = clone(value)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) Update(_ context.Context, key string, fn storage.UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, found := s.data[key]
	next, err := fn(clone(cur), found)
	if err != nil {
		return err
	}
	if next != nil {
		s.data[key] = clone(next)
	}
	return nil
}

func (s *Store) Scan(_ context.Context, prefix string, fn func(key string, value []byte) error) error {
	// Snapshot first so fn may call back into the store.
	s.mu.Lock()
	keys := make([]string, 0, len(s.data))
	values := make(map[string][]byte)
	for k, v := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
			values[k] = clone(v)
		}
	}
	s.mu.Unlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := fn(k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

// Clear drops every key, like a browser discarding session storage.
func (s *Store) Clear() {
	s.mu.Lock()
	s.data = make(map[string][]byte)
	s.mu.Unlock()
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ storage.Store = (*Store)(nil)
