// Package storage defines the persisted key/value store that outlives a single
// request and is the only synchronization point between entry paths.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("storage: key not found")

// UpdateFunc receives the current value (found=false when absent) and returns the
// value to write. Returning a nil slice leaves the stored value untouched.
type UpdateFunc func(current []byte, found bool) ([]byte, error)

// Store is a key/value store. Implementations must run Update as a single
// linearizable read-modify-write so that concurrent callers in different
// requests observe a consistent order.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
	// Scan calls fn for every key starting with prefix, in key order.
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
}

const sessionPrefix = "sess/"

// Scope returns a view of s whose keys live under the given session.
func Scope(s Store, sessionID string) Store {
	return &scoped{inner: s, prefix: sessionPrefix + sessionID + "/"}
}

// SplitSessionKey undoes the key layout used by Scope.
func SplitSessionKey(key string) (sessionID, rest string, ok bool) {
	if !strings.HasPrefix(key, sessionPrefix) {
		return "", "", false
	}
	sessionID, rest, ok = strings.Cut(strings.TrimPrefix(key, sessionPrefix), "/")
	if !ok || sessionID == "" {
		return "", "", false
	}
	return sessionID, rest, true
}

// SessionPrefix is the prefix shared by every session-scoped key.
func SessionPrefix() string {
	return sessionPrefix
}

type scoped struct {
	inner  Store
	prefix string
}

func (s *scoped) Get(ctx context.Context, key string) ([]byte, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key string, value []byte) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *scoped) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

func (s *scoped) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return s.inner.Update(ctx, s.prefix+key, fn)
}

func (s *scoped) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	return s.inner.Scan(ctx, s.prefix+prefix, func(key string, value []byte) error {
		return fn(strings.TrimPrefix(key, s.prefix), value)
	})
}

// GetJSON loads and decodes the value at key. found is false when it is absent.
func GetJSON[T any](ctx context.Context, s Store, key string) (v T, found bool, err error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

// PutJSON encodes v and stores it at key.
func PutJSON[T any](ctx context.Context, s Store, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// UpdateJSON runs fn inside Store.Update on the decoded value. fn reports whether
// the returned value should be written.
func UpdateJSON[T any](ctx context.Context, s Store, key string, fn func(cur T, found bool) (next T, write bool, err error)) error {
	return s.Update(ctx, key, func(current []byte, found bool) ([]byte, error) {
		var cur T
		if found {
			if err := json.Unmarshal(current, &cur); err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}
		}
		next, write, err := fn(cur, found)
		if err != nil || !write {
			return nil, err
		}
		raw, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		return raw, nil
	})
}
