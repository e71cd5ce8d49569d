// Package storage defines the persistence port used by the memory store and
// the offline queue, plus the in-process implementations of it.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	coreerrors "github.com/adalundhe/parley/core/errors"
)

// ErrNotFound is returned by Backend.Get for a missing key.
var ErrNotFound = errors.New("storage: key not found")

// Backend is a minimal document store. Implementations must be safe for
// concurrent use. Keys returns keys in ascending order.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// UserScope is the key segment for userID's records. Anonymous users share
// "guest"; named users are prefixed so no id can collide with it.
func UserScope(userID string) string {
	if userID == "" {
		return "guest"
	}
	return "user:" + userID
}

// Unavailable wraps a backend failure as a StorageUnavailable error.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if coreerrors.IsKind(err, coreerrors.KindStorageUnavailable) {
		return err
	}
	return coreerrors.Wrap(coreerrors.KindStorageUnavailable, "storage "+op, err)
}

// GetJSON loads key into v. found is false when the key does not exist.
func GetJSON(ctx context.Context, b Backend, key string, v any) (found bool, err error) {
	raw, err := b.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, Unavailable("get", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, b Backend, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := b.Set(ctx, key, raw); err != nil {
		return Unavailable("set", err)
	}
	return nil
}
