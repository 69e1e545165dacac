// Package kv is a small namespaced key-value store for device settings.
package kv

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("store is closed")

// Store persists string values under a namespace and key.
type Store interface {
	// Get returns the value for key, with ok false when it is absent.
	Get(ctx context.Context, namespace, key string) (value string, ok bool, err error)
	// SetMany writes all pairs atomically and commits before returning.
	SetMany(ctx context.Context, namespace string, pairs map[string]string) error
}
