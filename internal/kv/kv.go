// Package kv is the key-value boundary the ledger persists through. Keys
// hold whole JSON documents; callers that need read-modify-write go through
// Update so concurrent writers within one process are serialized per key.
package kv

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

type Store interface {
	// Get returns the stored value, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Update applies fn to the current value (nil when the key is absent)
	// and stores the result. Returning a nil value from fn leaves the key
	// unchanged. The read and write happen under a per-key lock.
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
}
