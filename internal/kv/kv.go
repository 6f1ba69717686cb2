// Package kv provides a small durable key-value port with in-memory and
// Redis implementations. The pending-invite slot is its main consumer:
// one string value per well-known key, overwritten on every write.
package kv

import "context"

// Store is the key-value port. Implementations must treat Set as a full
// replace of any prior value.
type Store interface {
	// Get returns the value at key and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores the value at key, replacing any prior value.
	Set(ctx context.Context, key, value string) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
