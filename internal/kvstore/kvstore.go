// Package kvstore abstracts the durable text storage the session store
// persists into. Values are opaque UTF-8 strings; serialization is the
// caller's concern.
package kvstore

import "context"

// Store is the persistence contract for session blobs. Get reports absence
// through the boolean instead of an error so callers can fall back to
// defaults without an error branch on every load.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	// SizeBytes sums the byte length of every stored key+value pair, for
	// quota accounting.
	SizeBytes(ctx context.Context) (int64, error)
}
