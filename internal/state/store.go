package state

import "context"

// Store is a tiny durable kv surface. It backs the exchange nonce sequence;
// no client-id to order-id mapping is kept in it, and nothing else is
// persisted across restarts.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
