// Package stateprovider implements the pluggable State Provider
// contract from spec.md §4.8: save/load/delete/exists/list_keys over an
// opaque key, with no cross-process atomicity guarantee (single-writer
// assumed). Grounded on the teacher's pkg/checkpoint (one-JSON-file-
// per-key, MkdirAll/WriteFile idiom) generalized from checkpoint-shaped
// records to an arbitrary byte payload, plus a Redis-backed and a
// SQLite-backed implementation for the domain-stack wiring spec_full §4
// calls for.
package stateprovider

import "context"

// Provider is the State Provider contract. Keys are opaque strings
// (e.g. "session:<id>", "session_state_<id>"); values are whatever the
// caller already serialized to bytes (typically JSON).
type Provider interface {
	Save(ctx context.Context, key string, value []byte) error
	Load(ctx context.Context, key string) ([]byte, error) // nil, nil if absent
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}
