package db

import (
	"context"
	"time"
)

// Store is the key-value database facade combining all sub-interfaces.
type Store interface {
	Pinger
	KVStore
	SortedSetStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides the key-value operations of an append-only store.
type KVStore interface {
	// MGet returns values in key order; missing keys yield nil entries.
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	// SetNX stores value only if key does not exist. Returns false when the key was already present.
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
}

// ScoreRange is an inclusive score interval. Nil bounds are open (-inf / +inf).
type ScoreRange struct {
	Min *int64
	Max *int64
}

// Bounds builds a closed range [lo, hi].
func Bounds(lo, hi int64) ScoreRange { return ScoreRange{Min: &lo, Max: &hi} }

// From builds a range [lo, +inf).
func From(lo int64) ScoreRange { return ScoreRange{Min: &lo} }

// SortedSetStore provides sorted-set index operations (score = unix millis).
type SortedSetStore interface {
	// ZAddAll adds member to every set in keys atomically.
	ZAddAll(ctx context.Context, keys []string, score int64, member string) error
	ZRangeByScore(ctx context.Context, key string, r ScoreRange) ([]string, error)
	ZCount(ctx context.Context, key string, r ScoreRange) (int, error)
}
