package service

import (
	"context"

	dErrors "prereg/pkg/domain-errors"
)

// numShards bounds the lock table. Keys that hash to the same shard
// serialize; distinct keys usually proceed in parallel.
const numShards = 128

// ShardedTx serializes in-memory transactions per key. Shards are one-slot
// channels rather than mutexes so lock waits can give up when ctx is done.
// Deadlines come from the caller's ctx.
type ShardedTx struct {
	shards [numShards]chan struct{}
	store  Store
}

func NewShardedTx(store Store) *ShardedTx {
	t := &ShardedTx{store: store}
	for i := range t.shards {
		t.shards[i] = make(chan struct{}, 1)
	}
	return t
}

func (t *ShardedTx) RunInTx(ctx context.Context, key string, fn func(ctx context.Context, store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	shard := t.shards[hashKey(key)%numShards]
	select {
	case shard <- struct{}{}:
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "transaction aborted: lock wait exceeded deadline")
	}
	defer func() { <-shard }()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx, t.store)
}

// hashKey is FNV-1a.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
