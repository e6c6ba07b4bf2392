package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	dErrors "vericore/pkg/domain-errors"
)

// Tx is the transactional boundary for a read-check-write on one record.
// Postgres wraps a database transaction; in memory it is a lock per record shard.
type Tx interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// TxFunc adapts a plain function, e.g. postgres.RunInTx bound to a *sql.DB.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

func (f TxFunc) RunInTx(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

const (
	numRecordShards     = 64
	defaultRecordTxWait = 5 * time.Second
)

// ShardedTx serializes mutations of the same record without a global lock.
type ShardedTx struct {
	shards  [numRecordShards]sync.Mutex
	timeout time.Duration
}

func NewShardedTx() *ShardedTx {
	return &ShardedTx{timeout: defaultRecordTxWait}
}

func (t *ShardedTx) RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := &t.shards[shardFor(key)]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

func shardFor(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % numRecordShards
}
