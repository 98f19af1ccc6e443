package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var nopLogger = zap.NewNop()

// RedisOptions configures a Redis-backed Store.
type RedisOptions struct {
	// Client cannot be nil.
	Client redis.Cmdable

	// ClientCloser closes Client when Redis.Close is called. Optional.
	ClientCloser io.Closer

	// ClientTimeout bounds each read and write. Default is one second.
	ClientTimeout time.Duration

	// Prefix namespaces keys so multiple stores can share one database.
	Prefix string

	// TTL is the server-side expiry for stored entries. Default is five
	// minutes.
	TTL time.Duration

	// Logger receives backend failure warnings. A nil Logger disables
	// logging.
	Logger *zap.Logger
}

func (opts *RedisOptions) init() error {
	if opts.Client == nil {
		return errors.New("cache: nil redis client")
	}
	if opts.ClientTimeout <= 0 {
		opts.ClientTimeout = time.Second
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
	return nil
}

// Redis is a Store backed by a Redis database, for deployments where
// multiple verifier processes share resolution and reachability state.
// Values are stored as JSON; expiry is enforced server-side.
type Redis[V any] struct {
	opts RedisOptions
}

// NewRedis creates a Redis-backed store.
func NewRedis[V any](opts RedisOptions) (*Redis[V], error) {
	if err := opts.init(); err != nil {
		return nil, err
	}
	return &Redis[V]{opts: opts}, nil
}

// Get fetches and decodes the value for key. Backend and decode failures
// are logged and reported as a miss.
func (r *Redis[V]) Get(key string) (V, bool) {
	var zero V

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.ClientTimeout)
	defer cancel()

	b, err := r.opts.Client.Get(ctx, r.opts.Prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.opts.Logger.Warn("redis get", zap.String("key", key), zap.Error(err))
		}
		return zero, false
	}

	var v V
	if err := json.Unmarshal(b, &v); err != nil {
		r.opts.Logger.Warn("redis value decode", zap.String("key", key), zap.Error(err))
		return zero, false
	}
	return v, true
}

// Set encodes and stores the value for key with the configured TTL.
// Failures are logged and dropped.
func (r *Redis[V]) Set(key string, v V) {
	b, err := json.Marshal(v)
	if err != nil {
		r.opts.Logger.Warn("redis value encode", zap.String("key", key), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.ClientTimeout)
	defer cancel()

	if err := r.opts.Client.Set(ctx, r.opts.Prefix+key, b, r.opts.TTL).Err(); err != nil {
		r.opts.Logger.Warn("redis set", zap.String("key", key), zap.Error(err))
	}
}

// Len returns the size of the backing database, not just this store's
// prefix. Diagnostic only.
func (r *Redis[V]) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.ClientTimeout)
	defer cancel()

	n, err := r.opts.Client.DBSize(ctx).Result()
	if err != nil {
		r.opts.Logger.Warn("redis dbsize", zap.Error(err))
		return 0
	}
	return int(n)
}

// Close closes the underlying client if a closer was supplied.
func (r *Redis[V]) Close() error {
	if c := r.opts.ClientCloser; c != nil {
		return c.Close()
	}
	return nil
}
