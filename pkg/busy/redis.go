package busy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const (
	DefaultRedisPrefix = "ggrc:busy:"
	DefaultRedisTTL    = 5 * time.Minute
)

// releaseScript deletes the key only when it still holds the lease token,
// so an expired and re-acquired lock is never released by its previous owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry of a key still holding the lease token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a Guard shared by every process using the same Redis. A held
// key is extended every TTL/3 until its lease is released, so only a
// crashed holder lets it expire.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

type RedisOption func(*Redis)

func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: DefaultRedisPrefix,
		ttl:    DefaultRedisTTL,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// NewRedisFromURL parses a redis:// URL and returns a guard backed by it.
func NewRedisFromURL(url string, opts ...RedisOption) (*Redis, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return NewRedis(redis.NewClient(options), opts...), nil
}

func (r *Redis) TryAcquire(ctx context.Context, key string) (Lease, error) {
	lease := &redisLease{
		guard: r,
		key:   key,
		token: uuid.New().String(),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	acquired, err := r.client.SetNX(ctx, r.prefix+key, lease.token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire busy key %s: %w", key, err)
	}

	if !acquired {
		return nil, nil
	}

	go lease.keepAlive()

	return lease, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

type redisLease struct {
	guard *Redis
	key   string
	token string

	stop chan struct{}
	done chan struct{}

	once sync.Once
	err  error
}

func (l *redisLease) Key() string {
	return l.key
}

func (l *redisLease) keepAlive() {
	defer close(l.done)

	ticker := time.NewTicker(max(l.guard.ttl/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			held, err := extendScript.Run(context.Background(), l.guard.client,
				[]string{l.guard.prefix + l.key}, l.token, l.guard.ttl.Milliseconds()).Int()
			if err == nil && held == 0 {
				return
			}
		}
	}
}

func (l *redisLease) Release(ctx context.Context) error {
	l.once.Do(func() {
		close(l.stop)
		<-l.done

		err := releaseScript.Run(ctx, l.guard.client, []string{l.guard.prefix + l.key}, l.token).Err()
		if err != nil {
			l.err = fmt.Errorf("failed to release busy key %s: %w", l.key, err)
		}
	})

	return l.err
}
