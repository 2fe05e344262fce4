// Package redislock provides a scheduler.Locker backed by Redis so that several
// scheduler processes sharing one database serialise bookings of the same resource.
package redislock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/event-booking/internal/scheduler"
)

const (
	defaultTTL       = 10 * time.Second
	defaultRetry     = 25 * time.Millisecond
	defaultKeyPrefix = "booking-lock:"
)

// releaseScript deletes the key only while it still carries our token, so an
// expired lock re-acquired by another process is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Options tunes lock behaviour.
type Options struct {
	// TTL bounds how long a crashed holder can block a resource.
	TTL time.Duration
	// RetryInterval is the polling delay while a key is held elsewhere.
	RetryInterval time.Duration
	// KeyPrefix namespaces lock keys.
	KeyPrefix string
	Logger    *slog.Logger
}

// Locker implements scheduler.Locker with SET NX PX.
type Locker struct {
	client redis.UniversalClient
	opts   Options
}

var _ scheduler.Locker = (*Locker)(nil)

// New constructs a Locker using client.
func New(client redis.UniversalClient, opts Options) *Locker {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetry
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = defaultKeyPrefix
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Locker{client: client, opts: opts}
}

// Lock acquires every key in sorted order, waiting until ctx ends.
func (l *Locker) Lock(ctx context.Context, keys ...scheduler.Key) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, errors.New("redislock: client not configured")
	}

	token, err := newToken()
	if err != nil {
		return func() {}, err
	}

	ordered := scheduler.SortKeys(keys)
	acquired := make([]string, 0, len(ordered))

	release := func() {
		// The request context may already be cancelled; releasing must still happen.
		ctx, cancel := context.WithTimeout(context.Background(), l.opts.TTL)
		defer cancel()
		for i := len(acquired) - 1; i >= 0; i-- {
			if err := releaseScript.Run(ctx, l.client, []string{acquired[i]}, token).Err(); err != nil {
				l.opts.Logger.Warn("failed to release booking lock", "key", acquired[i], "error", err)
			}
		}
	}

	for _, key := range ordered {
		name := l.opts.KeyPrefix + key.String()
		if err := l.acquire(ctx, name, token); err != nil {
			release()
			return func() {}, err
		}
		acquired = append(acquired, name)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (l *Locker) acquire(ctx context.Context, name, token string) error {
	ticker := time.NewTicker(l.opts.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, name, token, l.opts.TTL).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("redislock: acquire %s: %w", name, err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("redislock: token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
