// Package directory mirrors live session summaries into Redis so other processes can list them.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"cardtable/backend/internal/session"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultPrefix starts the name of every process's hash. Each process owns
	// one hash, prefix:<uuid>, with one field per live session.
	DefaultPrefix = "cardtable:sessions"
	// DefaultTTL is how long a hash outlives its last heartbeat.
	DefaultTTL = 30 * time.Second
)

// hashClient is the subset of *redis.Client the directory uses.
type hashClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// Redis publishes summaries from a single goroutine. Pending updates are
// coalesced per session, so the latest state of each session always reaches
// Redis and a removal is never lost.
type Redis struct {
	client  hashClient
	prefix  string
	key     string
	ttl     time.Duration
	timeout time.Duration
	log     *logrus.Logger

	mu      sync.Mutex
	pending map[string]*session.Summary // nil removes the entry
	wake    chan struct{}
}

// Connect parses a redis:// URL and returns a client for it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewRedis creates a directory writing to a fresh hash under prefix. Call Run to start publishing.
func NewRedis(client hashClient, prefix string, logger *logrus.Logger) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Redis{
		client:  client,
		prefix:  prefix,
		key:     prefix + ":" + uuid.NewString(),
		ttl:     DefaultTTL,
		timeout: 2 * time.Second,
		log:     logger,
		pending: make(map[string]*session.Summary),
		wake:    make(chan struct{}, 1),
	}
}

// Key is the hash this process writes to.
func (r *Redis) Key() string { return r.key }

// Publish queues sum. It never blocks the caller.
func (r *Redis) Publish(sum session.Summary) {
	r.enqueue(sum.Name, &sum)
}

// Remove queues the deletion of a session.
func (r *Redis) Remove(name string) {
	r.enqueue(name, nil)
}

func (r *Redis) enqueue(name string, sum *session.Summary) {
	r.mu.Lock()
	r.pending[name] = sum
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run writes queued updates and keeps the hash alive until ctx is cancelled,
// then deletes the hash.
func (r *Redis) Run(ctx context.Context) {
	heartbeat := time.NewTicker(r.ttl / 3)
	defer heartbeat.Stop()
	defer r.clear(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.wake:
			if r.flush(ctx) {
				r.refresh(ctx)
			}
		case <-heartbeat.C:
			// Retries anything a failed flush put back.
			r.flush(ctx)
			r.refresh(ctx)
		}
	}
}

// flush writes every pending update and reports whether any write succeeded.
func (r *Redis) flush(ctx context.Context) bool {
	r.mu.Lock()
	batch := r.pending
	r.pending = make(map[string]*session.Summary, len(batch))
	r.mu.Unlock()

	wrote := false
	for name, sum := range batch {
		if err := r.write(ctx, name, sum); err != nil {
			r.log.WithError(err).WithField("session", name).Warn("directory update failed")
			r.requeue(name, sum)
			continue
		}
		wrote = true
	}
	return wrote
}

// requeue puts a failed update back unless a newer one arrived meanwhile.
func (r *Redis) requeue(name string, sum *session.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, newer := r.pending[name]; !newer {
		r.pending[name] = sum
	}
}

func (r *Redis) write(ctx context.Context, name string, sum *session.Summary) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if sum == nil {
		return r.client.HDel(ctx, r.key, name).Err()
	}
	raw, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, r.key, name, raw).Err()
}

func (r *Redis) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.Expire(ctx, r.key, r.ttl).Err(); err != nil {
		r.log.WithError(err).Warn("directory heartbeat failed")
	}
}

// clear deletes the hash. It runs after ctx is done, so it detaches from it.
func (r *Redis) clear(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		r.log.WithError(err).Warn("failed to remove directory entries")
		return
	}
	r.log.WithField("key", r.key).Info("directory entries removed")
}

// List returns every session mirrored by any live process, ordered by name.
func (r *Redis) List(ctx context.Context) ([]session.Summary, error) {
	keys, err := r.keys(ctx)
	if err != nil {
		return nil, err
	}

	var out []session.Summary
	for _, key := range keys {
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("read directory: %w", err)
		}
		for name, raw := range fields {
			var sum session.Summary
			if err := json.Unmarshal([]byte(raw), &sum); err != nil {
				r.log.WithError(err).WithField("session", name).Warn("skipping corrupt directory entry")
				continue
			}
			out = append(out, sum)
		}
	}
	if out == nil {
		out = []session.Summary{}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Redis) keys(ctx context.Context) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	seen := make(map[string]bool)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+":*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan directory: %w", err)
		}
		// SCAN may return a key more than once.
		for _, key := range keys {
			if !seen[key] {
				seen[key] = true
				out = append(out, key)
			}
		}
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}
