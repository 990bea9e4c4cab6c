package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"cardtable/backend/internal/session"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryHash stands in for a Redis server.
type memoryHash struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	ttls    map[string]time.Duration
	expires int
	failing bool
}

func newMemoryHash() *memoryHash {
	return &memoryHash{
		hashes: map[string]map[string]string{},
		ttls:   map[string]time.Duration{},
	}
}

var errDown = errors.New("connection refused")

func (m *memoryHash) HSet(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return redis.NewIntResult(0, errDown)
	}
	fields, ok := m.hashes[key]
	if !ok {
		fields = map[string]string{}
		m.hashes[key] = fields
	}
	for i := 0; i+1 < len(values); i += 2 {
		fields[values[i].(string)] = string(values[i+1].([]byte))
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (m *memoryHash) HDel(_ context.Context, key string, fields ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return redis.NewIntResult(0, errDown)
	}
	for _, f := range fields {
		delete(m.hashes[key], f)
	}
	if len(m.hashes[key]) == 0 {
		delete(m.hashes, key)
	}
	return redis.NewIntResult(int64(len(fields)), nil)
}

func (m *memoryHash) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return redis.NewMapStringStringResult(out, nil)
}

func (m *memoryHash) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires++
	if _, ok := m.hashes[key]; !ok {
		return redis.NewBoolResult(false, nil)
	}
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *memoryHash) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := m.hashes[key]; ok {
			n++
		}
		delete(m.hashes, key)
		delete(m.ttls, key)
	}
	return redis.NewIntResult(n, nil)
}

// Scan returns one key per page to exercise the cursor loop.
func (m *memoryHash) Scan(_ context.Context, cursor uint64, match string, _ int64) *redis.ScanCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(match, "*")
	var keys []string
	for key := range m.hashes {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if int(cursor) >= len(keys) {
		return redis.NewScanCmdResult(nil, 0, nil)
	}
	next := cursor + 1
	if int(next) == len(keys) {
		next = 0
	}
	return redis.NewScanCmdResult([]string{keys[cursor]}, next, nil)
}

func (m *memoryHash) hasKey(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.hashes[key]
	return ok
}

func (m *memoryHash) setFailing(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = v
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// run starts dir and returns a stop func that waits for Run to return.
func run(t *testing.T, dir *Redis) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dir.Run(ctx)
		close(done)
	}()
	stop = func() {
		cancel()
		<-done
	}
	t.Cleanup(stop)
	return stop
}

func names(dir *Redis) []string {
	list, err := dir.List(context.Background())
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.Name)
	}
	return out
}

func TestPublishAndRemove(t *testing.T) {
	store := newMemoryHash()
	dir := NewRedis(store, "", quietLogger())
	assert.True(t, strings.HasPrefix(dir.Key(), DefaultPrefix+":"))
	run(t, dir)

	dir.Publish(session.Summary{Name: "foo", Game: "duel", Host: "alice", Players: 1, Version: 1})
	dir.Publish(session.Summary{Name: "bar", Game: "duel", Host: "bob", Players: 1, Version: 1})
	dir.Publish(session.Summary{Name: "foo", Game: "duel", Host: "alice", Players: 2, Version: 2})
	dir.Remove("bar")

	require.Eventually(t, func() bool {
		list, err := dir.List(context.Background())
		return err == nil && len(list) == 1 && list[0].Version == 2
	}, time.Second, 5*time.Millisecond)

	list, err := dir.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.Summary{Name: "foo", Game: "duel", Host: "alice", Players: 2, Version: 2}, list[0])
}

func TestRemoveIsNeverDropped(t *testing.T) {
	store := newMemoryHash()
	dir := NewRedis(store, "", quietLogger())

	// Far more updates than any fixed queue would hold, queued before the writer starts.
	for i := 0; i < 2000; i++ {
		dir.Publish(session.Summary{Name: fmt.Sprintf("s%04d", i), Version: 1})
	}
	for i := 0; i < 2000; i++ {
		if i != 1999 {
			dir.Remove(fmt.Sprintf("s%04d", i))
		}
	}
	run(t, dir)

	require.Eventually(t, func() bool {
		got := names(dir)
		return len(got) == 1 && got[0] == "s1999"
	}, time.Second, 5*time.Millisecond)
}

func TestFailedWritesAreRetried(t *testing.T) {
	store := newMemoryHash()
	store.setFailing(true)
	dir := NewRedis(store, "", quietLogger())
	dir.ttl = 30 * time.Millisecond
	run(t, dir)

	dir.Publish(session.Summary{Name: "foo", Version: 1})
	dir.Publish(session.Summary{Name: "bar", Version: 1})
	time.Sleep(20 * time.Millisecond)
	// A newer update queued while the write was failing wins over the retry.
	dir.Remove("bar")
	store.setFailing(false)

	require.Eventually(t, func() bool {
		got := names(dir)
		return len(got) == 1 && got[0] == "foo"
	}, time.Second, 5*time.Millisecond)
}

func TestHeartbeatRefreshesTTL(t *testing.T) {
	store := newMemoryHash()
	dir := NewRedis(store, "", quietLogger())
	dir.ttl = 30 * time.Millisecond
	run(t, dir)

	dir.Publish(session.Summary{Name: "foo", Version: 1})

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.expires >= 3 && store.ttls[dir.Key()] == 30*time.Millisecond
	}, time.Second, 5*time.Millisecond)
}

func TestRunDeletesHashOnCancel(t *testing.T) {
	store := newMemoryHash()
	dir := NewRedis(store, "", quietLogger())
	stop := run(t, dir)

	dir.Publish(session.Summary{Name: "foo", Version: 1})
	require.Eventually(t, func() bool { return store.hasKey(dir.Key()) }, time.Second, 5*time.Millisecond)

	stop()
	assert.False(t, store.hasKey(dir.Key()))
}

func TestListMergesProcesses(t *testing.T) {
	store := newMemoryHash()
	first := NewRedis(store, "", quietLogger())
	second := NewRedis(store, "", quietLogger())
	require.NotEqual(t, first.Key(), second.Key())

	// Another application's keys are not listed.
	store.hashes["other:sessions"] = map[string]string{"x": `{"name":"x"}`}

	stopFirst := run(t, first)
	run(t, second)

	first.Publish(session.Summary{Name: "b", Version: 1})
	second.Publish(session.Summary{Name: "a", Version: 1})
	second.Publish(session.Summary{Name: "c", Version: 1})

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"a", "b", "c"}, names(second))
	}, time.Second, 5*time.Millisecond)

	// A process shutting down takes its sessions with it.
	stopFirst()
	assert.Equal(t, []string{"a", "c"}, names(second))
}

func TestListSkipsCorruptEntries(t *testing.T) {
	store := newMemoryHash()
	dir := NewRedis(store, DefaultPrefix, quietLogger())
	store.hashes[dir.Key()] = map[string]string{
		"b":   `{"name":"b","game":"duel","players":1}`,
		"a":   `{"name":"a","game":"duel","players":3}`,
		"bad": `{`,
	}

	list, err := dir.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, 3, list[0].Players)
}

func TestListEmpty(t *testing.T) {
	dir := NewRedis(newMemoryHash(), "", quietLogger())

	list, err := dir.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestPublishNeverBlocks(t *testing.T) {
	dir := NewRedis(newMemoryHash(), "", quietLogger())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			dir.Publish(session.Summary{Name: "foo", Version: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked without a running writer")
	}
}
