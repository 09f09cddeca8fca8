package cache

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
	fail bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errors.New("connection refused")
	}
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

type page struct {
	IDs      []string `json:"ids"`
	Degraded bool     `json:"degraded"`
}

func TestBuildKey(t *testing.T) {
	a := BuildKey("pollo  ajo", 10)
	if a != BuildKey(" pollo ajo ", 10) {
		t.Error("whitespace should not change the key")
	}
	if a == BuildKey("pollo ajo", 20) {
		t.Error("limit must be part of the key")
	}
	if a == BuildKey("ajo pollo", 10) {
		t.Error("term order must be part of the key")
	}
	if !strings.HasPrefix(a, keyPrefix) {
		t.Errorf("key %q missing prefix", a)
	}
}

func TestGetOrCompute(t *testing.T) {
	c := New[page](newMemStore(), time.Minute, nil, nil)
	ctx := context.Background()
	calls := 0
	compute := func() (page, error) {
		calls++
		return page{IDs: []string{"r1"}}, nil
	}

	v, hit, err := c.GetOrCompute(ctx, "pollo", 10, compute)
	if err != nil || hit || len(v.IDs) != 1 {
		t.Fatalf("first: v=%v hit=%v err=%v", v, hit, err)
	}
	v, hit, err = c.GetOrCompute(ctx, "pollo", 10, compute)
	if err != nil || !hit || v.IDs[0] != "r1" {
		t.Fatalf("second: v=%v hit=%v err=%v", v, hit, err)
	}
	if calls != 1 {
		t.Errorf("compute calls = %d, want 1", calls)
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 1 {
		t.Errorf("hits=%d misses=%d", hits, misses)
	}
}

func TestUncacheableValuesAreNotStored(t *testing.T) {
	c := New[page](newMemStore(), time.Minute, func(p page) bool { return !p.Degraded }, nil)
	ctx := context.Background()
	calls := 0
	compute := func() (page, error) {
		calls++
		return page{Degraded: true}, nil
	}
	for i := 0; i < 2; i++ {
		if _, hit, _ := c.GetOrCompute(ctx, "pollo", 10, compute); hit {
			t.Fatal("degraded page served from cache")
		}
	}
	if calls != 2 {
		t.Errorf("compute calls = %d, want 2", calls)
	}
}

func TestComputeErrorIsReturned(t *testing.T) {
	c := New[page](newMemStore(), time.Minute, nil, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "x", 1, func() (page, error) { return page{}, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestRedisFailureIsAMiss(t *testing.T) {
	store := newMemStore()
	store.fail = true
	c := New[page](store, time.Minute, nil, nil)
	if _, ok := c.Get(context.Background(), "pollo", 10); ok {
		t.Fatal("expected miss")
	}
}

func TestSingleflightCollapsesConcurrentMisses(t *testing.T) {
	c := New[page](newMemStore(), time.Minute, nil, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (page, error) {
		calls.Add(1)
		<-release
		return page{IDs: []string{"r1"}}, nil
	}

	var wg sync.WaitGroup
	results := make([]page, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _, _ = c.GetOrCompute(context.Background(), "tomate", 10, compute)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	if n := calls.Load(); n >= 5 {
		t.Errorf("compute calls = %d, want concurrent misses collapsed", n)
	}
	for i, r := range results {
		if len(r.IDs) != 1 || r.IDs[0] != "r1" {
			t.Errorf("caller %d got %v", i, r)
		}
	}
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	store.data["other:key"] = "x"
	c := New[page](store, time.Minute, nil, nil)
	ctx := context.Background()
	c.Set(ctx, "pollo", 10, page{IDs: []string{"r1"}})
	if err := c.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, "pollo", 10); ok {
		t.Error("entry survived invalidation")
	}
	if _, ok := store.data["other:key"]; !ok {
		t.Error("invalidation removed a foreign key")
	}
}
