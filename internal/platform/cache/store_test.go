package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listing struct {
	Page  int      `json:"page"`
	Names []string `json:"names"`
}

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, time.Minute), mr
}

func TestFetchCachesAndReturnsIdenticalBytes(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	var calls int32
	loader := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return listing{Page: 1, Names: []string{"marvel", "dc"}}, nil
	}

	key := KeyFor("all_categories", map[string]any{"page": 1, "limit": 20})
	first, err := store.Fetch(ctx, "all_categories", key, loader)
	require.NoError(t, err)
	second, err := store.Fetch(ctx, "all_categories", key, loader)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.True(t, mr.Exists(key))
	members, err := mr.SMembers("idx:all_categories")
	require.NoError(t, err)
	assert.Equal(t, []string{key}, members)
	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestFetchJSONDecodes(t *testing.T) {
	store, _ := newTestStore(t)
	var got listing
	err := store.FetchJSON(context.Background(), "category_1", "category_1", &got, func(context.Context) (any, error) {
		return listing{Page: 2, Names: []string{"anime"}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, listing{Page: 2, Names: []string{"anime"}}, got)
}

func TestFetchDoesNotIndexEntityKeys(t *testing.T) {
	store, mr := newTestStore(t)
	_, err := store.Fetch(context.Background(), "funko_7", "funko_7", func(context.Context) (any, error) {
		return map[string]int{"id": 7}, nil
	})
	require.NoError(t, err)
	assert.True(t, mr.Exists("funko_7"))
	assert.False(t, mr.Exists("idx:funko_7"))
}

func TestFetchLoaderErrorIsNotCached(t *testing.T) {
	store, mr := newTestStore(t)
	boom := errors.New("db down")
	_, err := store.Fetch(context.Background(), "all_funkos", "all_funkos:1", func(context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("all_funkos:1"))
}

func TestFetchCollapsesConcurrentMisses(t *testing.T) {
	store, _ := newTestStore(t)
	var calls int32
	release := make(chan struct{})
	loader := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return listing{Page: 1}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Fetch(context.Background(), "all_funkos", "all_funkos:abc", loader)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(5))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestFetchSharedLoadSurvivesCallerCancel(t *testing.T) {
	store, mr := newTestStore(t)
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	loader := func(ctx context.Context) (any, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return listing{Page: 2}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := store.Fetch(ctx, "all_funkos", "all_funkos:abc", loader)
		first <- err
	}()
	<-started

	second := make(chan []byte, 1)
	go func() {
		raw, err := store.Fetch(context.Background(), "all_funkos", "all_funkos:abc", loader)
		assert.NoError(t, err)
		second <- raw
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)
	close(release)

	assert.JSONEq(t, `{"page":2,"names":null}`, string(<-second))
	assert.True(t, mr.Exists("all_funkos:abc"))
}

func TestInvalidateRemovesIndexedKeys(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	load := func(context.Context) (any, error) { return listing{}, nil }

	keyA := KeyFor("all_funkos", map[string]int{"page": 1})
	keyB := KeyFor("all_funkos", map[string]int{"page": 2})
	keyC := KeyFor("all_categories", map[string]int{"page": 1})
	for _, k := range []struct{ col, key string }{
		{"all_funkos", keyA}, {"all_funkos", keyB}, {"all_categories", keyC}, {"funko_1", "funko_1"},
	} {
		_, err := store.Fetch(ctx, k.col, k.key, load)
		require.NoError(t, err)
	}

	require.NoError(t, store.Invalidate(ctx, "funko_1", "all_funkos"))

	assert.False(t, mr.Exists(keyA))
	assert.False(t, mr.Exists(keyB))
	assert.False(t, mr.Exists("funko_1"))
	assert.False(t, mr.Exists("idx:all_funkos"))
	assert.True(t, mr.Exists(keyC))
}

func TestNilStorePassesThrough(t *testing.T) {
	var store *Store
	var got listing
	err := store.FetchJSON(context.Background(), "all_funkos", "k", &got, func(context.Context) (any, error) {
		return listing{Page: 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Page)
	assert.NoError(t, store.Invalidate(context.Background(), "all_funkos"))
	assert.NoError(t, store.Delete(context.Background(), "k"))
}

func TestKeyForIsStable(t *testing.T) {
	type params struct {
		Page  int    `json:"page"`
		Limit int    `json:"limit"`
		Sort  string `json:"sort"`
	}
	a := KeyFor("all_funkos", params{Page: 1, Limit: 20, Sort: "id:ASC"})
	b := KeyFor("all_funkos", params{Page: 1, Limit: 20, Sort: "id:ASC"})
	c := KeyFor("all_funkos", params{Page: 2, Limit: 20, Sort: "id:ASC"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "all_funkos:")
	assert.Equal(t, "funko_12", EntityKey("funko", int64(12)))
	assert.Equal(t, "category_abc", EntityKey("category", "abc"))
}

func TestMetricsCountHitsAndMisses(t *testing.T) {
	store, _ := newTestStore(t)
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	store.WithMetrics(m)

	load := func(context.Context) (any, error) { return 1, nil }
	for i := 0; i < 3; i++ {
		_, err := store.Fetch(context.Background(), "all_orders", "all_orders:x", load)
		require.NoError(t, err)
	}
	assert.Equal(t, float64(1), testutil.ToFloat64(m.misses.WithLabelValues("all_orders")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.hits.WithLabelValues("all_orders")))

	again, err := NewMetrics(reg)
	require.NoError(t, err)
	assert.Same(t, m.hits, again.hits)
}
