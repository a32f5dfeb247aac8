package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// loadTimeout bounds a shared loader, which outlives the caller that started it.
const loadTimeout = 30 * time.Second

// Loader produces the value to cache on a miss.
type Loader func(context.Context) (any, error)

// Store is a cache-aside helper over Redis. Listing keys are registered in a per-collection
// set so a collection can be invalidated without scanning the keyspace.
type Store struct {
	client  redis.UniversalClient
	ttl     time.Duration
	metrics *Metrics
	group   singleflight.Group
}

// NewStore builds a Store. A nil client yields a pass-through store.
func NewStore(client redis.UniversalClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Store{client: client, ttl: ttl}
}

// WithMetrics attaches hit/miss collectors.
func (s *Store) WithMetrics(m *Metrics) *Store {
	if s != nil {
		s.metrics = m
	}
	return s
}

// TTL reports the expiry applied to cached entries.
func (s *Store) TTL() time.Duration {
	if s == nil {
		return 0
	}
	return s.ttl
}

func (s *Store) enabled() bool {
	return s != nil && s.client != nil
}

// Fetch returns the cached bytes under key, or runs loader, stores its JSON encoding and returns it.
// When key differs from collection it is added to the collection index.
func (s *Store) Fetch(ctx context.Context, collection, key string, loader Loader) ([]byte, error) {
	if loader == nil {
		return nil, errors.New("platform/cache: loader required")
	}
	if !s.enabled() {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(value)
	}

	payload, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		s.metrics.hit(collection)
		return payload, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("platform/cache: get %s: %w", key, err)
	}
	s.metrics.miss(collection)

	ch := s.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		started := time.Now()
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		s.metrics.observeLoad(collection, time.Since(started))
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("platform/cache: encode %s: %w", key, err)
		}
		if err := s.store(ctx, collection, key, raw); err != nil {
			return nil, err
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// FetchJSON is Fetch decoding the result into dest.
func (s *Store) FetchJSON(ctx context.Context, collection, key string, dest any, loader Loader) error {
	raw, err := s.Fetch(ctx, collection, key, loader)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (s *Store) store(ctx context.Context, collection, key string, raw []byte) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, raw, s.ttl)
	if collection != "" && collection != key {
		idx := indexKey(collection)
		pipe.SAdd(ctx, idx, key)
		pipe.Expire(ctx, idx, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("platform/cache: set %s: %w", key, err)
	}
	return nil
}

// Delete removes exact keys.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if !s.enabled() || len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("platform/cache: delete: %w", err)
	}
	return nil
}

// Invalidate drops every key registered under each prefix, the prefix key itself and its index.
// Entity keys can be passed as prefixes; they have no index and are simply deleted.
func (s *Store) Invalidate(ctx context.Context, prefixes ...string) error {
	if !s.enabled() || len(prefixes) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, prefix := range prefixes {
		g.Go(func() error {
			return s.invalidatePrefix(gctx, prefix)
		})
	}
	return g.Wait()
}

func (s *Store) invalidatePrefix(ctx context.Context, prefix string) error {
	idx := indexKey(prefix)
	members, err := s.client.SMembers(ctx, idx).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("platform/cache: index %s: %w", prefix, err)
	}
	keys := append(members, prefix, idx)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("platform/cache: invalidate %s: %w", prefix, err)
	}
	s.metrics.invalidated(prefix, len(members))
	return nil
}
