package service

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
)

type memCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
	deleted []string
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{entries: map[string][]byte{}}
}

func (m *memCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *memCacheRepo) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.entries, key)
		m.deleted = append(m.deleted, key)
	}
	return nil
}

func (m *memCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *memCacheRepo) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var value int64
	if raw, ok := m.entries[key]; ok {
		if err := json.Unmarshal(raw, &value); err != nil {
			return 0, err
		}
	}
	value++
	raw, _ := json.Marshal(value)
	m.entries[key] = raw
	return value, nil
}

func TestCacheServiceNamespacesKeys(t *testing.T) {
	repo := newMemCacheRepo()
	cache := NewCacheService(repo, NewMetricsService(), CacheOptions{Enabled: true, Namespace: "thesis:"}, nil)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "progress:board:all", []int{1, 2}, 0))
	require.Contains(t, repo.entries, "thesis:progress:board:all")

	var got []int
	hit, err := cache.Get(ctx, "progress:board:all", &got)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, []int{1, 2}, got)

	require.NoError(t, cache.Invalidate(ctx, progressCachePattern))
	hit, err = cache.Get(ctx, "progress:board:all", &got)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestCacheServiceDropsUnreadableEntry(t *testing.T) {
	repo := newMemCacheRepo()
	cache := NewCacheService(repo, nil, CacheOptions{Enabled: true}, nil)
	ctx := context.Background()
	repo.entries["notifications:unread:7"] = []byte(`"not a number"`)

	var count int
	hit, err := cache.Get(ctx, "notifications:unread:7", &count)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, []string{"notifications:unread:7"}, repo.deleted)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemCacheRepo()
	cache := NewCacheService(repo, nil, CacheOptions{}, nil)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", 1, time.Minute))
	require.Empty(t, repo.entries)

	var nilCache *CacheService
	require.False(t, nilCache.Enabled())
	hit, err := nilCache.Get(ctx, "k", new(int))
	require.NoError(t, err)
	require.False(t, hit)
}
