package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/telegram-auth-service/internal/domain"
)

type memoryCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	delErr error
	sets   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	v, ok := c.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = value
	return nil
}

func (c *memoryCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.delErr != nil {
		return c.delErr
	}
	delete(c.data, key)
	return nil
}

type stubSettingsRepo struct {
	settings *domain.BotSettings
	reads    int
}

func (s *stubSettingsRepo) Current(context.Context) (*domain.BotSettings, error) {
	s.reads++
	if s.settings == nil {
		return nil, domain.ErrNotFound
	}
	cpy := *s.settings
	return &cpy, nil
}

func (s *stubSettingsRepo) Update(_ context.Context, patch domain.SettingsPatch) error {
	if s.settings == nil {
		return domain.ErrNotFound
	}
	next := patch.Apply(*s.settings)
	s.settings = &next
	return nil
}

func TestCachedSettings_ReadThrough(t *testing.T) {
	inner := &stubSettingsRepo{settings: &domain.BotSettings{ID: 1, BotToken: "1:a", BotUsername: "bot"}}
	cache := newMemoryCache()
	repo := NewCachedSettingsRepository(inner, cache, time.Hour, nil)
	ctx := context.Background()

	first, err := repo.Current(ctx)
	require.NoError(t, err)
	second, err := repo.Current(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.reads)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.sets)
}

func TestCachedSettings_UpdateInvalidates(t *testing.T) {
	inner := &stubSettingsRepo{settings: &domain.BotSettings{ID: 1, SignupEnabled: true}}
	cache := newMemoryCache()
	repo := NewCachedSettingsRepository(inner, cache, time.Hour, nil)
	ctx := context.Background()

	_, err := repo.Current(ctx)
	require.NoError(t, err)

	disabled := false
	require.NoError(t, repo.Update(ctx, domain.SettingsPatch{SignupEnabled: &disabled}))

	got, err := repo.Current(ctx)
	require.NoError(t, err)
	assert.False(t, got.SignupEnabled, "read after write must observe the update")
	assert.Equal(t, 2, inner.reads)
}

func TestCachedSettings_InvalidateFailure(t *testing.T) {
	inner := &stubSettingsRepo{settings: &domain.BotSettings{ID: 1}}
	cache := newMemoryCache()
	cache.delErr = errors.New("redis down")
	repo := NewCachedSettingsRepository(inner, cache, time.Hour, nil)

	enabled := true
	err := repo.Update(context.Background(), domain.SettingsPatch{LoginEnabled: &enabled})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalidate settings cache")
}

func TestCachedSettings_CacheErrorFallsBack(t *testing.T) {
	inner := &stubSettingsRepo{settings: &domain.BotSettings{ID: 1, BotUsername: "bot"}}
	cache := newMemoryCache()
	cache.getErr = errors.New("redis down")
	repo := NewCachedSettingsRepository(inner, cache, time.Hour, nil)

	got, err := repo.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bot", got.BotUsername)
}

func TestCachedSettings_CorruptEntry(t *testing.T) {
	inner := &stubSettingsRepo{settings: &domain.BotSettings{ID: 1, BotUsername: "bot"}}
	cache := newMemoryCache()
	cache.data[SettingsCacheKey] = []byte("{not json")
	repo := NewCachedSettingsRepository(inner, cache, time.Hour, nil)

	got, err := repo.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bot", got.BotUsername)
	assert.Equal(t, 1, inner.reads)
}

func TestCachedSettings_MissingIsNotCached(t *testing.T) {
	inner := &stubSettingsRepo{}
	cache := newMemoryCache()
	repo := NewCachedSettingsRepository(inner, cache, time.Hour, nil)

	_, err := repo.Current(context.Background())
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, cache.sets)
}
