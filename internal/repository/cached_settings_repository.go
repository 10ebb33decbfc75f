package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/telegram-auth-service/internal/domain"
)

// SettingsCacheKey is the cache entry holding the serialized settings row.
const SettingsCacheKey = "telegram_bot_settings"

// ErrCacheMiss is returned by Cache implementations when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a byte-oriented key/value store with expirations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type cachedSettingsRepository struct {
	next   SettingsRepository
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedSettingsRepository wraps next with a read-through cache. Cache
// failures degrade to direct reads; Update invalidates the entry before it
// returns.
func NewCachedSettingsRepository(next SettingsRepository, cache Cache, ttl time.Duration, logger *zap.Logger) SettingsRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedSettingsRepository{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (r *cachedSettingsRepository) Current(ctx context.Context) (*domain.BotSettings, error) {
	raw, err := r.cache.Get(ctx, SettingsCacheKey)
	switch {
	case err == nil:
		var settings domain.BotSettings
		jsonErr := json.Unmarshal(raw, &settings)
		if jsonErr == nil {
			return &settings, nil
		}
		r.logger.Warn("discarding corrupt settings cache entry", zap.Error(jsonErr))
	case !errors.Is(err, ErrCacheMiss):
		r.logger.Warn("settings cache read failed", zap.Error(err))
	}

	settings, err := r.next.Current(ctx)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(settings); err == nil {
		if err := r.cache.Set(ctx, SettingsCacheKey, raw, r.ttl); err != nil {
			r.logger.Warn("settings cache write failed", zap.Error(err))
		}
	}
	return settings, nil
}

func (r *cachedSettingsRepository) Update(ctx context.Context, patch domain.SettingsPatch) error {
	if err := r.next.Update(ctx, patch); err != nil {
		return err
	}
	if err := r.cache.Del(ctx, SettingsCacheKey); err != nil {
		return fmt.Errorf("invalidate settings cache: %w", err)
	}
	return nil
}
