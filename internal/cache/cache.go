package cache

import (
	"context"
	"time"

	"aurelia/backend/internal/domain"
)

// SettingsCache fronts the site settings row, which every quote and page
// load reads. Invalidate must be called after any settings write.
type SettingsCache interface {
	Get(ctx context.Context, key string) (*domain.SiteSettings, bool, error)
	Set(ctx context.Context, key string, value *domain.SiteSettings, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopSettingsCache struct{}

func (NoopSettingsCache) Get(_ context.Context, _ string) (*domain.SiteSettings, bool, error) {
	return nil, false, nil
}

func (NoopSettingsCache) Set(_ context.Context, _ string, _ *domain.SiteSettings, _ time.Duration) error {
	return nil
}

func (NoopSettingsCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
