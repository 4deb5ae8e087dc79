package ratelimit

import (
	"context"

	"github.com/Zaramlt59/TMS-sub001/config"
	"go.uber.org/fx"
)

func ProvideRateLimitStore(lc fx.Lifecycle, cfg *config.Config) Store {
	store := NewMemoryStore()

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			store.Start(cfg.RateLimit.Period)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			store.Stop()
			return nil
		},
	})
	return store
}

var Module = fx.Options(
	fx.Provide(ProvideRateLimitStore),
)
