package lockout

import (
	"context"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/services/logging"
	"go.uber.org/fx"
)

func ProvideTracker(lc fx.Lifecycle, cfg *config.Config, logger *logging.Service) *Tracker {
	tracker := NewTracker(cfg.Lockout, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			tracker.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			tracker.Stop()
			return nil
		},
	})
	return tracker
}

var Module = fx.Options(
	fx.Provide(ProvideTracker),
)
