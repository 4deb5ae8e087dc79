package audit

import (
	"context"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideStore(db *gorm.DB) Store {
	return NewGormStore(db)
}

func ProvideAuditService(lc fx.Lifecycle, store Store, cfg *config.Config, logger *logging.Service) *Service {
	queue := NewQueue(store, cfg.Audit, logger)
	service := NewService(store, queue, cfg, logger)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if cfg.Audit.FlushTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Audit.FlushTimeout)
				defer cancel()
			}
			return service.Shutdown(ctx)
		},
	})
	return service
}

var Module = fx.Options(
	fx.Provide(ProvideStore, ProvideAuditService),
)
