package users

import (
	"context"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func ProvideUserService(lc fx.Lifecycle, db *gorm.DB, cfg *config.Config, logger *logging.Service) (*Service, error) {
	svc, err := NewService(db, cfg, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := svc.EnsureBootstrapAdmin(ctx); err != nil {
				logger.Error("bootstrap admin setup failed", zap.Error(err))
				return err
			}
			return nil
		},
	})
	return svc, nil
}

var Module = fx.Options(
	fx.Provide(ProvideUserService),
)
