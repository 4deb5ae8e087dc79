package refreshtoken

import (
	"context"
	"time"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RetentionWorker periodically purges records past the retention period.
// It only runs when REFRESH_TOKEN_RETENTION is positive.
type RetentionWorker struct {
	service   *Service
	retention time.Duration
	interval  time.Duration
	logger    *logging.Service

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRetentionWorker(service *Service, cfg *config.Config, logger *logging.Service) *RetentionWorker {
	return &RetentionWorker{
		service:   service,
		retention: cfg.RefreshToken.Retention,
		interval:  cfg.RefreshToken.CleanupInterval,
		logger:    logger,
	}
}

func (w *RetentionWorker) Enabled() bool {
	return w.retention > 0 && w.interval > 0
}

func (w *RetentionWorker) Start() {
	if !w.Enabled() || w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.RunOnce(ctx)
			}
		}
	}()

	if w.logger != nil {
		w.logger.Info("started refresh token retention worker",
			zap.Duration("retention", w.retention),
			zap.Duration("interval", w.interval))
	}
}

func (w *RetentionWorker) RunOnce(ctx context.Context) {
	cutoff := w.service.now().Add(-w.retention)
	if _, err := w.service.PurgeExpired(ctx, cutoff); err != nil && w.logger != nil {
		w.logger.Error("refresh token retention worker failed", zap.Error(err))
	}
}

func (w *RetentionWorker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel = nil
}

func ProvideRefreshTokenService(lc fx.Lifecycle, db *gorm.DB, cfg *config.Config, logger *logging.Service) *Service {
	service := NewService(db, cfg, logger)
	worker := NewRetentionWorker(service, cfg, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			worker.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			worker.Stop()
			return nil
		},
	})
	return service
}

var Module = fx.Options(
	fx.Provide(ProvideRefreshTokenService),
)
