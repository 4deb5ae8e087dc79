package app

import (
	"fmt"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/database"
	"github.com/Zaramlt59/TMS-sub001/handlers"
	audithandlers "github.com/Zaramlt59/TMS-sub001/handlers/audit"
	authhandlers "github.com/Zaramlt59/TMS-sub001/handlers/auth"
	"github.com/Zaramlt59/TMS-sub001/middleware/ratelimit"
	"github.com/Zaramlt59/TMS-sub001/server"
	"github.com/Zaramlt59/TMS-sub001/services/audit"
	"github.com/Zaramlt59/TMS-sub001/services/auth"
	"github.com/Zaramlt59/TMS-sub001/services/jwt"
	"github.com/Zaramlt59/TMS-sub001/services/lockout"
	"github.com/Zaramlt59/TMS-sub001/services/logging"
	"github.com/Zaramlt59/TMS-sub001/services/mail"
	"github.com/Zaramlt59/TMS-sub001/services/refreshtoken"
	"github.com/Zaramlt59/TMS-sub001/services/users"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

type AppBuilder struct {
	config    *config.Config
	models    []any
	fxOptions []fx.Option
	errors    []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{
		models:    []any{&users.User{}, &refreshtoken.RefreshToken{}, &audit.Entry{}},
		fxOptions: make([]fx.Option, 0),
		errors:    make([]error, 0),
	}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

// WithModels adds models to the automigration set.
func (b *AppBuilder) WithModels(models ...any) *AppBuilder {
	b.models = append(b.models, models...)
	return b
}

// WithFxOptions adds options ahead of the HTTP server, so any hooks they
// register stop after the server does.
func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if b.config == nil && len(b.errors) == 0 {
		b.WithAutoConfig()
	}
	if err := b.validate(); err != nil {
		return nil, err
	}

	app := &App{config: b.config}
	app.fx = fx.New(append(b.buildFxOptions(),
		fx.Populate(&app.logger, &app.db, &app.server, &app.audit),
	)...)
	if err := app.fx.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}
	return app, nil
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, fmt.Errorf("%s", msg))
}

func (b *AppBuilder) validate() error {
	if len(b.errors) > 0 {
		return fmt.Errorf("configuration errors: %v", b.errors)
	}
	return nil
}

// buildFxOptions assembles the module graph. OnStop hooks run in reverse
// registration order, so the server module goes last: it stops accepting
// requests before the audit queue is flushed and the database is closed.
func (b *AppBuilder) buildFxOptions() []fx.Option {
	options := []fx.Option{
		fx.Supply(b.config),
		fx.Supply(database.WithModels(b.models...)),
		fxLogger(b.config),
		logging.Module,
		database.Module,
		users.Module,
		lockout.Module,
		refreshtoken.Module,
		jwt.Module,
		audit.Module,
		mail.Module,
		auth.Module,
		ratelimit.Module,
		handlers.Module,
	}

	options = append(options, b.fxOptions...)

	options = append(options,
		authhandlers.Module,
		audithandlers.Module,
		server.NewProvider(),
	)
	return options
}

func fxLogger(cfg *config.Config) fx.Option {
	if cfg.Log.Level != string(logging.Debug) {
		return fx.NopLogger
	}
	return fx.WithLogger(func(logger *logging.Service) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: logger.Named("fx").Logger()}
	})
}
