package server

import (
	"context"

	"go.uber.org/fx"
)

// NewProvider supplies the server and its echo instance. Its lifecycle hook
// is appended when the option is applied, so it belongs after every module
// whose OnStop must run once the server has stopped accepting requests.
func NewProvider() fx.Option {
	return fx.Options(
		fx.Provide(New, (*Server).Echo),
		fx.Invoke(func(lc fx.Lifecycle, srv *Server) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					return srv.Start()
				},
				OnStop: func(ctx context.Context) error {
					return srv.Shutdown(ctx)
				},
			})
		}),
	)
}
