package audit

import (
	"github.com/Zaramlt59/TMS-sub001/handlers"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

func RegisterAuditRoutes(e *echo.Echo, h *Handler, guards handlers.Guards) {
	h.RegisterRoutes(e.Group("/api/audit"), guards)
}

var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(RegisterAuditRoutes),
)
