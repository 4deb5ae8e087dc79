package audit

import (
	"github.com/Zaramlt59/TMS-sub001/handlers"
	mwjwt "github.com/Zaramlt59/TMS-sub001/middleware/jwt"
	"github.com/Zaramlt59/TMS-sub001/services/audit"
	"github.com/Zaramlt59/TMS-sub001/services/users"
	"github.com/labstack/echo/v4"
)

const resourceAuditLog = "audit_log"

var adminRoles = []string{string(users.RoleSuperAdmin), string(users.RoleAdmin)}

// RegisterRoutes mounts the read side of the audit trail on g, normally
// /api/audit. Every route requires an admin and is itself audited.
func (h *Handler) RegisterRoutes(g *echo.Group, guards handlers.Guards) {
	auditor := audit.RequestAuditor(h.audit, resourceAuditLog, mwjwt.GetUserID)
	admins := []echo.MiddlewareFunc{guards.RequireJWT, guards.RequireRole(adminRoles...), auditor}

	g.GET("/logs", h.Logs, admins...)
	g.GET("/alerts", h.Alerts, admins...)
	g.GET("/stats", h.Stats, admins...)
	g.PUT("/maintenance", h.SetMaintenance,
		guards.RequireJWT, guards.RequireRole(string(users.RoleSuperAdmin)), auditor)
}
