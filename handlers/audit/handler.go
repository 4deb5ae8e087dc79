package audit

import (
	"net/http"
	"strings"
	"time"

	"github.com/Zaramlt59/TMS-sub001/handlers"
	"github.com/Zaramlt59/TMS-sub001/services/audit"
	"github.com/Zaramlt59/TMS-sub001/services/logging"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	defaultAlertWindow = 24 * time.Hour
	defaultStatsWindow = 30 * 24 * time.Hour
	defaultAlertLimit  = 50
)

type Handler struct {
	audit     *audit.Service
	validator *handlers.Validator
	logger    *logging.Service
	now       func() time.Time
}

func NewHandler(auditService *audit.Service, validator *handlers.Validator, logger *logging.Service) *Handler {
	return &Handler{
		audit:     auditService,
		validator: validator,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type logsQuery struct {
	UserID       uint      `json:"user_id"`
	Actions      []string  `json:"action"`
	ResourceType string    `json:"resource_type" validate:"max=100"`
	Success      bool      `json:"success"`
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	Page         int       `json:"page" validate:"gte=0"`
	PerPage      int       `json:"per_page" validate:"gte=0,lte=200"`
}

type alertsQuery struct {
	Since time.Time `json:"since"`
	Limit int       `json:"limit" validate:"gte=0,lte=200"`
}

type maintenanceRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type statsResponse struct {
	*audit.Stats
	Queue           audit.QueueStats `json:"queue"`
	MaintenanceMode bool             `json:"maintenance_mode"`
}

// Logs handles GET /api/audit/logs. action may repeat or be comma separated;
// from and to are RFC 3339 timestamps.
func (h *Handler) Logs(c echo.Context) error {
	var q logsQuery
	err := echo.QueryParamsBinder(c).
		Uint("user_id", &q.UserID).
		Strings("action", &q.Actions).
		String("resource_type", &q.ResourceType).
		Bool("success", &q.Success).
		Time("from", &q.From, time.RFC3339).
		Time("to", &q.To, time.RFC3339).
		Int("page", &q.Page).
		Int("per_page", &q.PerPage).
		BindError()
	if err != nil {
		return handlers.Fail(c, http.StatusBadRequest, "Invalid query parameters")
	}
	if err := h.validator.Validate(q); err != nil {
		return handlers.Fail(c, http.StatusBadRequest, err.Error())
	}

	filter := audit.Filter{
		ResourceType: q.ResourceType,
		From:         q.From,
		To:           q.To,
		Page:         q.Page,
		PerPage:      q.PerPage,
	}
	if c.QueryParam("user_id") != "" {
		filter.UserID = &q.UserID
	}
	if c.QueryParam("success") != "" {
		filter.Success = &q.Success
	}
	for _, raw := range q.Actions {
		for _, name := range strings.Split(raw, ",") {
			action := audit.Action(strings.TrimSpace(name))
			if action == "" {
				continue
			}
			if !action.Valid() {
				return handlers.Fail(c, http.StatusBadRequest, "Unknown audit action: "+string(action))
			}
			filter.Actions = append(filter.Actions, action)
		}
	}

	page, err := h.audit.GetAuditLogs(c.Request().Context(), filter)
	if err != nil {
		return h.internal(c, err)
	}
	return handlers.OK(c, "", page)
}

// Alerts handles GET /api/audit/alerts.
func (h *Handler) Alerts(c echo.Context) error {
	q := alertsQuery{Since: h.now().Add(-defaultAlertWindow), Limit: defaultAlertLimit}
	err := echo.QueryParamsBinder(c).
		Time("since", &q.Since, time.RFC3339).
		Int("limit", &q.Limit).
		BindError()
	if err != nil {
		return handlers.Fail(c, http.StatusBadRequest, "Invalid query parameters")
	}
	if err := h.validator.Validate(q); err != nil {
		return handlers.Fail(c, http.StatusBadRequest, err.Error())
	}

	alerts, err := h.audit.GetSecurityAlerts(c.Request().Context(), q.Since, q.Limit)
	if err != nil {
		return h.internal(c, err)
	}
	return handlers.OK(c, "", alerts)
}

// Stats handles GET /api/audit/stats. The window defaults to the last 30 days.
func (h *Handler) Stats(c echo.Context) error {
	to := h.now()
	from := to.Add(-defaultStatsWindow)
	err := echo.QueryParamsBinder(c).
		Time("from", &from, time.RFC3339).
		Time("to", &to, time.RFC3339).
		BindError()
	if err != nil {
		return handlers.Fail(c, http.StatusBadRequest, "Invalid query parameters")
	}
	if to.Before(from) {
		return handlers.Fail(c, http.StatusBadRequest, "to must not be before from")
	}

	stats, err := h.audit.GetAuditStats(c.Request().Context(), from, to)
	if err != nil {
		return h.internal(c, err)
	}
	return handlers.OK(c, "", statsResponse{
		Stats:           stats,
		Queue:           h.audit.QueueStats(),
		MaintenanceMode: h.audit.MaintenanceMode(),
	})
}

// SetMaintenance handles PUT /api/audit/maintenance.
func (h *Handler) SetMaintenance(c echo.Context) error {
	var req maintenanceRequest
	if ok, err := handlers.BindAndValidate(c, h.validator, &req); !ok {
		return err
	}

	h.audit.SetMaintenanceMode(*req.Enabled)
	if h.logger != nil {
		h.logger.Info("audit maintenance mode changed", zap.Bool("enabled", *req.Enabled))
	}
	return handlers.OK(c, "Maintenance mode updated", map[string]bool{"maintenance_mode": *req.Enabled})
}

func (h *Handler) internal(c echo.Context, err error) error {
	if h.logger != nil {
		h.logger.Error("audit query failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return handlers.Internal(c)
}
