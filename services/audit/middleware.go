package audit

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequestAuditor records a data-access entry for each authenticated request
// in the group. actor returns the authenticated user id, or 0.
func RequestAuditor(svc *Service, resourceType string, actor func(echo.Context) uint) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			userID := actor(c)
			if userID == 0 {
				return err
			}

			resourceID := c.Param("id")
			action, ok := actionForMethod(c.Request().Method, resourceID != "")
			if !ok {
				return err
			}

			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}
			var errMsg string
			if status >= http.StatusBadRequest {
				errMsg = http.StatusText(status)
			}

			svc.Log(c.Request().Context(), LogEntry{
				UserID:       userID,
				Action:       action,
				ResourceType: resourceType,
				ResourceID:   resourceID,
				IPAddress:    c.RealIP(),
				UserAgent:    c.Request().UserAgent(),
				Success:      status < http.StatusBadRequest,
				ErrorMessage: errMsg,
			})
			return err
		}
	}
}

func actionForMethod(method string, hasID bool) (Action, bool) {
	switch method {
	case http.MethodGet:
		if hasID {
			return ActionView, true
		}
		return ActionList, true
	case http.MethodPost:
		return ActionCreate, true
	case http.MethodPut, http.MethodPatch:
		return ActionUpdate, true
	case http.MethodDelete:
		return ActionDelete, true
	}
	return "", false
}
