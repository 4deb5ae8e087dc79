package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func OK(c echo.Context, message string, data any) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func Fail(c echo.Context, status int, message string) error {
	return c.JSON(status, Envelope{Success: false, Error: message})
}

// Internal never exposes err to the client.
func Internal(c echo.Context) error {
	return Fail(c, http.StatusInternalServerError, "Internal server error")
}

// BindAndValidate decodes the request body into req and runs struct validation.
// The returned error is already rendered as a 400 response.
func BindAndValidate(c echo.Context, v *Validator, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, Fail(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := v.Validate(req); err != nil {
		return false, Fail(c, http.StatusBadRequest, err.Error())
	}
	return true, nil
}

// ErrorHandler renders echo errors in the envelope format.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(status)
		}
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = Fail(c, status, message)
}
