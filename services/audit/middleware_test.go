package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/Zaramlt59/TMS-sub001/testutils"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestAuditor(t *testing.T) {
	writer := &fakeWriter{}
	cfg := testutils.GetTestConfig()
	svc := NewService(nil, NewQueue(writer, cfg.Audit, nil), cfg, nil)

	actor := func(c echo.Context) uint {
		id, _ := strconv.Atoi(c.Request().Header.Get("X-Test-User"))
		return uint(id)
	}

	e := echo.New()
	g := e.Group("/schools", RequestAuditor(svc, "school", actor))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	g.GET("", ok)
	g.GET("/:id", ok)
	g.POST("", func(c echo.Context) error { return c.NoContent(http.StatusCreated) })
	g.PUT("/:id", ok)
	g.DELETE("/:id", func(c echo.Context) error { return echo.NewHTTPError(http.StatusForbidden) })

	requests := []struct {
		method string
		path   string
		user   string
	}{
		{http.MethodGet, "/schools", "7"},
		{http.MethodGet, "/schools/3", "7"},
		{http.MethodPost, "/schools", "7"},
		{http.MethodPut, "/schools/3", "7"},
		{http.MethodDelete, "/schools/3", "7"},
		{http.MethodGet, "/schools", ""},
	}
	for _, r := range requests {
		req := httptest.NewRequest(r.method, r.path, nil)
		if r.user != "" {
			req.Header.Set("X-Test-User", r.user)
		}
		e.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.NoError(t, svc.Flush(context.Background()))
	entries := writer.persisted()
	require.Len(t, entries, 5, "anonymous request is not audited")

	byAction := make(map[Action]*Entry)
	for _, entry := range entries {
		assert.Equal(t, uint(7), entry.UserID)
		assert.Equal(t, "school", entry.ResourceType)
		byAction[entry.Action] = entry
	}

	require.Contains(t, byAction, ActionList)
	require.Contains(t, byAction, ActionView)
	require.Contains(t, byAction, ActionCreate)
	require.Contains(t, byAction, ActionUpdate)
	require.Contains(t, byAction, ActionDelete)
	assert.Equal(t, "3", byAction[ActionView].ResourceID)
	assert.True(t, byAction[ActionCreate].Success)
	assert.False(t, byAction[ActionDelete].Success)
	assert.Equal(t, "Forbidden", byAction[ActionDelete].ErrorMessage)
}

func TestActionForMethod(t *testing.T) {
	action, ok := actionForMethod(http.MethodPatch, true)
	assert.True(t, ok)
	assert.Equal(t, ActionUpdate, action)

	_, ok = actionForMethod(http.MethodOptions, false)
	assert.False(t, ok)
}
