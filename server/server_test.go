package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/handlers"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host: "127.0.0.1",
			Port: "0",
		},
	}
}

func TestNew(t *testing.T) {
	cfg := testConfig()
	server := New(cfg, nil, handlers.NewValidator())

	require.NotNil(t, server)
	assert.Same(t, cfg, server.cfg)
	assert.NotNil(t, server.Echo().Validator)
	assert.Equal(t, "127.0.0.1:0", server.Addr())
}

func TestHealth(t *testing.T) {
	server := New(testConfig(), nil, nil)

	rec := httptest.NewRecorder()
	server.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	var body handlers.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
}

func TestErrorsUseEnvelope(t *testing.T) {
	server := New(testConfig(), nil, nil)
	server.Group("/api").GET("/boom", func(c echo.Context) error {
		panic("boom")
	})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"success":false,"error":"Not Found"}`, rec.Body.String())
	})

	t.Run("recovered panic hides details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/boom", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "boom")
	})
}

func TestIPExtractor(t *testing.T) {
	tests := []struct {
		name     string
		proxies  []string
		remote   string
		xff      string
		expected string
	}{
		{name: "direct ignores forwarded header", remote: "1.2.3.4:5000", xff: "9.9.9.9", expected: "1.2.3.4"},
		{name: "trusted proxy forwards client", proxies: []string{"10.0.0.1"}, remote: "10.0.0.1:5000", xff: "9.9.9.9", expected: "9.9.9.9"},
		{name: "trusted range", proxies: []string{"10.0.0.0/8"}, remote: "10.1.2.3:5000", xff: "9.9.9.9", expected: "9.9.9.9"},
		{name: "untrusted peer", proxies: []string{"10.0.0.1"}, remote: "8.8.8.8:5000", xff: "9.9.9.9", expected: "8.8.8.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extract := ipExtractor(tt.proxies, nil)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			req.Header.Set(echo.HeaderXForwardedFor, tt.xff)

			assert.Equal(t, tt.expected, extract(req))
		})
	}
}

func TestStartAndShutdown(t *testing.T) {
	server := New(testConfig(), nil, nil)
	require.NoError(t, server.Start())

	addr := server.ListenerAddr()
	require.NotNil(t, addr)

	resp, err := http.Get("http://" + addr.String() + HealthPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	_, err = http.Get("http://" + addr.String() + HealthPath)
	assert.Error(t, err)
}

func TestStart_BindError(t *testing.T) {
	first := New(testConfig(), nil, nil)
	require.NoError(t, first.Start())
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	cfg := testConfig()
	_, port, err := net.SplitHostPort(first.ListenerAddr().String())
	require.NoError(t, err)
	cfg.Server.Port = port

	assert.Error(t, New(cfg, nil, nil).Start())
}
