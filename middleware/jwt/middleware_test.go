package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Zaramlt59/TMS-sub001/services/jwt"
	"github.com/Zaramlt59/TMS-sub001/testutils"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestJWTService() *jwt.Service {
	return jwt.NewService(testutils.GetTestConfig(), nil)
}

func successHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "success"})
}

func requireHTTPError(t *testing.T, err error, code int, message string) {
	t.Helper()

	require.Error(t, err)
	httpError, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, code, httpError.Code)
	assert.Contains(t, httpError.Message, message)
}

func TestRequireJWT(t *testing.T) {
	e := echo.New()
	jwtService := setupTestJWTService()
	middleware := RequireJWT(jwtService)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"missing authorization header", "", "Authorization header required"},
		{"invalid authorization header format", "Invalid token", "Invalid authorization header format"},
		{"empty bearer token", "Bearer ", "JWT token required"},
		{"malformed JWT token", "Bearer not-a-jwt", "Malformed JWT token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			c := e.NewContext(req, httptest.NewRecorder())

			requireHTTPError(t, middleware(successHandler)(c), http.StatusUnauthorized, tt.message)
		})
	}

	t.Run("valid JWT token", func(t *testing.T) {
		tokenString, err := jwtService.Sign(jwt.Identity{UserID: 123, Username: "alice", Role: "teacher"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+tokenString)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, middleware(successHandler)(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, uint(123), GetUserID(c))
		claims := GetClaims(c)
		require.NotNil(t, claims)
		assert.Equal(t, "alice", claims.Username)
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("expired JWT token", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.JWT.AccessExpiry = time.Millisecond
		shortLived := jwt.NewService(cfg, nil)

		tokenString, err := shortLived.Sign(jwt.Identity{UserID: 1})
		require.NoError(t, err)
		time.Sleep(1100 * time.Millisecond)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+tokenString)
		c := e.NewContext(req, httptest.NewRecorder())

		requireHTTPError(t, RequireJWT(shortLived)(successHandler)(c), http.StatusUnauthorized, "expired")
	})

	t.Run("reset token is not an access token", func(t *testing.T) {
		tokenString, err := jwtService.SignReset(1, "fp")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+tokenString)
		c := e.NewContext(req, httptest.NewRecorder())

		requireHTTPError(t, middleware(successHandler)(c), http.StatusUnauthorized, "Invalid JWT token")
	})
}

func TestRequireJWTWithConfig_OnUnauthorized(t *testing.T) {
	var hookErr error
	middleware := RequireJWTWithConfig(setupTestJWTService(), Config{
		OnUnauthorized: func(c echo.Context, err error) { hookErr = err },
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	c := echo.New().NewContext(req, httptest.NewRecorder())

	assert.Error(t, middleware(successHandler)(c))
	assert.ErrorIs(t, hookErr, jwt.ErrMalformedToken)
}

func TestRequireRole(t *testing.T) {
	e := echo.New()

	t.Run("no claims", func(t *testing.T) {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		requireHTTPError(t, RequireRole("admin")(successHandler)(c), http.StatusUnauthorized, "Authentication required")
	})

	t.Run("role allowed", func(t *testing.T) {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.Set(ClaimsKey, &jwt.Claims{UserID: 1, Role: "admin"})
		assert.NoError(t, RequireRole("super_admin", "admin")(successHandler)(c))
	})

	t.Run("role denied calls hook", func(t *testing.T) {
		var denied *jwt.Claims
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.Set(ClaimsKey, &jwt.Claims{UserID: 2, Role: "teacher"})

		err := RequireRoleWithConfig(Config{OnForbidden: func(c echo.Context, claims *jwt.Claims) { denied = claims }}, "admin")(successHandler)(c)
		requireHTTPError(t, err, http.StatusForbidden, "Insufficient permissions")
		require.NotNil(t, denied)
		assert.Equal(t, uint(2), denied.UserID)
	})
}

func TestGetUserID_Unset(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Zero(t, GetUserID(c))
	assert.Nil(t, GetClaims(c))
}

func TestIdentify(t *testing.T) {
	jwtService := setupTestJWTService()
	middleware := Identify(jwtService)

	t.Run("anonymous request passes", func(t *testing.T) {
		c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
		require.NoError(t, middleware(successHandler)(c))
		assert.Zero(t, GetUserID(c))
	})

	t.Run("invalid token passes without claims", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		c := echo.New().NewContext(req, httptest.NewRecorder())
		require.NoError(t, middleware(successHandler)(c))
		assert.Nil(t, GetClaims(c))
	})

	t.Run("valid token sets claims", func(t *testing.T) {
		tokenString, err := jwtService.Sign(jwt.Identity{UserID: 7, Role: "teacher"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokenString)
		c := echo.New().NewContext(req, httptest.NewRecorder())
		require.NoError(t, middleware(successHandler)(c))
		assert.Equal(t, uint(7), GetUserID(c))
	})
}
