package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/handlers"
	"github.com/Zaramlt59/TMS-sub001/middleware/ratelimit"
	"github.com/Zaramlt59/TMS-sub001/services/audit"
	authservice "github.com/Zaramlt59/TMS-sub001/services/auth"
	jwtservice "github.com/Zaramlt59/TMS-sub001/services/jwt"
	"github.com/Zaramlt59/TMS-sub001/services/lockout"
	"github.com/Zaramlt59/TMS-sub001/services/refreshtoken"
	"github.com/Zaramlt59/TMS-sub001/services/users"
	"github.com/Zaramlt59/TMS-sub001/testutils"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testRemoteAddr = "1.2.3.4:40000"

type testEnv struct {
	t      *testing.T
	cfg    *config.Config
	db     *gorm.DB
	echo   *echo.Echo
	users  *users.Service
	tokens *refreshtoken.Service
	jwt    *jwtservice.Service
	audit  *audit.Service
	mail   *testutils.MockMailService
}

func newTestEnv(t *testing.T, configure func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testutils.GetTestConfig()
	cfg.RateLimit.Enabled = false
	if configure != nil {
		configure(cfg)
	}

	db := testutils.SetupTestDB(t, &users.User{}, &refreshtoken.RefreshToken{}, &audit.Entry{})
	userService, err := users.NewService(db, cfg, nil)
	require.NoError(t, err)

	env := &testEnv{
		t:      t,
		cfg:    cfg,
		db:     db,
		users:  userService,
		tokens: refreshtoken.NewService(db, cfg, nil),
		jwt:    jwtservice.NewService(cfg, nil),
		mail:   &testutils.MockMailService{},
	}
	store := audit.NewGormStore(db)
	env.audit = audit.NewService(store, audit.NewQueue(store, cfg.Audit, nil), cfg, nil)

	authService := authservice.NewService(cfg, env.users, env.tokens, env.jwt,
		lockout.NewTracker(cfg.Lockout, nil), env.audit, env.mail, nil)

	env.echo = echo.New()
	env.echo.HTTPErrorHandler = handlers.ErrorHandler

	guards := handlers.NewGuards(cfg, env.jwt, env.audit, ratelimit.NewMemoryStore())
	NewHandler(cfg, authService, env.users, env.tokens, handlers.NewValidator(), nil).
		RegisterRoutes(env.echo.Group("/api/auth"), guards)

	return env
}

func (e *testEnv) createUser(u testutils.TestUser) *users.User {
	user, err := e.users.Create(context.Background(), users.CreateUser{
		Username: u.Username,
		Email:    u.Email,
		Password: u.Password,
		Role:     users.Role(u.Role),
	})
	require.NoError(e.t, err)
	return user
}

type requestOption func(*http.Request)

func withCookies(cookies ...*http.Cookie) requestOption {
	return func(r *http.Request) {
		for _, c := range cookies {
			if c != nil {
				r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
			}
		}
	}
}

func withHeader(key, value string) requestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

func withBearer(token string) requestOption {
	return withHeader(echo.HeaderAuthorization, "Bearer "+token)
}

func (e *testEnv) do(method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = testRemoteAddr
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0")
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	e.echo.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (e *testEnv) auditEntries(action audit.Action) []audit.Entry {
	e.t.Helper()
	require.NoError(e.t, e.audit.Flush(context.Background()))

	var entries []audit.Entry
	require.NoError(e.t, e.db.Where("action = ?", action).Order("id").Find(&entries).Error)
	return entries
}
