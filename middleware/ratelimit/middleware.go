package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/labstack/echo/v4"
)

type CountMode string

const (
	CountAll      CountMode = "all"
	CountFailures CountMode = "failures"
)

type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	CountMode      CountMode
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
}

func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}
	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}
	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}
	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}
	if cfg.CountMode == "" {
		cfg.CountMode = CountAll
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := cfg.KeyGenerator(c)
			now := time.Now()
			resetTime := now.Add(cfg.Period)

			count, existingReset, exists := cfg.Store.Get(key)
			if exists {
				resetTime = existingReset
			}

			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Rate))
			header.Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			if count >= cfg.Rate {
				header.Set("X-RateLimit-Remaining", "0")
				header.Set(echo.HeaderRetryAfter, strconv.Itoa(retryAfter(resetTime.Sub(now))))
				return cfg.OnLimitReached(c)
			}

			if cfg.CountMode == CountAll {
				count = cfg.Store.Increment(key, resetTime)
			}
			header.Set("X-RateLimit-Remaining", strconv.Itoa(max(cfg.Rate-count, 0)))

			err := next(c)

			if cfg.CountMode == CountFailures && failed(c, err) {
				cfg.Store.Increment(key, resetTime)
			}
			return err
		}
	}
}

// ForConfig builds the limiter for the unauthenticated auth endpoints.
func ForConfig(cfg *config.RateLimitConfig, store Store) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return Middleware(&Config{
		Store:  store,
		Rate:   cfg.Rate,
		Period: cfg.Period,
	})
}

func failed(c echo.Context, err error) bool {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code >= http.StatusBadRequest
	}
	if err != nil {
		return true
	}
	return c.Response().Status >= http.StatusBadRequest
}

func retryAfter(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}

func DefaultKeyGenerator(c echo.Context) string {
	realIP := c.RealIP()
	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}
	return "rate_limit:" + realIP
}

func DefaultOnLimitReached(c echo.Context) error {
	return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests, please try again later")
}
