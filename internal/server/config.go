package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type Option interface {
	apply(*config)
}

type optionFunc func(c *config)

func (f optionFunc) apply(c *config) { f(c) }

// config defines fields used for configuring Server instance
type config struct {
	httpServer     *http.Server
	env            EnvConfig
	requestTimeout time.Duration
	afterShutdown  []func()
	healthCheck    func(context.Context) error
}

// EnvConfig defines fields used for parsing from environment variables
type EnvConfig struct {
	Env       string `env:"APP_ENV" envDefault:"development"`
	Host      string `env:"HOST" envDefault:"0.0.0.0"`
	Port      uint16 `env:"PORT" envDefault:"3000"`
	APIPrefix string `env:"API_PREFIX" envDefault:"/api/v1"`

	CORSOrigins        []string `env:"CORS_ALLOWED_ORIGINS_HTTP" envSeparator:","`
	CORSAllowedHeaders []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization,Accept,X-Requested-With"`
	CORSExposedHeaders []string `env:"CORS_EXPOSED_HEADERS" envSeparator:"," envDefault:"Content-Disposition"`
	CORSMaxAge         int      `env:"CORS_MAX_AGE" envDefault:"86400"`

	// ThrottlerLimit requests are allowed per client ip within ThrottlerTTL
	ThrottlerTTL   time.Duration `env:"THROTTLER_TTL" envDefault:"60s"`
	ThrottlerLimit int           `env:"THROTTLER_LIMIT" envDefault:"100"`
}

var defaultDevOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

// defaultEnvConfig mirrors envDefault tags and is used when WithEnvConfig is not provided
func defaultEnvConfig() EnvConfig {
	return EnvConfig{
		Env:                "development",
		Host:               "0.0.0.0",
		Port:               3000,
		APIPrefix:          "/api/v1",
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", "Accept", "X-Requested-With"},
		CORSExposedHeaders: []string{"Content-Disposition"},
		CORSMaxAge:         86400,
		ThrottlerTTL:       60 * time.Second,
		ThrottlerLimit:     100,
	}
}

func (c EnvConfig) Production() bool {
	return c.Env == "production"
}

func (c EnvConfig) development() bool {
	return c.Env == "development"
}

// Origins returns allowed CORS origins, falling back to localhost in development
func (c EnvConfig) Origins() []string {
	if len(c.CORSOrigins) == 0 && c.development() {
		return defaultDevOrigins
	}
	return c.CORSOrigins
}

// Validate rejects wildcard or empty CORS origin lists outside development
func (c EnvConfig) Validate() error {
	if !strings.HasPrefix(c.APIPrefix, "/") {
		return errors.New("API_PREFIX must start with /")
	}
	if c.ThrottlerLimit < 1 || c.ThrottlerTTL <= 0 {
		return errors.New("THROTTLER_LIMIT and THROTTLER_TTL must be positive")
	}
	if c.development() {
		return nil
	}
	for _, o := range c.CORSOrigins {
		if strings.Contains(o, "*") {
			return errors.New("wildcard CORS origins are not permitted outside development")
		}
	}
	if len(c.CORSOrigins) == 0 {
		return errors.New("CORS_ALLOWED_ORIGINS_HTTP must list at least one allowed origin outside development")
	}
	return nil
}

func (c EnvConfig) addr() string {
	return c.Host + ":" + strconv.FormatUint(uint64(c.Port), 10)
}

// WithEnvConfig enables processing exported EnvConfig struct to acts as a source of config parameters for http.Server
func WithEnvConfig(cfg EnvConfig) Option {
	return optionFunc(func(c *config) {
		c.env = cfg
		c.httpServer.Addr = cfg.addr()
	})
}

// ReadTimeout sets read timeout for http.Server
func ReadTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.httpServer.ReadTimeout = d
	})
}

// WriteTimeout sets write timeout for http.Server
func WriteTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.httpServer.WriteTimeout = d
	})
}

// RequestTimeout wraps API routes in http.TimeoutHandler with provided duration
func RequestTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.requestTimeout = d
	})
}

// RegisterAfterShutdown registers a function to call after http.Server shutdown
// f will not be called in separated goroutine
func RegisterAfterShutdown(f func()) Option {
	return optionFunc(func(c *config) {
		c.afterShutdown = append(c.afterShutdown, f)
	})
}

// HealthCheck sets a probe run on every "/healthz" request, typically Store.Ping
func HealthCheck(f func(context.Context) error) Option {
	return optionFunc(func(c *config) {
		c.healthCheck = f
	})
}
