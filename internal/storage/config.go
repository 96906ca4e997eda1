package storage

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Config defines fields used for parsing database settings from environment variables
type Config struct {
	// URL takes precedence over the discrete fields when set
	URL      string `env:"DATABASE_URL"`
	User     string `env:"DB_USERNAME" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     uint16 `env:"DB_PORT" envDefault:"5432"`
	DBName   string `env:"DB_NAME" envDefault:"message_board"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	LogLevel string `env:"DB_LOG_LEVEL" envDefault:"warn"`
	Migrate  bool   `env:"DB_MIGRATE" envDefault:"true"`
}

// DSN returns connection string in keyword/value format
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}

	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("user=%s password=%s host=%s port=%d dbname=%s sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, sslMode)
}

// Option alters the default configuration of the pgxpool.Config used during new Store construction
type Option interface {
	apply(*pgxpool.Config)
}

type optionFunc func(c *pgxpool.Config)

func (f optionFunc) apply(c *pgxpool.Config) { f(c) }

// ConnectionTimeout sets timeout for connection to be established
func ConnectionTimeout(d time.Duration) Option {
	return optionFunc(func(c *pgxpool.Config) {
		c.ConnConfig.ConnectTimeout = d
	})
}

// MaxConns limits the size of the pool
func MaxConns(n int32) Option {
	return optionFunc(func(c *pgxpool.Config) {
		c.MaxConns = n
	})
}

// LogLevel sets minimal level of pgx messages passed to the logger.
// Unknown level names fall back to pgx.LogLevelWarn.
func LogLevel(level string) Option {
	return optionFunc(func(c *pgxpool.Config) {
		l, err := pgx.LogLevelFromString(level)
		if err != nil {
			l = pgx.LogLevelWarn
		}
		c.ConnConfig.LogLevel = l
	})
}
