package auth

import (
	"errors"
	"time"
)

// Config defines fields used for parsing token settings from environment variables
type Config struct {
	SecretKey         string        `env:"JWT_SECRET_KEY,required"`
	Expiration        time.Duration `env:"JWT_EXPIRATION" envDefault:"1h"`
	RefreshExpiration time.Duration `env:"JWT_REFRESH_EXPIRATION" envDefault:"168h"`
	// HashCost is the bcrypt cost for passwords and refresh tokens
	HashCost int `env:"BCRYPT_COST" envDefault:"10"`
}

func (c Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("JWT_SECRET_KEY must not be empty")
	}
	if c.Expiration <= 0 || c.RefreshExpiration <= 0 {
		return errors.New("token expiration must be positive")
	}
	if c.RefreshExpiration < c.Expiration {
		return errors.New("refresh token must not expire before access token")
	}
	return nil
}
