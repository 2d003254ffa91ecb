package config

import (
	"time"

	"github.com/coleapp/session-service/token"
)

type AuthConfig interface {
	GetJWTSecret() string
	GetJWTExpiresIn() time.Duration
	GetDatabaseURL() string
}

type Auth struct{}

var _ AuthConfig = Auth{}

func (Auth) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "")
}

// GetJWTExpiresIn parses JWT_EXPIRES_IN as a Go duration ("168h", "30m").
// Unset or unparseable values fall back to the token package default.
func (Auth) GetJWTExpiresIn() time.Duration {
	raw := GetEnv("JWT_EXPIRES_IN", "")
	if raw == "" {
		return token.DefaultExpiry
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return token.DefaultExpiry
	}
	return d
}

func (Auth) GetDatabaseURL() string {
	return GetEnv("DATABASE_URL", "")
}
