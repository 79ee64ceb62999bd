package config

import (
	"fmt"
	"os"
	"strconv"
)

// DefaultJWTIssuer is the issuer claim stamped on and required from tokens.
const DefaultJWTIssuer = "resume-optimizer"

// JWTConfig holds configuration for JWT token generation and validation.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
	Issuer          string
}

// NewJWTConfig creates a JWT configuration from environment variables.
// It reads JWT_SECRET (required), JWT_EXPIRATION_HOURS (default: 24) and
// JWT_ISSUER (default: resume-optimizer).
func NewJWTConfig() (*JWTConfig, error) {
	return jwtConfigFrom(os.Getenv)
}

func jwtConfigFrom(getenv func(string) string) (*JWTConfig, error) {
	cfg := &JWTConfig{
		Secret:          getenv("JWT_SECRET"),
		ExpirationHours: 24,
		Issuer:          getenv("JWT_ISSUER"),
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultJWTIssuer
	}

	if raw := getenv("JWT_EXPIRATION_HOURS"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %v", err)
		}
		cfg.ExpirationHours = hours
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *JWTConfig) validate() error {
	if c.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required but not set")
	}
	if len(c.Secret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
