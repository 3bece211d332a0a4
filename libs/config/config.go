package config

import (
	"fmt"
	"strconv"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables into target using
// `env` / `envDefault` struct tags.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ValidatePort reports whether v is a usable TCP port. key is only used in the error.
func ValidatePort(key, v string) error {
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("%s must be a valid TCP port (got %q)", key, v)
	}
	return nil
}
