package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment represents the application environment
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// currentEnvironment reads APP_ENV, defaulting to development
func currentEnvironment() Environment {
	env := os.Getenv("APP_ENV")
	if env == "" {
		return Development
	}
	return Environment(env)
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Provider defines the interface for configuration management
type Provider interface {
	// GetString retrieves a string configuration value
	GetString(ctx context.Context, key string) (string, error)
	// GetInt retrieves an integer configuration value
	GetInt(ctx context.Context, key string) (int, error)
	// GetBool retrieves a boolean configuration value
	GetBool(ctx context.Context, key string) (bool, error)
	// GetSecret retrieves a secret value
	GetSecret(ctx context.Context, key string) (string, error)
	// GetEnvironment returns the current environment
	GetEnvironment() Environment
}

// EnvProvider implements Provider using environment variables
type EnvProvider struct {
	prefix      string
	environment Environment
}

// NewEnvProvider creates a new environment-based configuration provider.
// Every key is looked up as prefix+key.
func NewEnvProvider(prefix string) Provider {
	return &EnvProvider{
		prefix:      prefix,
		environment: currentEnvironment(),
	}
}

// GetEnvironment returns the current environment
func (p *EnvProvider) GetEnvironment() Environment {
	return p.environment
}

// GetString retrieves a string configuration value from environment variables
func (p *EnvProvider) GetString(ctx context.Context, key string) (string, error) {
	value := os.Getenv(p.prefix + key)
	if value == "" {
		return "", fmt.Errorf("environment variable %s%s not set", p.prefix, key)
	}
	return value, nil
}

// GetInt retrieves an integer configuration value from environment variables
func (p *EnvProvider) GetInt(ctx context.Context, key string) (int, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// GetBool retrieves a boolean configuration value from environment variables
func (p *EnvProvider) GetBool(ctx context.Context, key string) (bool, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(value)
}

// GetSecret retrieves a secret value from environment variables
func (p *EnvProvider) GetSecret(ctx context.Context, key string) (string, error) {
	return p.GetString(ctx, key)
}

// StringOr returns the value of key, or def when the provider has none
func StringOr(ctx context.Context, p Provider, key, def string) string {
	value, err := p.GetString(ctx, key)
	if err != nil || strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

// IntOr returns the integer value of key, or def when it is unset or malformed
func IntOr(ctx context.Context, p Provider, key string, def int) int {
	value, err := p.GetInt(ctx, key)
	if err != nil {
		return def
	}
	return value
}

// DurationOr parses key with time.ParseDuration, or returns def
func DurationOr(ctx context.Context, p Provider, key string, def time.Duration) time.Duration {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return d
}
