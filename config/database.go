package config

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	dbNamePattern  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)
	specialPattern = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `validate:"required,hostname_rfc1123|ip"`
	Port     int    `validate:"min=1,max=65535"`
	User     string `validate:"required"`
	Password string `validate:"required"`
	DBName   string `validate:"required,dbname"`
	SSLMode  string `validate:"oneof=disable require verify-ca verify-full"`
}

// productionPasswordRules are checked in order against the password in production
var productionPasswordRules = []struct {
	tag     string
	message string
}{
	{"min=12", "password must be at least 12 characters long in production"},
	{"containsany=ABCDEFGHIJKLMNOPQRSTUVWXYZ", "password must contain at least one uppercase letter in production"},
	{"containsany=abcdefghijklmnopqrstuvwxyz", "password must contain at least one lowercase letter in production"},
	{"containsany=0123456789", "password must contain at least one number in production"},
	{"hasspecial", "password must contain at least one special character in production"},
}

// newConfigValidator returns a validator with the config-specific tags registered
func newConfigValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("dbname", func(fl validator.FieldLevel) bool {
		return dbNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("hasspecial", func(fl validator.FieldLevel) bool {
		return specialPattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks if the database configuration is valid
func (c *DatabaseConfig) Validate(env Environment) error {
	if err := configValidate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{Field: fe.Field(), Message: databaseFieldMessage(fe)}
		}
		return err
	}

	if env == Production {
		if err := checkProductionPassword("Password", c.Password); err != nil {
			return err
		}
	}
	return checkSSLMode("SSLMode", c.SSLMode, env)
}

// checkProductionPassword applies the production password complexity rules
func checkProductionPassword(field, password string) error {
	for _, rule := range productionPasswordRules {
		if configValidate.Var(password, rule.tag) != nil {
			return &ValidationError{Field: field, Message: rule.message}
		}
	}
	return nil
}

func checkSSLMode(field, mode string, env Environment) error {
	if configValidate.Var(mode, "oneof=disable require verify-ca verify-full") != nil {
		return &ValidationError{Field: field, Message: "invalid SSL mode"}
	}
	if env == Production && mode == "disable" {
		return &ValidationError{Field: field, Message: "SSL cannot be disabled in production"}
	}
	return nil
}

func databaseFieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "Host":
		if fe.Tag() == "required" {
			return "host cannot be empty"
		}
		return "invalid hostname or IP address"
	case "Port":
		return "port must be between 1 and 65535"
	case "SSLMode":
		return "invalid SSL mode"
	case "DBName":
		if fe.Tag() == "dbname" {
			return "database name must start with a letter and contain only letters, numbers, and underscores"
		}
	}
	return fmt.Sprintf("%s failed the %q check", fe.Field(), fe.Tag())
}

// GetDatabaseConfig retrieves database configuration using the provided config provider
func GetDatabaseConfig(ctx context.Context, provider Provider) (*DatabaseConfig, error) {
	host, err := provider.GetString(ctx, "DB_HOST")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_HOST: %w", err)
	}

	port, err := provider.GetInt(ctx, "DB_PORT")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_PORT: %w", err)
	}

	user, err := provider.GetString(ctx, "DB_USER")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_USER: %w", err)
	}

	password, err := provider.GetSecret(ctx, "DB_PASSWORD")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_PASSWORD: %w", err)
	}

	dbname, err := provider.GetString(ctx, "DB_NAME")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_NAME: %w", err)
	}

	cfg := &DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		DBName:   dbname,
		SSLMode:  StringOr(ctx, provider, "DB_SSLMODE", "disable"),
	}

	if err := cfg.Validate(provider.GetEnvironment()); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	return cfg, nil
}
