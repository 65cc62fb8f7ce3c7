package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPerPage is the number of changelist rows per page when an entity
// does not set its own
const DefaultPerPage = 100

// EntityConfig registers one tree-ordered entity with the admin
type EntityConfig struct {
	Name    string `yaml:"name" validate:"required,max=64,alphanum,lowercase"`
	Title   string `yaml:"title" validate:"max=100"`
	PerPage int    `yaml:"per_page" validate:"gte=0,lte=100"`
}

// DisplayTitle returns Title, or the name with its first letter upper-cased
func (e EntityConfig) DisplayTitle() string {
	if e.Title != "" {
		return e.Title
	}
	if e.Name == "" {
		return ""
	}
	return strings.ToUpper(e.Name[:1]) + e.Name[1:]
}

// RowsPerPage returns PerPage, or DefaultPerPage when unset
func (e EntityConfig) RowsPerPage() int {
	if e.PerPage <= 0 {
		return DefaultPerPage
	}
	return e.PerPage
}

// AdminFile is the layout of the ADMIN_CONFIG_FILE document
type AdminFile struct {
	Prefix   string         `yaml:"prefix"`
	Entities []EntityConfig `yaml:"entities" validate:"dive"`
}

// AppConfig holds the settings of the admin server and Lambda
type AppConfig struct {
	Port           string
	Environment    Environment
	LogLevel       string
	StorageBackend string
	SQLitePath     string
	BoltPath       string
	CacheBackend   string
	CacheTTL       time.Duration
	CORSOrigins    []string
	AdminPrefix    string
	Entities       []EntityConfig
}

var configValidate = newConfigValidator()

// LoadAppConfig reads the application settings from provider and, when
// ADMIN_CONFIG_FILE is set, the entity list from that YAML file
func LoadAppConfig(ctx context.Context, provider Provider) (*AppConfig, error) {
	cfg := &AppConfig{
		Port:           StringOr(ctx, provider, "PORT", "8080"),
		Environment:    provider.GetEnvironment(),
		LogLevel:       StringOr(ctx, provider, "LOG_LEVEL", ""),
		StorageBackend: StringOr(ctx, provider, "STORAGE_BACKEND", "sqlite"),
		SQLitePath:     StringOr(ctx, provider, "SQLITE_PATH", ""),
		BoltPath:       StringOr(ctx, provider, "BOLT_PATH", ""),
		CacheBackend:   StringOr(ctx, provider, "CACHE_BACKEND", "none"),
		CacheTTL:       DurationOr(ctx, provider, "CACHE_TTL", 5*time.Minute),
		CORSOrigins:    splitList(StringOr(ctx, provider, "CORS_ORIGINS", "http://localhost:3000")),
		AdminPrefix:    StringOr(ctx, provider, "ADMIN_PREFIX", "/admin"),
	}

	if path := StringOr(ctx, provider, "ADMIN_CONFIG_FILE", ""); path != "" {
		file, err := LoadAdminFile(path)
		if err != nil {
			return nil, err
		}
		if file.Prefix != "" {
			cfg.AdminPrefix = file.Prefix
		}
		cfg.Entities = file.Entities
	}

	if len(cfg.Entities) == 0 {
		cfg.Entities = []EntityConfig{{Name: "nodes", Title: "Nodes"}}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAdminFile parses and validates an admin YAML file
func LoadAdminFile(path string) (*AdminFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read admin config %s: %w", path, err)
	}

	var file AdminFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse admin config %s: %w", path, err)
	}
	if err := configValidate.Struct(&file); err != nil {
		return nil, fmt.Errorf("invalid admin config %s: %w", path, err)
	}
	return &file, nil
}

// Validate checks the settings that have a fixed set of values
func (c *AppConfig) Validate() error {
	switch c.StorageBackend {
	case "memory", "sqlite", "postgres", "bolt":
	default:
		return &ValidationError{Field: "STORAGE_BACKEND", Message: fmt.Sprintf("unknown backend %q", c.StorageBackend)}
	}

	switch c.CacheBackend {
	case "none", "memory", "redis", "dynamodb":
	default:
		return &ValidationError{Field: "CACHE_BACKEND", Message: fmt.Sprintf("unknown cache %q", c.CacheBackend)}
	}

	if !strings.HasPrefix(c.AdminPrefix, "/") {
		return &ValidationError{Field: "ADMIN_PREFIX", Message: "prefix must start with /"}
	}

	seen := make(map[string]bool, len(c.Entities))
	for _, e := range c.Entities {
		if err := configValidate.Struct(e); err != nil {
			return &ValidationError{Field: "entities", Message: err.Error()}
		}
		if seen[e.Name] {
			return &ValidationError{Field: "entities", Message: fmt.Sprintf("entity %q registered twice", e.Name)}
		}
		seen[e.Name] = true
	}
	return nil
}

// EntityNames returns the registered entity names in configuration order
func (c *AppConfig) EntityNames() []string {
	names := make([]string, 0, len(c.Entities))
	for _, e := range c.Entities {
		names = append(names, e.Name)
	}
	return names
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
