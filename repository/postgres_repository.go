package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ammiranda/tree_changelist/config"
	"github.com/ammiranda/tree_changelist/migrations"

	_ "github.com/lib/pq"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	sqlRepository
	config *config.DatabaseConfig
	shared bool
}

// NewPostgresRepository creates a new PostgreSQL repository for entity
func NewPostgresRepository(ctx context.Context, cfgProvider config.Provider, entity string) (*PostgresRepository, error) {
	cfg, err := config.GetDatabaseConfig(ctx, cfgProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to get database config: %w", err)
	}

	return &PostgresRepository{
		sqlRepository: sqlRepository{
			entity:    entity,
			numbered:  true,
			returning: true,
			lock:      postgresEntityLock,
		},
		config: cfg,
	}, nil
}

// Initialize sets up the PostgreSQL database
func (r *PostgresRepository) Initialize(ctx context.Context) error {
	// Construct connection string
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		r.config.Host,
		r.config.Port,
		r.config.User,
		r.config.Password,
		r.config.DBName,
		r.config.SSLMode,
	)

	// Open database connection
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("error pinging database: %w", err)
	}

	// Run migrations
	if err := migrations.Up(db, migrations.Postgres); err != nil {
		db.Close()
		return err
	}

	r.db = db
	return nil
}

// WithEntity returns a repository for another entity sharing the pool.
// Cleanup on the returned repository leaves the pool open.
func (r *PostgresRepository) WithEntity(entity string) *PostgresRepository {
	fork := *r
	fork.entity = entity
	fork.shared = true
	return &fork
}

// Cleanup closes the database connection
func (r *PostgresRepository) Cleanup(ctx context.Context) error {
	if r.db != nil && !r.shared {
		return r.db.Close()
	}
	return nil
}
