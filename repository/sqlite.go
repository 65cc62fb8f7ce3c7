package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ammiranda/tree_changelist/migrations"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteRepository implements Repository using SQLite
type SQLiteRepository struct {
	sqlRepository
	dbPath string
	shared bool
}

// DefaultSQLitePath returns the database path used when none is configured
func DefaultSQLitePath() string {
	// Default to data directory in user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	// Create data directory if it doesn't exist
	dataDir := filepath.Join(homeDir, ".tree_changelist")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		// Fallback to current directory if home directory is not accessible
		dataDir = "."
	}
	return filepath.Join(dataDir, "tree_changelist.db")
}

// NewSQLiteRepository creates a new SQLite repository instance for entity.
// An empty dbPath selects DefaultSQLitePath.
func NewSQLiteRepository(dbPath, entity string) *SQLiteRepository {
	if dbPath == "" {
		dbPath = DefaultSQLitePath()
	}
	return &SQLiteRepository{
		sqlRepository: sqlRepository{entity: entity},
		dbPath:        dbPath,
	}
}

// Initialize opens the database and runs migrations
func (r *SQLiteRepository) Initialize(ctx context.Context) error {
	db, err := sql.Open("sqlite3", "file:"+r.dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("error opening sqlite database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("error pinging database: %w", err)
	}

	if err := migrations.Up(db, migrations.SQLite); err != nil {
		db.Close()
		return err
	}

	r.db = db
	return nil
}

// WithEntity returns a repository for another entity sharing the open
// connection. Cleanup on the returned repository leaves the connection open.
func (r *SQLiteRepository) WithEntity(entity string) *SQLiteRepository {
	fork := *r
	fork.entity = entity
	fork.shared = true
	return &fork
}

// Cleanup closes the database connection
func (r *SQLiteRepository) Cleanup(ctx context.Context) error {
	if r.db != nil && !r.shared {
		return r.db.Close()
	}
	return nil
}
