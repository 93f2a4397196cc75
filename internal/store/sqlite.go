package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// schemaSQL is embedded at compile time from schema.sql
//
//go:embed schema.sql
var schemaSQL string

// SQLite stores one city in a SQLite database
type SQLite struct {
	conn    *sql.DB
	writeMu sync.Mutex // serializes imports
}

// Connect opens a SQLite database with WAL mode enabled
func Connect(dbPath string) (*SQLite, error) {
	dsn := dbPath + "?_journal=WAL&_fk=1&_busy_timeout=5000"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = 10000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			log.Printf("Warning: failed to set %s: %v", pragma, err)
		}
	}

	log.Printf("Connected to SQLite database: %s", dbPath)
	return &SQLite{conn: conn}, nil
}

// Close closes the database connection
func (db *SQLite) Close() error {
	return db.conn.Close()
}

// EnsureSchema creates tables if they don't exist
func (db *SQLite) EnsureSchema(ctx context.Context) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	log.Println("Database schema ensured (from embedded schema.sql)")
	return nil
}

// Save replaces the stored city with d in one transaction and returns the
// import id
func (db *SQLite) Save(ctx context.Context, d *Document) (string, error) {
	if err := d.Expand(); err != nil {
		return "", err
	}
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	importID := uuid.New().String()
	importedAt := time.Now().UTC().Format(time.RFC3339)
	if err := writeDocument(ctx, sqlBackend{tx}, d, importID, importedAt); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit import: %w", err)
	}
	log.Printf("Imported city %s into SQLite (import %s)", d.Name, importID)
	return importID, nil
}

// Load reads the stored city
func (db *SQLite) Load(ctx context.Context) (*Document, error) {
	return readDocument(ctx, sqlBackend{db.conn})
}

// ImportID returns the id of the last import
func (db *SQLite) ImportID(ctx context.Context) (string, error) {
	var id string
	if err := db.conn.QueryRowContext(ctx, "SELECT import_id FROM city WHERE id = 1").Scan(&id); err != nil {
		return "", fmt.Errorf("failed to query import id: %w", err)
	}
	return id, nil
}

// sqlBackend runs statements on a *sql.DB or *sql.Tx
type sqlBackend struct {
	db interface {
		ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
		QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	}
}

func (b sqlBackend) query(ctx context.Context, q string, fn func(rows) error) error {
	rs, err := b.db.QueryContext(ctx, q)
	if err != nil {
		return err
	}
	defer rs.Close()
	for rs.Next() {
		if err := fn(rs); err != nil {
			return err
		}
	}
	return rs.Err()
}

func (b sqlBackend) exec(ctx context.Context, q string, args ...any) error {
	_, err := b.db.ExecContext(ctx, q, args...)
	return err
}
