package store

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema_postgres.sql
var postgresSchemaSQL string

// Postgres stores one city in a Postgres database
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres creates a connection pool and checks it
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// EnsureSchema creates tables if they don't exist
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	log.Println("Database schema ensured (from embedded schema_postgres.sql)")
	return nil
}

// Save replaces the stored city with d in one transaction and returns the
// import id
func (p *Postgres) Save(ctx context.Context, d *Document) (string, error) {
	if err := d.Expand(); err != nil {
		return "", err
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	importID := uuid.New().String()
	importedAt := time.Now().UTC().Format(time.RFC3339)
	if err := writeDocument(ctx, pgxBackend{tx}, d, importID, importedAt); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit import: %w", err)
	}
	log.Printf("Imported city %s into Postgres (import %s)", d.Name, importID)
	return importID, nil
}

// Load reads the stored city
func (p *Postgres) Load(ctx context.Context) (*Document, error) {
	return readDocument(ctx, pgxBackend{p.pool})
}

// pgxBackend runs statements on a pool or transaction
type pgxBackend struct {
	db interface {
		Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
		Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	}
}

func (b pgxBackend) query(ctx context.Context, q string, fn func(rows) error) error {
	rs, err := b.db.Query(ctx, q)
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

func (b pgxBackend) exec(ctx context.Context, q string, args ...any) error {
	_, err := b.db.Exec(ctx, rebind(q), args...)
	return err
}

// rebind turns "?" placeholders into "$1", "$2", ...
func rebind(q string) string {
	if !strings.Contains(q, "?") {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
