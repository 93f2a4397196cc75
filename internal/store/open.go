package store

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
)

// Source kinds
const (
	KindYAML     = "yaml"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
	KindGTFS     = "gtfs"
)

// SourceKind reports which backend serves a city source. Postgres URLs,
// "sqlite:" paths and .db files go to the SQL stores, .zip files are GTFS
// feeds and everything else is YAML.
func SourceKind(source string) string {
	switch {
	case strings.HasPrefix(source, "postgres://"), strings.HasPrefix(source, "postgresql://"):
		return KindPostgres
	case strings.HasPrefix(source, "sqlite:"):
		return KindSQLite
	}
	switch strings.ToLower(filepath.Ext(source)) {
	case ".db", ".sqlite", ".sqlite3":
		return KindSQLite
	case ".zip":
		return KindGTFS
	}
	return KindYAML
}

// LoadDocument reads the document behind a city source
func LoadDocument(ctx context.Context, source string) (*Document, error) {
	switch SourceKind(source) {
	case KindPostgres:
		pg, err := ConnectPostgres(ctx, source)
		if err != nil {
			return nil, err
		}
		defer pg.Close()
		return pg.Load(ctx)
	case KindSQLite:
		db, err := Connect(strings.TrimPrefix(source, "sqlite:"))
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return db.Load(ctx)
	case KindGTFS:
		return LoadGTFS(source)
	}
	return LoadYAML(source)
}

// Open loads and builds the city behind a source
func Open(ctx context.Context, source string) (*city.City, error) {
	d, err := LoadDocument(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to load city from %s: %w", source, err)
	}
	c, err := d.Build()
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded city %s from %s source", c.Name, SourceKind(source))
	return c, nil
}
