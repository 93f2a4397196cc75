package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/store"
)

// options are the importer's command line flags
type options struct {
	yamlPath string
	gtfsPath string
	target   string
	dryRun   bool
}

func main() {
	// Command line flags
	var opts options
	flag.StringVar(&opts.yamlPath, "yaml", "data/city.yaml", "Path to the YAML city document")
	flag.StringVar(&opts.gtfsPath, "gtfs", "", "Path to a GTFS zip to import instead of the YAML document")
	flag.StringVar(&opts.target, "target", "data/city.db", "SQLite database path or Postgres URL to import into")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Validate and build the city without writing it")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		log.Fatalf("Import failed: %v", err)
	}
}

func run(ctx context.Context, opts options) error {
	source := opts.yamlPath
	load := store.LoadYAML
	if opts.gtfsPath != "" {
		source, load = opts.gtfsPath, store.LoadGTFS
	}
	doc, err := load(source)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", source, err)
	}

	// Build once so a broken document never reaches the database
	c, err := doc.Build()
	if err != nil {
		return fmt.Errorf("city %s is invalid: %w", doc.Name, err)
	}
	log.Printf("City %s: %d lines, %d stations, %d trains", c.Name, len(c.LineOrder), len(c.Stations), len(c.Trains()))
	if opts.dryRun {
		log.Println("Dry run, nothing written")
		return nil
	}

	var importID string
	switch store.SourceKind(opts.target) {
	case store.KindPostgres:
		pg, err := store.ConnectPostgres(ctx, opts.target)
		if err != nil {
			return fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
		if importID, err = pg.Save(ctx, doc); err != nil {
			return fmt.Errorf("failed to import city: %w", err)
		}
	case store.KindSQLite:
		database, err := store.Connect(strings.TrimPrefix(opts.target, "sqlite:"))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()
		if err := database.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
		if importID, err = database.Save(ctx, doc); err != nil {
			return fmt.Errorf("failed to import city: %w", err)
		}
	default:
		return fmt.Errorf("unsupported target %s: want a .db file, sqlite: path or Postgres URL", opts.target)
	}

	log.Printf("SUCCESS: %s imported into %s (import %s)", c.Name, opts.target, importID)
	return nil
}
