package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/config"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/handlers"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/metrics"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/query"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/store"
)

func main() {
	// Load base .env first, then .env.local (which overrides for local development)
	config.LoadEnvFiles(".")
	cfg := config.Load()

	// The city is loaded on the first request that needs it
	source := query.NewLazy(func() (*query.Service, error) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		start := time.Now()
		c, err := store.Open(ctx, cfg.CitySource)
		if err != nil {
			return nil, err
		}
		svc, err := query.NewService(c, query.Options{
			TransferPenalty: cfg.TransferPenalty,
			Timeout:         cfg.QueryTimeout,
			MaxK:            cfg.MaxK,
		})
		if err != nil {
			return nil, err
		}
		stats := svc.Stats()
		log.Printf("City %s ready in %v: %d lines, %d stations, %d trains",
			stats.City, time.Since(start), stats.Lines, stats.Stations, stats.Trains)
		return svc, nil
	})

	// Warm up in the background so the first query does not pay for loading
	go func() {
		if _, err := source.Get(); err != nil {
			log.Printf("Failed to load city from %s: %v", cfg.CitySource, err)
		}
	}()

	latency := metrics.NewLatency()
	plannerHandler := handlers.NewPlannerHandler(source, cfg.PlanCacheTTL, latency)
	healthHandler := handlers.NewHealthHandler(source, latency)

	// Setup router
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-ID"},
	}))

	r.Get("/health", healthHandler.GetHealth)
	plannerHandler.Routes(r)

	log.Printf("API server starting on :%s (city source: %s)", cfg.Port, cfg.CitySource)
	log.Println("Reference endpoints:")
	log.Println("  GET /api/lines")
	log.Println("  GET /api/stations?line=")
	log.Println("  GET /api/directions?line=&from=&to=")
	log.Println("  GET /api/transfers/{station}")
	log.Println("Timetable endpoints:")
	log.Println("  GET /api/timetable/{station}?date=")
	log.Println("  GET /api/trains/{line}?date=&code=")
	log.Println("Planning endpoints:")
	log.Println("  GET /api/plan?from=&to=&date=&time=&strategy=&k=")
	log.Println("Health:")
	log.Println("  GET /health (city size and query latency)")

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
