package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/clock"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/config"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/query"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/store"
)

var (
	citySource string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "subwayctl",
	Short: "Query subway timetables and plan journeys",
	Long: `subwayctl answers questions about a timetabled subway network:
lines, stations, transfers, station timetables, single trains and
journeys between two stations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&citySource, "city", "", "City source: YAML file, GTFS zip, SQLite database or Postgres URL (default $CITY_SOURCE)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
}

func main() {
	config.LoadEnvFiles(".")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, query.UserMessage(err))
		os.Exit(1)
	}
}

// openService loads the city named by --city
func openService(ctx context.Context) (*query.Service, error) {
	cfg := config.Load()
	source := citySource
	if source == "" {
		source = cfg.CitySource
	}
	c, err := store.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	return query.NewService(c, query.Options{
		TransferPenalty: cfg.TransferPenalty,
		Timeout:         cfg.QueryTimeout,
		MaxK:            cfg.MaxK,
	})
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func today() string {
	return time.Now().Format(clock.DateLayout)
}

func now() string {
	return time.Now().Format("15:04")
}
