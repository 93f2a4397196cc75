package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var linesCmd = &cobra.Command{
	Use:   "lines",
	Short: "List every line",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		lines := svc.ListLines()
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), lines)
		}
		for _, l := range lines {
			fmt.Fprintln(cmd.OutOrStdout(), l)
		}
		return nil
	},
}

var stationsCmd = &cobra.Command{
	Use:   "stations [line]",
	Short: "List the stations of a line, or every station",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		line := ""
		if len(args) == 1 {
			line = args[0]
		}
		stations, err := svc.ListStations(line)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), stations)
		}
		for _, s := range stations {
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
		return nil
	},
}

var directionsCmd = &cobra.Command{
	Use:   "directions [line]",
	Short: "List line directions, optionally those running from one station to another",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		svc, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		line := ""
		if len(args) == 1 {
			line = args[0]
		}
		dirs, err := svc.ListDirections(line, from, to)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), dirs)
		}
		for _, d := range dirs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", d.Line, d.Direction, strings.Join(d.Stations, " - "))
		}
		return nil
	},
}

var transfersCmd = &cobra.Command{
	Use:   "transfers <station>",
	Short: "Show transfer times at a station, including walks to paired stations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fromLine, _ := cmd.Flags().GetString("from-line")
		toLine, _ := cmd.Flags().GetString("to-line")
		svc, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		metrics, err := svc.TransferMetrics(args[0], fromLine, toLine)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), metrics)
		}
		for _, m := range metrics {
			kind := "transfer"
			if m.Virtual {
				kind = "walk to " + m.ToStation
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s -> %s %s, %d min (%s)\n",
				m.Station, m.FromLine, m.FromDirection, m.ToLine, m.ToDirection, m.Minutes, kind)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(linesCmd, stationsCmd, directionsCmd, transfersCmd)

	directionsCmd.Flags().StringP("from", "f", "", "Station the direction must pass first")
	directionsCmd.Flags().StringP("to", "t", "", "Station the direction must reach later")

	transfersCmd.Flags().String("from-line", "", "Only transfers from this line")
	transfersCmd.Flags().String("to-line", "", "Only transfers to this line")
}
