package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/query"
)

var planCmd = &cobra.Command{
	Use:   "plan <from> <to>",
	Short: "Plan journeys between two stations",
	Long: `Plan journeys between two stations departing at a time.

The min_time strategy lists the k earliest-arriving distinct journeys;
min_transfer finds one journey with the fewest transfers.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		req := query.PlanRequest{Origin: args[0], Destination: args[1]}
		req.Date, _ = flags.GetString("date")
		req.Time, _ = flags.GetString("time")
		req.Strategy, _ = flags.GetString("strategy")
		req.K, _ = flags.GetInt("k")
		req.IncludeRoutes, _ = flags.GetStringSlice("include")
		req.ExcludeRoutes, _ = flags.GetStringSlice("exclude")
		if req.Date == "" {
			req.Date = today()
		}
		if req.Time == "" {
			req.Time = now()
		}

		svc, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		res, err := svc.PlanJourney(cmd.Context(), req)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), res)
		}
		fmt.Fprint(cmd.OutOrStdout(), query.RenderPlan(res))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringP("date", "d", "", "Travel date (YYYY-MM-DD), defaults to today")
	planCmd.Flags().StringP("time", "t", "", "Departure time (HH:MM), defaults to now")
	planCmd.Flags().StringP("strategy", "s", query.MinTime, "min_time or min_transfer")
	planCmd.Flags().Int("k", 1, "Number of journeys (min_time)")
	planCmd.Flags().StringSlice("include", nil, "Only board trains with these route tags")
	planCmd.Flags().StringSlice("exclude", nil, "Never board trains with these route tags")
}
