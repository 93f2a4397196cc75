package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/query"
)

var timetableCmd = &cobra.Command{
	Use:   "timetable <station>",
	Short: "Show the trains calling at a station on a date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		req := query.TimetableRequest{Station: args[0]}
		req.Date, _ = flags.GetString("date")
		req.Line, _ = flags.GetString("line")
		req.Direction, _ = flags.GetString("direction")
		req.Destination, _ = flags.GetString("to")
		req.Time, _ = flags.GetString("time")
		req.Count, _ = flags.GetInt("count")
		req.IncludeRoutes, _ = flags.GetStringSlice("include")
		req.ExcludeRoutes, _ = flags.GetStringSlice("exclude")
		if req.Date == "" {
			req.Date = today()
		}

		svc, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		blocks, err := svc.StationTimetable(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), query.RenderTimetable(req.Station, blocks))
		return nil
	},
}

var trainCmd = &cobra.Command{
	Use:   "train <line>",
	Short: "Show one train, by code or by the call nearest a time at a station",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		req := query.TrainRequest{Line: args[0]}
		req.Date, _ = flags.GetString("date")
		req.Code, _ = flags.GetString("code")
		req.Station, _ = flags.GetString("station")
		req.Time, _ = flags.GetString("time")
		req.Direction, _ = flags.GetString("direction")
		if req.Date == "" {
			req.Date = today()
		}
		if req.Code == "" && req.Station == "" {
			return fmt.Errorf("%w: give --code, or --station and --time", query.ErrInput)
		}

		svc, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		detail, err := svc.TrainDetail(req)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), detail)
		}
		fmt.Fprint(cmd.OutOrStdout(), query.RenderTrainDetail(detail))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(timetableCmd, trainCmd)

	timetableCmd.Flags().StringP("date", "d", "", "Service date (YYYY-MM-DD), defaults to today")
	timetableCmd.Flags().StringP("line", "l", "", "Only this line")
	timetableCmd.Flags().String("direction", "", "Only this direction (requires --line)")
	timetableCmd.Flags().StringP("to", "t", "", "Only trains that reach this station")
	timetableCmd.Flags().String("time", "", "Only trains calling at or after HH:MM")
	timetableCmd.Flags().IntP("count", "n", 0, "Trains per block when --time is set (0 for all)")
	timetableCmd.Flags().StringSlice("include", nil, "Only trains with these route tags")
	timetableCmd.Flags().StringSlice("exclude", nil, "Skip trains with these route tags")

	trainCmd.Flags().StringP("date", "d", "", "Service date (YYYY-MM-DD), defaults to today")
	trainCmd.Flags().StringP("code", "c", "", "Train code")
	trainCmd.Flags().StringP("station", "s", "", "Station the train calls at")
	trainCmd.Flags().String("time", "", "Time near the call (HH:MM)")
	trainCmd.Flags().String("direction", "", "Only this direction")
}
