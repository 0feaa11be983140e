package main

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/travelsearch/internal/search"
)

var (
	searchReq     search.Request
	searchTimeout time.Duration
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one search and print tagged offers as JSON",
	Example: `  travelsearch search --vertical flights --origin JFK --destination LAX \
    --start 2026-11-01 --end 2026-11-08 --travelers 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		req := searchReq
		if searchTimeout > 0 {
			req.TimeoutMs = int(searchTimeout / time.Millisecond)
		}
		vertical, params, opts, err := req.Parse(env.Defaults)
		if err != nil {
			return err
		}

		res := env.Service.Search(ctx, vertical, params, opts)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return eris.Wrap(err, "encode result")
		}
		return nil
	},
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&searchReq.Vertical, "vertical", "", "vertical to search (flights, stays, cars, packages, cruises, activities)")
	f.StringVar(&searchReq.Origin, "origin", "", "origin code or city")
	f.StringVar(&searchReq.Destination, "destination", "", "destination code or city")
	f.StringVar(&searchReq.StartDate, "start", "", "start date (YYYY-MM-DD)")
	f.StringVar(&searchReq.EndDate, "end", "", "end date (YYYY-MM-DD)")
	f.IntVar(&searchReq.Travelers, "travelers", 1, "number of travelers")
	f.StringSliceVar(&searchReq.Providers, "providers", nil, "restrict to these providers")
	f.BoolVar(&searchReq.NoCache, "no-cache", false, "bypass the whole-search cache")
	f.DurationVar(&searchTimeout, "timeout", 0, "per-attempt provider timeout (default from config)")
	_ = searchCmd.MarkFlagRequired("vertical")
	_ = searchCmd.MarkFlagRequired("start")
	rootCmd.AddCommand(searchCmd)
}
