package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	core "github.com/3cpo-dev/charcheck/internal/core"
	"github.com/3cpo-dev/charcheck/internal/suite"
	"github.com/3cpo-dev/charcheck/pkg/api"
)

// Check the health endpoint
func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health [base-url]",
		Short: "Query the health endpoint of the target",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			h, err := newClient(cfg).Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("health check: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status: %s\n", h.Status)
			if h.Model != "" {
				fmt.Fprintf(out, "model:  %s\n", h.Model)
			}
			if h.Memory != "" {
				fmt.Fprintf(out, "memory: %s\n", h.Memory)
			}
			if h.Status != api.StatusHealthy {
				if h.Error != "" {
					return fmt.Errorf("target is %s: %s", h.Status, h.Error)
				}
				return fmt.Errorf("target is %s", h.Status)
			}
			return nil
		},
	}
}

// Inspect the run history
func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs recorded")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tBASE URL\tPASSED\tSTATUS")
			for _, r := range runs {
				status := "FAIL"
				if r.OK() {
					status = "PASS"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.BaseURL, r.Passed, r.Total, status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "maximum number of runs to list")
	cmd.AddCommand(newRunsShowCmd())
	return cmd
}

// Print the summary of a recorded run
func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the summary of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			data, err := store.RunResults(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := suite.ParseResults(data)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s against %s\n", res.RunID, res.BaseURL)
			fmt.Fprintf(out, "Started %s, took %s\n",
				res.StartedAt.Local().Format(time.DateTime), res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
			suite.NewPrinter(out).Report(suite.Summarize(res))
			return nil
		},
	}
}

func openHistory(cmd *cobra.Command) (*core.Store, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := core.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	if cfg.HistoryDB == "" {
		return nil, fmt.Errorf("run history is disabled (history_db is empty)")
	}
	return core.NewStore(cfg.HistoryDB)
}
