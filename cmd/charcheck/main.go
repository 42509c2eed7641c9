package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/3cpo-dev/charcheck/internal/charapi"
	core "github.com/3cpo-dev/charcheck/internal/core"
	"github.com/3cpo-dev/charcheck/internal/suite"
	"github.com/3cpo-dev/charcheck/internal/telemetry"
)

var (
	version   = "1.0.0"
	commit    = ""
	buildDate = "10/19/2026"
)

var (
	// errChecksFailed ends a completed run that had failing checks.
	errChecksFailed = errors.New("some checks failed")
	errInterrupted  = errors.New("interrupted by user")
)

// Create the root command
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "charcheck [base-url]",
		Short: "charcheck: integration checks for the Cosmotrix character endpoints",
		Long: "charcheck exercises the character info, chat, memory and conversation history endpoints " +
			"of a Cosmotrix deployment, prints a summary and writes the results to a JSON file.",
		Args:          cobra.MaximumNArgs(1),
		RunE:          runSuite,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("log", "l", "info", "Set log level. Available: trace, debug, info, warn, error, fatal")
	cmd.PersistentFlags().String("config", "", "config file (default $XDG_CONFIG_HOME/charcheck/config.yaml)")
	cmd.PersistentFlags().String("proxy", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")

	cmd.PersistentPreRun = func(c *cobra.Command, args []string) {
		levelStr, _ := c.Flags().GetString("log")
		switch levelStr {
		case "trace":
			zerolog.SetGlobalLevel(zerolog.TraceLevel)
		case "debug":
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		case "info":
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		case "warn":
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		case "error":
			zerolog.SetGlobalLevel(zerolog.ErrorLevel)
		case "fatal":
			zerolog.SetGlobalLevel(zerolog.FatalLevel)
		default:
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
		if proxy, _ := c.Flags().GetString("proxy"); proxy != "" {
			_ = os.Setenv("HTTP_PROXY", proxy)
			_ = os.Setenv("HTTPS_PROXY", proxy)
		}
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newRunsCmd())
	return cmd
}

// Create the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "charcheck %s (%s) %s\n", version, commit, buildDate)
		},
	}
}

// Load config, apply the optional base URL argument and validate
func loadConfig(cmd *cobra.Command, args []string) (core.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := core.LoadConfig(cfgPath)
	if err != nil {
		return cfg, err
	}
	out := cmd.OutOrStdout()
	switch {
	case len(args) > 0:
		cfg.BaseURL = args[0]
		fmt.Fprintf(out, "Using custom base URL: %s\n", cfg.BaseURL)
	case cfg.BaseURL == core.DefaultBaseURL:
		fmt.Fprintf(out, "Using default base URL: %s\n", cfg.BaseURL)
	default:
		fmt.Fprintf(out, "Using configured base URL: %s\n", cfg.BaseURL)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newClient(cfg core.Config) *charapi.Client {
	return charapi.NewClient(cfg.BaseURL,
		charapi.WithTimeout(cfg.Timeout()),
		charapi.WithToken(cfg.Token),
		charapi.WithUserAgent("charcheck/"+version),
	)
}

// Run the full check sequence
func runSuite(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	metrics := telemetry.NewCollector(cfg.Telemetry.Enabled)
	defer metrics.FlushMetrics()

	runner, err := suite.NewRunner(newClient(cfg), suite.Config{
		BaseURL:  cfg.BaseURL,
		Personas: suite.NewPersonas(cfg.Messages),
		Generation: suite.Generation{
			MaxTokens:         cfg.Generation.MaxTokens,
			FollowUpMaxTokens: cfg.Generation.FollowUpMaxTokens,
			Temperature:       cfg.Generation.Temperature,
		},
		Pacer: suite.Pacer{
			FollowUp:          cfg.FollowUpDelay(),
			BetweenCharacters: cfg.BetweenCharactersDelay(),
		},
		Out:     out,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}

	res, err := runner.RunAll(cmd.Context())
	if err != nil {
		fmt.Fprintln(out, "\n\nTest interrupted by user")
		log.Warn().Err(err).Msg("Run interrupted, results not saved")
		return errInterrupted
	}

	runner.Printer().Report(res.Summary)

	if err := res.Save(cfg.Output); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nTest results saved to %s\n", cfg.Output)

	if cfg.HistoryDB != "" {
		if err := recordRun(cmd.Context(), cfg.HistoryDB, res); err != nil {
			log.Warn().Err(err).Str("path", cfg.HistoryDB).Msg("Could not record run history")
		}
	}

	if !res.Summary.Overall.OK() {
		return errChecksFailed
	}
	return nil
}

// Persist a finished run in the history database
func recordRun(ctx context.Context, path string, res *suite.Results) error {
	store, err := core.NewStore(path)
	if err != nil {
		return err
	}
	defer store.Close()
	data, err := res.Marshal()
	if err != nil {
		return err
	}
	return store.RecordRun(ctx, core.RunRecord{
		ID:         res.RunID,
		BaseURL:    res.BaseURL,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Passed:     res.Summary.Overall.Passed,
		Total:      res.Summary.Overall.Total,
		Results:    data,
	})
}

// Setup the logger
func setupLogger() {
	level := zerolog.InfoLevel
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(level)
}

// exitCode maps the command result to the process status
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// Main entry point
func main() {
	setupLogger()
	root := newRootCmd()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errChecksFailed) && !errors.Is(err, errInterrupted) {
		fmt.Fprintln(os.Stderr, err)
	}
	cancel()
	os.Exit(exitCode(err))
}
