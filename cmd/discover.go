// -- cmd/discover.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/crawlkit/careerscout/internal/browser"
	"github.com/crawlkit/careerscout/internal/config"
	"github.com/crawlkit/careerscout/internal/observability"
	"github.com/crawlkit/careerscout/internal/orchestrator"
	"github.com/crawlkit/careerscout/internal/records"
)

// newDiscoverCmd creates and configures the `discover` command.
func newDiscoverCmd() *cobra.Command {
	discoverCmd := &cobra.Command{
		Use:   "discover [start-urls...]",
		Short: "Scans the given sites for a path to their job listing pages",
		Long: `Discover renders each start URL, sweeps it viewport by viewport looking
for careers-style navigation, clicks through up to the hop budget and writes
one JSONL training record per detected candidate element.`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment with the right precedence.
			if err := viper.BindPFlag("output.path", cmd.Flags().Lookup("output")); err != nil {
				return err
			}
			if err := viper.BindPFlag("discovery.max_hops", cmd.Flags().Lookup("max-hops")); err != nil {
				return err
			}
			if err := viper.BindPFlag("discovery.concurrency", cmd.Flags().Lookup("concurrency")); err != nil {
				return err
			}
			if err := viper.BindPFlag("discovery.attempt_timeout", cmd.Flags().Lookup("attempt-timeout")); err != nil {
				return err
			}
			if err := viper.BindPFlag("scanner.max_scroll", cmd.Flags().Lookup("max-scroll")); err != nil {
				return err
			}
			if err := viper.BindPFlag("scanner.step_size", cmd.Flags().Lookup("step")); err != nil {
				return err
			}
			return viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Context comes from main and is signal-aware.
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			targets := normalizeTargets(args)
			logger.Info("Starting discovery run",
				zap.Strings("targets", targets),
				zap.Int("max_hops", cfg.Discovery.MaxHops),
				zap.Int("concurrency", cfg.Discovery.Concurrency),
				zap.String("output", cfg.Output.Path))

			writer, err := records.Open(cfg.Output.Path)
			if err != nil {
				return fmt.Errorf("failed to open record output: %w", err)
			}
			defer func() {
				if err := writer.Close(); err != nil {
					logger.Warn("Closing record output failed", zap.Error(err))
				}
			}()

			manager := browser.NewManager(cfg, logger)
			defer func() {
				if err := manager.Shutdown(context.Background()); err != nil {
					logger.Warn("Browser shutdown failed", zap.Error(err))
				}
			}()

			orch := orchestrator.New(manager, writer, *cfg, logger)
			summary, err := orch.Run(ctx, targets)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Discovery run aborted by signal")
				} else {
					logger.Error("Discovery run ended early", zap.Error(err))
				}
			}

			printSummary(cmd, summary)
			return nil
		},
	}

	discoverCmd.Flags().StringP("output", "o", "records.jsonl", "path of the JSONL training record file ('stdout' for standard output)")
	discoverCmd.Flags().Int("max-hops", 4, "maximum page navigations per attempt")
	discoverCmd.Flags().Int("concurrency", 2, "number of attempts to run in parallel")
	discoverCmd.Flags().Duration("attempt-timeout", 0, "overall time budget per attempt (0 = unbounded)")
	discoverCmd.Flags().Int("max-scroll", 20000, "scroll depth budget per page, in pixels")
	discoverCmd.Flags().Int("step", 800, "scroll step in pixels for the upper half of a page")
	discoverCmd.Flags().Bool("headless", true, "run the browser headless")

	return discoverCmd
}

// normalizeTargets gives scheme-less arguments an https prefix.
func normalizeTargets(args []string) []string {
	targets := make([]string, len(args))
	for i, arg := range args {
		if !strings.HasPrefix(arg, "http://") && !strings.HasPrefix(arg, "https://") {
			arg = "https://" + arg
		}
		targets[i] = arg
	}
	return targets
}

func printSummary(cmd *cobra.Command, summary *orchestrator.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nDiscovery finished in %s\n", summary.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "  attempts: %d  success: %d  partial: %d  failed: %d\n",
		len(summary.Attempts), summary.Success, summary.Partial, summary.Failed)
	fmt.Fprintf(out, "  training records: %d\n\n", summary.Records)

	for _, a := range summary.Attempts {
		fmt.Fprintf(out, "  [%s] %s", a.Outcome, a.StartURL)
		if a.ListingURL != "" {
			fmt.Fprintf(out, " -> %s", a.ListingURL)
		}
		fmt.Fprintf(out, " (hops=%d records=%d)\n", a.HopCount, a.RecordsEmitted)
	}
}
