package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fulfillment-twin/internal/config"
	"fulfillment-twin/internal/logging"
	"fulfillment-twin/internal/mcp"
	"fulfillment-twin/internal/observability"
	"fulfillment-twin/internal/risk"
	"fulfillment-twin/internal/simulation"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose      bool
	scenarioFile string

	cfg      *config.AppConfig
	scenario *config.Scenario
	shutdown func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "fulfillment-twin",
	Short: "Monte-Carlo delivery time forecasting for multi-stage fulfillment",
	Long: `A digital twin of an order fulfillment chain. Each stage (processing, warehousing, shipping)
is modelled as a probability distribution; the total delivery time is simulated rather than
estimated as the sum of stage means, giving percentiles, SLA breach risk and the cost of delay.

Without a subcommand the tools are served to MCP clients over stdio.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Init(verbose); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Error().Err(err).Msg("Failed to load configuration")
			return err
		}
		if scenarioFile != "" {
			cfg.ScenarioFile = scenarioFile
		}
		scenario, err = config.LoadScenario(cfg.ScenarioFile)
		if err != nil {
			return err
		}

		shutdown, err = observability.InitTracing("fulfillment-twin", cfg.OTelExporter)
		if err != nil {
			return err
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("command", cmd.Name()).
			Msg("fulfillment-twin starting")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if shutdown == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to flush traces")
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := mcp.NewServer(cfg, scenario, Version)
		if err != nil {
			return err
		}
		return server.Run(cmd.Context())
	},
}

// Execute runs the root command until it returns or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&scenarioFile, "scenario", "", "scenario YAML (overrides SCENARIO_FILE)")
}

func newEngine() *simulation.Engine {
	return simulation.NewEngine(cfg.Engine)
}

func newClassifier() (*risk.Classifier, error) {
	return risk.NewClassifier(scenario.TiersOr(cfg.Tiers))
}
