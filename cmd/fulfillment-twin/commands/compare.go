package commands

import (
	"fmt"

	"fulfillment-twin/internal/orders"
	"fulfillment-twin/internal/report"
	"fulfillment-twin/internal/scoring"

	"github.com/spf13/cobra"
)

var (
	compareFlags   historyFlags
	compareHoldout float64
	compareSamples int
	compareHTML    bool
)

var compareCmd = &cobra.Command{
	Use:   "compare <orders.csv>",
	Short: "Backtest the naive estimate against the simulated median",
	Long: `Holds out the most recent orders, fits stage distributions per cohort on the rest and
scores both the naive sum-of-means and the simulated median against the held-out totals.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := orders.LoadCSV(args[0])
		if err != nil {
			return err
		}
		key, err := orders.ParseCohortKey(compareFlags.cohort)
		if err != nil {
			return err
		}
		opts, targets, err := historyOptions(compareFlags)
		if err != nil {
			return err
		}

		res, err := scoring.Backtest(cmd.Context(), newEngine(), records, scoring.BacktestConfig{
			Targets: targets,
			Fit:     opts,
			Holdout: compareHoldout,
			Cohort:  key,
			Samples: compareSamples,
			Seed:    cfg.Seed,
			Compare: cfg.Scoring,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if compareFlags.asJSON {
			if err := writeJSON(out, res); err != nil {
				return err
			}
		} else {
			r := res.Report
			fmt.Fprintf(out, "Train %d / test %d orders, %d cohorts\n\n", res.TrainSize, res.TestSize, len(res.Cohorts))
			fmt.Fprintf(out, "%-12s %8s %8s %8s %8s\n", "model", "MAE", "RMSE", "bias", "within")
			for _, row := range []struct {
				name string
				m    scoring.Metrics
			}{{"naive", r.Naive}, {"stochastic", r.Stochastic}} {
				fmt.Fprintf(out, "%-12s %8.2f %8.2f %8.2f %7.1f%%\n", row.name, row.m.MAE, row.m.RMSE, row.m.Bias, row.m.WithinTolerance*100)
			}
			fmt.Fprintf(out, "\nSkill %.3f, P10-P90 coverage %.1f%%\n%s\n", r.Skill, r.Coverage*100, res.ValidationNotes)
		}

		if compareHTML {
			path, err := report.Write(cfg.ReportDir, report.Page{Title: "Backtest", Backtest: &res}, cfg.OpenReport)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Report: %s\n", path)
		}
		return nil
	},
}

func init() {
	f := compareCmd.Flags()
	f.StringVar(&compareFlags.cohort, "cohort", "all", "grouping: all, category, region or category_region")
	f.StringVar(&compareFlags.method, "method", "", "estimator: mle or moments (default FIT_METHOD)")
	f.Float64Var(&compareFlags.trim, "trim", 0, "drop observations at or above this quantile before fitting")
	f.Float64Var(&compareHoldout, "holdout", 0.2, "fraction of the most recent orders held out for scoring")
	f.IntVar(&compareSamples, "samples", 0, "trials per cohort (default SIM_SAMPLE_COUNT)")
	f.BoolVar(&compareFlags.asJSON, "json", false, "print the backtest as JSON")
	f.BoolVar(&compareHTML, "report", false, "write an HTML report to the reports folder")
	rootCmd.AddCommand(compareCmd)
}
