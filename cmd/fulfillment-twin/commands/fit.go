package commands

import (
	"fmt"

	"fulfillment-twin/internal/calibration"
	"fulfillment-twin/internal/orders"
	"fulfillment-twin/internal/stage"

	"github.com/spf13/cobra"
)

type historyFlags struct {
	cohort string
	method string
	trim   float64
	asJSON bool
}

var fitFlags historyFlags

var fitCmd = &cobra.Command{
	Use:   "fit <orders.csv>",
	Short: "Fit stage distributions from historical orders",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := orders.LoadCSV(args[0])
		if err != nil {
			return err
		}
		key, err := orders.ParseCohortKey(fitFlags.cohort)
		if err != nil {
			return err
		}
		opts, targets, err := historyOptions(fitFlags)
		if err != nil {
			return err
		}

		type cohortFit struct {
			Cohort      string                  `json:"cohort"`
			Orders      int                     `json:"orders"`
			Calibration calibration.Calibration `json:"calibration"`
		}
		var fits []cohortFit
		for _, c := range orders.GroupBy(records, key) {
			cal, err := calibration.Fit(c.Records, targets, opts)
			if err != nil {
				return fmt.Errorf("cohort %s: %w", c.Key, err)
			}
			fits = append(fits, cohortFit{Cohort: c.Key, Orders: len(c.Records), Calibration: cal})
		}

		out := cmd.OutOrStdout()
		if fitFlags.asJSON {
			return writeJSON(out, fits)
		}
		for _, f := range fits {
			fmt.Fprintf(out, "%s (%d orders)\n", f.Cohort, f.Orders)
			for i, s := range f.Calibration.Specs {
				st := f.Calibration.Stability[i]
				fmt.Fprintf(out, "  %-52s n=%-6d median=%-7.2f %s\n", s, f.Calibration.Observations[s.Name()], st.Median, st.Status)
			}
			if len(f.Calibration.FallbackStages) > 0 {
				fmt.Fprintf(out, "  fallback to scenario: %v\n", f.Calibration.FallbackStages)
			}
		}
		return nil
	},
}

func historyOptions(f historyFlags) (calibration.Options, []calibration.Target, error) {
	method := cfg.FitMethod
	if f.method != "" {
		m, err := stage.ParseFitMethod(f.method)
		if err != nil {
			return calibration.Options{}, nil, err
		}
		method = m
	}
	opts, err := scenario.FitOptions(method, f.trim)
	if err != nil {
		return calibration.Options{}, nil, err
	}
	targets, err := scenario.Targets()
	if err != nil {
		return calibration.Options{}, nil, err
	}
	return opts, targets, nil
}

func init() {
	f := fitCmd.Flags()
	f.StringVar(&fitFlags.cohort, "cohort", "all", "grouping: all, category, region or category_region")
	f.StringVar(&fitFlags.method, "method", "", "estimator: mle or moments (default FIT_METHOD)")
	f.Float64Var(&fitFlags.trim, "trim", 0, "drop observations at or above this quantile before fitting")
	f.BoolVar(&fitFlags.asJSON, "json", false, "print the calibration as JSON")
	rootCmd.AddCommand(fitCmd)
}
