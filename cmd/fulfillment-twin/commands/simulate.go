package commands

import (
	"fmt"
	"io"

	"fulfillment-twin/internal/forecast"
	"fulfillment-twin/internal/report"

	"github.com/spf13/cobra"
)

type simulateFlags struct {
	sla        float64
	samples    int
	seed       uint64
	orderValue float64
	bins       int
	asJSON     bool
	html       bool
	open       bool
}

var simFlags simulateFlags

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate the total delivery time of the configured stage chain",
	Long: `Runs the Monte-Carlo engine over the scenario's stage distributions and reports
percentiles, the naive sum-of-means estimate, the SLA breach probability and risk tier,
a recommended promise date and the cost of delay.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		specs, err := scenario.Specs()
		if err != nil {
			return err
		}
		classifier, err := newClassifier()
		if err != nil {
			return err
		}

		seed := cfg.Seed
		if cmd.Flags().Changed("seed") {
			seed = simFlags.seed
		}
		sla := simFlags.sla
		if sla <= 0 {
			sla = scenario.SLAOr(cfg.SLAThresholdDays)
		}
		bins := simFlags.bins
		if simFlags.html && bins <= 0 {
			bins = 30
		}

		a, err := forecast.Assess(cmd.Context(), newEngine(), classifier, specs, forecast.Options{
			ID:            "cli",
			Samples:       simFlags.samples,
			Seed:          seed,
			SLADays:       sla,
			Cost:          scenario.CostModel(simFlags.orderValue),
			NaiveFallback: scenario.NaiveFallback,
			HistogramBins: bins,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if simFlags.asJSON {
			if err := writeJSON(out, a); err != nil {
				return err
			}
		} else {
			printAssessment(out, a)
		}

		if simFlags.html {
			path, err := report.Write(cfg.ReportDir, report.Page{Title: "Delivery time forecast", Assessment: a}, simFlags.open || cfg.OpenReport)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Report: %s\n", path)
		}
		return nil
	},
}

func printAssessment(w io.Writer, a *forecast.Assessment) {
	r := a.Result
	fmt.Fprintf(w, "Simulated %d orders (seed %d, run %s)\n", r.N, r.Seed, r.RunID)
	for _, s := range r.Stages {
		fmt.Fprintf(w, "  %s\n", s)
	}
	fmt.Fprintf(w, "\nMean %.2f days, std dev %.2f\n", r.Mean, r.StdDev)
	fmt.Fprintf(w, "P50 %.2f  P90 %.2f  P95 %.2f\n", r.P50, r.P90, r.P95)
	if !r.Exact {
		fmt.Fprintln(w, "(percentiles from a bounded reservoir sample)")
	}
	fmt.Fprintf(w, "\nNaive estimate (sum of stage means): %.2f days, exceeded by %.1f%% of orders\n", a.Naive, a.NaiveExceedance*100)
	fmt.Fprintf(w, "SLA %.1f days: %.1f%% breach, %s risk\n", a.Classification.SLAThreshold, a.Classification.Exceedance*100, a.Classification.Tier)
	fmt.Fprintf(w, "Recommended promise: %.1f days (kept for %.0f%% of orders)\n", a.RecommendedSLA, (1-a.PromiseExceedance)*100)

	c := a.Cost
	fmt.Fprintf(w, "\nCost of delay (%s): expected %s, VaR95 %s, VaR99 %s, CVaR95 %s, naive %s\n",
		c.Currency, c.Expected.StringFixed(2), c.VaR95.StringFixed(2), c.VaR99.StringFixed(2), c.CVaR95.StringFixed(2), c.NaiveCost.StringFixed(2))
	if c.ValueAtRisk.IsPositive() {
		fmt.Fprintf(w, "Order value at risk: %s\n", c.ValueAtRisk.StringFixed(2))
	}
}

func init() {
	f := simulateCmd.Flags()
	f.Float64Var(&simFlags.sla, "sla", 0, "SLA threshold in days (default from scenario or SLA_THRESHOLD_DAYS)")
	f.IntVar(&simFlags.samples, "samples", 0, "number of trials (default SIM_SAMPLE_COUNT)")
	f.Uint64Var(&simFlags.seed, "seed", 0, "random seed (default SIM_SEED)")
	f.Float64Var(&simFlags.orderValue, "order-value", 0, "order value exposed when the SLA is breached")
	f.IntVar(&simFlags.bins, "bins", 0, "histogram bins to include")
	f.BoolVar(&simFlags.asJSON, "json", false, "print the assessment as JSON")
	f.BoolVar(&simFlags.html, "report", false, "write an HTML report to the reports folder")
	f.BoolVar(&simFlags.open, "open", false, "open the HTML report in the browser")
	rootCmd.AddCommand(simulateCmd)
}
