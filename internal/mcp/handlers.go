package mcp

import (
	"context"
	"fmt"
	"math"

	"fulfillment-twin/internal/calibration"
	"fulfillment-twin/internal/forecast"
	"fulfillment-twin/internal/orders"
	"fulfillment-twin/internal/risk"
	"fulfillment-twin/internal/scoring"
	"fulfillment-twin/internal/stage"
	"fulfillment-twin/internal/stats"
	"fulfillment-twin/internal/visuals"
)

// Response wraps tool output with interpretation guidance for the agent.
type Response struct {
	Data     any      `json:"data"`
	Warnings []string `json:"warnings,omitempty"`
	Guidance []string `json:"guidance,omitempty"`
	Charts   []string `json:"charts,omitempty"`
}

func (r *Response) addChart(chart string) {
	if chart != "" {
		r.Charts = append(r.Charts, chart)
	}
}

func (s *Server) specs(in []StageInput) ([]stage.Spec, error) {
	if len(in) == 0 {
		return s.scenario.Specs()
	}
	out := make([]stage.Spec, 0, len(in))
	for _, si := range in {
		family, err := stage.ParseFamily(si.Family)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", si.Stage, err)
		}
		spec, err := stage.New(si.Stage, family, si.Params)
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

func (s *Server) seed(in *uint64) uint64 {
	if in != nil {
		return *in
	}
	return s.cfg.Seed
}

func (s *Server) handleSimulate(ctx context.Context, in SimulateInput) (any, error) {
	specs, err := s.specs(in.Stages)
	if err != nil {
		return nil, err
	}
	for _, q := range in.Percentiles {
		if math.IsNaN(q) || q < 0 || q > 1 {
			return nil, fmt.Errorf("percentile %v outside [0, 1]", q)
		}
	}
	sla := in.SLADays
	if sla <= 0 {
		sla = s.scenario.SLAOr(s.cfg.SLAThresholdDays)
	}

	a, err := forecast.Assess(ctx, s.engine, s.classifier, specs, forecast.Options{
		Samples:        in.Samples,
		Seed:           s.seed(in.Seed),
		Percentiles:    in.Percentiles,
		SLADays:        sla,
		Cost:           s.scenario.CostModel(in.OrderValue),
		NaiveFallback:  s.scenario.NaiveFallback,
		SurvivalPoints: in.SurvivalPoints,
		HistogramBins:  in.HistogramBins,
	})
	if err != nil {
		return nil, err
	}

	resp := Response{Data: a}
	resp.Guidance = append(resp.Guidance,
		fmt.Sprintf("Half of the simulated orders arrive within %.1f days; %.0f%% arrive within the recommended promise of %.1f days.",
			a.Result.P50, (1-a.PromiseExceedance)*100, a.RecommendedSLA),
		fmt.Sprintf("The naive sum of stage means (%.1f days) is exceeded by %.0f%% of simulated orders.", a.Naive, a.NaiveExceedance*100),
	)
	if a.Classification.Tier == risk.TierHigh {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("High risk: %.0f%% of simulated orders breach the %.1f day SLA.", a.Classification.Exceedance*100, sla))
	}
	if !a.Result.Exact {
		resp.Warnings = append(resp.Warnings, "Percentiles come from a bounded reservoir sample; mean and standard deviation are exact.")
	}
	if in.Charts {
		resp.addChart(visuals.GeneratePercentileChart(a.Result))
		resp.addChart(visuals.GenerateSurvivalChart(a.Survival))
		if a.Histogram != nil {
			resp.addChart(visuals.GenerateHistogramChart(*a.Histogram))
		}
	}
	return resp, nil
}

func (s *Server) handleClassify(ctx context.Context, in ClassifyInput) (any, error) {
	if len(in.SLADays) == 0 {
		return nil, fmt.Errorf("at least one sla_days value is required")
	}
	specs, err := s.specs(in.Stages)
	if err != nil {
		return nil, err
	}
	a, err := forecast.Assess(ctx, s.engine, s.classifier, specs, forecast.Options{
		Samples:     in.Samples,
		Seed:        s.seed(in.Seed),
		SLADays:     in.SLADays[0],
		Cost:        s.scenario.CostModel(0),
		KeepSamples: true,
	})
	if err != nil {
		return nil, err
	}

	out := make([]risk.Classification, 0, len(in.SLADays))
	for _, sla := range in.SLADays {
		c, err := s.classifier.Classify(a.Result, sla)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return Response{
		Data: map[string]any{
			"classifications": out,
			"tiers":           s.classifier.Tiers(),
			"p50":             a.Result.P50,
			"p95":             a.Result.P95,
			"samples":         a.Result.N,
		},
	}, nil
}

func (s *Server) handleImport(_ context.Context, in ImportInput) (any, error) {
	sourceID := in.SourceID
	if sourceID == "" {
		sourceID = sourceFromPath(in.CSVPath)
	}
	if err := s.ensureLoaded(sourceID); err != nil {
		return nil, err
	}
	n, err := s.importCSV(sourceID, in.CSVPath)
	if err != nil {
		return nil, err
	}
	return Response{
		Data: map[string]any{
			"source_id": sourceID,
			"imported":  n,
			"total":     s.store.Count(sourceID),
		},
		Guidance: []string{"Call fit_stages to estimate stage distributions or compare_models to backtest the naive estimate."},
	}, nil
}

// CohortFit is the fit_stages result for one cohort.
type CohortFit struct {
	Cohort      string                  `json:"cohort"`
	Orders      int                     `json:"orders"`
	Calibration calibration.Calibration `json:"calibration"`
}

func (s *Server) fitOptions(method string, trim float64) (calibration.Options, error) {
	m := s.cfg.FitMethod
	if method != "" {
		parsed, err := stage.ParseFitMethod(method)
		if err != nil {
			return calibration.Options{}, err
		}
		m = parsed
	}
	return s.scenario.FitOptions(m, trim)
}

func (s *Server) handleFit(_ context.Context, in FitInput) (any, error) {
	records, err := s.history(in.SourceID, in.CSVPath, in.From, in.To)
	if err != nil {
		return nil, err
	}
	key, err := orders.ParseCohortKey(in.Cohort)
	if err != nil {
		return nil, err
	}
	opts, err := s.fitOptions(in.Method, in.TrimQuantile)
	if err != nil {
		return nil, err
	}
	targets, err := s.scenario.Targets()
	if err != nil {
		return nil, err
	}

	resp := Response{}
	var fits []CohortFit
	for _, c := range orders.GroupBy(records, key) {
		cal, err := calibration.Fit(c.Records, targets, opts)
		if err != nil {
			return nil, fmt.Errorf("cohort %s: %w", c.Key, err)
		}
		fits = append(fits, CohortFit{Cohort: c.Key, Orders: len(c.Records), Calibration: cal})
		if len(cal.FallbackStages) > 0 {
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("Cohort %s: %v could not be fitted and use the configured scenario.", c.Key, cal.FallbackStages))
		}
		if unstable := cal.Unstable(); len(unstable) > 0 {
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("Cohort %s: history of %v is not stable; a single fitted distribution may blend regimes.", c.Key, unstable))
		}
		if in.Charts {
			for _, t := range targets {
				subgroups := stats.GroupIntoSubgroups(orders.Observations(c.Records, t.Stage), calibration.DefaultSubgroupSize)
				resp.addChart(visuals.GenerateEvolutionChart(c.Key+" "+t.Stage, stats.CalculateThreeWayXmR(subgroups)))
			}
		}
	}
	resp.Data = fits
	return resp, nil
}

func (s *Server) handleCompare(ctx context.Context, in CompareInput) (any, error) {
	records, err := s.history(in.SourceID, in.CSVPath, in.From, in.To)
	if err != nil {
		return nil, err
	}
	key, err := orders.ParseCohortKey(in.Cohort)
	if err != nil {
		return nil, err
	}
	opts, err := s.fitOptions(in.Method, in.TrimQuantile)
	if err != nil {
		return nil, err
	}
	targets, err := s.scenario.Targets()
	if err != nil {
		return nil, err
	}
	holdout := in.Holdout
	if holdout <= 0 {
		holdout = 0.2
	}

	res, err := scoring.Backtest(ctx, s.engine, records, scoring.BacktestConfig{
		Targets: targets,
		Fit:     opts,
		Holdout: holdout,
		Cohort:  key,
		Samples: in.Samples,
		Seed:    s.seed(in.Seed),
		Compare: s.cfg.Scoring,
	})
	if err != nil {
		return nil, err
	}

	resp := Response{Data: res, Guidance: []string{res.ValidationNotes}}
	if in.Charts {
		resp.addChart(visuals.GenerateComparisonChart(res.Report))
	}
	if !res.Report.HighVariance {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("Actual totals vary little (variance %.1f <= %.1f); the naive estimate is expected to be competitive.",
			res.Report.TruthVariance, s.cfg.Scoring.VarianceThreshold))
	}
	return resp, nil
}
