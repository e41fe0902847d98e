package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"fulfillment-twin/internal/stage"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// StageInput describes one stage distribution supplied by the client.
type StageInput struct {
	Stage  string       `json:"stage" jsonschema:"Stage name, e.g. processing, warehousing or shipping"`
	Family string       `json:"family" jsonschema:"Distribution family: lognormal, exponential or gamma"`
	Params stage.Params `json:"params" jsonschema:"lognormal uses mu and sigma, exponential uses lambda, gamma uses alpha (shape) and beta (scale)"`
}

type SimulateInput struct {
	Stages         []StageInput `json:"stages,omitempty" jsonschema:"Optional stage chain; defaults to the configured scenario"`
	Samples        int          `json:"samples,omitempty" jsonschema:"Number of Monte-Carlo trials (default from SIM_SAMPLE_COUNT)"`
	Seed           *uint64      `json:"seed,omitempty" jsonschema:"Random seed (default from SIM_SEED); identical inputs and seed give identical results"`
	Percentiles    []float64    `json:"percentiles,omitempty" jsonschema:"Quantiles to report, each in [0, 1]"`
	SLADays        float64      `json:"sla_days,omitempty" jsonschema:"Promised delivery time in days (default from scenario or SLA_THRESHOLD_DAYS)"`
	OrderValue     float64      `json:"order_value,omitempty" jsonschema:"Order value exposed when the SLA is breached"`
	SurvivalPoints int          `json:"survival_points,omitempty" jsonschema:"Optional: number of points of the survival curve P(total > t)"`
	HistogramBins  int          `json:"histogram_bins,omitempty" jsonschema:"Optional: number of histogram bins"`
	Charts         bool         `json:"charts,omitempty" jsonschema:"Optional: include Mermaid charts of percentiles, survival curve and histogram"`
}

type ClassifyInput struct {
	Stages  []StageInput `json:"stages,omitempty" jsonschema:"Optional stage chain; defaults to the configured scenario"`
	SLADays []float64    `json:"sla_days" jsonschema:"One or more SLA thresholds in days to classify against"`
	Samples int          `json:"samples,omitempty" jsonschema:"Number of Monte-Carlo trials"`
	Seed    *uint64      `json:"seed,omitempty" jsonschema:"Random seed"`
}

type ImportInput struct {
	CSVPath  string `json:"csv_path" jsonschema:"Path to an order history CSV"`
	SourceID string `json:"source_id,omitempty" jsonschema:"Name of the history source; defaults to the file name"`
}

type FitInput struct {
	SourceID     string  `json:"source_id,omitempty" jsonschema:"Previously imported history source"`
	CSVPath      string  `json:"csv_path,omitempty" jsonschema:"Order history CSV to import before fitting"`
	From         string  `json:"from,omitempty" jsonschema:"Optional: earliest purchase date to use, RFC3339 or YYYY-MM-DD"`
	To           string  `json:"to,omitempty" jsonschema:"Optional: latest purchase date to use, RFC3339 or YYYY-MM-DD"`
	Cohort       string  `json:"cohort,omitempty" jsonschema:"Grouping: all, category, region or category_region (default all)"`
	Method       string  `json:"method,omitempty" jsonschema:"Estimator: mle or moments (default from FIT_METHOD)"`
	TrimQuantile float64 `json:"trim_quantile,omitempty" jsonschema:"Optional: drop observations at or above this quantile before fitting, e.g. 0.99"`
	Charts       bool    `json:"charts,omitempty" jsonschema:"Optional: include a Mermaid evolution chart per stage"`
}

type CompareInput struct {
	SourceID     string  `json:"source_id,omitempty" jsonschema:"Previously imported history source"`
	CSVPath      string  `json:"csv_path,omitempty" jsonschema:"Order history CSV to import before comparing"`
	From         string  `json:"from,omitempty" jsonschema:"Optional: earliest purchase date to use, RFC3339 or YYYY-MM-DD"`
	To           string  `json:"to,omitempty" jsonschema:"Optional: latest purchase date to use, RFC3339 or YYYY-MM-DD"`
	Cohort       string  `json:"cohort,omitempty" jsonschema:"Grouping: all, category, region or category_region (default all)"`
	Holdout      float64 `json:"holdout,omitempty" jsonschema:"Fraction of the most recent orders held out for scoring (default 0.2)"`
	Method       string  `json:"method,omitempty" jsonschema:"Estimator: mle or moments"`
	TrimQuantile float64 `json:"trim_quantile,omitempty" jsonschema:"Optional: trim quantile applied before fitting"`
	Samples      int     `json:"samples,omitempty" jsonschema:"Monte-Carlo trials per cohort"`
	Seed         *uint64 `json:"seed,omitempty" jsonschema:"Random seed"`
	Charts       bool    `json:"charts,omitempty" jsonschema:"Optional: include a Mermaid chart of both models' errors"`
}

func (s *Server) registerTools() error {
	if err := addTool(s, "simulate_delivery",
		"Simulate the end-to-end delivery time of an order as the sum of independent stage durations (processing, warehousing, shipping). "+
			"Returns percentiles, the naive sum-of-means estimate for comparison, the SLA breach probability and risk tier, a recommended promise date and the quadratic cost of delay.\n\n"+
			"STRICT GUARDRAIL: quote probabilities and dates only from this tool's output. Never derive a delivery promise from the naive estimate.",
		s.handleSimulate); err != nil {
		return err
	}
	if err := addTool(s, "classify_risk",
		"Classify the SLA breach risk (low/medium/high) of the configured or supplied stage chain for one or more SLA thresholds. "+
			"Exceedance is the fraction of simulated totals strictly greater than the threshold.",
		s.handleClassify); err != nil {
		return err
	}
	if err := addTool(s, "import_orders",
		"Import an order history CSV (order_id, purchased_at, category, region, processing, warehousing, shipping, actual_total, order_value) into the local cache. "+
			"Guidance: call fit_stages or compare_models next with the returned source_id.",
		s.handleImport); err != nil {
		return err
	}
	if err := addTool(s, "fit_stages",
		"Fit per-stage distributions from historical orders, optionally per cohort. Reports the fitted parameters, observation counts and a stability check of each stage's history. "+
			"Stages with too little data fall back to the configured scenario and are listed as such.",
		s.handleFit); err != nil {
		return err
	}
	if err := addTool(s, "compare_models",
		"Backtest the naive sum-of-means estimate against the simulated median on a chronological holdout of historical orders. "+
			"Reports MAE, RMSE, bias and within-tolerance share for both models, the skill score and how often actual totals fell inside the simulated P10-P90 band.",
		s.handleCompare); err != nil {
		return err
	}
	return nil
}

// addTool registers a handler whose input schema is inferred from In. The
// handler's value is returned as indented JSON text.
func addTool[In any](s *Server, name, description string, h func(context.Context, In) (any, error)) error {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return fmt.Errorf("input schema for %s: %w", name, err)
	}
	mcp.AddTool(s.server, &mcp.Tool{Name: name, Description: description, InputSchema: schema},
		func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
			log.Debug().Str("tool", name).Msg("Tool called")
			data, err := h(ctx, in)
			if err != nil {
				log.Warn().Err(err).Str("tool", name).Msg("Tool failed")
				return nil, nil, err
			}
			text, err := formatResult(data)
			if err != nil {
				return nil, nil, err
			}
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, nil, nil
		})
	return nil
}

func formatResult(data any) (string, error) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(out), nil
}
