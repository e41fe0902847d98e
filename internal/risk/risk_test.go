package risk

import (
	"context"
	"errors"
	"math"
	"testing"

	"fulfillment-twin/internal/simulation"
	"fulfillment-twin/internal/stage"

	"github.com/shopspring/decimal"
)

func uniformResult() *simulation.Result {
	samples := make([]float64, 11)
	sum := 0.0
	for i := range samples {
		samples[i] = float64(i)
		sum += samples[i]
	}
	return &simulation.Result{N: len(samples), Exact: true, Samples: samples, Mean: sum / 11}
}

func TestTiers_Validate(t *testing.T) {
	tests := []struct {
		tiers Tiers
		ok    bool
	}{
		{DefaultTiers, true},
		{Tiers{Medium: 0, High: 0}, true},
		{Tiers{Medium: 0.5, High: 0.5}, true},
		{Tiers{Medium: 0.5, High: 0.2}, false},
		{Tiers{Medium: -0.1, High: 0.2}, false},
		{Tiers{Medium: 0.1, High: 1.2}, false},
		{Tiers{Medium: math.NaN(), High: 0.2}, false},
	}
	for _, tt := range tests {
		err := tt.tiers.Validate()
		if tt.ok && err != nil {
			t.Errorf("%+v: unexpected error %v", tt.tiers, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidTiers) {
			t.Errorf("%+v: Expected ErrInvalidTiers, got %v", tt.tiers, err)
		}
	}

	if _, err := NewClassifier(Tiers{Medium: 0.9, High: 0.1}); !errors.Is(err, ErrInvalidTiers) {
		t.Errorf("Expected NewClassifier to reject inverted tiers, got %v", err)
	}
}

func TestTiers_Boundaries(t *testing.T) {
	tests := []struct {
		p    float64
		want Tier
	}{
		{0, TierLow},
		{0.0999, TierLow},
		{0.10, TierMedium},
		{0.3499, TierMedium},
		{0.35, TierHigh},
		{1, TierHigh},
	}
	for _, tt := range tests {
		if got := DefaultTiers.Of(tt.p); got != tt.want {
			t.Errorf("Of(%v) = %s, want %s", tt.p, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	c, err := NewClassifier(DefaultTiers)
	if err != nil {
		t.Fatal(err)
	}
	res := uniformResult()

	tests := []struct {
		sla  float64
		p    float64
		tier Tier
	}{
		{10, 0, TierLow},
		{9, 1.0 / 11, TierLow},
		{8, 2.0 / 11, TierMedium},
		{6.5, 4.0 / 11, TierHigh},
		{-1, 1, TierHigh},
	}
	for _, tt := range tests {
		got, err := c.Classify(res, tt.sla)
		if err != nil {
			t.Fatalf("sla %v: %v", tt.sla, err)
		}
		if math.Abs(got.Exceedance-tt.p) > 1e-12 || got.Tier != tt.tier || got.SLAThreshold != tt.sla {
			t.Errorf("sla %v: got %+v, want p=%v tier=%s", tt.sla, got, tt.p, tt.tier)
		}
	}

	if _, err := c.Classify(&simulation.Result{}, 3); !errors.Is(err, ErrNoSamples) {
		t.Errorf("Expected ErrNoSamples, got %v", err)
	}
}

func TestClassify_MonotoneInSLA(t *testing.T) {
	p, _ := stage.LogNormal(stage.Processing, 2.5, 0.8)
	w, _ := stage.Exponential(stage.Warehousing, 0.5)
	s, _ := stage.Gamma(stage.Shipping, 3.0, 1.5)
	res, err := simulation.NewEngine(simulation.EngineConfig{}).Simulate(context.Background(), simulation.Request{
		Stages: []stage.Spec{p, w, s}, Samples: 10000, Seed: 42,
	})
	if err != nil {
		t.Fatal(err)
	}

	c, _ := NewClassifier(DefaultTiers)
	rank := map[Tier]int{TierLow: 0, TierMedium: 1, TierHigh: 2}
	prev, _ := c.Classify(res, 0)
	for sla := 0.5; sla <= 120; sla += 0.5 {
		cur, _ := c.Classify(res, sla)
		if cur.Exceedance > prev.Exceedance {
			t.Fatalf("exceedance rose from %v to %v at sla %v", prev.Exceedance, cur.Exceedance, sla)
		}
		if rank[cur.Tier] > rank[prev.Tier] {
			t.Fatalf("tier rose from %s to %s at sla %v", prev.Tier, cur.Tier, sla)
		}
		prev = cur
	}

	// The end-to-end scenario breaches a 30 day SLA for a sizeable minority of orders.
	at30, _ := c.Classify(res, 30)
	if at30.Exceedance < 0.05 || at30.Exceedance > 0.35 {
		t.Errorf("Expected P(total > 30) between 5%% and 35%%, got %v", at30.Exceedance)
	}
}

func TestRecommendSLA(t *testing.T) {
	res := uniformResult()

	tests := []struct {
		target float64
		want   float64
	}{
		{0, 10},
		{0.05, 10},
		{1.0 / 11, 9},
		{0.2, 8},
		{1, 0},
	}
	for _, tt := range tests {
		got, err := RecommendSLA(res, tt.target)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("RecommendSLA(%v) = %v, want %v", tt.target, got, tt.want)
		}
		if p := res.Exceedance(got); p > tt.target+1e-12 {
			t.Errorf("target %v: recommended %v still breaches with p=%v", tt.target, got, p)
		}
	}

	if _, err := RecommendSLA(res, 1.5); err == nil {
		t.Error("Expected error for target outside [0, 1]")
	}
	if _, err := RecommendSLA(nil, 0.1); !errors.Is(err, ErrNoSamples) {
		t.Errorf("Expected ErrNoSamples, got %v", err)
	}
}

func TestSigmaSLA(t *testing.T) {
	res := &simulation.Result{Mean: 10, StdDev: 2}
	if got := SigmaSLA(res, 3); got != 16 {
		t.Errorf("Expected 16, got %v", got)
	}
}

func TestCostOfDelay(t *testing.T) {
	res := uniformResult()
	model := CostModel{
		RatePerDaySquared: decimal.NewFromInt(2),
		Currency:          "BRL",
		OrderValue:        decimal.NewFromInt(110),
	}

	rep, err := CostOfDelay(res, 5, model)
	if err != nil {
		t.Fatal(err)
	}

	// Penalties before the rate: 0 x6, 1, 4, 9, 16, 25.
	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"expected", rep.Expected, "10"},
		{"median", rep.Median, "0"},
		{"var95", rep.VaR95, "41"},
		{"var99", rep.VaR99, "48.2"},
		{"cvar95", rep.CVaR95, "50"},
		{"naive", rep.NaiveCost, "0"},
		{"value at risk", rep.ValueAtRisk, "50"},
	}
	for _, c := range checks {
		if !c.got.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("%s: Expected %s, got %s", c.name, c.want, c.got)
		}
	}
	if math.Abs(rep.TailShare-25.0/55.0) > 1e-12 {
		t.Errorf("Expected tail share %v, got %v", 25.0/55.0, rep.TailShare)
	}
	if rep.Currency != "BRL" || rep.SLA != 5 {
		t.Errorf("unexpected header fields: %+v", rep)
	}

	bad := model
	bad.RatePerDaySquared = decimal.NewFromInt(-1)
	if _, err := CostOfDelay(res, 5, bad); !errors.Is(err, ErrInvalidCostModel) {
		t.Errorf("Expected ErrInvalidCostModel, got %v", err)
	}
}

func TestCostOfDelay_NoLateness(t *testing.T) {
	rep, err := CostOfDelay(uniformResult(), 100, CostModel{RatePerDaySquared: decimal.NewFromInt(3)})
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Expected.IsZero() || !rep.VaR99.IsZero() || rep.TailShare != 0 || rep.Exceedance != 0 {
		t.Errorf("Expected a zero-cost report, got %+v", rep)
	}
}
