package risk

import (
	"errors"
	"fmt"
	"math"

	"fulfillment-twin/internal/simulation"
	"fulfillment-twin/internal/stats"

	"github.com/shopspring/decimal"
)

var ErrInvalidCostModel = errors.New("invalid cost model")

// CostModel prices lateness quadratically: rate * max(0, total - sla)^2.
// OrderValue is the amount exposed when the order breaches its SLA.
type CostModel struct {
	RatePerDaySquared decimal.Decimal `json:"rate_per_day_squared"`
	Currency          string          `json:"currency"`
	OrderValue        decimal.Decimal `json:"order_value"`
}

// CostReport summarises the simulated cost-of-delay distribution.
type CostReport struct {
	Currency   string          `json:"currency"`
	SLA        float64         `json:"sla"`
	Exceedance float64         `json:"exceedance"`
	Expected   decimal.Decimal `json:"expected"`
	Median     decimal.Decimal `json:"median"`
	VaR95      decimal.Decimal `json:"var_95"`
	VaR99      decimal.Decimal `json:"var_99"`
	CVaR95     decimal.Decimal `json:"cvar_95"`
	// TailShare is the fraction of total cost carried by samples above VaR95.
	TailShare float64 `json:"tail_share"`
	// NaiveCost prices only the mean delivery time, ignoring its spread.
	NaiveCost   decimal.Decimal `json:"naive_cost"`
	ValueAtRisk decimal.Decimal `json:"value_at_risk"`
}

// CostOfDelay evaluates the cost model on every sample of res.
func CostOfDelay(res *simulation.Result, sla float64, model CostModel) (CostReport, error) {
	if res == nil || len(res.Samples) == 0 {
		return CostReport{}, ErrNoSamples
	}
	if model.RatePerDaySquared.IsNegative() {
		return CostReport{}, fmt.Errorf("%w: negative rate %s", ErrInvalidCostModel, model.RatePerDaySquared)
	}
	if model.OrderValue.IsNegative() {
		return CostReport{}, fmt.Errorf("%w: negative order value %s", ErrInvalidCostModel, model.OrderValue)
	}

	// Samples are ascending and lateness^2 is non-decreasing in the total, so
	// the penalties come out sorted.
	penalties := make([]float64, len(res.Samples))
	total := 0.0
	for i, x := range res.Samples {
		late := math.Max(0, x-sla)
		penalties[i] = late * late
		total += penalties[i]
	}

	var95 := stats.PercentileSorted(penalties, 0.95)
	var99 := stats.PercentileSorted(penalties, 0.99)

	tailSum, tailN := 0.0, 0
	for _, p := range penalties {
		if p > var95 {
			tailSum += p
			tailN++
		}
	}
	cvar := var95
	if tailN > 0 {
		cvar = tailSum / float64(tailN)
	}
	share := 0.0
	if total > 0 {
		share = tailSum / total
	}

	naiveLate := math.Max(0, res.Mean-sla)
	exceedance := res.Exceedance(sla)

	price := func(v float64) decimal.Decimal {
		return model.RatePerDaySquared.Mul(decimal.NewFromFloat(v)).Round(2)
	}

	return CostReport{
		Currency:    model.Currency,
		SLA:         sla,
		Exceedance:  exceedance,
		Expected:    price(total / float64(len(penalties))),
		Median:      price(stats.PercentileSorted(penalties, 0.5)),
		VaR95:       price(var95),
		VaR99:       price(var99),
		CVaR95:      price(cvar),
		TailShare:   share,
		NaiveCost:   price(naiveLate * naiveLate),
		ValueAtRisk: model.OrderValue.Mul(decimal.NewFromFloat(exceedance)).Round(2),
	}, nil
}
