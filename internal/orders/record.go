package orders

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

// Record is one historical order with its observed per-stage durations in days.
// Missing observations are NaN or absent from Stages.
type Record struct {
	OrderID     string
	PurchasedAt time.Time
	Category    string
	Region      string
	Stages      map[string]float64
	ActualTotal float64
	OrderValue  float64
}

// ValidDuration reports whether v can be a duration in days: finite and not
// negative.
func ValidDuration(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Observed returns the duration of a stage and whether it was recorded.
// Negative or non-finite values count as not recorded.
func (r Record) Observed(stage string) (float64, bool) {
	v, ok := r.Stages[stage]
	if !ok || !ValidDuration(v) {
		return 0, false
	}
	return v, true
}

// HasActual reports whether the true end-to-end duration is known.
func (r Record) HasActual() bool {
	return ValidDuration(r.ActualTotal)
}

// Observations collects the recorded durations of one stage across records.
func Observations(records []Record, stage string) []float64 {
	out := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := r.Observed(stage); ok {
			out = append(out, v)
		}
	}
	return out
}

// recordJSON is the cache representation. Missing values are encoded as null
// since JSON has no NaN.
type recordJSON struct {
	OrderID     string              `json:"order_id"`
	PurchasedAt *time.Time          `json:"purchased_at,omitempty"`
	Category    string              `json:"category,omitempty"`
	Region      string              `json:"region,omitempty"`
	Stages      map[string]*float64 `json:"stages,omitempty"`
	ActualTotal *float64            `json:"actual_total"`
	OrderValue  float64             `json:"order_value,omitempty"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		OrderID:     r.OrderID,
		Category:    r.Category,
		Region:      r.Region,
		ActualTotal: finitePtr(r.ActualTotal),
		OrderValue:  r.OrderValue,
	}
	if !r.PurchasedAt.IsZero() {
		t := r.PurchasedAt
		out.PurchasedAt = &t
	}
	if len(r.Stages) > 0 {
		out.Stages = make(map[string]*float64, len(r.Stages))
		for k, v := range r.Stages {
			out.Stages[k] = finitePtr(v)
		}
	}
	return json.Marshal(out)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Record{
		OrderID:     in.OrderID,
		Category:    in.Category,
		Region:      in.Region,
		ActualTotal: fromPtr(in.ActualTotal),
		OrderValue:  in.OrderValue,
		Stages:      make(map[string]float64, len(in.Stages)),
	}
	if in.PurchasedAt != nil {
		r.PurchasedAt = *in.PurchasedAt
	}
	for k, v := range in.Stages {
		r.Stages[k] = fromPtr(v)
	}
	return nil
}

func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func fromPtr(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// sortRecords orders records chronologically, undated records first, with the
// order id as tie-breaker.
func sortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.PurchasedAt.Equal(b.PurchasedAt) {
			return a.PurchasedAt.Before(b.PurchasedAt)
		}
		return a.OrderID < b.OrderID
	})
}
