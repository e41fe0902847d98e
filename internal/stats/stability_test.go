package stats

import (
	"math"
	"testing"
)

func TestCalculateXmRWithKeys(t *testing.T) {
	values := []float64{10, 12, 11, 13, 11}
	result := CalculateXmRWithKeys(values, nil)

	expectedAvg := 11.4
	if math.Abs(result.Average-expectedAvg) > 0.001 {
		t.Errorf("Expected average %v, got %v", expectedAvg, result.Average)
	}

	expectedAmR := 1.75
	if math.Abs(result.AmR-expectedAmR) > 0.001 {
		t.Errorf("Expected AmR %v, got %v", expectedAmR, result.AmR)
	}

	expectedUNPL := 16.055
	if math.Abs(result.UNPL-expectedUNPL) > 0.001 {
		t.Errorf("Expected UNPL %v, got %v", expectedUNPL, result.UNPL)
	}

	if len(result.Signals) != 0 {
		t.Errorf("Expected 0 signals, got %v", len(result.Signals))
	}
}

func TestXmRSignals(t *testing.T) {
	values := []float64{10, 11, 10, 11, 10, 11, 10, 11, 10, 11, 100}
	result := CalculateXmRWithKeys(values, nil)
	foundOutlier := false
	for _, s := range result.Signals {
		if s.Type == "outlier" && s.Index == 10 {
			foundOutlier = true
		}
	}
	if !foundOutlier {
		t.Errorf("Expected outlier at index 10 not found. UNPL was %v, Value was 100", result.UNPL)
	}

	// 8 points above the average, then 8 below.
	values = []float64{10, 10, 10, 10, 10, 10, 10, 10, 2, 2, 2, 2, 2, 2, 2, 2}
	result = CalculateXmRWithKeys(values, nil)
	foundShift := 0
	for _, s := range result.Signals {
		if s.Type == "shift" {
			foundShift++
		}
	}
	if foundShift < 2 {
		t.Errorf("Expected 2 shift signals (one at index 7, one at index 15), got %v", foundShift)
	}
}

func TestGroupIntoSubgroups(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}

	groups := GroupIntoSubgroups(values, 5)
	// 11 values: [1..5], [6..10], and a lone trailing 11 merged into the second batch.
	if len(groups) != 2 {
		t.Fatalf("Expected 2 subgroups, got %d", len(groups))
	}
	if groups[0].Average != 3 {
		t.Errorf("Expected first average 3, got %v", groups[0].Average)
	}
	if len(groups[1].Values) != 6 || groups[1].Average != 8.5 {
		t.Errorf("Expected merged tail of 6 values averaging 8.5, got %v (%v)", groups[1].Values, groups[1].Average)
	}

	if GroupIntoSubgroups(values, 0) != nil {
		t.Error("Expected nil for non-positive subgroup size")
	}
}

func TestAssessStageStability(t *testing.T) {
	stable := make([]float64, 0, 400)
	for i := 0; i < 400; i++ {
		stable = append(stable, 5+float64(i%7)/7)
	}
	res := AssessStageStability("shipping", stable, 20)
	if res.Status != "stable" {
		t.Errorf("Expected stable, got %s (%v)", res.Status, res.Signals)
	}
	if want := 5 + 3.0/7; math.Abs(res.Median-want) > 1e-12 {
		t.Errorf("Expected median %v, got %v", want, res.Median)
	}

	// Level shift halfway through the history.
	shifted := make([]float64, 0, 400)
	for i := 0; i < 400; i++ {
		v := 5 + float64(i%7)/7
		if i >= 200 {
			v += 4
		}
		shifted = append(shifted, v)
	}
	res = AssessStageStability("shipping", shifted, 20)
	if res.Status != "migrating" {
		t.Errorf("Expected migrating after level shift, got %s", res.Status)
	}

	res = AssessStageStability("shipping", []float64{1, 2, math.NaN()}, 20)
	if res.Status != "unknown" || res.Observations != 2 {
		t.Errorf("Expected unknown with 2 observations, got %s / %d", res.Status, res.Observations)
	}
	if res.Median != 1.5 {
		t.Errorf("Expected median 1.5 over the non-NaN values, got %v", res.Median)
	}
}
