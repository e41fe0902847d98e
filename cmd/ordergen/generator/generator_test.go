package generator

import (
	"math"
	"os"
	"testing"
	"time"

	"fulfillment-twin/internal/orders"
	"fulfillment-twin/internal/stage"
	"fulfillment-twin/internal/stats"
)

func TestGenerate_Mild(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	records, err := Generate(GeneratorConfig{Scenario: "mild", Count: 4000, Seed: 1, Now: now})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4000 {
		t.Fatalf("Expected 4000 records, got %d", len(records))
	}
	if !records[len(records)-1].PurchasedAt.Equal(now) {
		t.Errorf("Expected the last order at now, got %v", records[len(records)-1].PurchasedAt)
	}

	for _, r := range records {
		sum := 0.0
		for _, name := range stage.Names {
			v, ok := r.Observed(name)
			if !ok || v <= 0 {
				t.Fatalf("order %s: expected positive %s, got %v", r.OrderID, name, v)
			}
			sum += v
		}
		if math.Abs(sum-r.ActualTotal) > 1e-9 {
			t.Fatalf("order %s: stages sum to %v, total %v", r.OrderID, sum, r.ActualTotal)
		}
	}

	proc := orders.Observations(records, stage.Processing)
	if med := stats.CalculateMedianContinuous(proc); math.Abs(med-math.Exp(2.5)) > 1.0 {
		t.Errorf("Expected processing median near %v, got %v", math.Exp(2.5), med)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	cfg := GeneratorConfig{Scenario: "chaos", Count: 200, Seed: 9, MissingRate: 0.1, Now: time.Unix(0, 0)}
	a, _ := Generate(cfg)
	b, _ := Generate(cfg)
	for i := range a {
		if a[i].Category != b[i].Category || a[i].ActualTotal != b[i].ActualTotal || a[i].OrderValue != b[i].OrderValue {
			t.Fatalf("record %d differs between runs", i)
		}
	}

	missing := 0
	for _, r := range a {
		for _, name := range stage.Names {
			if _, ok := r.Observed(name); !ok {
				missing++
			}
		}
	}
	if missing == 0 {
		t.Error("Expected some unrecorded stages with a 10% missing rate")
	}
}

func TestGenerate_DriftIsDetected(t *testing.T) {
	records, err := Generate(GeneratorConfig{Scenario: "drift", Count: 3000, Seed: 3})
	if err != nil {
		t.Fatal(err)
	}
	st := stats.AssessStageStability(stage.Processing, orders.Observations(records, stage.Processing), 50)
	if st.Status != "migrating" {
		t.Errorf("Expected drifting processing times to be flagged as migrating, got %s", st.Status)
	}
}

func TestGenerate_Errors(t *testing.T) {
	if _, err := Generate(GeneratorConfig{Count: 0}); err == nil {
		t.Error("Expected error for zero count")
	}
	if _, err := Generate(GeneratorConfig{Scenario: "meteor", Count: 10}); err == nil {
		t.Error("Expected error for unknown scenario")
	}
}

func TestSave(t *testing.T) {
	records, err := Generate(GeneratorConfig{Count: 50, Seed: 5, MissingRate: 0.2})
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()

	path, err := Save(dir, "orders", "csv", records)
	if err != nil {
		t.Fatal(err)
	}
	back, err := orders.LoadCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != 50 {
		t.Errorf("Expected 50 records from CSV, got %d", len(back))
	}

	if _, err := Save(dir, "orders", "jsonl", records); err != nil {
		t.Fatal(err)
	}
	store := orders.NewStore()
	if err := store.Load(dir, "orders"); err != nil {
		t.Fatal(err)
	}
	if store.Count("orders") != 50 {
		t.Errorf("Expected 50 cached records, got %d", store.Count("orders"))
	}

	if _, err := Save(dir, "orders", "xml", records); err == nil {
		t.Error("Expected error for unknown format")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatal(err)
	}
}
