package generator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"fulfillment-twin/internal/orders"
	"fulfillment-twin/internal/simulation"
	"fulfillment-twin/internal/stage"
)

type GeneratorConfig struct {
	Scenario    string // "mild", "chaos" or "drift"
	Count       int
	Seed        uint64
	MissingRate float64 // share of orders with one unrecorded stage
	Now         time.Time
}

var (
	categories = []string{"books", "electronics", "home", "toys"}
	regions    = []string{"MG", "RJ", "RS", "SP"}
)

// attribute and money streams sit above the per-stage streams.
const (
	attrStream  = 1 << 20
	valueStream = attrStream + 1
)

// Generate draws synthetic order history. Every order's stage durations are
// sampled from the reference chain, perturbed by the scenario:
//   - mild: the reference chain as is
//   - chaos: heavier processing tail and occasional 10-25 day shipping delays
//   - drift: processing slows steadily over the history window
//
// Electronics ship slower than the other categories.
func Generate(cfg GeneratorConfig) ([]orders.Record, error) {
	if cfg.Count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", cfg.Count)
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}

	streams := make([]*rand.Rand, len(stage.Names))
	for i := range streams {
		streams[i] = simulation.NewStream(cfg.Seed, uint64(i))
	}
	attr := simulation.NewStream(cfg.Seed, attrStream)
	money := simulation.NewStream(cfg.Seed, valueStream)

	// One order every six hours, the last one placed at cfg.Now.
	start := cfg.Now.Add(-time.Duration(cfg.Count-1) * 6 * time.Hour)

	valueSpec := mustLogNormal("order_value", 4.0, 0.6)

	records := make([]orders.Record, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		ratio := float64(i) / float64(cfg.Count)
		category := categories[attr.IntN(len(categories))]
		region := regions[attr.IntN(len(regions))]

		specs, err := specsFor(cfg.Scenario, category, ratio)
		if err != nil {
			return nil, err
		}

		rec := orders.Record{
			OrderID:     fmt.Sprintf("ORD-%06d", i+1),
			PurchasedAt: start.Add(time.Duration(i) * 6 * time.Hour),
			Category:    category,
			Region:      region,
			Stages:      make(map[string]float64, len(specs)),
		}

		total := 0.0
		for s, spec := range specs {
			draw, err := simulation.Sample(spec, 1, streams[s])
			if err != nil {
				return nil, err
			}
			d := draw[0]
			if cfg.Scenario == "chaos" && spec.Name() == stage.Shipping && attr.Float64() < 0.05 {
				d += 10 + attr.Float64()*15 // black swan
			}
			rec.Stages[spec.Name()] = d
			total += d
		}
		rec.ActualTotal = total

		if cfg.MissingRate > 0 && attr.Float64() < cfg.MissingRate {
			rec.Stages[stage.Names[attr.IntN(len(stage.Names))]] = math.NaN()
		}

		value, err := simulation.Sample(valueSpec, 1, money)
		if err != nil {
			return nil, err
		}
		rec.OrderValue = math.Round(value[0]*100) / 100

		records = append(records, rec)
	}
	return records, nil
}

func specsFor(scenario, category string, ratio float64) ([]stage.Spec, error) {
	mu, sigma := 2.5, 0.8
	switch scenario {
	case "", "mild":
	case "chaos":
		sigma = 1.1
	case "drift":
		mu = 2.1 + 0.8*ratio
	default:
		return nil, fmt.Errorf("unknown scenario %q (expected mild, chaos or drift)", scenario)
	}

	shape := 3.0
	if category == "electronics" {
		shape = 4.5
	}

	p, err := stage.LogNormal(stage.Processing, mu, sigma)
	if err != nil {
		return nil, err
	}
	w, err := stage.Exponential(stage.Warehousing, 0.5)
	if err != nil {
		return nil, err
	}
	s, err := stage.Gamma(stage.Shipping, shape, 1.5)
	if err != nil {
		return nil, err
	}
	return []stage.Spec{p, w, s}, nil
}

func mustLogNormal(name string, mu, sigma float64) stage.Spec {
	s, err := stage.LogNormal(name, mu, sigma)
	if err != nil {
		panic(err)
	}
	return s
}

// Save writes records as <sourceID>.csv, or as the <sourceID>.jsonl cache read
// by orders.Store when format is "jsonl".
func Save(outDir, sourceID, format string, records []orders.Record) (string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", err
	}

	switch format {
	case "jsonl":
		store := orders.NewStore()
		store.Append(sourceID, records)
		if err := store.Save(outDir, sourceID); err != nil {
			return "", err
		}
		return filepath.Join(outDir, sourceID+".jsonl"), nil
	case "", "csv":
		path := filepath.Join(outDir, sourceID+".csv")
		f, err := os.Create(path)
		if err != nil {
			return "", err
		}
		if err := orders.WriteCSV(f, records); err != nil {
			f.Close()
			return "", err
		}
		return path, f.Close()
	default:
		return "", fmt.Errorf("unknown format %q (expected csv or jsonl)", format)
	}
}
