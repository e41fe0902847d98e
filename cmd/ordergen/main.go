package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"fulfillment-twin/cmd/ordergen/generator"
)

func main() {
	scenario := flag.String("scenario", "mild", "Scenario to generate: mild, chaos, drift")
	outDir := flag.String("out", "./.cache", "Output directory for generated history")
	format := flag.String("format", "csv", "Output format: csv or jsonl")
	sourceID := flag.String("source", "orders", "Source id used as file name")
	count := flag.Int("count", 2000, "Number of orders to generate")
	seed := flag.Uint64("seed", 42, "Random seed")
	missing := flag.Float64("missing", 0.02, "Share of orders with one unrecorded stage")
	flag.Parse()

	cfg := generator.GeneratorConfig{
		Scenario:    *scenario,
		Count:       *count,
		Seed:        *seed,
		MissingRate: *missing,
		Now:         time.Now(),
	}

	fmt.Printf("Generating scenario '%s' (Count: %d, Seed: %d) to %s...\n", cfg.Scenario, cfg.Count, cfg.Seed, *outDir)

	records, err := generator.Generate(cfg)
	if err != nil {
		fmt.Printf("Failed to generate orders: %v\n", err)
		os.Exit(1)
	}

	path, err := generator.Save(*outDir, *sourceID, *format, records)
	if err != nil {
		fmt.Printf("Failed to save orders: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done: %s\n", path)
}
