package simulation

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"fulfillment-twin/internal/observability"
	"fulfillment-twin/internal/stage"
	"fulfillment-twin/internal/stats"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSamples   = 10000
	defaultChunkSize = 4096

	// Stage i draws from stream i; the reservoir stream sits far above any stage index.
	reservoirStream = 1 << 32
)

// EngineConfig controls how the engine executes requests. None of it changes
// the numbers produced for a given request except ReservoirSize.
type EngineConfig struct {
	DefaultSamples int // used when a request leaves Samples at zero
	Workers        int // parallel requests in SimulateBatch and stage fills per chunk
	ReservoirSize  int // > 0 switches to bounded-memory summaries
	ChunkSize      int // trials generated per stage fill
}

// Engine performs Monte-Carlo simulation of total delivery time. It holds no
// random state: every request carries its own seed.
type Engine struct {
	cfg EngineConfig
}

// Request describes one order or cohort to simulate.
type Request struct {
	ID          string       `json:"id,omitempty"`
	Stages      []stage.Spec `json:"stages"`
	Samples     int          `json:"samples"`
	Seed        uint64       `json:"seed"`
	Percentiles []float64    `json:"percentiles,omitempty"`
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.DefaultSamples <= 0 {
		cfg.DefaultSamples = DefaultSamples
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.ReservoirSize < 0 {
		cfg.ReservoirSize = 0
	}
	return &Engine{cfg: cfg}
}

// Config returns the effective configuration.
func (e *Engine) Config() EngineConfig { return e.cfg }

// Simulate runs N trials. Each trial draws one duration per stage, every stage
// from its own stream of the request seed, and records their sum.
func (e *Engine) Simulate(ctx context.Context, req Request) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, "simulation.Simulate",
		attribute.String("request.id", req.ID),
		attribute.Int("request.stages", len(req.Stages)),
		attribute.Int("request.samples", req.Samples),
	)
	defer span.End()

	res, err := e.simulate(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return res, nil
}

func (e *Engine) simulate(ctx context.Context, req Request) (*Result, error) {
	if len(req.Stages) == 0 {
		return nil, fmt.Errorf("request %q: %w", req.ID, ErrEmptyStageSet)
	}
	n := req.Samples
	if n == 0 {
		n = e.cfg.DefaultSamples
	}
	if n < 0 {
		return nil, fmt.Errorf("request %q: %w: got %d", req.ID, ErrInvalidSampleCount, n)
	}
	for i, s := range req.Stages {
		if !s.Family().Valid() {
			return nil, fmt.Errorf("request %q: stage %d (%q): %w", req.ID, i, s.Name(), stage.ErrInvalidParameter)
		}
	}

	log.Debug().
		Str("id", req.ID).
		Int("samples", n).
		Uint64("seed", req.Seed).
		Int("stages", len(req.Stages)).
		Bool("bounded", e.cfg.ReservoirSize > 0).
		Msg("Simulating delivery time")

	streams := make([]*rand.Rand, len(req.Stages))
	for i := range req.Stages {
		streams[i] = NewStream(req.Seed, uint64(i))
	}
	acc := newSummary(n, e.cfg.ReservoirSize, NewStream(req.Seed, reservoirStream))

	chunk := min(e.cfg.ChunkSize, n)
	buffers := make([][]float64, len(req.Stages))
	for i := range buffers {
		buffers[i] = make([]float64, chunk)
	}
	stageSums := make([]float64, len(req.Stages))
	correlation := 0.0

	for done := 0; done < n; {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("request %q: %w", req.ID, err)
		}
		m := min(chunk, n-done)

		if err := e.fillStages(ctx, req.Stages, streams, buffers, m); err != nil {
			return nil, fmt.Errorf("request %q: %w", req.ID, err)
		}
		if done == 0 && len(buffers) > 1 {
			views := make([][]float64, len(buffers))
			for i := range buffers {
				views[i] = buffers[i][:m]
			}
			correlation = maxAbsCorrelation(views)
		}

		for j := 0; j < m; j++ {
			total := 0.0
			for i := range buffers {
				total += buffers[i][j]
				stageSums[i] += buffers[i][j]
			}
			acc.add(total)
		}
		done += m
	}

	return e.buildResult(req, n, acc, stageSums, correlation), nil
}

// fillStages draws m samples per stage. Stages fill concurrently; each owns
// its stream and buffer so the outcome does not depend on scheduling.
func (e *Engine) fillStages(ctx context.Context, specs []stage.Spec, streams []*rand.Rand, buffers [][]float64, m int) error {
	if len(specs) == 1 {
		fill(specs[0], streams[0], buffers[0][:m])
		return nil
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i := range specs {
		g.Go(func() error {
			fill(specs[i], streams[i], buffers[i][:m])
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) buildResult(req Request, n int, acc *summary, stageSums []float64, correlation float64) *Result {
	sorted := acc.sorted()

	qs := req.Percentiles
	if len(qs) == 0 {
		qs = DefaultPercentiles
	}

	res := &Result{
		ID:               req.ID,
		RunID:            uuid.New(),
		Seed:             req.Seed,
		N:                n,
		Exact:            acc.exact(),
		Mean:             acc.mean,
		Variance:         acc.variance(),
		Min:              acc.min,
		Max:              acc.max,
		Percentiles:      make(map[string]float64, len(qs)),
		Stages:           req.Stages,
		StageMeans:       make(map[string]float64, len(req.Stages)),
		StageCorrelation: correlation,
		Samples:          sorted,
	}
	res.StdDev = math.Sqrt(res.Variance)
	res.P50 = stats.PercentileSorted(sorted, 0.50)
	res.P90 = stats.PercentileSorted(sorted, 0.90)
	res.P95 = stats.PercentileSorted(sorted, 0.95)
	for _, q := range qs {
		res.Percentiles[stats.PercentileLabel(q)] = stats.PercentileSorted(sorted, q)
	}
	for i, s := range req.Stages {
		res.StageMeans[s.Name()] += stageSums[i] / float64(n)
	}
	return res
}

// SimulateBatch runs independent requests in parallel, bounded by Workers.
// Results keep the order of reqs. The first failure cancels the rest.
func (e *Engine) SimulateBatch(ctx context.Context, reqs []Request) ([]*Result, error) {
	ctx, span := observability.StartSpan(ctx, "simulation.SimulateBatch",
		attribute.Int("batch.size", len(reqs)),
		attribute.Int("batch.workers", e.cfg.Workers),
	)
	defer span.End()

	results := make([]*Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for i, req := range reqs {
		g.Go(func() error {
			res, err := e.Simulate(gctx, req)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	log.Debug().Int("requests", len(reqs)).Msg("Batch simulation complete")
	return results, nil
}

// DeriveSeed maps a top-level seed and a partition index to a well-mixed,
// distinct seed (splitmix64), so cohorts never reuse each other's streams.
func DeriveSeed(base uint64, index int) uint64 {
	z := base + uint64(index+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}
