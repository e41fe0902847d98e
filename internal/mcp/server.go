package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fulfillment-twin/internal/config"
	"fulfillment-twin/internal/orders"
	"fulfillment-twin/internal/risk"
	"fulfillment-twin/internal/simulation"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// Server exposes the delivery-time engine as MCP tools.
type Server struct {
	cfg        *config.AppConfig
	scenario   *config.Scenario
	engine     *simulation.Engine
	classifier *risk.Classifier
	store      *orders.Store

	mu     sync.Mutex
	loaded map[string]bool

	version string
	server  *mcp.Server
}

// NewServer wires the engine, the order store and the tool handlers.
func NewServer(cfg *config.AppConfig, scenario *config.Scenario, version string) (*Server, error) {
	classifier, err := risk.NewClassifier(scenario.TiersOr(cfg.Tiers))
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:        cfg,
		scenario:   scenario,
		engine:     simulation.NewEngine(cfg.Engine),
		classifier: classifier,
		store:      orders.NewStore(),
		loaded:     make(map[string]bool),
		version:    version,
	}

	s.server = mcp.NewServer(&mcp.Implementation{Name: "fulfillment-twin", Version: version}, nil)
	if err := s.registerTools(); err != nil {
		return nil, err
	}
	return s, nil
}

// Run serves the tools over stdio until the client disconnects or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	log.Info().Str("version", s.version).Msg("MCP server listening on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect attaches the server to an arbitrary transport.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

// history returns the records of a source, loading its cache on first use.
// A csvPath, when given, is imported into the source first. A non-empty from
// or to restricts the records to that purchase-date window.
func (s *Server) history(sourceID, csvPath, from, to string) ([]orders.Record, error) {
	if sourceID == "" {
		if csvPath == "" {
			return nil, fmt.Errorf("either source_id or csv_path is required")
		}
		sourceID = sourceFromPath(csvPath)
	}

	if err := s.ensureLoaded(sourceID); err != nil {
		return nil, err
	}

	if csvPath != "" {
		if _, err := s.importCSV(sourceID, csvPath); err != nil {
			return nil, err
		}
	}

	if s.store.Count(sourceID) == 0 {
		return nil, fmt.Errorf("no order history for source %q; call import_orders first", sourceID)
	}
	if from == "" && to == "" {
		return s.store.Records(sourceID), nil
	}

	start, end, err := parseWindow(from, to)
	if err != nil {
		return nil, err
	}
	records := s.store.InRange(sourceID, start, end)
	if len(records) == 0 {
		return nil, fmt.Errorf("no dated orders of source %q between %q and %q", sourceID, from, to)
	}
	return records, nil
}

// parseWindow turns from/to bounds into an inclusive time range. A date-only
// upper bound covers the whole day.
func parseWindow(from, to string) (start, end time.Time, err error) {
	if from != "" {
		if start, err = orders.ParseTime(from); err != nil {
			return start, end, fmt.Errorf("invalid from %q: %w", from, err)
		}
	}
	if to != "" {
		if end, err = orders.ParseTime(to); err != nil {
			return start, end, fmt.Errorf("invalid to %q: %w", to, err)
		}
		if len(to) == len(time.DateOnly) {
			end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
	}
	if !end.IsZero() && end.Before(start) {
		return start, end, fmt.Errorf("from %q is after to %q", from, to)
	}
	return start, end, nil
}

// ensureLoaded reads the JSONL cache of a source once per process.
func (s *Server) ensureLoaded(sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded[sourceID] {
		return nil
	}
	if err := s.store.Load(s.cfg.CacheDir, sourceID); err != nil {
		return err
	}
	s.loaded[sourceID] = true
	return nil
}

func (s *Server) importCSV(sourceID, csvPath string) (int, error) {
	records, err := orders.LoadCSV(csvPath)
	if err != nil {
		return 0, err
	}
	s.store.Append(sourceID, records)
	if err := s.store.Save(s.cfg.CacheDir, sourceID); err != nil {
		log.Warn().Err(err).Str("source", sourceID).Msg("Failed to persist order cache")
	}
	return len(records), nil
}

// sourceFromPath derives a cache-safe source id from a file name.
func sourceFromPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, base)
}
