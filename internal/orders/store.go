package orders

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Store provides thread-safe storage of order history partitioned by source
// (one imported file or dataset per source).
type Store struct {
	mu      sync.RWMutex
	sources map[string][]Record
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{sources: make(map[string][]Record)}
}

// Append adds records to a source. A record whose OrderID is already present
// replaces the stored one. Records are kept in chronological order.
func (s *Store) Append(sourceID string, records []Record) {
	if len(records) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.sources[sourceID]
	index := make(map[string]int, len(current))
	for i, r := range current {
		index[r.OrderID] = i
	}

	for _, r := range records {
		if i, ok := index[r.OrderID]; ok {
			current[i] = r
		} else {
			index[r.OrderID] = len(current)
			current = append(current, r)
		}
	}

	sortRecords(current)
	s.sources[sourceID] = current
}

// Records returns a copy of the records of a source.
func (s *Store) Records(sourceID string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.sources[sourceID]))
	copy(out, s.sources[sourceID])
	return out
}

// Count returns the number of records held for a source.
func (s *Store) Count(sourceID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sources[sourceID])
}

// InRange returns records purchased within [start, end]. A zero end means no
// upper bound. Undated records are excluded.
func (s *Store) InRange(sourceID string, start, end time.Time) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.sources[sourceID] {
		if r.PurchasedAt.IsZero() || r.PurchasedAt.Before(start) {
			continue
		}
		if !end.IsZero() && r.PurchasedAt.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func cachePath(cacheDir, sourceID string) string {
	return filepath.Join(cacheDir, fmt.Sprintf("%s.jsonl", sourceID))
}

// Load reads records from a JSONL cache file for the given source.
func (s *Store) Load(cacheDir string, sourceID string) error {
	file, err := os.Open(cachePath(cacheDir, sourceID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No cache yet, not an error
		}
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			log.Warn().Err(err).Str("source", sourceID).Msg("Skipping invalid JSON line in cache")
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading cache: %w", err)
	}

	log.Info().Str("source", sourceID).Int("count", len(records)).Msg("Loaded orders from cache")
	s.Append(sourceID, records)
	return nil
}

// Save persists the records of a source to a JSONL cache file.
func (s *Store) Save(cacheDir string, sourceID string) error {
	s.mu.RLock()
	data, ok := s.sources[sourceID]
	s.mu.RUnlock()

	if !ok || len(data) == 0 {
		return nil
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	path := cachePath(cacheDir, sourceID)
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	for _, r := range data {
		if err := encoder.Encode(r); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode order %s: %w", r.OrderID, err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	log.Info().Str("source", sourceID).Int("count", len(data)).Msg("Orders saved to cache")
	return nil
}
