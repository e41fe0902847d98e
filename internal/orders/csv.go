package orders

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"fulfillment-twin/internal/stage"

	"github.com/rs/zerolog/log"
)

// Columns is the header written by WriteCSV and expected by ReadCSV. The stage
// columns are optional on input; unknown columns are ignored.
var Columns = []string{
	"order_id", "purchased_at", "category", "region",
	stage.Processing, stage.Warehousing, stage.Shipping,
	"actual_total", "order_value",
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// ReadCSV parses order history. Blank cells and "NaN" are missing values.
// Negative or infinite durations are logged and treated as missing. Rows with an unparseable number are skipped with a warning rather than
// failing the whole file.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty order history: missing header")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["order_id"]; !ok {
		return nil, fmt.Errorf("order history has no order_id column")
	}

	var stageCols []string
	for _, name := range stage.Names {
		if _, ok := cols[name]; ok {
			stageCols = append(stageCols, name)
		}
	}

	var records []Record
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		cell := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		rec := Record{
			OrderID:  cell("order_id"),
			Category: cell("category"),
			Region:   cell("region"),
			Stages:   make(map[string]float64, len(stageCols)),
		}
		if rec.OrderID == "" {
			log.Warn().Int("line", line).Msg("Skipping row without order_id")
			continue
		}
		if ts := cell("purchased_at"); ts != "" {
			t, err := ParseTime(ts)
			if err != nil {
				log.Warn().Int("line", line).Str("value", ts).Msg("Ignoring unparseable purchase timestamp")
			}
			rec.PurchasedAt = t
		}

		bad := false
		for _, name := range stageCols {
			v, rejected, err := parseDuration(cell(name))
			if err != nil {
				bad = true
				break
			}
			if rejected {
				log.Warn().Int("line", line).Str("order", rec.OrderID).Str("stage", name).Str("value", cell(name)).Msg("Treating impossible stage duration as missing")
			}
			rec.Stages[name] = v
		}
		if !bad {
			var rejected bool
			if rec.ActualTotal, rejected, err = parseDuration(cell("actual_total")); err != nil {
				bad = true
			} else if rejected {
				log.Warn().Int("line", line).Str("order", rec.OrderID).Str("value", cell("actual_total")).Msg("Treating impossible actual total as unknown")
			}
		}
		if !bad {
			value, err := parseFloat(cell("order_value"))
			if err != nil {
				bad = true
			} else if !math.IsNaN(value) {
				rec.OrderValue = value
			}
		}
		if bad {
			log.Warn().Int("line", line).Str("order", rec.OrderID).Msg("Skipping row with invalid number")
			continue
		}
		records = append(records, rec)
	}

	log.Debug().Int("records", len(records)).Msg("Order history parsed")
	return records, nil
}

// LoadCSV reads an order history file from disk.
func LoadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open order history: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// WriteCSV writes records with the Columns header. Missing values are blank.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{r.OrderID, "", r.Category, r.Region}
		if !r.PurchasedAt.IsZero() {
			row[1] = r.PurchasedAt.Format(time.RFC3339)
		}
		for _, name := range stage.Names {
			v, ok := r.Stages[name]
			if !ok {
				v = math.NaN()
			}
			row = append(row, formatFloat(v))
		}
		row = append(row, formatFloat(r.ActualTotal), formatFloat(r.OrderValue))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseFloat(s string) (float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseDuration parses a duration in days. Negative or infinite values cannot
// be durations: they come back as NaN (missing) with rejected set.
func parseDuration(s string) (v float64, rejected bool, err error) {
	v, err = parseFloat(s)
	if err != nil || math.IsNaN(v) {
		return v, false, err
	}
	if !ValidDuration(v) {
		return math.NaN(), true, nil
	}
	return v, false, nil
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseTime accepts RFC3339, "2006-01-02 15:04:05" and "2006-01-02".
func ParseTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
