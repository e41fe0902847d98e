package stats

import (
	"fmt"
	"math"
)

// XmRResult represents the output of a Process Behavior Chart analysis.
type XmRResult struct {
	Average     float64   `json:"average"`
	AmR         float64   `json:"average_moving_range"`
	UNPL        float64   `json:"upper_natural_process_limit"`
	LNPL        float64   `json:"lower_natural_process_limit"`
	Values      []float64 `json:"values"`
	MovingRange []float64 `json:"moving_ranges"`
	Signals     []Signal  `json:"signals"`
}

// Signal represents a detected special cause variation.
type Signal struct {
	Index       int    `json:"index"`
	Key         string `json:"key"`
	Type        string `json:"type"` // "outlier", "shift"
	Description string `json:"description"`
}

// CalculateXmRWithKeys performs the math for an Individuals and Moving Range chart and binds keys to signals.
func CalculateXmRWithKeys(values []float64, keys []string) XmRResult {
	if len(values) == 0 {
		return XmRResult{}
	}

	result := XmRResult{
		Values: values,
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	result.Average = sum / float64(len(values))

	if len(values) > 1 {
		mrSum := 0.0
		result.MovingRange = make([]float64, len(values)-1)
		for i := 0; i < len(values)-1; i++ {
			mr := math.Abs(values[i+1] - values[i])
			result.MovingRange[i] = mr
			mrSum += mr
		}
		result.AmR = mrSum / float64(len(values)-1)
	}

	// Wheeler's scaling constant for Individuals is 2.66. Durations cannot go negative.
	result.UNPL = result.Average + (2.66 * result.AmR)
	result.LNPL = math.Max(0, result.Average-(2.66*result.AmR))

	result.Signals = detectSignals(values, result.Average, result.UNPL, result.LNPL, keys)

	return result
}

// SubgroupStats represents the metrics for a single batch of chronologically adjacent orders.
type SubgroupStats struct {
	Label   string    `json:"label"`
	Average float64   `json:"average"`
	Values  []float64 `json:"values"`
}

// ThreeWayResult represents a Three-Way Process Behavior Chart (System Evolution analysis).
type ThreeWayResult struct {
	Subgroups    []SubgroupStats `json:"subgroups"`
	AverageChart XmRResult       `json:"average_chart"`
	Status       string          `json:"status"` // "stable", "migrating", "volatile"
}

// CalculateThreeWayXmR implements Wheeler's Three-Way Chart logic to detect process drift.
func CalculateThreeWayXmR(subgroups []SubgroupStats) ThreeWayResult {
	if len(subgroups) == 0 {
		return ThreeWayResult{Status: "stable"}
	}

	averages := make([]float64, len(subgroups))
	labels := make([]string, len(subgroups))
	for i, sg := range subgroups {
		averages[i] = sg.Average
		labels[i] = sg.Label
	}

	avgChart := CalculateXmRWithKeys(averages, labels)

	result := ThreeWayResult{
		Subgroups:    subgroups,
		AverageChart: avgChart,
		Status:       "stable",
	}

	shiftCount := 0
	outlierCount := 0
	for _, signal := range avgChart.Signals {
		if signal.Type == "shift" {
			shiftCount++
		}
		if signal.Type == "outlier" {
			outlierCount++
		}
	}

	if shiftCount > 0 {
		result.Status = "migrating"
	} else if outlierCount > 0 {
		result.Status = "volatile"
	}

	return result
}

// GroupIntoSubgroups cuts a chronologically ordered series into consecutive
// batches of size values. A trailing batch smaller than half of size is merged
// into its predecessor so it cannot dominate the chart.
func GroupIntoSubgroups(values []float64, size int) []SubgroupStats {
	if len(values) == 0 || size <= 0 {
		return nil
	}

	var groups []SubgroupStats
	for start := 0; start < len(values); start += size {
		end := min(start+size, len(values))
		if len(groups) > 0 && end-start < (size+1)/2 {
			last := &groups[len(groups)-1]
			last.Values = append(last.Values, values[start:end]...)
			last.Average = mean(last.Values)
			break
		}
		chunk := values[start:end]
		groups = append(groups, SubgroupStats{
			Label:   fmt.Sprintf("batch-%d", len(groups)+1),
			Average: mean(chunk),
			Values:  chunk,
		})
	}
	return groups
}

// StageStability summarises whether a stage's historical durations are stable
// enough to be fitted as a single distribution.
type StageStability struct {
	Stage        string   `json:"stage"`
	Observations int      `json:"observations"`
	Median       float64  `json:"median"`
	SubgroupSize int      `json:"subgroup_size"`
	Status       string   `json:"status"`
	Signals      []Signal `json:"signals,omitempty"`
	Message      string   `json:"message"`
}

// AssessStageStability runs a Three-Way chart over a stage's chronologically
// ordered durations. NaN values are skipped.
func AssessStageStability(stage string, durations []float64, subgroupSize int) StageStability {
	clean := make([]float64, 0, len(durations))
	for _, d := range durations {
		if !math.IsNaN(d) {
			clean = append(clean, d)
		}
	}

	res := StageStability{
		Stage:        stage,
		Observations: len(clean),
		Median:       CalculateMedianContinuous(clean),
		SubgroupSize: subgroupSize,
		Status:       "stable",
	}

	subgroups := GroupIntoSubgroups(clean, subgroupSize)
	if len(subgroups) < 3 {
		res.Status = "unknown"
		res.Message = fmt.Sprintf("Only %d subgroups of %d observations; not enough history to judge stability.", len(subgroups), subgroupSize)
		return res
	}

	evolution := CalculateThreeWayXmR(subgroups)
	res.Status = evolution.Status
	res.Signals = evolution.AverageChart.Signals

	switch res.Status {
	case "migrating":
		res.Message = "Stage durations shifted over the history window; a single fitted distribution blends two regimes."
	case "volatile":
		res.Message = "Some batches fall outside the natural process limits; expect heavier tails than the fit implies."
	default:
		res.Message = "Stage durations behave predictably across the history window."
	}
	return res
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// shiftRun is the number of consecutive points on one side of the centre
// line that counts as a process shift.
const shiftRun = 8

func detectSignals(values []float64, avg, unpl, lnpl float64, keys []string) []Signal {
	keyAt := func(i int) string {
		if i < len(keys) {
			return keys[i]
		}
		return ""
	}

	var signals []Signal
	for i, v := range values {
		switch {
		case v > unpl:
			signals = append(signals, Signal{Index: i, Key: keyAt(i), Type: "outlier",
				Description: fmt.Sprintf("%.1f days is above the upper natural process limit (%.1f)", v, unpl)})
		case v < lnpl:
			signals = append(signals, Signal{Index: i, Key: keyAt(i), Type: "outlier",
				Description: fmt.Sprintf("%.1f days is below the lower natural process limit (%.1f)", v, lnpl)})
		}
	}

	side, run := 0, 0
	for i, v := range values {
		cur := 0
		if v > avg {
			cur = 1
		} else if v < avg {
			cur = -1
		}
		if cur != 0 && cur == side {
			run++
		} else {
			side, run = cur, 1
		}
		if run == shiftRun {
			where := "above"
			if side < 0 {
				where = "below"
			}
			signals = append(signals, Signal{Index: i, Key: keyAt(i), Type: "shift",
				Description: fmt.Sprintf("%d consecutive points %s the average: the process level moved", shiftRun, where)})
		}
	}
	return signals
}
