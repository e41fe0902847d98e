package visuals

import (
	"fmt"
	"math"
	"strings"

	"fulfillment-twin/internal/scoring"
	"fulfillment-twin/internal/simulation"
	"fulfillment-twin/internal/stats"
)

// Mermaid's xychart starts overlapping axis labels at around 60 points.
const maxPoints = 60

var percentileNames = map[float64]string{
	0.10: "Aggressive",
	0.50: "Coin Toss",
	0.85: "Likely",
	0.90: "Conservative",
	0.95: "Safe",
	0.99: "Almost Certain",
}

// GeneratePercentileChart creates a Mermaid bar chart of the simulated
// delivery-time percentiles, from the most aggressive promise to the safest.
func GeneratePercentileChart(res *simulation.Result) string {
	if res == nil || len(res.Percentiles) == 0 {
		return ""
	}

	var labels, values []string
	maxVal := 0.0
	for _, q := range simulation.DefaultPercentiles {
		v, ok := res.Percentiles[stats.PercentileLabel(q)]
		if !ok {
			continue
		}
		label := fmt.Sprintf("%.0f%%", q*100)
		if name, ok := percentileNames[q]; ok {
			label += " (" + name + ")"
		}
		labels = append(labels, fmt.Sprintf("\"%s\"", label))
		values = append(values, fmt.Sprintf("%.1f", v))
		maxVal = math.Max(maxVal, v)
	}
	if len(values) == 0 || maxVal == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Delivery Time (Cumulative Probability)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Days\" 0 --> %d\n", int(math.Ceil(maxVal*1.1))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateHistogramChart creates a Mermaid bar chart of simulated totals.
func GenerateHistogramChart(h simulation.Histogram) string {
	if len(h.Counts) == 0 {
		return ""
	}

	var labels, values []string
	peak := 0
	for i, c := range h.Counts {
		labels = append(labels, fmt.Sprintf("\"%.0f\"", h.Edges[i]))
		values = append(values, fmt.Sprintf("%d", c))
		peak = max(peak, c)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Simulated Delivery Times\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis \"Days\" [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Orders\" 0 --> %d\n", peak+int(math.Max(1, float64(peak)*0.2))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateSurvivalChart creates a Mermaid line chart of P(total > t) in percent.
func GenerateSurvivalChart(points []simulation.SurvivalPoint) string {
	if len(points) == 0 {
		return ""
	}

	step := 1
	if len(points) > maxPoints {
		step = int(math.Ceil(float64(len(points)) / maxPoints))
	}

	var labels, values []string
	for i, p := range points {
		if i%step == 0 || i == len(points)-1 {
			labels = append(labels, fmt.Sprintf("\"%.0f\"", p.T))
			values = append(values, fmt.Sprintf("%.1f", p.Survival*100))
		}
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Probability of Arriving Later Than t\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis \"Days\" [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString("    y-axis \"Percent of Orders\" 0 --> 100\n")
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateEvolutionChart creates a Mermaid Three-Way XmR chart showing drift of
// a stage's batch averages.
func GenerateEvolutionChart(stage string, result stats.ThreeWayResult) string {
	if len(result.Subgroups) == 0 {
		return ""
	}

	step := 1
	if len(result.Subgroups) > maxPoints {
		step = int(math.Ceil(float64(len(result.Subgroups)) / maxPoints))
	}

	var labels, values, averages, unpls, lnpls []string
	maxY := result.AverageChart.UNPL * 1.2
	for i, sg := range result.Subgroups {
		if sg.Average > maxY {
			maxY = sg.Average * 1.1
		}
		if i%step != 0 && i != len(result.Subgroups)-1 {
			continue
		}
		labels = append(labels, fmt.Sprintf("\"%d\"", i+1))
		values = append(values, fmt.Sprintf("%.1f", sg.Average))
		averages = append(averages, fmt.Sprintf("%.1f", result.AverageChart.Average))
		unpls = append(unpls, fmt.Sprintf("%.1f", result.AverageChart.UNPL))
		lnpls = append(lnpls, fmt.Sprintf("%.1f", result.AverageChart.LNPL))
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title \"%s Evolution (Batch Averages, %s)\"\n", stage, result.Status))
	sb.WriteString(fmt.Sprintf("    x-axis \"Batch\" [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Avg Days\" 0 --> %d\n", int(math.Ceil(maxY))))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(values, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(averages, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(unpls, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(lnpls, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateComparisonChart creates a Mermaid bar chart of naive vs simulated
// backtest errors.
func GenerateComparisonChart(r scoring.ComparisonReport) string {
	if r.Naive.Count == 0 {
		return ""
	}

	maxVal := math.Max(math.Max(r.Naive.MAE, r.Stochastic.MAE), math.Max(r.Naive.RMSE, r.Stochastic.RMSE))

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Backtest Error (Days)\"\n")
	sb.WriteString("    x-axis [\"MAE naive\", \"MAE simulated\", \"RMSE naive\", \"RMSE simulated\"]\n")
	sb.WriteString(fmt.Sprintf("    y-axis \"Days\" 0 --> %d\n", int(math.Ceil(maxVal*1.2))))
	sb.WriteString(fmt.Sprintf("    bar [%.2f, %.2f, %.2f, %.2f]\n", r.Naive.MAE, r.Stochastic.MAE, r.Naive.RMSE, r.Stochastic.RMSE))
	sb.WriteString("```")
	return sb.String()
}
