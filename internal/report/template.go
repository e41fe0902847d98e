package report

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; color: #1e293b; }
h1 { font-size: 1.5rem; }
table { border-collapse: collapse; margin: 1rem 0; }
td, th { border: 1px solid #cbd5e1; padding: 0.3rem 0.8rem; text-align: right; }
th { background: #f1f5f9; }
.tier-high { color: #b91c1c; font-weight: 600; }
.tier-medium { color: #b45309; font-weight: 600; }
.tier-low { color: #047857; font-weight: 600; }
.bar { background: #3b82f6; height: 0.8rem; }
.muted { color: #64748b; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="muted">Generated {{.Generated.Format "2006-01-02 15:04"}}</p>
{{with .Assessment}}
<h2>Simulated delivery time</h2>
<p class="muted">Run {{.Result.RunID}} &middot; seed {{.Result.Seed}} &middot; {{.Result.N}} trials{{if not .Result.Exact}} (bounded summary){{end}}</p>
<table>
<tr><th>Mean</th><th>Std dev</th><th>Naive (sum of means)</th><th>Orders later than naive</th></tr>
<tr><td>{{days .Result.Mean}}</td><td>{{days .Result.StdDev}}</td><td>{{days .Naive}}</td><td>{{pct .NaiveExceedance}}</td></tr>
</table>
<table>
<tr>{{range quantiles .}}<th>{{.Label}}</th>{{end}}</tr>
<tr>{{range quantiles .}}<td>{{days .Value}}</td>{{end}}</tr>
</table>

<h2>SLA risk</h2>
<p>P(total &gt; {{days .Classification.SLAThreshold}} days) = {{pct .Classification.Exceedance}}
&rarr; <span class="tier-{{.Classification.Tier}}">{{.Classification.Tier}}</span></p>
<p>Recommended promise: {{days .RecommendedSLA}} days (kept for {{pct (kept .PromiseExceedance)}} of orders).
Mean + 3&sigma; rule: {{days .SigmaSLA}} days.</p>

<h2>Cost of delay</h2>
<table>
<tr><th>Expected</th><th>Median</th><th>VaR 95</th><th>VaR 99</th><th>CVaR 95</th><th>Cost at mean time</th><th>Tail share</th><th>Value at risk</th></tr>
<tr><td>{{.Cost.Expected}} {{.Cost.Currency}}</td><td>{{.Cost.Median}}</td><td>{{.Cost.VaR95}}</td><td>{{.Cost.VaR99}}</td><td>{{.Cost.CVaR95}}</td><td>{{.Cost.NaiveCost}}</td><td>{{pct .Cost.TailShare}}</td><td>{{.Cost.ValueAtRisk}}</td></tr>
</table>

{{with bars .}}
<h2>Distribution</h2>
<table>
{{range .}}<tr><td>{{.Label}}</td><td style="width:20rem;text-align:left"><div class="bar" style="width:{{printf "%.1f" .Pct}}%"></div></td><td>{{.Count}}</td></tr>
{{end}}</table>
{{end}}

{{with .Survival}}
<h2>Survival curve</h2>
<table>
<tr><th>t (days)</th><th>P(total &gt; t)</th></tr>
{{range .}}<tr><td>{{days .T}}</td><td>{{pct .Survival}}</td></tr>
{{end}}</table>
{{end}}
{{end}}

{{with .Backtest}}
<h2>Backtest: naive vs simulated median</h2>
<p>{{.ValidationNotes}}</p>
<table>
<tr><th>Model</th><th>MAE</th><th>RMSE</th><th>Bias</th><th>Within tolerance</th></tr>
<tr><td>Naive</td><td>{{days .Report.Naive.MAE}}</td><td>{{days .Report.Naive.RMSE}}</td><td>{{days .Report.Naive.Bias}}</td><td>{{pct .Report.Naive.WithinTolerance}}</td></tr>
<tr><td>Simulated median</td><td>{{days .Report.Stochastic.MAE}}</td><td>{{days .Report.Stochastic.RMSE}}</td><td>{{days .Report.Stochastic.Bias}}</td><td>{{pct .Report.Stochastic.WithinTolerance}}</td></tr>
</table>
<p>Skill {{pct .Report.Skill}} &middot; P10-P90 coverage {{pct .Report.Coverage}} &middot; truth variance {{days .Report.TruthVariance}}{{if .Report.HighVariance}} (high){{end}}</p>
<table>
<tr><th>Cohort</th><th>Train</th><th>Test</th><th>Naive</th><th>P10</th><th>P50</th><th>P90</th></tr>
{{range .Cohorts}}<tr><td>{{.Key}}</td><td>{{.Train}}</td><td>{{.Test}}</td><td>{{days .Naive}}</td><td>{{days .P10}}</td><td>{{days .P50}}</td><td>{{days .P90}}</td></tr>
{{end}}</table>
{{end}}
</body>
</html>
`
