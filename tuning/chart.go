package tuning

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// maxChartBars limits the chart to the best ranked parameter sets.
const maxChartBars = 24

func newTrafficChart(title string, results []Result) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: "loads, stores and evictions per eviction parameter set",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	labels := make([]string, 0, len(results))
	loads := make([]opts.BarData, 0, len(results))
	stores := make([]opts.BarData, 0, len(results))
	evictions := make([]opts.BarData, 0, len(results))
	for _, r := range results {
		labels = append(labels, r.Label())
		loads = append(loads, opts.BarData{Value: r.Totals.Loads})
		stores = append(stores, opts.BarData{Value: r.Totals.Stores})
		evictions = append(evictions, opts.BarData{Value: r.Totals.Evictions})
	}
	bar.SetXAxis(labels).
		AddSeries("loads", loads).
		AddSeries("stores", stores).
		AddSeries("evictions", evictions)
	return bar
}

// RenderChart writes an HTML page charting the best ranked results.
func RenderChart(w io.Writer, title string, results []Result) error {
	ranked := Rank(results)
	if len(ranked) > maxChartBars {
		ranked = ranked[:maxChartBars]
	}
	page := components.NewPage()
	page.AddCharts(newTrafficChart(title, ranked))
	return page.Render(w)
}
