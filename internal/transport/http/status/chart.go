package statushttp

import (
	"bytes"
	"fmt"

	"pricewatch/internal/types"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	colorPrice = "#3b82f6"
	colorLow   = "#34d399"
)

// renderHistoryChart draws price over time, oldest first. Unknown prices are
// gaps; the running minimum is drawn alongside.
func renderHistoryChart(p types.Product, newestFirst []types.Observation) ([]byte, error) {
	n := len(newestFirst)
	xAxis := make([]string, 0, n)
	prices := make([]opts.LineData, 0, n)
	lows := make([]opts.LineData, 0, n)
	running := types.UnknownPrice
	for i := n - 1; i >= 0; i-- {
		o := newestFirst[i]
		xAxis = append(xAxis, o.Timestamp.Format("2006-01-02 15:04"))
		if !o.PriceKnown() {
			prices = append(prices, opts.LineData{Value: "-"})
		} else {
			prices = append(prices, opts.LineData{Value: o.Price})
			if o.Price < running {
				running = o.Price
			}
		}
		if types.IsKnownPrice(running) {
			lows = append(lows, opts.LineData{Value: running})
		} else {
			lows = append(lows, opts.LineData{Value: "-"})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: p.Label(), Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: p.Label(), Subtitle: fmt.Sprintf("%d observations", n)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis).
		AddSeries("price", prices, charts.WithLineStyleOpts(opts.LineStyle{Color: colorPrice, Width: 2})).
		AddSeries("running low", lows,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorLow, Width: 1}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
