package render

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"math"
	"time"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/dashboard"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"go.uber.org/zap"
)

// singlePointSpan pads the X range around a lone point
const singlePointSpan = 30 * time.Minute

var errNoSeries = errors.New("chart has no series")

// GoChartFactory draws chart configs onto an ImageCanvas with go-chart
type GoChartFactory struct {
	logger *zap.Logger
}

// NewGoChartFactory creates a go-chart backed factory
func NewGoChartFactory(logger *zap.Logger) *GoChartFactory {
	return &GoChartFactory{logger: logger}
}

// renderedChart is a chart painted on a canvas
type renderedChart struct {
	canvas *ImageCanvas
}

// Destroy releases the canvas; the pixels stay until the canvas is reset
func (c *renderedChart) Destroy() {
	c.canvas = nil
}

// New implements dashboard.ChartFactory
func (f *GoChartFactory) New(canvas dashboard.Canvas, cfg dashboard.ChartConfig) (dashboard.Chart, error) {
	target, ok := canvas.(*ImageCanvas)
	if !ok {
		return nil, fmt.Errorf("unsupported canvas %T", canvas)
	}
	if len(cfg.Datasets) == 0 {
		return nil, errNoSeries
	}
	width, height := target.Size()

	start := time.Now()
	var buf bytes.Buffer
	var err error
	switch cfg.Type {
	case dashboard.ChartLine:
		err = renderLine(&buf, cfg, width, height)
	case dashboard.ChartBar:
		err = renderBar(&buf, cfg, width, height)
	default:
		err = fmt.Errorf("unknown chart type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to decode chart image: %w", err)
	}
	target.DrawImage(img)

	f.logger.Debug("Chart drawn",
		zap.String("type", string(cfg.Type)),
		zap.Int("series", len(cfg.Datasets)),
		zap.Duration("took", time.Since(start)))
	return &renderedChart{canvas: target}, nil
}

func renderLine(buf *bytes.Buffer, cfg dashboard.ChartConfig, width, height int) error {
	n := len(cfg.Timestamps)
	if n == 0 {
		return fmt.Errorf("line chart needs timestamps")
	}
	times := make([]time.Time, n)
	for i, ts := range cfg.Timestamps {
		times[i] = time.Unix(ts, 0)
	}

	series := make([]chart.Series, 0, len(cfg.Datasets))
	var lo, hi float64
	for i, ds := range cfg.Datasets {
		if len(ds.Data) != n {
			return fmt.Errorf("dataset %q has %d values for %d timestamps", ds.Label, len(ds.Data), n)
		}
		xs, ys := times, ds.Data
		if ds.Stepped {
			xs, ys = stepSegments(times, ds.Data)
		}
		series = append(series, chart.TimeSeries{
			Name:    ds.Label,
			Style:   seriesStyle(ds),
			XValues: xs,
			YValues: ys,
		})
		dlo, dhi := bounds(ds.Data)
		if i == 0 {
			lo, hi = dlo, dhi
			continue
		}
		lo, hi = math.Min(lo, dlo), math.Max(hi, dhi)
	}

	c := chart.Chart{
		Title:      cfg.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      xAxis(cfg, times),
		YAxis: chart.YAxis{
			Name:  cfg.YAxisTitle,
			Range: valueRange(lo, hi, cfg.BeginAtZero),
		},
		Series: series,
	}
	if len(series) > 1 {
		c.Elements = []chart.Renderable{chart.Legend(&c)}
	}
	if err := c.Render(chart.PNG, buf); err != nil {
		return fmt.Errorf("failed to render line chart: %w", err)
	}
	return nil
}

func renderBar(buf *bytes.Buffer, cfg dashboard.ChartConfig, width, height int) error {
	ds := cfg.Datasets[0]
	bars := make([]chart.Value, 0, len(ds.Data))
	for i, v := range ds.Data {
		label := ds.Label
		if i < len(cfg.Labels) && cfg.Labels[i] != "" {
			label = cfg.Labels[i]
		}
		bars = append(bars, chart.Value{
			Label: label,
			Value: v,
			Style: chart.Style{
				FillColor:   toDrawing(ds.BackgroundColor),
				StrokeColor: toDrawing(ds.BorderColor),
				StrokeWidth: ds.BorderWidth,
			},
		})
	}
	lo, hi := bounds(ds.Data)
	bc := chart.BarChart{
		Title:      cfg.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		BarWidth:   max(width/(2*max(len(bars), 1)), 10),
		YAxis:      chart.YAxis{Range: valueRange(lo, hi, cfg.BeginAtZero)},
		Bars:       bars,
	}
	if err := bc.Render(chart.PNG, buf); err != nil {
		return fmt.Errorf("failed to render bar chart: %w", err)
	}
	return nil
}

func seriesStyle(ds dashboard.Dataset) chart.Style {
	st := chart.Style{
		StrokeColor: toDrawing(ds.BorderColor),
		StrokeWidth: ds.BorderWidth,
		DotColor:    toDrawing(ds.BorderColor),
		DotWidth:    ds.PointRadius,
	}
	if ds.Fill {
		st.FillColor = toDrawing(ds.BackgroundColor)
	}
	return st
}

// xAxis places a tick for every non-blank label
func xAxis(cfg dashboard.ChartConfig, times []time.Time) chart.XAxis {
	ax := chart.XAxis{Name: cfg.XAxisTitle}
	for i, label := range cfg.Labels {
		if label == "" || i >= len(times) {
			continue
		}
		ax.Ticks = append(ax.Ticks, chart.Tick{Value: chart.TimeToFloat64(times[i]), Label: label})
	}
	first, last := times[0], times[len(times)-1]
	if !last.After(first) {
		first, last = first.Add(-singlePointSpan), last.Add(singlePointSpan)
	}
	ax.Range = &chart.ContinuousRange{Min: chart.TimeToFloat64(first), Max: chart.TimeToFloat64(last)}
	return ax
}

// stepSegments turns a series into right-angle steps: each value holds
// until the next timestamp, where it jumps vertically.
func stepSegments(xs []time.Time, ys []float64) ([]time.Time, []float64) {
	if len(xs) < 2 {
		return xs, ys
	}
	outX := make([]time.Time, 0, 2*len(xs)-1)
	outY := make([]float64, 0, 2*len(ys)-1)
	outX, outY = append(outX, xs[0]), append(outY, ys[0])
	for i := 1; i < len(xs); i++ {
		outX, outY = append(outX, xs[i]), append(outY, ys[i-1])
		outX, outY = append(outX, xs[i]), append(outY, ys[i])
	}
	return outX, outY
}

func valueRange(lo, hi float64, beginAtZero bool) *chart.ContinuousRange {
	if beginAtZero {
		lo = math.Min(lo, 0)
		hi = math.Max(hi, 0)
	}
	if hi <= lo {
		hi = lo + 1
	}
	pad := (hi - lo) * 0.05
	if lo < 0 || !beginAtZero {
		lo -= pad
	}
	return &chart.ContinuousRange{Min: lo, Max: hi + pad}
}

func bounds(values []float64) (lo, hi float64) {
	for i, v := range values {
		if i == 0 || v < lo {
			lo = v
		}
		if i == 0 || v > hi {
			hi = v
		}
	}
	return lo, hi
}

func toDrawing(c dashboard.RGBA) drawing.Color {
	return drawing.Color{R: c.R, G: c.G, B: c.B, A: alpha(c.A)}
}
