package dashboard

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultGroupThreshold = 24
	DefaultLabelTarget    = 10

	denseThreshold    = 30
	steppedMinPoints  = 50
	steppedGapCV      = 0.5
	straightLineAfter = 200
	emptyChartMessage = "No data to display in the selected date range"
	chartErrorMessage = "Failed to display chart"
	xAxisTitle        = "Time"
	tooltipTimeLayout = "2006-01-02 15:04:05"
)

var (
	messageColor = RGBA{102, 102, 102, 1}
	errorColor   = RGBA{220, 53, 69, 1}
)

// ChartType is the kind of chart drawn
type ChartType string

const (
	ChartLine ChartType = "line"
	ChartBar  ChartType = "bar"
)

// Dataset is one drawn series
type Dataset struct {
	Label            string        `json:"label"`
	Metric           models.Metric `json:"metric,omitempty"`
	Data             []float64     `json:"data"`
	BackgroundColor  RGBA          `json:"backgroundColor"`
	BorderColor      RGBA          `json:"borderColor"`
	BorderWidth      float64       `json:"borderWidth"`
	PointRadius      float64       `json:"pointRadius"`
	PointHoverRadius float64       `json:"pointHoverRadius"`
	Tension          float64       `json:"tension"`
	Stepped          bool          `json:"stepped,omitempty"`
	Fill             bool          `json:"fill,omitempty"`
}

// ChartConfig describes a chart independently of the drawing library
type ChartConfig struct {
	Type           ChartType `json:"type"`
	Title          string    `json:"title"`
	Labels         []string  `json:"labels"`
	Timestamps     []int64   `json:"timestamps,omitempty"`
	Datasets       []Dataset `json:"datasets"`
	XAxisTitle     string    `json:"xAxisTitle,omitempty"`
	YAxisTitle     string    `json:"yAxisTitle,omitempty"`
	BeginAtZero    bool      `json:"beginAtZero"`
	TooltipTitles  []string  `json:"tooltipTitles,omitempty"`
	TooltipFooters []string  `json:"tooltipFooters,omitempty"`
}

// Canvas is the surface charts and messages are drawn on
type Canvas interface {
	Size() (width, height int)
	Reset()
	DrawMessage(text string, color RGBA) error
}

// Chart is a live chart instance bound to a canvas
type Chart interface {
	Destroy()
}

// ChartFactory instantiates charts from configs
type ChartFactory interface {
	New(canvas Canvas, cfg ChartConfig) (Chart, error)
}

// RenderOutcome reports how a render ended
type RenderOutcome string

const (
	RenderOK       RenderOutcome = "rendered"
	RenderEmpty    RenderOutcome = "empty"
	RenderFallback RenderOutcome = "fallback"
	RenderFailed   RenderOutcome = "failed"
)

// ChartPoint is a normalised reading, or the average of a bucket of them
type ChartPoint struct {
	Timestamp    int64
	FarmID       string
	Temperature  float64
	Humidity     float64
	WaterLevel   float64
	LightLevel   float64
	GroupedCount int
}

// Value returns the metric value of the point
func (p ChartPoint) Value(m models.Metric) float64 {
	switch m {
	case models.MetricTemperature:
		return p.Temperature
	case models.MetricHumidity:
		return p.Humidity
	case models.MetricWaterLevel:
		return p.WaterLevel
	case models.MetricLightLevel:
		return p.LightLevel
	}
	return 0
}

// ChartOptions tunes density handling
type ChartOptions struct {
	GroupThreshold int
	LabelTarget    int
	Location       *time.Location
}

// ChartManager owns the chart type and the live chart instance
type ChartManager struct {
	canvas    Canvas
	factory   ChartFactory
	opts      ChartOptions
	chartType models.Metric
	instance  Chart
	config    *ChartConfig
	now       func() time.Time
	logger    *zap.Logger
}

// NewChartManager creates a chart manager drawing on canvas
func NewChartManager(canvas Canvas, factory ChartFactory, opts ChartOptions, logger *zap.Logger) *ChartManager {
	if opts.GroupThreshold <= 0 {
		opts.GroupThreshold = DefaultGroupThreshold
	}
	if opts.LabelTarget < 2 {
		opts.LabelTarget = DefaultLabelTarget
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &ChartManager{
		canvas:    canvas,
		factory:   factory,
		opts:      opts,
		chartType: models.MetricAll,
		now:       time.Now,
		logger:    logger,
	}
}

// SetChartType selects the metric to draw; unknown metrics are ignored
func (c *ChartManager) SetChartType(m models.Metric) {
	if _, err := models.ParseMetric(string(m)); err != nil {
		c.logger.Warn("Ignoring chart type", zap.Error(err))
		return
	}
	c.chartType = m
}

// ChartType returns the selected metric
func (c *ChartManager) ChartType() models.Metric {
	return c.chartType
}

// Config returns the config of the live chart, if any
func (c *ChartManager) Config() (ChartConfig, bool) {
	if c.config == nil {
		return ChartConfig{}, false
	}
	return *c.config, true
}

// Prepare normalises, orders and buckets data and builds the chart config.
// ok is false when there is nothing to draw.
func (c *ChartManager) Prepare(data []models.Reading) (cfg ChartConfig, ok bool) {
	if len(data) == 0 {
		return ChartConfig{}, false
	}
	points := NormalizeReadings(data)
	grouped := GroupByInterval(points, c.opts.GroupThreshold)
	if len(grouped) < len(points) {
		c.logger.Debug("Grouped chart points",
			zap.Int("from", len(points)),
			zap.Int("to", len(grouped)))
	}

	now := c.now()
	labels := make([]string, len(grouped))
	for i, p := range grouped {
		labels[i] = FormatTimestamp(models.NewTimestamp(p.Timestamp), now, c.opts.Location)
	}
	return c.buildConfig(grouped, ThinLabels(labels, c.opts.LabelTarget)), true
}

// RenderChart draws data on the canvas, replacing any previous chart
func (c *ChartManager) RenderChart(data []models.Reading) (outcome RenderOutcome) {
	if c.canvas == nil {
		c.logger.Error("Chart canvas not found")
		return RenderFailed
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Error rendering chart", zap.Any("panic", r))
			c.displayErrorMessage()
			outcome = RenderFailed
		}
	}()

	cfg, ok := c.Prepare(data)
	if !ok {
		c.handleEmptyData()
		return RenderEmpty
	}

	c.destroyExistingChart()
	c.canvas.Reset()

	chart, err := c.factory.New(c.canvas, cfg)
	if err != nil {
		c.logger.Error("Error creating chart", zap.Error(err))
		return c.createFallbackChart()
	}
	c.instance = chart
	c.config = &cfg
	c.logger.Debug("Chart created",
		zap.String("chart_type", string(c.chartType)),
		zap.Int("points", len(cfg.Labels)))
	return RenderOK
}

// Destroy tears down the live chart
func (c *ChartManager) Destroy() {
	c.destroyExistingChart()
}

func (c *ChartManager) buildConfig(points []ChartPoint, labels []string) ChartConfig {
	farmID := points[0].FarmID
	title := fmt.Sprintf("%s over time - Farm %s", ChartTitle(c.chartType), farmID)
	if c.chartType == models.MetricAll {
		title = "All readings - Farm " + farmID
	}
	if n := points[0].GroupedCount; n > 1 {
		title += fmt.Sprintf(" (average of %d readings per group)", n)
	}

	cfg := ChartConfig{
		Type:           ChartLine,
		Title:          title,
		Labels:         labels,
		Timestamps:     make([]int64, len(points)),
		XAxisTitle:     xAxisTitle,
		YAxisTitle:     "Value",
		BeginAtZero:    true,
		TooltipTitles:  make([]string, len(points)),
		TooltipFooters: make([]string, len(points)),
	}
	for i, p := range points {
		cfg.Timestamps[i] = p.Timestamp
		cfg.TooltipTitles[i] = time.Unix(p.Timestamp, 0).In(c.opts.Location).Format(tooltipTimeLayout)
		if p.GroupedCount > 1 {
			cfg.TooltipFooters[i] = fmt.Sprintf("Average of %d readings", p.GroupedCount)
		}
	}

	stepped := IrregularGaps(points)
	if c.chartType == models.MetricAll {
		for _, m := range models.SeriesMetrics {
			cfg.Datasets = append(cfg.Datasets, seriesDataset(m, points, false, stepped))
		}
		return cfg
	}
	cfg.YAxisTitle = YAxisLabel(c.chartType)
	cfg.Datasets = append(cfg.Datasets, seriesDataset(c.chartType, points, true, stepped))
	return cfg
}

func seriesDataset(m models.Metric, points []ChartPoint, single, stepped bool) Dataset {
	info := DataInfo(m)
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value(m)
	}

	n := len(points)
	ds := Dataset{
		Label:            info.Title,
		Metric:           m,
		Data:             values,
		BackgroundColor:  info.Color.WithAlpha(0.2),
		BorderColor:      info.Color,
		BorderWidth:      2,
		PointRadius:      3,
		PointHoverRadius: 6,
		Tension:          0.3,
	}
	if n > denseThreshold {
		ds.PointRadius = 1
	}
	if single {
		ds.BorderWidth = 3
		ds.PointRadius = 4
		if n > denseThreshold {
			ds.PointRadius = 2
		}
		ds.PointHoverRadius = 8
		ds.Tension = 0.2
		ds.Fill = true
	}
	if n > straightLineAfter {
		ds.Tension = 0
	}
	if stepped {
		ds.Stepped = true
		ds.Tension = 0
	}
	return ds
}

func (c *ChartManager) handleEmptyData() {
	c.logger.Warn("No data available for chart")
	c.destroyExistingChart()
	c.canvas.Reset()
	if err := c.canvas.DrawMessage(emptyChartMessage, messageColor); err != nil {
		c.logger.Error("Could not draw message on canvas", zap.Error(err))
	}
}

func (c *ChartManager) destroyExistingChart() {
	if c.instance != nil {
		c.instance.Destroy()
		c.instance = nil
	}
	c.config = nil
}

func (c *ChartManager) createFallbackChart() RenderOutcome {
	c.destroyExistingChart()
	cfg := fallbackConfig()
	chart, err := c.factory.New(c.canvas, cfg)
	if err != nil {
		c.logger.Error("Even fallback chart failed", zap.Error(err))
		c.displayErrorMessage()
		return RenderFailed
	}
	c.instance = chart
	c.config = &cfg
	c.logger.Info("Created fallback chart")
	return RenderFallback
}

func (c *ChartManager) displayErrorMessage() {
	if c.canvas == nil {
		return
	}
	c.canvas.Reset()
	if err := c.canvas.DrawMessage(chartErrorMessage, errorColor); err != nil {
		c.logger.Error("Could not display error on canvas", zap.Error(err))
	}
}

func fallbackConfig() ChartConfig {
	color := DataInfo(models.MetricWaterLevel).Color
	return ChartConfig{
		Type:        ChartBar,
		Title:       "Data",
		Labels:      []string{"Data"},
		BeginAtZero: true,
		Datasets: []Dataset{{
			Label:           "Sample data",
			Data:            []float64{5},
			BackgroundColor: color.WithAlpha(0.2),
			BorderColor:     color,
			BorderWidth:     1,
		}},
	}
}

// NormalizeReadings converts readings to chart points ordered by time.
// Missing or non-numeric values become 0.
func NormalizeReadings(data []models.Reading) []ChartPoint {
	points := make([]ChartPoint, 0, len(data))
	for _, r := range data {
		sec, _ := r.Timestamp.Seconds()
		points = append(points, ChartPoint{
			Timestamp:    sec,
			FarmID:       r.FarmID,
			Temperature:  r.Temperature.Float64(),
			Humidity:     r.Humidity.Float64(),
			WaterLevel:   r.WaterLevel.Float64(),
			LightLevel:   r.LightLevel.Float64(),
			GroupedCount: 1,
		})
	}
	slices.SortStableFunc(points, func(a, b ChartPoint) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return points
}

// GroupInterval picks the bucket width for n points
func GroupInterval(n int) time.Duration {
	switch {
	case n > 100:
		return 4 * time.Hour
	case n > 50:
		return 2 * time.Hour
	default:
		return time.Hour
	}
}

// GroupByInterval averages time-ordered points into fixed windows once there
// are more than threshold of them. Buckets are returned in time order.
func GroupByInterval(points []ChartPoint, threshold int) []ChartPoint {
	if len(points) <= threshold {
		return points
	}
	width := int64(GroupInterval(len(points)) / time.Second)

	var out []ChartPoint
	index := make(map[int64]int)
	for _, p := range points {
		key := p.Timestamp - floorMod(p.Timestamp, width)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, ChartPoint{Timestamp: key, FarmID: p.FarmID})
		}
		b := &out[i]
		b.GroupedCount++
		b.Temperature += p.Temperature
		b.Humidity += p.Humidity
		b.WaterLevel += p.WaterLevel
		b.LightLevel += p.LightLevel
	}
	for i := range out {
		n := float64(out[i].GroupedCount)
		out[i].Temperature /= n
		out[i].Humidity /= n
		out[i].WaterLevel /= n
		out[i].LightLevel /= n
	}
	slices.SortFunc(out, func(a, b ChartPoint) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return out
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// IrregularGaps reports whether a dense series has uneven spacing, measured
// as the coefficient of variation of consecutive timestamp gaps.
func IrregularGaps(points []ChartPoint) bool {
	if len(points) <= steppedMinPoints {
		return false
	}
	gaps := make([]float64, 0, len(points)-1)
	var sum float64
	for i := 1; i < len(points); i++ {
		g := float64(points[i].Timestamp - points[i-1].Timestamp)
		gaps = append(gaps, g)
		sum += g
	}
	mean := sum / float64(len(gaps))
	if mean <= 0 {
		return false
	}
	var variance float64
	for _, g := range gaps {
		variance += (g - mean) * (g - mean)
	}
	variance /= float64(len(gaps))
	return math.Sqrt(variance)/mean > steppedGapCV
}

// ThinLabels keeps target labels (always the first and last, the rest evenly
// spaced) and blanks the others so every point still has a slot.
func ThinLabels(labels []string, target int) []string {
	out := make([]string, len(labels))
	n := len(labels)
	if n <= target || target < 2 {
		copy(out, labels)
		return out
	}
	for k := 0; k < target; k++ {
		i := int(math.Round(float64(k) * float64(n-1) / float64(target-1)))
		out[i] = labels[i]
	}
	return out
}
