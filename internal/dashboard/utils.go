package dashboard

import (
	"fmt"
	"reflect"
	"time"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
	"go.uber.org/zap"
)

const invalidDate = "Invalid date"

// FormatTimestamp formats a reading timestamp relative to now: time only for
// the same calendar day, month/day plus time within the same year, and the
// full date otherwise.
func FormatTimestamp(ts models.Timestamp, now time.Time, loc *time.Location) string {
	t, ok := ts.Time()
	if !ok {
		return invalidDate
	}
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	now = now.In(loc)

	switch {
	case sameDay(t, now):
		return t.Format("15:04")
	case t.Year() == now.Year():
		return t.Format("Jan 2 15:04")
	default:
		return t.Format("Jan 2, 2006 15:04")
	}
}

// FormatDateOnly formats a timestamp as YYYY-MM-DD, or "" when invalid
func FormatDateOnly(ts models.Timestamp, loc *time.Location) string {
	t, ok := ts.Time()
	if !ok {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// RGBA is a draw colour with a CSS alpha channel
type RGBA struct {
	R, G, B uint8
	A       float64
}

// CSS renders the colour as rgba()
func (c RGBA) CSS() string {
	return fmt.Sprintf("rgba(%d, %d, %d, %g)", c.R, c.G, c.B, c.A)
}

// WithAlpha returns the colour with another alpha
func (c RGBA) WithAlpha(a float64) RGBA {
	c.A = a
	return c
}

// MarshalText lets chart configs carry colours as CSS strings
func (c RGBA) MarshalText() ([]byte, error) {
	return []byte(c.CSS()), nil
}

// MetricInfo is the display metadata of a chart metric
type MetricInfo struct {
	Title     string
	AxisLabel string
	Color     RGBA
}

var metricInfo = map[models.Metric]MetricInfo{
	models.MetricTemperature: {Title: "Temperature (°C)", AxisLabel: "Temperature (°C)", Color: RGBA{255, 99, 132, 1}},
	models.MetricHumidity:    {Title: "Humidity (%)", AxisLabel: "Humidity (%)", Color: RGBA{54, 162, 235, 1}},
	models.MetricWaterLevel:  {Title: "Soil moisture (%)", AxisLabel: "Soil moisture (%)", Color: RGBA{75, 192, 192, 1}},
	models.MetricLightLevel:  {Title: "Light (%)", AxisLabel: "Light (%)", Color: RGBA{255, 159, 64, 1}},
}

var defaultMetricInfo = MetricInfo{Title: "Data", AxisLabel: "Value", Color: RGBA{153, 102, 255, 1}}

// DataInfo returns title and colour for a metric
func DataInfo(m models.Metric) MetricInfo {
	if info, ok := metricInfo[m]; ok {
		return info
	}
	return defaultMetricInfo
}

// ChartTitle returns the display title for a metric
func ChartTitle(m models.Metric) string {
	return DataInfo(m).Title
}

// YAxisLabel returns the Y axis label for a metric
func YAxisLabel(m models.Metric) string {
	return DataInfo(m).AxisLabel
}

// NamedTarget is a rendering target required before wiring interactivity
type NamedTarget struct {
	Name string
	Ref  any
}

// ValidateTargets returns false if any required target is absent
func ValidateTargets(logger *zap.Logger, targets ...NamedTarget) bool {
	for _, t := range targets {
		if isNil(t.Ref) {
			logger.Error("Render target does not exist", zap.String("target", t.Name))
			return false
		}
	}
	return true
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
