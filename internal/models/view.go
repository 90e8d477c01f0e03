package models

import "fmt"

// Metric selects which readings series the chart shows
type Metric string

const (
	MetricAll         Metric = "all"
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
	MetricWaterLevel  Metric = "waterLevel"
	MetricLightLevel  Metric = "lightLevel"
)

// SeriesMetrics lists the metrics drawn in "all" mode, in drawing order
var SeriesMetrics = []Metric{MetricTemperature, MetricHumidity, MetricWaterLevel, MetricLightLevel}

// ParseMetric validates a metric key
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case MetricAll, MetricTemperature, MetricHumidity, MetricWaterLevel, MetricLightLevel:
		return m, nil
	default:
		return "", fmt.Errorf("unknown chart type: %q", s)
	}
}

// View is the visible dashboard view
type View string

const (
	ViewTable View = "table"
	ViewChart View = "chart"
)

// ParseView validates a view name
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewTable, ViewChart:
		return v, nil
	default:
		return "", fmt.Errorf("unknown view: %q", s)
	}
}

// Direction is a sort direction
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Toggle returns the opposite direction
func (d Direction) Toggle() Direction {
	if d == Asc {
		return Desc
	}
	return Asc
}

// Sortable table fields
const (
	FieldTimestamp   = "timestamp"
	FieldFarmID      = "farmId"
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
	FieldWaterLevel  = "waterLevel"
	FieldLightLevel  = "lightLevel"
	FieldProductID   = "productId"
)

// TableFields lists the table columns in display order
var TableFields = []string{
	FieldTimestamp,
	FieldFarmID,
	FieldTemperature,
	FieldHumidity,
	FieldWaterLevel,
	FieldLightLevel,
	FieldProductID,
}

// IsSortField reports whether field names a table column
func IsSortField(field string) bool {
	for _, f := range TableFields {
		if f == field {
			return true
		}
	}
	return false
}

// SortSpec is the active table sort
type SortSpec struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}
