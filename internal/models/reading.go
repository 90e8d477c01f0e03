package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Timestamp is a Unix time in seconds as delivered by the readings feed.
// The feed is not strict about types, so both JSON numbers and numeric
// strings are accepted. Anything else is kept verbatim and reported invalid.
type Timestamp string

// NewTimestamp builds a Timestamp from Unix seconds
func NewTimestamp(sec int64) Timestamp {
	return Timestamp(strconv.FormatInt(sec, 10))
}

// Bounds of a timestamp with a four digit year
const (
	minSeconds int64 = -62135596800 // 0001-01-01T00:00:00Z
	maxSeconds int64 = 253402300799 // 9999-12-31T23:59:59Z
)

// Seconds returns the Unix seconds and whether the value parsed. Values
// outside years 1 to 9999 are invalid.
func (t Timestamp) Seconds() (int64, bool) {
	s := strings.TrimSpace(string(t))
	if s == "" {
		return 0, false
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		if sec < minSeconds || sec > maxSeconds {
			return 0, false
		}
		return sec, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f < float64(minSeconds) || f > float64(maxSeconds) {
		return 0, false
	}
	return int64(f), true
}

// Time returns the timestamp as time.Time
func (t Timestamp) Time() (time.Time, bool) {
	sec, ok := t.Seconds()
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Timestamp(s)
		return nil
	}
	*t = Timestamp(data)
	return nil
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if sec, ok := t.Seconds(); ok {
		return []byte(strconv.FormatInt(sec, 10)), nil
	}
	return json.Marshal(string(t))
}

// Number is a nullable sensor value
type Number struct {
	Value float64
	Valid bool
}

// NewNumber returns a valid Number
func NewNumber(v float64) Number {
	return Number{Value: v, Valid: true}
}

// Float64 returns the value, defaulting missing or non-numeric input to 0
func (n Number) Float64() float64 {
	if !n.Valid {
		return 0
	}
	return n.Value
}

// String renders the value for table cells; invalid values render empty
func (n Number) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// UnmarshalJSON implements json.Unmarshaler
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*n = Number{}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*n = NewNumber(f)
		}
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		// booleans, objects and arrays coerce to an invalid value
		return nil
	}
	*n = NewNumber(f)
	return nil
}

// MarshalJSON implements json.Marshaler
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.Value, 'f', -1, 64)), nil
}

// Reading is one sensor sample for a farm
type Reading struct {
	Timestamp   Timestamp `json:"timestamp"`
	FarmID      string    `json:"farmId"`
	Temperature Number    `json:"temperature"`
	Humidity    Number    `json:"humidity"`
	WaterLevel  Number    `json:"waterLevel"`
	LightLevel  Number    `json:"lightLevel"`
	ProductID   string    `json:"productId"`
}

// Value returns the metric value of the reading
func (r Reading) Value(m Metric) Number {
	switch m {
	case MetricTemperature:
		return r.Temperature
	case MetricHumidity:
		return r.Humidity
	case MetricWaterLevel:
		return r.WaterLevel
	case MetricLightLevel:
		return r.LightLevel
	default:
		return Number{}
	}
}
