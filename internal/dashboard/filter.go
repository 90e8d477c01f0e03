package dashboard

import (
	"fmt"
	"time"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// DateInput is a date picker handle: bounds and current value, YYYY-MM-DD
type DateInput struct {
	Min   string
	Max   string
	Value string
}

// FilterManager owns the date range applied to readings
type FilterManager struct {
	currentData []models.Reading
	startInput  *DateInput
	endInput    *DateInput
	loc         *time.Location
	logger      *zap.Logger

	startDate *time.Time
	endDate   *time.Time
}

// NewFilterManager creates a filter manager over a copy of data
func NewFilterManager(data []models.Reading, startInput, endInput *DateInput, loc *time.Location, logger *zap.Logger) *FilterManager {
	if loc == nil {
		loc = time.UTC
	}
	return &FilterManager{
		currentData: copyReadings(data),
		startInput:  startInput,
		endInput:    endInput,
		loc:         loc,
		logger:      logger,
	}
}

// SetDateRangeFromData sets the input bounds and values to the data's range
func (f *FilterManager) SetDateRangeFromData() {
	defer f.recoverInto("set date range")

	minTS, maxTS, ok := timestampBounds(f.currentData)
	if !ok {
		f.logger.Warn("No data available to set date range")
		return
	}

	minDate := FormatDateOnly(models.NewTimestamp(minTS), f.loc)
	maxDate := FormatDateOnly(models.NewTimestamp(maxTS), f.loc)

	f.startInput.Min, f.startInput.Max, f.startInput.Value = minDate, maxDate, minDate
	f.endInput.Min, f.endInput.Max, f.endInput.Value = minDate, maxDate, maxDate

	f.logger.Debug("Date range set from data",
		zap.String("min_date", minDate),
		zap.String("max_date", maxDate))
}

// ApplyDateFilter returns the readings inside [start, end+1day). Readings with
// unparseable timestamps are dropped. On error the unfiltered data is returned.
func (f *FilterManager) ApplyDateFilter() (out []models.Reading) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("Error applying date filter", zap.Any("panic", r))
			out = copyReadings(f.currentData)
		}
	}()

	start, err := f.parseInput(f.startInput)
	if err != nil {
		f.logger.Error("Error applying date filter", zap.Error(err))
		return copyReadings(f.currentData)
	}
	end, err := f.parseInput(f.endInput)
	if err != nil {
		f.logger.Error("Error applying date filter", zap.Error(err))
		return copyReadings(f.currentData)
	}
	if end != nil {
		next := end.AddDate(0, 0, 1)
		end = &next
	}
	f.startDate, f.endDate = start, end

	if start == nil && end == nil {
		return copyReadings(f.currentData)
	}

	filtered := make([]models.Reading, 0, len(f.currentData))
	for _, r := range f.currentData {
		t, ok := r.Timestamp.Time()
		if !ok {
			f.logger.Warn("Invalid timestamp found", zap.String("timestamp", string(r.Timestamp)))
			continue
		}
		if start != nil && t.Before(*start) {
			continue
		}
		if end != nil && !t.Before(*end) {
			continue
		}
		filtered = append(filtered, r)
	}

	f.logger.Debug("Date filter applied",
		zap.Int("records", len(filtered)),
		zap.Int("total", len(f.currentData)))
	return filtered
}

// ResetDateFilter restores the full range and returns all readings
func (f *FilterManager) ResetDateFilter() []models.Reading {
	f.SetDateRangeFromData()
	f.startDate, f.endDate = nil, nil
	return copyReadings(f.currentData)
}

// SetCurrentData replaces the base data and refreshes the date bounds
func (f *FilterManager) SetCurrentData(data []models.Reading) {
	f.currentData = copyReadings(data)
	f.refreshBounds()
}

// refreshBounds updates min/max without touching a chosen range
func (f *FilterManager) refreshBounds() {
	minTS, maxTS, ok := timestampBounds(f.currentData)
	if !ok {
		return
	}
	minDate := FormatDateOnly(models.NewTimestamp(minTS), f.loc)
	maxDate := FormatDateOnly(models.NewTimestamp(maxTS), f.loc)
	f.startInput.Min, f.startInput.Max = minDate, maxDate
	f.endInput.Min, f.endInput.Max = minDate, maxDate
}

// Range returns the last applied range; end is exclusive
func (f *FilterManager) Range() (start, end *time.Time) {
	return f.startDate, f.endDate
}

func (f *FilterManager) parseInput(in *DateInput) (*time.Time, error) {
	if in == nil || in.Value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, in.Value, f.loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", in.Value, err)
	}
	return &t, nil
}

func (f *FilterManager) recoverInto(op string) {
	if r := recover(); r != nil {
		f.logger.Error("Error in filter manager", zap.String("op", op), zap.Any("panic", r))
	}
}

func timestampBounds(data []models.Reading) (minTS, maxTS int64, ok bool) {
	for _, r := range data {
		sec, valid := r.Timestamp.Seconds()
		if !valid {
			continue
		}
		if !ok {
			minTS, maxTS, ok = sec, sec, true
			continue
		}
		if sec < minTS {
			minTS = sec
		}
		if sec > maxTS {
			maxTS = sec
		}
	}
	return minTS, maxTS, ok
}

func copyReadings(data []models.Reading) []models.Reading {
	out := make([]models.Reading, len(data))
	copy(out, data)
	return out
}
