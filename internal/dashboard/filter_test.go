package dashboard

import (
	"testing"
	"time"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
	"go.uber.org/zap/zaptest"
)

func newFilter(t *testing.T, data []models.Reading) (*FilterManager, *DateInput, *DateInput) {
	start, end := &DateInput{}, &DateInput{}
	return NewFilterManager(data, start, end, time.UTC, zaptest.NewLogger(t)), start, end
}

func TestApplyDateFilterSingleDay(t *testing.T) {
	f, start, end := newFilter(t, twoDayReadings())
	start.Value, end.Value = "2025-04-18", "2025-04-18"

	got := f.ApplyDateFilter()
	if len(got) != 3 {
		t.Fatalf("got %d readings, want 3", len(got))
	}
	for _, r := range got {
		if d := FormatDateOnly(r.Timestamp, time.UTC); d != "2025-04-18" {
			t.Errorf("reading from %s leaked into day-1 filter", d)
		}
	}
}

func TestApplyDateFilterWithinRange(t *testing.T) {
	data := twoDayReadings()
	f, start, end := newFilter(t, data)
	start.Value, end.Value = "2025-04-19", "2025-04-19"

	lo := time.Date(2025, 4, 19, 0, 0, 0, 0, time.UTC)
	hi := lo.AddDate(0, 0, 1)
	got := f.ApplyDateFilter()
	if len(got) != 2 {
		t.Fatalf("got %d readings, want 2", len(got))
	}
	for _, r := range got {
		ts, _ := r.Timestamp.Time()
		if ts.Before(lo) || !ts.Before(hi) {
			t.Errorf("reading at %v outside [%v, %v)", ts, lo, hi)
		}
	}
}

func TestApplyDateFilterOpenEnded(t *testing.T) {
	f, start, end := newFilter(t, twoDayReadings())
	start.Value, end.Value = "2025-04-19", ""
	if got := f.ApplyDateFilter(); len(got) != 2 {
		t.Errorf("start only: got %d readings, want 2", len(got))
	}

	start.Value, end.Value = "", ""
	if got := f.ApplyDateFilter(); len(got) != 5 {
		t.Errorf("no range: got %d readings, want 5", len(got))
	}
}

func TestApplyDateFilterDropsInvalidTimestamps(t *testing.T) {
	data := append(twoDayReadings(), models.Reading{Timestamp: "not-a-time", FarmID: "farm-1"})
	f, start, end := newFilter(t, data)
	start.Value, end.Value = "2025-04-18", "2025-04-19"

	if got := f.ApplyDateFilter(); len(got) != 5 {
		t.Errorf("got %d readings, want 5 valid ones", len(got))
	}
}

func TestNonFiniteTimestampsExcluded(t *testing.T) {
	for _, bad := range []models.Timestamp{"NaN", "Inf", "-Inf", "1e300", "99999999999999"} {
		t.Run(string(bad), func(t *testing.T) {
			data := append(twoDayReadings(), models.Reading{Timestamp: bad, FarmID: "farm-1"})
			f, start, end := newFilter(t, data)
			f.SetDateRangeFromData()

			if start.Min != "2025-04-18" || end.Max != "2025-04-19" {
				t.Fatalf("bounds = [%s, %s]", start.Min, end.Max)
			}
			if got := f.ApplyDateFilter(); len(got) != 5 {
				t.Errorf("full range: got %d readings, want the 5 valid ones", len(got))
			}

			start.Value, end.Value = "2025-04-19", "2025-04-19"
			if got := f.ApplyDateFilter(); len(got) != 2 {
				t.Errorf("day 2: got %d readings, want 2", len(got))
			}
		})
	}
}

func TestApplyDateFilterBadInputReturnsUnfiltered(t *testing.T) {
	f, start, _ := newFilter(t, twoDayReadings())
	start.Value = "18/04/2025"

	if got := f.ApplyDateFilter(); len(got) != 5 {
		t.Errorf("got %d readings, want the unfiltered 5", len(got))
	}
}

func TestSetDateRangeFromData(t *testing.T) {
	f, start, end := newFilter(t, twoDayReadings())
	f.SetDateRangeFromData()

	for _, in := range []*DateInput{start, end} {
		if in.Min != "2025-04-18" || in.Max != "2025-04-19" {
			t.Errorf("bounds = [%s, %s]", in.Min, in.Max)
		}
	}
	if start.Value != "2025-04-18" || end.Value != "2025-04-19" {
		t.Errorf("values = %s..%s", start.Value, end.Value)
	}
}

func TestResetDateFilterIdempotent(t *testing.T) {
	data := twoDayReadings()
	f, start, end := newFilter(t, data)
	start.Value, end.Value = "2025-04-19", "2025-04-19"
	f.ApplyDateFilter()

	first := f.ResetDateFilter()
	second := f.ResetDateFilter()
	if len(first) != len(data) || len(second) != len(data) {
		t.Fatalf("reset lengths %d, %d; want %d", len(first), len(second), len(data))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("reset results differ at %d", i)
		}
	}
	if s, e := f.Range(); s != nil || e != nil {
		t.Error("reset should clear the applied range")
	}
}

func TestFilterOutputIsCopy(t *testing.T) {
	data := twoDayReadings()
	f, _, _ := newFilter(t, data)

	got := f.ResetDateFilter()
	got[0].FarmID = "mutated"
	if again := f.ResetDateFilter(); again[0].FarmID == "mutated" {
		t.Error("filter output aliases its base data")
	}
}
