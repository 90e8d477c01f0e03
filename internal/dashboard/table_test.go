package dashboard

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
	"go.uber.org/zap/zaptest"
)

func newTable(t *testing.T, data []models.Reading, pageSize int) (*TableManager, *recordingTable) {
	target := &recordingTable{}
	tm := NewTableManager(data, pageSize, target, time.UTC, zaptest.NewLogger(t))
	tm.now = func() time.Time { return day1.Add(10 * time.Hour) }
	return tm, target
}

func manyReadings(n int) []models.Reading {
	out := make([]models.Reading, n)
	for i := range out {
		out[i] = reading(day1.Add(time.Duration(i)*time.Minute), float64(i))
	}
	return out
}

func TestSortDataTogglesDirection(t *testing.T) {
	tm, _ := newTable(t, twoDayReadings(), 10)

	tm.SortData(models.FieldTemperature)
	if got := tm.Sort(); got.Field != models.FieldTemperature || got.Direction != models.Asc {
		t.Fatalf("first click: %+v", got)
	}
	tm.SortData(models.FieldTemperature)
	if got := tm.Sort().Direction; got != models.Desc {
		t.Fatalf("second click: %s", got)
	}
	tm.SortData(models.FieldTemperature)
	if got := tm.Sort().Direction; got != models.Asc {
		t.Fatalf("third click: %s", got)
	}

	tm.SortData(models.FieldHumidity)
	if got := tm.Sort(); got.Field != models.FieldHumidity || got.Direction != models.Asc {
		t.Fatalf("new field should reset to ascending: %+v", got)
	}
}

func TestInitialTimestampSortIsAscending(t *testing.T) {
	tm, _ := newTable(t, twoDayReadings(), 10)
	tm.SortData(models.FieldTimestamp)

	ts := timestamps(tm.Data())
	if !slices.IsSorted(ts) {
		t.Errorf("timestamps not ascending: %v", ts)
	}
}

func TestSortReadingsCaseInsensitiveAndStable(t *testing.T) {
	data := []models.Reading{
		{Timestamp: "3", FarmID: "beta", ProductID: "x"},
		{Timestamp: "1", FarmID: "Alpha", ProductID: "y"},
		{Timestamp: "2", FarmID: "alpha", ProductID: "z"},
		{Timestamp: "4", FarmID: "ALPHA", ProductID: "w"},
	}

	got := SortReadings(data, models.SortSpec{Field: models.FieldFarmID, Direction: models.Asc})
	var order []string
	for _, r := range got {
		order = append(order, r.ProductID)
	}
	if want := []string{"y", "z", "w", "x"}; !slices.Equal(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
	if data[0].FarmID != "beta" {
		t.Error("SortReadings mutated its input")
	}
}

func TestSortReadingsNumericTimestamp(t *testing.T) {
	data := []models.Reading{{Timestamp: "100"}, {Timestamp: "9"}, {Timestamp: "20"}}
	got := timestamps(SortReadings(data, models.SortSpec{Field: models.FieldTimestamp, Direction: models.Desc}))
	if want := []int64{100, 20, 9}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSortReadingsMissingValuesAsZero(t *testing.T) {
	data := []models.Reading{
		{Timestamp: "1", Temperature: models.NewNumber(5)},
		{Timestamp: "2"},
		{Timestamp: "3", Temperature: models.NewNumber(-1)},
	}
	got := timestamps(SortReadings(data, models.SortSpec{Field: models.FieldTemperature, Direction: models.Asc}))
	if want := []int64{3, 2, 1}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestUnknownSortFieldIgnored(t *testing.T) {
	tm, target := newTable(t, twoDayReadings(), 10)
	tm.SortData("password")
	if tm.Sort().Field != models.FieldTimestamp {
		t.Errorf("sort changed to %q", tm.Sort().Field)
	}
	if len(target.views) != 0 {
		t.Error("ignored sort should not redraw")
	}
}

func TestUpdateTablePageSlices(t *testing.T) {
	data := manyReadings(23)
	tm, target := newTable(t, data, 10)
	tm.SetFilteredData(data)

	for page := 1; page <= tm.TotalPages()+1; page++ {
		tm.SetPage(page)
		view := target.last()
		if len(view.Rows) > 10 {
			t.Errorf("page %d has %d rows", page, len(view.Rows))
		}
		if view.LastRecord > len(data) {
			t.Errorf("page %d ends at %d past %d records", page, view.LastRecord, len(data))
		}
	}

	tm.SetPage(3)
	if view := target.last(); len(view.Rows) != 3 || view.FirstRecord != 21 || view.LastRecord != 23 {
		t.Errorf("last page = %d rows, records %d-%d", len(view.Rows), view.FirstRecord, view.LastRecord)
	}
}

func TestUpdateTableRowCells(t *testing.T) {
	data := []models.Reading{{
		Timestamp:   models.NewTimestamp(day1.Add(8 * time.Hour).Unix()),
		FarmID:      "farm-9",
		Temperature: models.NewNumber(21.5),
		Humidity:    models.NewNumber(60),
		ProductID:   "rice",
	}}
	tm, target := newTable(t, data, 10)
	tm.UpdateTable()

	cells := target.last().Rows[0].Cells
	want := []string{"08:00", "farm-9", "21.5", "60", "", "", "rice"}
	if !slices.Equal(cells, want) {
		t.Errorf("cells = %q, want %q", cells, want)
	}
}

func TestUpdateTableEmptyState(t *testing.T) {
	tm, target := newTable(t, twoDayReadings(), 10)
	tm.SetFilteredData(nil)

	view := target.last()
	if len(view.Rows) != 0 || view.EmptyMessage == "" {
		t.Fatalf("expected empty-state message, got %+v", view)
	}
	for _, item := range view.Pagination {
		if item.Kind == PageNumber {
			t.Errorf("no page buttons expected, got %+v", item)
		}
	}
}

func TestSetFilteredDataResetsPage(t *testing.T) {
	data := manyReadings(40)
	tm, _ := newTable(t, data, 10)
	tm.SetPage(3)
	tm.SetFilteredData(data[:25])
	if tm.Page() != 1 {
		t.Errorf("page = %d, want 1", tm.Page())
	}
}

func TestPrevNextPage(t *testing.T) {
	tm, target := newTable(t, manyReadings(25), 10)
	tm.PrevPage()
	if tm.Page() != 1 {
		t.Fatal("prev on first page moved")
	}
	tm.NextPage()
	tm.NextPage()
	tm.NextPage()
	if tm.Page() != 3 {
		t.Fatalf("page = %d, want 3", tm.Page())
	}
	pag := target.last().Pagination
	if first, last := pag[0], pag[len(pag)-1]; first.Disabled || !last.Disabled {
		t.Errorf("prev disabled=%v next disabled=%v on last page", first.Disabled, last.Disabled)
	}
}

func TestPageNumbers(t *testing.T) {
	tests := []struct {
		current, total int
		want           []int
	}{
		{1, 0, nil},
		{1, 1, []int{1}},
		{3, 7, []int{1, 2, 3, 4, 5, 6, 7}},
		{1, 10, []int{1, 2, 0, 10}},
		{3, 10, []int{1, 2, 3, 4, 0, 10}},
		{4, 10, []int{1, 0, 3, 4, 5, 0, 10}},
		{8, 10, []int{1, 0, 7, 8, 9, 10}},
		{10, 10, []int{1, 0, 9, 10}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_of_%d", tt.current, tt.total), func(t *testing.T) {
			if got := PageNumbers(tt.current, tt.total); !slices.Equal(got, tt.want) {
				t.Errorf("PageNumbers(%d, %d) = %v, want %v", tt.current, tt.total, got, tt.want)
			}
		})
	}
}
