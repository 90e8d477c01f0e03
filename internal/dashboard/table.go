package dashboard

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultPageSize         = 10
	maxPagesWithoutEllipsis = 7
	emptyTableMessage       = "No data in the selected date range"
)

// PageItemKind is the kind of a pagination control
type PageItemKind string

const (
	PagePrev     PageItemKind = "prev"
	PageNumber   PageItemKind = "page"
	PageEllipsis PageItemKind = "ellipsis"
	PageNext     PageItemKind = "next"
)

// PageItem is one pagination control
type PageItem struct {
	Kind     PageItemKind
	Page     int
	Active   bool
	Disabled bool
}

// TableRow is one rendered reading
type TableRow struct {
	Cells []string
}

// TableView is everything a table target needs to draw the current page
type TableView struct {
	Rows         []TableRow
	EmptyMessage string
	Pagination   []PageItem
	Sort         models.SortSpec
	Page         int
	TotalPages   int
	TotalRecords int
	FirstRecord  int
	LastRecord   int
}

// TableTarget draws table views
type TableTarget interface {
	RenderTable(view TableView) error
}

// TableManager owns sort and pagination state
type TableManager struct {
	data         []models.Reading
	filteredData []models.Reading
	itemsPerPage int
	currentPage  int
	sort         models.SortSpec

	target TableTarget
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewTableManager creates a table manager over a copy of data
func NewTableManager(data []models.Reading, itemsPerPage int, target TableTarget, loc *time.Location, logger *zap.Logger) *TableManager {
	if itemsPerPage <= 0 {
		itemsPerPage = DefaultPageSize
	}
	if loc == nil {
		loc = time.UTC
	}
	return &TableManager{
		data:         copyReadings(data),
		filteredData: copyReadings(data),
		itemsPerPage: itemsPerPage,
		currentPage:  1,
		sort:         models.SortSpec{Field: models.FieldTimestamp, Direction: models.Desc},
		target:       target,
		loc:          loc,
		now:          time.Now,
		logger:       logger,
	}
}

// NextSort returns the sort a click on field would produce
func (t *TableManager) NextSort(field string) models.SortSpec {
	if t.sort.Field == field {
		return models.SortSpec{Field: field, Direction: t.sort.Direction.Toggle()}
	}
	return models.SortSpec{Field: field, Direction: models.Asc}
}

// SortData sorts by field, toggling the direction when field is already active
func (t *TableManager) SortData(field string) {
	t.ApplySort(t.NextSort(field))
}

// ApplySort sorts the working data by spec and redraws the table
func (t *TableManager) ApplySort(spec models.SortSpec) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Error during sorting", zap.Any("panic", r))
		}
	}()

	if !models.IsSortField(spec.Field) {
		t.logger.Warn("Ignoring sort on unknown field", zap.String("field", spec.Field))
		return
	}
	if spec.Direction != models.Asc && spec.Direction != models.Desc {
		spec.Direction = models.Asc
	}

	t.sort = spec
	t.data = SortReadings(t.data, spec)
	t.logger.Debug("Sorted readings",
		zap.String("field", spec.Field),
		zap.String("direction", string(spec.Direction)))

	t.UpdateTable()
}

// Sort returns the active sort
func (t *TableManager) Sort() models.SortSpec {
	return t.sort
}

// Data returns a copy of the sorted working data
func (t *TableManager) Data() []models.Reading {
	return copyReadings(t.data)
}

// SetFilteredData replaces the displayed data and returns to page 1
func (t *TableManager) SetFilteredData(data []models.Reading) {
	t.filteredData = copyReadings(data)
	t.currentPage = 1
	t.UpdateTable()
}

// SetPage moves to page n, clamped to the available pages
func (t *TableManager) SetPage(n int) {
	total := t.TotalPages()
	if n > total {
		n = total
	}
	if n < 1 {
		n = 1
	}
	t.currentPage = n
	t.UpdateTable()
}

// PrevPage moves one page back when possible
func (t *TableManager) PrevPage() {
	if t.currentPage > 1 {
		t.currentPage--
		t.UpdateTable()
	}
}

// NextPage moves one page forward when possible
func (t *TableManager) NextPage() {
	if t.currentPage < t.TotalPages() {
		t.currentPage++
		t.UpdateTable()
	}
}

// Page returns the current page
func (t *TableManager) Page() int {
	return t.currentPage
}

// TotalPages returns the number of pages of filtered data
func (t *TableManager) TotalPages() int {
	return (len(t.filteredData) + t.itemsPerPage - 1) / t.itemsPerPage
}

// View computes the current page without drawing it
func (t *TableManager) View() TableView {
	start, end := pageBounds(t.currentPage, t.itemsPerPage, len(t.filteredData))
	page := t.filteredData[start:end]

	view := TableView{
		Pagination:   t.pagination(),
		Sort:         t.sort,
		Page:         t.currentPage,
		TotalPages:   t.TotalPages(),
		TotalRecords: len(t.filteredData),
		FirstRecord:  start + 1,
		LastRecord:   end,
	}
	if len(page) == 0 {
		view.EmptyMessage = emptyTableMessage
		view.FirstRecord = 0
		return view
	}

	now := t.now()
	view.Rows = make([]TableRow, 0, len(page))
	for _, r := range page {
		view.Rows = append(view.Rows, TableRow{Cells: []string{
			FormatTimestamp(r.Timestamp, now, t.loc),
			r.FarmID,
			r.Temperature.String(),
			r.Humidity.String(),
			r.WaterLevel.String(),
			r.LightLevel.String(),
			r.ProductID,
		}})
	}
	return view
}

// UpdateTable draws the current page on the target
func (t *TableManager) UpdateTable() {
	if t.target == nil {
		t.logger.Error("Table target not found")
		return
	}
	view := t.View()
	if err := t.target.RenderTable(view); err != nil {
		t.logger.Error("Error updating table", zap.Error(err))
		return
	}
	t.logger.Debug("Table updated",
		zap.Int("first", view.FirstRecord),
		zap.Int("last", view.LastRecord),
		zap.Int("total", view.TotalRecords))
}

func (t *TableManager) pagination() []PageItem {
	total := t.TotalPages()
	current := t.currentPage

	items := []PageItem{{Kind: PagePrev, Page: current - 1, Disabled: current <= 1}}
	for _, p := range PageNumbers(current, total) {
		if p == 0 {
			items = append(items, PageItem{Kind: PageEllipsis, Disabled: true})
			continue
		}
		items = append(items, PageItem{Kind: PageNumber, Page: p, Active: p == current})
	}
	items = append(items, PageItem{Kind: PageNext, Page: current + 1, Disabled: current >= total})
	return items
}

// PageNumbers lists the page buttons to show, with 0 marking an ellipsis.
// First and last pages are always present; past seven pages only the
// current page and its neighbours are listed between them.
func PageNumbers(current, total int) []int {
	if total <= 0 {
		return nil
	}
	pages := []int{1}
	if total == 1 {
		return pages
	}
	if total <= maxPagesWithoutEllipsis {
		for i := 2; i <= total; i++ {
			pages = append(pages, i)
		}
		return pages
	}

	if current > 3 {
		pages = append(pages, 0)
	}
	for i := max(2, current-1); i <= min(total-1, current+1); i++ {
		pages = append(pages, i)
	}
	if current < total-2 {
		pages = append(pages, 0)
	}
	return append(pages, total)
}

func pageBounds(page, size, n int) (start, end int) {
	start = (page - 1) * size
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	end = min(start+size, n)
	return start, end
}

// SortReadings returns a new slice ordered by spec. Strings compare
// case-insensitively, the timestamp numerically and sensor values as numbers
// with missing values treated as 0. Equal keys keep their input order.
func SortReadings(data []models.Reading, spec models.SortSpec) []models.Reading {
	out := copyReadings(data)
	sign := 1
	if spec.Direction == models.Desc {
		sign = -1
	}
	slices.SortStableFunc(out, func(a, b models.Reading) int {
		return sign * compareField(a, b, spec.Field)
	})
	return out
}

func compareField(a, b models.Reading, field string) int {
	switch field {
	case models.FieldTimestamp:
		as, _ := a.Timestamp.Seconds()
		bs, _ := b.Timestamp.Seconds()
		return cmp.Compare(as, bs)
	case models.FieldFarmID:
		return strings.Compare(strings.ToLower(a.FarmID), strings.ToLower(b.FarmID))
	case models.FieldProductID:
		return strings.Compare(strings.ToLower(a.ProductID), strings.ToLower(b.ProductID))
	default:
		m := models.Metric(field)
		return cmp.Compare(a.Value(m).Float64(), b.Value(m).Float64())
	}
}
