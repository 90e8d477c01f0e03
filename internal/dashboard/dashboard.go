// Package dashboard holds the farm readings view pipeline: date filtering,
// table sort and pagination, chart bucketing and the view toggle. Drawing is
// delegated to injected targets so the pipeline runs the same headless.
package dashboard

import (
	"errors"
	"fmt"
	"time"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
	"go.uber.org/zap"
)

// ErrMissingTarget is returned when a required render target is absent
var ErrMissingTarget = errors.New("required render target missing")

// Targets are the surfaces the dashboard draws on
type Targets struct {
	Table     TableTarget
	Canvas    Canvas
	Charts    ChartFactory
	StartDate *DateInput
	EndDate   *DateInput
}

// Options configures the managers
type Options struct {
	PageSize int
	Chart    ChartOptions
	Location *time.Location
}

// Dashboard coordinates the managers: every filter, sort or view event
// recomputes the filtered readings and pushes them to the active view.
type Dashboard struct {
	snapshot models.Snapshot
	table    *TableManager
	filter   *FilterManager
	chart    *ChartManager
	view     *ViewManager
	logger   *zap.Logger

	lastOutcome RenderOutcome
}

// New validates the targets and builds the managers over snapshot
func New(snapshot models.Snapshot, targets Targets, opts Options, logger *zap.Logger) (*Dashboard, error) {
	if !ValidateTargets(logger,
		NamedTarget{Name: "table", Ref: targets.Table},
		NamedTarget{Name: "canvas", Ref: targets.Canvas},
		NamedTarget{Name: "charts", Ref: targets.Charts},
		NamedTarget{Name: "startDate", Ref: targets.StartDate},
		NamedTarget{Name: "endDate", Ref: targets.EndDate},
	) {
		return nil, fmt.Errorf("dashboard for farm %s: %w", snapshot.FarmID(), ErrMissingTarget)
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	if opts.Chart.Location == nil {
		opts.Chart.Location = loc
	}

	data := snapshot.Readings()
	return &Dashboard{
		snapshot: snapshot,
		table:    NewTableManager(data, opts.PageSize, targets.Table, loc, logger),
		filter:   NewFilterManager(data, targets.StartDate, targets.EndDate, loc, logger),
		chart:    NewChartManager(targets.Canvas, targets.Charts, opts.Chart, logger),
		view:     NewViewManager(logger),
		logger:   logger,
	}, nil
}

// Init wires the view callbacks, sorts by time and sets the date range
func (d *Dashboard) Init() {
	d.view.Init(
		func(v models.View) {
			if v == models.ViewChart {
				d.chart.SetChartType(d.view.ChartType())
				d.renderChart(d.filter.ApplyDateFilter())
			}
		},
		func(m models.Metric) {
			d.chart.SetChartType(m)
			d.renderChart(d.filter.ApplyDateFilter())
		},
	)

	d.filter.SetDateRangeFromData()
	d.Sort(models.FieldTimestamp)

	d.logger.Debug("Farm data dashboard initialized",
		zap.String("farm_id", d.snapshot.FarmID()),
		zap.Int("records", d.snapshot.Len()))
}

// ApplyFilter sets the date inputs and applies the range
func (d *Dashboard) ApplyFilter(startDate, endDate string) {
	d.filter.startInput.Value = startDate
	d.filter.endInput.Value = endDate
	d.refresh(d.filter.ApplyDateFilter())
}

// ResetFilter clears the range back to the full data
func (d *Dashboard) ResetFilter() {
	d.refresh(d.filter.ResetDateFilter())
}

// Sort handles a click on a sortable header
func (d *Dashboard) Sort(field string) {
	d.table.SortData(field)
	d.resync()
}

// ApplySort restores an explicit sort state
func (d *Dashboard) ApplySort(spec models.SortSpec) {
	d.table.ApplySort(spec)
	d.resync()
}

// GoToPage moves the table to page n
func (d *Dashboard) GoToPage(n int) {
	d.table.SetPage(n)
}

// ShowTable switches to the table view
func (d *Dashboard) ShowTable() {
	d.view.SelectTable()
}

// ShowChart switches to the chart view and renders it
func (d *Dashboard) ShowChart() {
	d.view.SelectChart()
}

// SetChartType changes the chart metric
func (d *Dashboard) SetChartType(m models.Metric) {
	d.view.SelectChartType(m)
}

// Table returns the table manager
func (d *Dashboard) Table() *TableManager { return d.table }

// Filter returns the filter manager
func (d *Dashboard) Filter() *FilterManager { return d.filter }

// Chart returns the chart manager
func (d *Dashboard) Chart() *ChartManager { return d.chart }

// View returns the view manager
func (d *Dashboard) View() *ViewManager { return d.view }

// LastChartOutcome returns how the latest chart render ended, if any
func (d *Dashboard) LastChartOutcome() RenderOutcome {
	return d.lastOutcome
}

// resync hands the table's sorted data back to the filter so both agree on
// order, then reapplies the current range.
func (d *Dashboard) resync() {
	d.filter.SetCurrentData(d.table.Data())
	d.table.SetFilteredData(d.filter.ApplyDateFilter())
}

func (d *Dashboard) refresh(filtered []models.Reading) {
	d.table.SetFilteredData(filtered)
	if d.view.CurrentView() == models.ViewChart {
		d.renderChart(filtered)
	}
}

func (d *Dashboard) renderChart(data []models.Reading) {
	d.lastOutcome = d.chart.RenderChart(data)
}
