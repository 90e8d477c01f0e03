package dashboard

import (
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
	"go.uber.org/zap"
)

// ViewState is what the view toggle currently shows
type ViewState struct {
	Current          models.View
	TableVisible     bool
	ChartVisible     bool
	ChartTypeVisible bool
	ChartType        models.Metric
}

// ViewManager switches between the table and chart views
type ViewManager struct {
	state             ViewState
	onViewChange      func(models.View)
	onChartTypeChange func(models.Metric)
	logger            *zap.Logger
}

// NewViewManager starts on the table view with all metrics selected
func NewViewManager(logger *zap.Logger) *ViewManager {
	v := &ViewManager{logger: logger}
	v.state.ChartType = models.MetricAll
	v.ShowTableView()
	return v
}

// Init registers the change callbacks
func (v *ViewManager) Init(onViewChange func(models.View), onChartTypeChange func(models.Metric)) {
	v.onViewChange = onViewChange
	v.onChartTypeChange = onChartTypeChange
}

// ShowTableView makes the table visible and hides the chart
func (v *ViewManager) ShowTableView() {
	v.state.Current = models.ViewTable
	v.state.TableVisible = true
	v.state.ChartVisible = false
	v.state.ChartTypeVisible = false
}

// ShowChartView makes the chart visible and hides the table
func (v *ViewManager) ShowChartView() {
	v.state.Current = models.ViewChart
	v.state.TableVisible = false
	v.state.ChartVisible = true
	v.state.ChartTypeVisible = true
}

// SelectTable handles a click on the table toggle
func (v *ViewManager) SelectTable() {
	v.logger.Debug("Table view selected")
	v.ShowTableView()
	if v.onViewChange != nil {
		v.onViewChange(models.ViewTable)
	}
}

// SelectChart handles a click on the chart toggle
func (v *ViewManager) SelectChart() {
	v.logger.Debug("Chart view selected")
	v.ShowChartView()
	if v.onViewChange != nil {
		v.onViewChange(models.ViewChart)
	}
}

// SelectChartType handles a change of the chart type selector
func (v *ViewManager) SelectChartType(m models.Metric) {
	if _, err := models.ParseMetric(string(m)); err != nil {
		v.logger.Warn("Ignoring chart type change", zap.Error(err))
		return
	}
	v.logger.Debug("Chart type changed", zap.String("chart_type", string(m)))
	v.state.ChartType = m
	if v.onChartTypeChange != nil {
		v.onChartTypeChange(m)
	}
}

// CurrentView returns the visible view
func (v *ViewManager) CurrentView() models.View {
	return v.state.Current
}

// ChartType returns the selected chart metric
func (v *ViewManager) ChartType() models.Metric {
	return v.state.ChartType
}

// State returns a copy of the view state
func (v *ViewManager) State() ViewState {
	return v.state
}
