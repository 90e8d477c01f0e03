package render

import (
	"fmt"
	"html/template"
	"io"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/dashboard"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
)

var columnLabels = map[string]string{
	models.FieldTimestamp:   "Time",
	models.FieldFarmID:      "Farm",
	models.FieldTemperature: "Temperature (°C)",
	models.FieldHumidity:    "Humidity (%)",
	models.FieldWaterLevel:  "Soil moisture (%)",
	models.FieldLightLevel:  "Light (%)",
	models.FieldProductID:   "Product",
}

var sortIndicators = map[models.Direction]string{
	models.Asc:  "▲",
	models.Desc: "▼",
}

// Page is everything needed to draw a dashboard page
type Page struct {
	State     State
	Dashboard *dashboard.Dashboard
	Table     *HTMLTable
	StartDate *dashboard.DateInput
	EndDate   *dashboard.DateInput
	User      string
}

type header struct {
	Field     string
	Label     string
	Href      string
	Indicator string
	Active    bool
}

type option struct {
	Value    string
	Label    string
	Selected bool
}

type hiddenField struct {
	Name  string
	Value string
}

type pageData struct {
	Title       string
	FarmID      string
	User        string
	Action      string
	Hidden      []hiddenField
	ChartHidden []hiddenField
	StartDate   dashboard.DateInput
	EndDate     dashboard.DateInput
	ResetHref   string
	TableHref   string
	ChartHref   string
	View        dashboard.ViewState
	ChartTypes  []option
	Summary     string
	Headers     []header
	TableBody   template.HTML
	Pagination  template.HTML
	ChartSrc    string
	ChartAlt    string
	ChartWidth  int
	ChartHeight int
}

// ErrorPage describes a full-page error
type ErrorPage struct {
	Title   string
	Message string
	Kind    AlertKind
}

// PageRenderer draws full dashboard pages
type PageRenderer struct {
	chartWidth  int
	chartHeight int
}

// NewPageRenderer creates a page renderer for charts of the given size
func NewPageRenderer(chartWidth, chartHeight int) *PageRenderer {
	return &PageRenderer{chartWidth: chartWidth, chartHeight: chartHeight}
}

// Render writes the dashboard page
func (p *PageRenderer) Render(w io.Writer, page Page) error {
	if page.Dashboard == nil || page.Table == nil || page.StartDate == nil || page.EndDate == nil {
		return fmt.Errorf("page for farm %s: %w", page.State.FarmID, dashboard.ErrMissingTarget)
	}
	st := page.State
	d := page.Dashboard
	view := d.View().State()

	data := pageData{
		Title:       "Farm " + st.FarmID,
		FarmID:      st.FarmID,
		User:        page.User,
		Action:      st.BasePath(),
		Hidden:      hiddenFields(st, "start", "end", "page"),
		ChartHidden: hiddenFields(st, "chart", "page"),
		StartDate:   *page.StartDate,
		EndDate:     *page.EndDate,
		ResetHref:   st.WithoutRange().PageHref(),
		TableHref:   st.WithView(models.ViewTable).PageHref(),
		ChartHref:   st.WithView(models.ViewChart).PageHref(),
		View:        view,
		ChartTypes:  chartTypeOptions(st.Chart),
		ChartSrc:    st.Href(st.BasePath() + "/chart.png"),
		ChartAlt:    "Readings chart for farm " + st.FarmID,
		ChartWidth:  p.chartWidth,
		ChartHeight: p.chartHeight,
	}

	if view.TableVisible {
		tv := page.Table.View()
		if tv.TotalRecords > 0 {
			data.Summary = fmt.Sprintf("Showing %d-%d of %d readings", tv.FirstRecord, tv.LastRecord, tv.TotalRecords)
		}
		data.TableBody = page.Table.Body()
		data.Pagination = page.Table.Pagination()
		data.Headers = headers(st, d.Table())
	}

	if err := templates.ExecuteTemplate(w, "page", data); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	return nil
}

// RenderError writes a full-page error
func (p *PageRenderer) RenderError(w io.Writer, e ErrorPage) error {
	if e.Kind == "" {
		e.Kind = AlertDanger
	}
	if err := templates.ExecuteTemplate(w, "error", e); err != nil {
		return fmt.Errorf("failed to render error page: %w", err)
	}
	return nil
}

func headers(st State, table *dashboard.TableManager) []header {
	active := table.Sort()
	out := make([]header, 0, len(models.TableFields))
	for _, field := range models.TableFields {
		h := header{
			Field: field,
			Label: columnLabels[field],
			Href:  st.WithSort(table.NextSort(field)).PageHref(),
		}
		if field == active.Field {
			h.Active = true
			h.Indicator = sortIndicators[active.Direction]
		}
		out = append(out, h)
	}
	return out
}

func chartTypeOptions(selected models.Metric) []option {
	out := []option{{Value: string(models.MetricAll), Label: "All readings", Selected: selected == models.MetricAll}}
	for _, m := range models.SeriesMetrics {
		out = append(out, option{
			Value:    string(m),
			Label:    dashboard.ChartTitle(m),
			Selected: selected == m,
		})
	}
	return out
}

// hiddenFields carries the state through a GET form except for the named
// keys, which the form itself submits or resets
func hiddenFields(st State, except ...string) []hiddenField {
	q := st.Values()
	for _, k := range except {
		q.Del(k)
	}
	var out []hiddenField
	for _, k := range []string{"view", "chart", "sort", "dir", "start", "end", "page"} {
		if v := q.Get(k); v != "" {
			out = append(out, hiddenField{Name: k, Value: v})
		}
	}
	return out
}
