// Package render draws dashboard views: HTML fragments and pages with
// html/template, and chart images with go-chart.
package render

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
)

// State is the dashboard state carried in the page query string
type State struct {
	FarmID   string
	View     models.View
	Chart    models.Metric
	Start    string
	End      string
	HasRange bool
	Sort     models.SortSpec
	Page     int
}

// ParseState reads the dashboard state from query values. Unknown or
// malformed values fall back to the defaults.
func ParseState(farmID string, q url.Values) State {
	st := State{
		FarmID: farmID,
		View:   models.ViewTable,
		Chart:  models.MetricAll,
		Page:   1,
	}
	if v, err := models.ParseView(q.Get("view")); err == nil {
		st.View = v
	}
	if m, err := models.ParseMetric(q.Get("chart")); err == nil {
		st.Chart = m
	}
	if q.Has("start") || q.Has("end") {
		st.HasRange = true
		st.Start = strings.TrimSpace(q.Get("start"))
		st.End = strings.TrimSpace(q.Get("end"))
	}
	if field := q.Get("sort"); models.IsSortField(field) {
		st.Sort = models.SortSpec{Field: field, Direction: models.Asc}
		if models.Direction(q.Get("dir")) == models.Desc {
			st.Sort.Direction = models.Desc
		}
	}
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		st.Page = p
	}
	return st
}

// Values encodes the state, leaving defaults out
func (s State) Values() url.Values {
	q := url.Values{}
	if s.View != "" && s.View != models.ViewTable {
		q.Set("view", string(s.View))
	}
	if s.Chart != "" && s.Chart != models.MetricAll {
		q.Set("chart", string(s.Chart))
	}
	if s.HasRange {
		q.Set("start", s.Start)
		q.Set("end", s.End)
	}
	if s.Sort.Field != "" {
		q.Set("sort", s.Sort.Field)
		q.Set("dir", string(s.Sort.Direction))
	}
	if s.Page > 1 {
		q.Set("page", strconv.Itoa(s.Page))
	}
	return q
}

// BasePath is the dashboard page of the farm
func (s State) BasePath() string {
	return "/farm/" + url.PathEscape(s.FarmID)
}

// Href links to path with the state as query string
func (s State) Href(path string) string {
	if enc := s.Values().Encode(); enc != "" {
		return path + "?" + enc
	}
	return path
}

// PageHref links to the dashboard page with the state
func (s State) PageHref() string {
	return s.Href(s.BasePath())
}

// WithPage returns a copy on page n
func (s State) WithPage(n int) State {
	s.Page = n
	return s
}

// WithSort returns a copy sorted by spec, back on page 1
func (s State) WithSort(spec models.SortSpec) State {
	s.Sort = spec
	s.Page = 1
	return s
}

// WithView returns a copy showing v
func (s State) WithView(v models.View) State {
	s.View = v
	return s
}

// WithoutRange returns a copy on the full date range, back on page 1
func (s State) WithoutRange() State {
	s.HasRange = false
	s.Start, s.End = "", ""
	s.Page = 1
	return s
}
