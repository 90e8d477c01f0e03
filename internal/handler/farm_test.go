package handler

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/auth"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/dashboard"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"
)

func newFarmRouter(t *testing.T, source *memorySource) (*mux.Router, *FarmHandler) {
	t.Helper()
	h := NewFarmHandler(source, FarmOptions{ChartWidth: 480, ChartHeight: 240}, prometheus.NewRegistry(), zaptest.NewLogger(t))
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router, h
}

func TestFarmPageTable(t *testing.T) {
	router, _ := newFarmRouter(t, newMemorySource())
	router.Use(withUser(&auth.User{ID: "user-7", Token: "tok"}))

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/farm/farm-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}

	doc := parseHTML(t, rec.Body.String())
	if n := doc.Find("#dataTableBody tr").Length(); n != 5 {
		t.Errorf("rows = %d, want 5", n)
	}
	if got := strings.TrimSpace(doc.Find("#recordSummary").Text()); got != "Showing 1-5 of 5 readings" {
		t.Errorf("summary = %q", got)
	}
	if v, _ := doc.Find("#startDate").Attr("value"); v != "2025-04-18" {
		t.Errorf("start date = %q", v)
	}
	if v, _ := doc.Find("#endDate").Attr("value"); v != "2025-04-19" {
		t.Errorf("end date = %q", v)
	}
	if doc.Find("#chartView img#farmDataChart").Length() != 0 {
		t.Error("chart rendered in table view")
	}
}

func TestFarmPageRestoresFilter(t *testing.T) {
	router, _ := newFarmRouter(t, newMemorySource())

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/farm/farm-1?start=2025-04-19&end=2025-04-19", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	doc := parseHTML(t, rec.Body.String())
	if n := doc.Find("#dataTableBody tr").Length(); n != 2 {
		t.Errorf("rows = %d, want 2", n)
	}
	if v, _ := doc.Find("#startDate").Attr("value"); v != "2025-04-19" {
		t.Errorf("start date = %q", v)
	}
}

func TestFarmPageChartView(t *testing.T) {
	router, _ := newFarmRouter(t, newMemorySource())

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/farm/farm-1?view=chart&chart=humidity", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	doc := parseHTML(t, rec.Body.String())
	src, ok := doc.Find("#farmDataChart").Attr("src")
	if !ok || !strings.HasPrefix(src, "/farm/farm-1/chart.png?") || !strings.Contains(src, "chart=humidity") {
		t.Errorf("chart src = %q", src)
	}
	if v, _ := doc.Find("#chartType option[selected]").Attr("value"); v != "humidity" {
		t.Errorf("selected chart type = %q", v)
	}
}

func TestFarmPageErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		path   string
		status int
		text   string
	}{
		{"unknown farm", "/farm/farm-9", http.StatusNotFound, "No data found for this farm"},
		{"invalid id", "/farm/-bad", http.StatusBadRequest, "Invalid farm id"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			router, _ := newFarmRouter(t, newMemorySource())
			rec := serve(router, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			doc := parseHTML(t, rec.Body.String())
			if got := doc.Find("#errorMessage").Text(); !strings.Contains(got, tc.text) {
				t.Errorf("error message = %q", got)
			}
		})
	}
}

func TestFarmChartImage(t *testing.T) {
	router, h := newFarmRouter(t, newMemorySource())

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/farm/farm-1/chart.png?chart=temperature", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if o := rec.Header().Get("X-Chart-Outcome"); o != string(dashboard.RenderOK) {
		t.Errorf("outcome = %q", o)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 480 || b.Dy() != 240 {
		t.Errorf("bounds = %v", b)
	}
	if got := testutil.ToFloat64(h.renders.WithLabelValues(string(dashboard.RenderOK))); got != 1 {
		t.Errorf("rendered count = %v", got)
	}
}

func TestFarmChartImageNotFound(t *testing.T) {
	router, _ := newFarmRouter(t, newMemorySource())
	rec := serve(router, httptest.NewRequest(http.MethodGet, "/farm/farm-9/chart.png", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestFarmChartConfig(t *testing.T) {
	router, _ := newFarmRouter(t, newMemorySource())

	for _, tc := range []struct {
		query    string
		datasets int
		yTitle   string
	}{
		{"", len(models.SeriesMetrics), "Value"},
		{"?chart=humidity", 1, dashboard.YAxisLabel(models.MetricHumidity)},
	} {
		rec := serve(router, httptest.NewRequest(http.MethodGet, "/farm/farm-1/chart.json"+tc.query, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%q: status = %d", tc.query, rec.Code)
		}
		var resp chartResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%q: decode: %v", tc.query, err)
		}
		if resp.FarmID != "farm-1" || resp.Outcome != dashboard.RenderOK {
			t.Errorf("%q: response = %+v", tc.query, resp)
		}
		if resp.Config == nil {
			t.Fatalf("%q: missing config", tc.query)
		}
		if len(resp.Config.Datasets) != tc.datasets {
			t.Errorf("%q: datasets = %d, want %d", tc.query, len(resp.Config.Datasets), tc.datasets)
		}
		if resp.Config.YAxisTitle != tc.yTitle {
			t.Errorf("%q: y axis = %q", tc.query, resp.Config.YAxisTitle)
		}
		if len(resp.Config.Labels) != 5 {
			t.Errorf("%q: labels = %d", tc.query, len(resp.Config.Labels))
		}
	}
}

func TestFarmChartConfigFilteredEmpty(t *testing.T) {
	router, _ := newFarmRouter(t, newMemorySource())

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/farm/farm-1/chart.json?start=2030-01-01", nil))
	var resp chartResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Outcome != dashboard.RenderEmpty {
		t.Errorf("outcome = %q", resp.Outcome)
	}
	if resp.Config != nil {
		t.Errorf("config = %+v", resp.Config)
	}
}
