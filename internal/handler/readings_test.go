package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/repository"
	"github.com/gorilla/mux"
	"go.uber.org/zap/zaptest"
)

func newReadingsRouter(t *testing.T, source repository.Source) (*mux.Router, *ReadingsHandler) {
	t.Helper()
	h := NewReadingsHandler(source, zaptest.NewLogger(t))
	h.now = func() time.Time { return day1.Add(48 * time.Hour) }
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router, h
}

func TestReadingsList(t *testing.T) {
	router, _ := newReadingsRouter(t, newMemorySource())

	for _, path := range []string{"/api/farm/farm-1", "/api/farm/farm-1/readings"} {
		rec := serve(router, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
		var rows []models.Reading
		if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
			t.Fatalf("%s: decode: %v", path, err)
		}
		if len(rows) != 5 || rows[0].FarmID != "farm-1" {
			t.Errorf("%s: got %d rows", path, len(rows))
		}
	}

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/farm/farm-9", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown farm status = %d", rec.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Success || body.Error == "" {
		t.Errorf("error body = %s", rec.Body.String())
	}
}

func TestReadingsIngest(t *testing.T) {
	source := newMemorySource()
	router, _ := newReadingsRouter(t, source)

	body := `{"farm_id":"farm-2","product_id":"p-9","timestamp":"1713430800","temperature":"23.5","humidity":61}`
	rec := serve(router, httptest.NewRequest(http.MethodPost, "/api/farm", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.FarmID != "farm-2" {
		t.Errorf("response = %+v", resp)
	}

	stored := source.readings["farm-2"]
	if len(stored) != 1 {
		t.Fatalf("stored %d readings", len(stored))
	}
	got := stored[0]
	if sec, _ := got.Timestamp.Seconds(); sec != 1713430800 {
		t.Errorf("timestamp = %q", got.Timestamp)
	}
	if got.Temperature.Float64() != 23.5 || got.Humidity.Float64() != 61 {
		t.Errorf("values = %v %v", got.Temperature, got.Humidity)
	}
	if got.WaterLevel.Valid {
		t.Errorf("water level = %v, want missing", got.WaterLevel)
	}
	if got.ProductID != "p-9" {
		t.Errorf("product = %q", got.ProductID)
	}
}

func TestReadingsIngestDefaultsTimestamp(t *testing.T) {
	source := newMemorySource()
	router, h := newReadingsRouter(t, source)

	rec := serve(router, httptest.NewRequest(http.MethodPost, "/api/farm", strings.NewReader(`{"farm_id":"farm-1","light_level":400}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	rows := source.readings["farm-1"]
	last := rows[len(rows)-1]
	if sec, _ := last.Timestamp.Seconds(); sec != h.now().Unix() {
		t.Errorf("timestamp = %q", last.Timestamp)
	}
}

func TestReadingsIngestRejects(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
	}{
		{"malformed", `{"farm_id":`},
		{"missing farm", `{"temperature":20}`},
		{"bad farm id", `{"farm_id":"../etc","temperature":20}`},
		{"no values", `{"farm_id":"farm-1","timestamp":"1713430800"}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			source := newMemorySource()
			router, _ := newReadingsRouter(t, source)
			rec := serve(router, httptest.NewRequest(http.MethodPost, "/api/farm", strings.NewReader(tc.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d", rec.Code)
			}
			if n := len(source.readings["farm-1"]); n != 5 {
				t.Errorf("farm-1 has %d readings", n)
			}
		})
	}
}

func TestReadingsIngestReadOnly(t *testing.T) {
	router, _ := newReadingsRouter(t, readOnlySource{inner: newMemorySource()})
	rec := serve(router, httptest.NewRequest(http.MethodPost, "/api/farm", strings.NewReader(`{"farm_id":"farm-1","temperature":20}`)))
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d", rec.Code)
	}
}
