package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/auth"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/backend"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/repository"
	"github.com/gorilla/mux"
)

var day1 = time.Date(2025, time.April, 18, 0, 0, 0, 0, time.UTC)

func reading(at time.Time, temp float64) models.Reading {
	return models.Reading{
		Timestamp:   models.NewTimestamp(at.Unix()),
		FarmID:      "farm-1",
		Temperature: models.NewNumber(temp),
		Humidity:    models.NewNumber(temp * 2),
		WaterLevel:  models.NewNumber(temp * 3),
		LightLevel:  models.NewNumber(temp * 4),
		ProductID:   "p-1",
	}
}

func twoDayReadings() []models.Reading {
	return []models.Reading{
		reading(day1.Add(8*time.Hour), 20),
		reading(day1.Add(24*time.Hour+9*time.Hour), 24),
		reading(day1.Add(12*time.Hour), 21),
		reading(day1.Add(20*time.Hour), 22),
		reading(day1.Add(24*time.Hour+15*time.Hour), 25),
	}
}

// memorySource is a readings store kept in memory
type memorySource struct {
	mu       sync.Mutex
	readings map[string][]models.Reading
	loadErr  error
}

func newMemorySource() *memorySource {
	return &memorySource{readings: map[string][]models.Reading{"farm-1": twoDayReadings()}}
}

func (s *memorySource) Load(_ context.Context, farmID string) (models.Snapshot, error) {
	if s.loadErr != nil {
		return models.Snapshot{}, s.loadErr
	}
	if !repository.ValidFarmID(farmID) {
		return models.Snapshot{}, fmt.Errorf("%w: %q", repository.ErrInvalidFarmID, farmID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.readings[farmID]
	if len(rows) == 0 {
		return models.Snapshot{}, fmt.Errorf("farm %s: %w", farmID, repository.ErrNotFound)
	}
	return models.NewSnapshot(farmID, rows), nil
}

func (s *memorySource) Insert(_ context.Context, readings []models.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range readings {
		s.readings[r.FarmID] = append(s.readings[r.FarmID], r)
	}
	return nil
}

func (s *memorySource) Close() error { return nil }

// readOnlySource hides Insert
type readOnlySource struct{ inner *memorySource }

func (s readOnlySource) Load(ctx context.Context, farmID string) (models.Snapshot, error) {
	return s.inner.Load(ctx, farmID)
}

func (s readOnlySource) Close() error { return nil }

type fakeBackend struct {
	contact *backend.ContactResult
	qr      *backend.QRResult
	harvest *backend.HarvestResult
	err     error

	tokens []string
	forms  []backend.ContactForm
	ids    []string
}

func (b *fakeBackend) SendContact(_ context.Context, token string, form backend.ContactForm) (*backend.ContactResult, error) {
	b.tokens = append(b.tokens, token)
	b.forms = append(b.forms, form)
	return b.contact, b.err
}

func (b *fakeBackend) GenerateQR(_ context.Context, token, deviceID string) (*backend.QRResult, error) {
	b.tokens = append(b.tokens, token)
	b.ids = append(b.ids, deviceID)
	return b.qr, b.err
}

func (b *fakeBackend) MarkHarvested(_ context.Context, token, farmID string) (*backend.HarvestResult, error) {
	b.tokens = append(b.tokens, token)
	b.ids = append(b.ids, farmID)
	return b.harvest, b.err
}

var errBackendDown = errors.New("connection refused")

// withUser attaches a fixed user the way the auth middleware would
func withUser(user *auth.User) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
		})
	}
}

func serve(router *mux.Router, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func parseHTML(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}
