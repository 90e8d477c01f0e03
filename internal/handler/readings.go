package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/auth"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/repository"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxIngestBytes = 64 << 10

// ingestRequest is one sensor sample posted by a farm device
type ingestRequest struct {
	FarmID      string           `json:"farm_id"`
	ProductID   string           `json:"product_id"`
	Timestamp   models.Timestamp `json:"timestamp"`
	Temperature models.Number    `json:"temperature"`
	Humidity    models.Number    `json:"humidity"`
	WaterLevel  models.Number    `json:"water_level"`
	LightLevel  models.Number    `json:"light_level"`
}

type ingestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	FarmID  string `json:"farm_id"`
}

// ReadingsHandler serves readings as JSON and stores new ones
type ReadingsHandler struct {
	source repository.Source
	now    func() time.Time
	logger *zap.Logger
}

// NewReadingsHandler creates a readings handler
func NewReadingsHandler(source repository.Source, logger *zap.Logger) *ReadingsHandler {
	return &ReadingsHandler{source: source, now: time.Now, logger: logger}
}

// RegisterRoutes registers the readings API; router is expected to require
// authentication
func (h *ReadingsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/farm", h.Ingest).Methods(http.MethodPost)
	router.HandleFunc("/api/farm/{farmId}", h.List).Methods(http.MethodGet)
	router.HandleFunc("/api/farm/{farmId}/readings", h.List).Methods(http.MethodGet)

	h.logger.Info("Readings API routes registered")
}

// List returns every reading of a farm
func (h *ReadingsHandler) List(w http.ResponseWriter, r *http.Request) {
	farmID := mux.Vars(r)["farmId"]
	snap, err := h.source.Load(r.Context(), farmID)
	if err != nil {
		status, msg := loadErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to load readings",
				zap.String("farm_id", farmID),
				zap.Error(err))
		}
		writeError(w, status, msg, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, snap.Readings(), h.logger)
}

// Ingest stores one reading. A missing or invalid timestamp is replaced by
// the time of receipt.
func (h *ReadingsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	writer, ok := h.source.(repository.Writer)
	if !ok {
		writeError(w, http.StatusNotImplemented, "This data source is read-only", h.logger)
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", h.logger)
		return
	}
	reading, err := h.toReading(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), h.logger)
		return
	}

	if err := writer.Insert(r.Context(), []models.Reading{reading}); err != nil {
		h.logger.Error("Failed to store reading",
			zap.String("farm_id", reading.FarmID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Could not store data, please try again", h.logger)
		return
	}

	fields := []zap.Field{zap.String("farm_id", reading.FarmID)}
	if user := auth.GetUserFromContext(r.Context()); user != nil {
		fields = append(fields, zap.String("user_id", user.ID))
	}
	h.logger.Info("Reading stored", fields...)

	writeJSON(w, http.StatusCreated, ingestResponse{
		Success: true,
		Message: "Data stored successfully",
		FarmID:  reading.FarmID,
	}, h.logger)
}

func (h *ReadingsHandler) toReading(req ingestRequest) (models.Reading, error) {
	if !repository.ValidFarmID(req.FarmID) {
		return models.Reading{}, repository.ErrInvalidFarmID
	}
	r := models.Reading{
		Timestamp:   req.Timestamp,
		FarmID:      req.FarmID,
		Temperature: req.Temperature,
		Humidity:    req.Humidity,
		WaterLevel:  req.WaterLevel,
		LightLevel:  req.LightLevel,
		ProductID:   req.ProductID,
	}
	if _, ok := r.Timestamp.Seconds(); !ok {
		r.Timestamp = models.NewTimestamp(h.now().Unix())
	}
	for _, m := range models.SeriesMetrics {
		if r.Value(m).Valid {
			return r, nil
		}
	}
	return models.Reading{}, errors.New("reading has no sensor values")
}
