// Package handler serves the farm dashboard: pages and chart images built
// from the dashboard pipeline, the readings API and backend actions.
package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/render"
	"go.uber.org/zap"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *zap.Logger) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string, logger *zap.Logger) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg}, logger)
}

// wantsHTML reports whether the caller asked for an HTML fragment
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeAlert(w http.ResponseWriter, status int, alerts *render.AlertRenderer, alert render.Alert, logger *zap.Logger) {
	var buf bytes.Buffer
	if err := alerts.Render(&buf, alert); err != nil {
		logger.Error("Failed to render alert", zap.Error(err))
		http.Error(w, "Failed to render alert", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
