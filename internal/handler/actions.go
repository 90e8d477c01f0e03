package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/auth"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/backend"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/render"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxFormBytes = 16 << 10

// Backend is the farm backend as used by the action endpoints
type Backend interface {
	SendContact(ctx context.Context, token string, form backend.ContactForm) (*backend.ContactResult, error)
	GenerateQR(ctx context.Context, token, deviceID string) (*backend.QRResult, error)
	MarkHarvested(ctx context.Context, token, farmID string) (*backend.HarvestResult, error)
}

// ActionsHandler forwards contact, QR and harvest actions to the backend
type ActionsHandler struct {
	backend Backend
	alerts  *render.AlertRenderer
	logger  *zap.Logger
}

// NewActionsHandler creates an actions handler
func NewActionsHandler(b Backend, alerts *render.AlertRenderer, logger *zap.Logger) *ActionsHandler {
	return &ActionsHandler{backend: b, alerts: alerts, logger: logger}
}

// RegisterRoutes registers the action routes
func (h *ActionsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/send-contact", h.SendContact).Methods(http.MethodPost)
	router.HandleFunc("/generate-qr/{deviceId}", h.GenerateQR).Methods(http.MethodGet)
	router.HandleFunc("/farm/harvest-ajax/{farmId}", h.MarkHarvested).Methods(http.MethodPost)
	router.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)

	h.logger.Info("Action routes registered")
}

// SendContact forwards a contact form message
func (h *ActionsHandler) SendContact(w http.ResponseWriter, r *http.Request) {
	var form backend.ContactForm
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes)).Decode(&form); err != nil {
		h.contactReply(w, r, http.StatusBadRequest, backend.ContactResult{Message: "Invalid request body"})
		return
	}
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	form.Message = strings.TrimSpace(form.Message)
	if err := form.Validate(); err != nil {
		h.contactReply(w, r, http.StatusBadRequest, backend.ContactResult{Message: "Please fill in every field with a valid email"})
		return
	}

	res, err := h.backend.SendContact(r.Context(), sessionToken(r), form)
	if err != nil {
		status, msg := h.backendFailure(err, "send_contact")
		h.contactReply(w, r, status, backend.ContactResult{Message: msg})
		return
	}
	h.contactReply(w, r, http.StatusOK, *res)
}

func (h *ActionsHandler) contactReply(w http.ResponseWriter, r *http.Request, status int, res backend.ContactResult) {
	if !wantsHTML(r) {
		writeJSON(w, status, res, h.logger)
		return
	}
	kind := render.AlertSuccess
	if !res.Success {
		kind = render.AlertDanger
	}
	writeAlert(w, status, h.alerts, render.Alert{Kind: kind, Message: res.Message}, h.logger)
}

// GenerateQR asks the backend for a QR code of a device's farm page
func (h *ActionsHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	deviceID := strings.TrimSpace(mux.Vars(r)["deviceId"])
	if deviceID == "" {
		h.qrReply(w, r, http.StatusBadRequest, deviceID, backend.QRResult{Error: "Please enter a product id"})
		return
	}

	res, err := h.backend.GenerateQR(r.Context(), sessionToken(r), deviceID)
	if err != nil {
		status, msg := h.backendFailure(err, "generate_qr")
		h.qrReply(w, r, status, deviceID, backend.QRResult{Error: msg})
		return
	}
	h.qrReply(w, r, http.StatusOK, deviceID, *res)
}

func (h *ActionsHandler) qrReply(w http.ResponseWriter, r *http.Request, status int, deviceID string, res backend.QRResult) {
	if !wantsHTML(r) {
		writeJSON(w, status, res, h.logger)
		return
	}
	if res.Error != "" {
		kind := render.AlertDanger
		if status == http.StatusBadRequest {
			kind = render.AlertWarning
		}
		writeAlert(w, status, h.alerts, render.Alert{Kind: kind, Message: "Error: " + res.Error}, h.logger)
		return
	}
	alert := render.Alert{
		Kind:      render.AlertSuccess,
		Message:   "QR code generated",
		ImageAlt:  "QR code",
		LinkHref:  "/farm/" + deviceID,
		LinkLabel: "Open farm page",
	}
	if src, err := render.ImageURL(res.QRURL); err == nil {
		alert.ImageSrc = src
	} else {
		h.logger.Warn("Backend returned an unusable QR URL", zap.String("qr_url", res.QRURL), zap.Error(err))
	}
	writeAlert(w, status, h.alerts, alert, h.logger)
}

// MarkHarvested marks a farm harvested
func (h *ActionsHandler) MarkHarvested(w http.ResponseWriter, r *http.Request) {
	farmID := mux.Vars(r)["farmId"]
	res, err := h.backend.MarkHarvested(r.Context(), sessionToken(r), farmID)
	if err != nil {
		status, msg := h.backendFailure(err, "mark_harvested")
		h.harvestReply(w, r, status, backend.HarvestResult{Message: msg})
		return
	}
	h.harvestReply(w, r, http.StatusOK, *res)
}

func (h *ActionsHandler) harvestReply(w http.ResponseWriter, r *http.Request, status int, res backend.HarvestResult) {
	if !wantsHTML(r) {
		writeJSON(w, status, res, h.logger)
		return
	}
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = "Could not mark the farm as harvested"
		}
		writeAlert(w, status, h.alerts, render.Alert{Kind: render.AlertDanger, Message: msg}, h.logger)
		return
	}
	alert := render.Alert{Kind: render.AlertSuccess, Message: res.Message, ImageAlt: "Traceability QR code"}
	if alert.Message == "" {
		alert.Message = "Farm marked as harvested"
	}
	if res.QRCode != "" {
		if src, err := render.PNGDataURL(res.QRCode); err == nil {
			alert.ImageSrc = src
		} else {
			h.logger.Warn("Backend returned an invalid QR code", zap.Error(err))
		}
	}
	if res.FarmURL != "" {
		alert.LinkHref, alert.LinkLabel = res.FarmURL, "Open farm page"
	}
	writeAlert(w, status, h.alerts, alert, h.logger)
}

// Logout clears the session cookies
func (h *ActionsHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	if wantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, backend.ContactResult{Success: true, Message: "Logged out"}, h.logger)
}

func (h *ActionsHandler) backendFailure(err error, op string) (int, string) {
	if errors.Is(err, backend.ErrBreakerOpen) {
		h.logger.Warn("Backend unavailable", zap.String("operation", op))
		return http.StatusServiceUnavailable, "Service temporarily unavailable, please try again later"
	}
	h.logger.Error("Backend call failed", zap.String("operation", op), zap.Error(err))
	return http.StatusBadGateway, "Something went wrong, please try again later"
}

// sessionToken is forwarded to the backend as presented; the backend owns
// its validation
func sessionToken(r *http.Request) string {
	if user := auth.GetUserFromContext(r.Context()); user != nil {
		return user.Token
	}
	token, _ := auth.TokenFromRequest(r)
	return token
}
