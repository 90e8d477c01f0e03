package render

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"
	"time"
)

// AlertKind is the Bootstrap contextual class of an alert
type AlertKind string

const (
	AlertSuccess AlertKind = "success"
	AlertDanger  AlertKind = "danger"
	AlertWarning AlertKind = "warning"
)

// DefaultDismissAfter is how long an alert stays before auto dismissal
const DefaultDismissAfter = 5 * time.Second

// Alert is an inline alert fragment
type Alert struct {
	Kind      AlertKind
	Message   string
	ImageSrc  template.URL
	ImageAlt  string
	LinkHref  string
	LinkLabel string
}

type alertData struct {
	Alert
	DismissAfter int64
}

// AlertRenderer draws alert fragments
type AlertRenderer struct {
	dismissAfter time.Duration
}

// NewAlertRenderer creates an alert renderer; zero uses DefaultDismissAfter
func NewAlertRenderer(dismissAfter time.Duration) *AlertRenderer {
	if dismissAfter <= 0 {
		dismissAfter = DefaultDismissAfter
	}
	return &AlertRenderer{dismissAfter: dismissAfter}
}

// Render writes the alert fragment
func (a *AlertRenderer) Render(w io.Writer, alert Alert) error {
	if alert.Kind == "" {
		alert.Kind = AlertDanger
	}
	data := alertData{Alert: alert, DismissAfter: a.dismissAfter.Milliseconds()}
	if err := templates.ExecuteTemplate(w, "alert", data); err != nil {
		return fmt.Errorf("failed to render alert: %w", err)
	}
	return nil
}

// PNGDataURL turns a base64 PNG into an image source. Payloads that do not
// decode are rejected.
func PNGDataURL(b64 string) (template.URL, error) {
	b64 = strings.TrimSpace(b64)
	if _, err := base64.StdEncoding.DecodeString(b64); err != nil {
		return "", fmt.Errorf("invalid image payload: %w", err)
	}
	return template.URL("data:image/png;base64," + b64), nil
}

// ImageURL accepts site-relative and http(s) image links only
func ImageURL(raw string) (template.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid image URL: %w", err)
	}
	switch {
	case u.Scheme == "" && u.Host == "" && strings.HasPrefix(u.Path, "/"):
	case u.Scheme == "http" || u.Scheme == "https":
	default:
		return "", fmt.Errorf("unsupported image URL %q", raw)
	}
	return template.URL(u.String()), nil
}
