// Package backend calls the farm management backend that owns contact
// messages, QR generation and harvest state
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrBreakerOpen is returned while the backend circuit breaker is open
var ErrBreakerOpen = errors.New("backend unavailable")

// errServerReply marks a 5xx reply that still carried a result body
var errServerReply = errors.New("backend server error")

const maxResponseBytes = 1 << 20

// ContactForm is a message from the landing page contact form
type ContactForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Validate checks every field is filled in
func (f ContactForm) Validate() error {
	var missing []string
	if strings.TrimSpace(f.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(f.Email) == "" || !strings.Contains(f.Email, "@") {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(f.Message) == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid contact form: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ContactResult is the backend reply to a contact message
type ContactResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// QRResult is the backend reply to a QR request
type QRResult struct {
	QRURL string `json:"qr_url,omitempty"`
	Error string `json:"error,omitempty"`
}

// HarvestResult is the backend reply to marking a farm harvested. QRCode is
// a base64 encoded PNG.
type HarvestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	QRCode  string `json:"qr_code,omitempty"`
	FarmURL string `json:"farm_url,omitempty"`
}

// Client calls the backend through a circuit breaker
type Client struct {
	base    *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	calls   *prometheus.CounterVec
	logger  *zap.Logger
}

// NewClient creates a backend client. reg may be nil.
func NewClient(cfg config.BackendConfig, bcfg config.BreakerConfig, reg prometheus.Registerer, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse backend URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend URL %q must be absolute", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	threshold := bcfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "farm-backend",
		MaxRequests: bcfg.MaxRequests,
		Interval:    bcfg.Interval,
		Timeout:     bcfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	if reg != nil {
		c.calls = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "farm_dashboard",
			Name:      "backend_calls_total",
			Help:      "Calls to the farm backend by operation and result",
		}, []string{"operation", "result"})
	}
	return c, nil
}

// SendContact forwards a contact form message
func (c *Client) SendContact(ctx context.Context, token string, form ContactForm) (*ContactResult, error) {
	body, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("failed to encode contact form: %w", err)
	}
	var out ContactResult
	if err := c.do(ctx, "send_contact", http.MethodPost, "/api/send-contact", "", token, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateQR asks the backend for a QR code pointing at the device's farm page
func (c *Client) GenerateQR(ctx context.Context, token, deviceID string) (*QRResult, error) {
	var out QRResult
	if err := c.do(ctx, "generate_qr", http.MethodGet, "/generate-qr/", deviceID, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkHarvested marks a farm harvested and returns its traceability QR code
func (c *Client) MarkHarvested(ctx context.Context, token, farmID string) (*HarvestResult, error) {
	var out HarvestResult
	if err := c.do(ctx, "mark_harvested", http.MethodPost, "/farm/harvest-ajax/", farmID, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// State returns the breaker state
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// do runs one request through the breaker. Non-2xx replies whose body still
// decodes into out are returned without error since the backend reports
// failures in the body. 5xx replies still count against the breaker.
func (c *Client) do(ctx context.Context, op, method, prefix, id, token string, body []byte, out any) error {
	target := c.base.ResolveReference(&url.URL{
		Path:    prefix + id,
		RawPath: prefix + url.PathEscape(id),
	})

	_, err := c.breaker.Execute(func() (any, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		c.attachToken(req, token)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read backend response: %w", err)
		}
		if decodeErr := json.Unmarshal(data, out); decodeErr != nil {
			return nil, fmt.Errorf("backend returned %d: %w", resp.StatusCode, decodeErr)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %d", errServerReply, resp.StatusCode)
		}
		return nil, nil
	})

	switch {
	case errors.Is(err, errServerReply):
		c.observe(op, "server_error")
		c.logger.Warn("Backend reported a server error",
			zap.String("operation", op),
			zap.Error(err))
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.observe(op, "rejected")
		return fmt.Errorf("%s: %w", op, ErrBreakerOpen)
	case err != nil:
		c.observe(op, "error")
		c.logger.Error("Backend call failed",
			zap.String("operation", op),
			zap.String("url", target.String()),
			zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	c.observe(op, "ok")
	return nil
}

// attachToken adds the bearer token only for requests to the backend origin
func (c *Client) attachToken(req *http.Request, token string) {
	if token == "" || !sameOrigin(req.URL, c.base) {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

func (c *Client) observe(op, result string) {
	if c.calls != nil {
		c.calls.WithLabelValues(op, result).Inc()
	}
}
