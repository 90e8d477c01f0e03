package handler

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/auth"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/dashboard"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/middleware"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/render"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/repository"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// FarmOptions configures dashboard pages and chart images
type FarmOptions struct {
	Dashboard   dashboard.Options
	ChartWidth  int
	ChartHeight int
}

// FarmHandler serves the dashboard page and chart of a farm
type FarmHandler struct {
	source  repository.Source
	charts  dashboard.ChartFactory
	pages   *render.PageRenderer
	opts    FarmOptions
	renders *prometheus.CounterVec
	logger  *zap.Logger
}

// NewFarmHandler creates a farm handler. reg may be nil.
func NewFarmHandler(source repository.Source, opts FarmOptions, reg prometheus.Registerer, logger *zap.Logger) *FarmHandler {
	if opts.ChartWidth <= 0 {
		opts.ChartWidth = 960
	}
	if opts.ChartHeight <= 0 {
		opts.ChartHeight = 420
	}
	h := &FarmHandler{
		source: source,
		charts: render.NewGoChartFactory(logger),
		pages:  render.NewPageRenderer(opts.ChartWidth, opts.ChartHeight),
		opts:   opts,
		logger: logger,
	}
	if reg != nil {
		h.renders = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: middleware.Namespace,
			Name:      "chart_renders_total",
			Help:      "Chart renders by outcome",
		}, []string{"outcome"})
	}
	return h
}

// RegisterRoutes registers the dashboard routes
func (h *FarmHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/farm/{farmId}", h.Page).Methods(http.MethodGet)
	router.HandleFunc("/farm/{farmId}/chart.png", h.ChartImage).Methods(http.MethodGet)
	router.HandleFunc("/farm/{farmId}/chart.json", h.ChartConfig).Methods(http.MethodGet)

	h.logger.Info("Dashboard routes registered")
}

// session is one request's dashboard, restored from the query string
type session struct {
	state  render.State
	dash   *dashboard.Dashboard
	table  *render.HTMLTable
	canvas *render.ImageCanvas
	start  *dashboard.DateInput
	end    *dashboard.DateInput
}

func (h *FarmHandler) open(r *http.Request) (*session, error) {
	farmID := mux.Vars(r)["farmId"]
	snap, err := h.source.Load(r.Context(), farmID)
	if err != nil {
		return nil, err
	}

	s := &session{
		state:  render.ParseState(farmID, r.URL.Query()),
		canvas: render.NewImageCanvas(h.opts.ChartWidth, h.opts.ChartHeight),
		start:  &dashboard.DateInput{},
		end:    &dashboard.DateInput{},
	}
	s.table = render.NewHTMLTable(func(page int) string {
		return s.state.WithPage(page).PageHref()
	})

	logger := h.logger.With(
		zap.String("farm_id", farmID),
		zap.String("request_id", middleware.RequestID(r.Context())))
	d, err := dashboard.New(snap, dashboard.Targets{
		Table:     s.table,
		Canvas:    s.canvas,
		Charts:    h.charts,
		StartDate: s.start,
		EndDate:   s.end,
	}, h.opts.Dashboard, logger)
	if err != nil {
		return nil, err
	}
	d.Init()
	if s.state.Sort.Field != "" {
		d.ApplySort(s.state.Sort)
	}
	if s.state.HasRange {
		d.ApplyFilter(s.state.Start, s.state.End)
	}
	d.GoToPage(s.state.Page)
	s.dash = d
	return s, nil
}

// renderChart draws the chart for the session's chart type
func (h *FarmHandler) renderChart(s *session) dashboard.RenderOutcome {
	s.dash.ShowChart()
	if s.state.Chart != models.MetricAll {
		s.dash.SetChartType(s.state.Chart)
	}
	outcome := s.dash.LastChartOutcome()
	if h.renders != nil {
		h.renders.WithLabelValues(string(outcome)).Inc()
	}
	return outcome
}

// Page renders the dashboard page
func (h *FarmHandler) Page(w http.ResponseWriter, r *http.Request) {
	s, err := h.open(r)
	if err != nil {
		h.loadFailed(w, r, err)
		return
	}
	if s.state.View == models.ViewChart {
		s.dash.View().ShowChartView()
	}

	page := render.Page{
		State:     s.state,
		Dashboard: s.dash,
		Table:     s.table,
		StartDate: s.start,
		EndDate:   s.end,
	}
	if user := auth.GetUserFromContext(r.Context()); user != nil {
		page.User = user.ID
	}

	var buf bytes.Buffer
	if err := h.pages.Render(&buf, page); err != nil {
		h.logger.Error("Failed to render dashboard page",
			zap.String("farm_id", s.state.FarmID),
			zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// ChartImage renders the chart as PNG
func (h *FarmHandler) ChartImage(w http.ResponseWriter, r *http.Request) {
	s, err := h.open(r)
	if err != nil {
		status, msg := loadErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to load readings", zap.Error(err))
		}
		http.Error(w, msg, status)
		return
	}
	outcome := h.renderChart(s)

	data, err := s.canvas.PNG()
	if err != nil {
		h.logger.Error("Failed to encode chart", zap.Error(err))
		http.Error(w, "Failed to encode chart", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Chart-Outcome", string(outcome))
	_, _ = w.Write(data)
}

type chartResponse struct {
	FarmID  string                  `json:"farmId"`
	Outcome dashboard.RenderOutcome `json:"outcome"`
	Config  *dashboard.ChartConfig  `json:"config,omitempty"`
}

// ChartConfig returns the chart description as JSON
func (h *FarmHandler) ChartConfig(w http.ResponseWriter, r *http.Request) {
	s, err := h.open(r)
	if err != nil {
		status, msg := loadErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to load readings", zap.Error(err))
		}
		writeError(w, status, msg, h.logger)
		return
	}
	resp := chartResponse{FarmID: s.state.FarmID, Outcome: h.renderChart(s)}
	if cfg, ok := s.dash.Chart().Config(); ok {
		resp.Config = &cfg
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}

func (h *FarmHandler) loadFailed(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := loadErrorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Failed to load readings",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}

	var buf bytes.Buffer
	if rerr := h.pages.RenderError(&buf, render.ErrorPage{Title: http.StatusText(status), Message: msg}); rerr != nil {
		h.logger.Error("Failed to render error page", zap.Error(rerr))
		http.Error(w, msg, status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func loadErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "No data found for this farm"
	case errors.Is(err, repository.ErrInvalidFarmID):
		return http.StatusBadRequest, "Invalid farm id"
	default:
		return http.StatusInternalServerError, "Could not load farm data"
	}
}
