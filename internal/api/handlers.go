package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/mohamedkhairy/trade-breakout/internal/chart"
	"github.com/mohamedkhairy/trade-breakout/internal/models"
	"github.com/mohamedkhairy/trade-breakout/internal/signal"
)

const (
	defaultLimit = 100
	maxLimit     = 5000
)

// Source is the signal state served by the API
type Source interface {
	Oscillator(limit int) []signal.OscillatorPoint
	Alerts(limit int) []models.BreakoutAlert
	Status() signal.Status
}

// ArrowSource lists the arrows currently drawn
type ArrowSource interface {
	Arrows() []chart.Arrow
}

// Handler serves the read-only breakout endpoints
type Handler struct {
	source  Source
	arrows  ArrowSource
	started time.Time
}

// NewHandler creates a new handler
func NewHandler(source Source, arrows ArrowSource) *Handler {
	return &Handler{source: source, arrows: arrows, started: time.Now()}
}

// RegisterRoutes mounts the handler on r
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/ready", h.Ready).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/oscillator", h.Oscillator).Methods(http.MethodGet)
	v1.HandleFunc("/state", h.State).Methods(http.MethodGet)
	v1.HandleFunc("/arrows", h.Arrows).Methods(http.MethodGet)
	v1.HandleFunc("/alerts", h.Alerts).Methods(http.MethodGet)
}

// Oscillator handles GET /api/v1/oscillator?limit=N
func (h *Handler) Oscillator(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	points := h.source.Oscillator(limit)
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"points": points,
		"count":  len(points),
	})
}

// State handles GET /api/v1/state
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.source.Status())
}

// Arrows handles GET /api/v1/arrows
func (h *Handler) Arrows(w http.ResponseWriter, r *http.Request) {
	var arrows []chart.Arrow
	if h.arrows != nil {
		arrows = h.arrows.Arrows()
	}
	if arrows == nil {
		arrows = []chart.Arrow{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"arrows": arrows,
		"count":  len(arrows),
	})
}

// Alerts handles GET /api/v1/alerts?limit=N
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	alerts := h.source.Alerts(limit)
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.source.Status()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"symbol": st.Symbol,
		"ready":  st.Ready,
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// Ready handles GET /ready. It reports 503 until enough coarse bars exist
// to evaluate the oscillator.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.source.Status().Ready {
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultLimit, true
	}
	limit, err := strconv.Atoi(s)
	if err != nil || limit < 1 || limit > maxLimit {
		respondWithError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxLimit))
		return 0, false
	}
	return limit, true
}
