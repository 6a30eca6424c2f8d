package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/swingdesk/swingrun/internal/backtest"
	"github.com/swingdesk/swingrun/internal/pipeline"
	"github.com/swingdesk/swingrun/internal/universe"
)

// Handlers serves the read-only API over run artifacts.
type Handlers struct {
	store   *Store
	version string
	started time.Time
}

// NewHandlers creates the handler set. version appears in /health.
func NewHandlers(store *Store, version string) *Handlers {
	return &Handlers{
		store:   store,
		version: version,
		started: time.Now(),
	}
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	screen, backtestRun := h.store.LatestRuns()
	h.writeJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		Version:        h.version,
		UptimeSeconds:  time.Since(h.started).Seconds(),
		LatestScreen:   screen,
		LatestBacktest: backtestRun,
		Timestamp:      time.Now().UTC(),
	})
}

// Signals handles GET /signals with optional grade and limit filters.
func (h *Handlers) Signals(w http.ResponseWriter, r *http.Request) {
	signals, run, err := h.store.LatestSignals()
	if err != nil {
		h.artifactError(w, r, err, "No screening run artifacts found")
		return
	}

	if grade := strings.ToUpper(r.URL.Query().Get("grade")); grade != "" {
		filtered := signals[:0]
		for _, sig := range signals {
			if string(sig.Grade) == grade {
				filtered = append(filtered, sig)
			}
		}
		signals = filtered
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit >= 0 && limit < len(signals) {
			signals = signals[:limit]
		}
	}

	h.writeJSON(w, http.StatusOK, signalsResponse{
		Run:       run,
		Count:     len(signals),
		Signals:   signals,
		Generated: time.Now().UTC(),
	})
}

// SignalBySymbol handles GET /signals/{symbol}. Bare symbols get the same
// suffix normalization the screener applies, so /signals/reliance finds
// RELIANCE.NS.
func (h *Handlers) SignalBySymbol(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["symbol"]
	normalized := universe.Normalize([]string{raw})
	if len(normalized) == 0 {
		h.writeError(w, r, http.StatusBadRequest, "invalid_symbol", "Symbol is empty")
		return
	}
	symbol := normalized[0]

	signals, run, err := h.store.LatestSignals()
	if err != nil {
		h.artifactError(w, r, err, "No screening run artifacts found")
		return
	}

	for _, sig := range signals {
		if sig.Symbol == symbol {
			h.writeJSON(w, http.StatusOK, signalResponse{
				Run:       run,
				Signal:    sig,
				Generated: time.Now().UTC(),
			})
			return
		}
	}
	h.writeError(w, r, http.StatusNotFound, "symbol_not_found",
		symbol+" has no signal in the latest run")
}

// Outcomes handles GET /outcomes with an optional reason filter.
func (h *Handlers) Outcomes(w http.ResponseWriter, r *http.Request) {
	trades, run, err := h.store.LatestOutcomes()
	if err != nil {
		h.artifactError(w, r, err, "No backtest run artifacts found")
		return
	}

	if reason := r.URL.Query().Get("reason"); reason != "" {
		filtered := trades[:0]
		for _, tr := range trades {
			if strings.EqualFold(tr.Outcome.Reason, reason) {
				filtered = append(filtered, tr)
			}
		}
		trades = filtered
	}

	h.writeJSON(w, http.StatusOK, outcomesResponse{
		Run:       run,
		Count:     len(trades),
		Outcomes:  trades,
		Generated: time.Now().UTC(),
	})
}

// NotFound handles unknown routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist")
}

func (h *Handlers) artifactError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if errors.Is(err, ErrNoArtifacts) {
		h.writeError(w, r, http.StatusNotFound, "no_artifacts", message)
		return
	}
	h.writeError(w, r, http.StatusInternalServerError, "artifact_read_failed", err.Error())
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	// Handlers that run outside the api subrouter, the 404 handler in
	// particular, skip its middleware, so the header is set here too.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, status, errorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestIDFrom(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

type healthResponse struct {
	Status         string    `json:"status"`
	Version        string    `json:"version"`
	UptimeSeconds  float64   `json:"uptime_seconds"`
	LatestScreen   string    `json:"latest_screen,omitempty"`
	LatestBacktest string    `json:"latest_backtest,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type signalsResponse struct {
	Run       string             `json:"run"`
	Count     int                `json:"count"`
	Signals   []*pipeline.Signal `json:"signals"`
	Generated time.Time          `json:"generated"`
}

type signalResponse struct {
	Run       string           `json:"run"`
	Signal    *pipeline.Signal `json:"signal"`
	Generated time.Time        `json:"generated"`
}

type outcomesResponse struct {
	Run       string           `json:"run"`
	Count     int              `json:"count"`
	Outcomes  []backtest.Trade `json:"outcomes"`
	Generated time.Time        `json:"generated"`
}

type errorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}
