// Package admin provides HTTP handlers for runtime logging administration:
// levels, loggers, capture threshold, history and a live tail.
package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/markb/logwatch/internal/log"
	"github.com/markb/logwatch/internal/watcher"
)

// LoggerName is the logger admin handlers report on.
const LoggerName = "admin"

// ErrorResponse represents an error response from the API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// LevelsResponse is the body of GET /levels.
type LevelsResponse struct {
	Watcher string   `json:"watcher"`
	Levels  []string `json:"levels"`
}

// LoggersResponse is the body of GET /loggers.
type LoggersResponse struct {
	Watcher string               `json:"watcher"`
	Loggers []watcher.LoggerInfo `json:"loggers"`
}

// SetLevelRequest is the body of PUT /loggers/{name}. A null level turns
// the logger off.
type SetLevelRequest struct {
	Level *string `json:"level"`
}

// ThresholdBody is the request and response body of the threshold routes.
type ThresholdBody struct {
	Threshold string `json:"threshold"`
}

// HistoryResponse is the body of GET /history.
type HistoryResponse struct {
	History            []watcher.Document `json:"history"`
	Found              int                `json:"found"`
	PossiblyIncomplete bool               `json:"possibly_incomplete"`
	// Last is the time of the newest returned event in epoch milliseconds,
	// or the requested since when nothing matched.
	Last int64 `json:"last"`
	// Next is the since for the following poll. It is Last+1 when events
	// matched, so no event is returned twice.
	Next int64 `json:"next"`
}

// Handler handles logging admin API requests.
type Handler struct {
	watcher *watcher.Watcher
	logger  *slog.Logger
}

// NewHandler creates a new admin Handler.
func NewHandler(w *watcher.Watcher) *Handler {
	return &Handler{
		watcher: w,
		logger:  log.Named(LoggerName),
	}
}

// ListLevels handles GET /admin/v1/logging/levels.
func (h *Handler) ListLevels(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, LevelsResponse{
		Watcher: h.watcher.Name(),
		Levels:  h.watcher.AllLevels(),
	})
}

// ListLoggers handles GET /admin/v1/logging/loggers.
func (h *Handler) ListLoggers(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, LoggersResponse{
		Watcher: h.watcher.Name(),
		Loggers: h.watcher.AllLoggers(),
	})
}

// SetLoggerLevel handles PUT /admin/v1/logging/loggers/{name}.
// It returns the logger's entry after the change.
func (h *Handler) SetLoggerLevel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "Logger name is required")
		return
	}

	var req SetLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "Invalid request body")
		return
	}

	level := ""
	if req.Level != nil {
		level = *req.Level
	}
	switch level {
	case "", "unset", "null":
	default:
		if _, err := log.ParseLevel(level); err != nil {
			h.writeError(w, http.StatusBadRequest, "validation_failed",
				fmt.Sprintf("%s is not a valid log level, valid values are %v", level, h.watcher.AllLevels()))
			return
		}
	}

	if !h.watcher.Known(name) {
		h.writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("Logger %s not found", name))
		return
	}

	h.watcher.SetLogLevel(name, level)

	for _, info := range h.watcher.AllLoggers() {
		if info.Name == name {
			h.writeJSON(w, http.StatusOK, info)
			return
		}
	}
	h.writeJSON(w, http.StatusOK, watcher.LoggerInfo{Name: name})
}

// GetThreshold handles GET /admin/v1/logging/threshold.
func (h *Handler) GetThreshold(w http.ResponseWriter, r *http.Request) {
	threshold, err := h.watcher.Threshold()
	if err != nil {
		h.writeWatcherError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ThresholdBody{Threshold: threshold})
}

// SetThreshold handles PUT /admin/v1/logging/threshold.
func (h *Handler) SetThreshold(w http.ResponseWriter, r *http.Request) {
	var req ThresholdBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "Invalid request body")
		return
	}
	if req.Threshold == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "Threshold is required")
		return
	}

	if err := h.watcher.SetThreshold(req.Threshold); err != nil {
		h.writeWatcherError(w, err)
		return
	}
	h.GetThreshold(w, r)
}

// History handles GET /admin/v1/logging/history?since=<millis>.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	var since int64
	if s := r.URL.Query().Get("since"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "since must be epoch milliseconds")
			return
		}
		since = v
	}

	page, err := h.watcher.Page(since)
	if err != nil {
		h.writeWatcherError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, HistoryResponse{
		History:            page.Documents,
		Found:              len(page.Documents),
		PossiblyIncomplete: page.PossiblyIncomplete,
		Last:               page.Newest,
		Next:               page.Next,
	})
}

func (h *Handler) writeWatcherError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, log.ErrUnknownLevel):
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, watcher.ErrNotRegistered):
		h.writeError(w, http.StatusConflict, "not_registered", err.Error())
	default:
		h.logger.Error("admin: watcher call failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}
