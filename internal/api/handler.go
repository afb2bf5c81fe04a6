package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/guilherme-santos/calsync/calendar"
	"github.com/guilherme-santos/calsync/internal"
	"github.com/guilherme-santos/calsync/internal/syncer"
)

type Runner interface {
	Sync(_ context.Context, accountID int64, min, max time.Time) (*syncer.Result, error)
	Reprocess(_ context.Context, accountID int64) (*syncer.Result, error)
}

type Pinger interface {
	Ping(context.Context) error
}

type Deps struct {
	Runner Runner
	DB     Pinger
	// Metrics is served on /metrics when set.
	Metrics  http.Handler
	Location *time.Location
	Logger   *slog.Logger
}

type Handler struct {
	runner Runner
	db     Pinger
	loc    *time.Location
	logger *slog.Logger
}

// NewRouter returns the trigger endpoints:
//
//	POST /accounts/{id}/sync?from=2023-06-01&to=2023-06-30
//	POST /accounts/{id}/reprocess
//	GET  /healthz
//	GET  /metrics
func NewRouter(deps Deps) http.Handler {
	h := &Handler{
		runner: deps.Runner,
		db:     deps.DB,
		loc:    deps.Location,
		logger: deps.Logger,
	}
	if h.loc == nil {
		h.loc = time.UTC
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	r.Route("/accounts/{id}", func(r chi.Router) {
		r.Post("/sync", h.Sync)
		r.Post("/reprocess", h.Reprocess)
	})
	return r
}

type resultResponse struct {
	RunID      string    `json:"run_id"`
	AccountID  int64     `json:"account_id"`
	Provider   string    `json:"provider"`
	Processed  int       `json:"processed"`
	Events     int       `json:"events"`
	Cancelled  int       `json:"cancelled"`
	Errors     int       `json:"errors"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Error("Database unavailable", slog.Any("error", err))
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "database unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Sync runs a sync of the account and answers once it is finished. Without
// from and to the configured window is used; to is inclusive.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	min, max, err := h.window(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	res, err := h.runner.Sync(r.Context(), accountID, min, max)
	h.writeResult(w, res, err)
}

func (h *Handler) Reprocess(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	res, err := h.runner.Reprocess(r.Context(), accountID)
	h.writeResult(w, res, err)
}

func (h *Handler) accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid account id"})
		return 0, false
	}
	return id, true
}

var errWindow = errors.New("from and to must be given together as YYYY-MM-DD, from not after to")

func (h *Handler) window(r *http.Request) (min, max time.Time, err error) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" && to == "" {
		return time.Time{}, time.Time{}, nil
	}
	fromDate, err1 := time.ParseInLocation(internal.DateFormat, from, h.loc)
	toDate, err2 := time.ParseInLocation(internal.DateFormat, to, h.loc)
	if err1 != nil || err2 != nil || toDate.Before(fromDate) {
		return time.Time{}, time.Time{}, errWindow
	}
	return fromDate, toDate.AddDate(0, 0, 1), nil
}

func (h *Handler) writeResult(w http.ResponseWriter, res *syncer.Result, err error) {
	if res == nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, syncer.ErrAccountNotFound):
			status = http.StatusNotFound
		case errors.Is(err, syncer.ErrMissingProvider),
			errors.Is(err, syncer.ErrMissingCredentials),
			errors.Is(err, syncer.ErrMissingAccessToken),
			errors.Is(err, syncer.ErrMissingRefreshToken),
			errors.Is(err, calendar.ErrUnknownProvider):
			status = http.StatusConflict
		default:
			h.logger.Error("Unable to run sync", slog.Any("error", err))
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	resp := resultResponse{
		RunID:      res.RunID.String(),
		AccountID:  res.AccountID,
		Provider:   res.Provider.String(),
		Processed:  res.Processed,
		Events:     res.Events,
		Cancelled:  res.Cancelled,
		Errors:     res.Errors,
		From:       res.Min,
		To:         res.Max,
		DurationMS: res.Duration.Milliseconds(),
	}
	status := http.StatusOK
	if err != nil {
		// Stored events are kept, the provider stopped answering.
		status = http.StatusBadGateway
		resp.Error = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
