package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guilherme-santos/calsync/calendar"
	"github.com/guilherme-santos/calsync/internal"
	"github.com/guilherme-santos/calsync/internal/syncer"
)

type fakeRunner struct {
	accountID int64
	min, max  time.Time
	res       *syncer.Result
	err       error
}

func (f *fakeRunner) Sync(_ context.Context, accountID int64, min, max time.Time) (*syncer.Result, error) {
	f.accountID, f.min, f.max = accountID, min, max
	return f.res, f.err
}

func (f *fakeRunner) Reprocess(_ context.Context, accountID int64) (*syncer.Result, error) {
	f.accountID = accountID
	return f.res, f.err
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestSync(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	runner := &fakeRunner{res: &syncer.Result{
		RunID:     uuid.New(),
		AccountID: 7,
		Provider:  internal.PlatformGoogle,
		Processed: 3,
		Events:    4,
	}}
	h := NewRouter(Deps{Runner: runner, Location: berlin})

	rec, body := do(t, h, http.MethodPost, "/accounts/7/sync?from=2023-06-01&to=2023-06-30")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), runner.accountID)
	assert.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, berlin), runner.min)
	assert.Equal(t, time.Date(2023, 7, 1, 0, 0, 0, 0, berlin), runner.max)
	assert.Equal(t, 3.0, body["processed"])
	assert.Equal(t, 4.0, body["events"])
	assert.Equal(t, "google", body["provider"])
	assert.NotContains(t, body, "error")

	rec, _ = do(t, h, http.MethodPost, "/accounts/7/sync")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, runner.min.IsZero())
	assert.True(t, runner.max.IsZero())
}

func TestSync_BadRequest(t *testing.T) {
	h := NewRouter(Deps{Runner: &fakeRunner{}})

	for _, target := range []string{
		"/accounts/abc/sync",
		"/accounts/0/sync",
		"/accounts/7/sync?from=2023-06-01",
		"/accounts/7/sync?from=2023-06-30&to=2023-06-01",
		"/accounts/7/sync?from=yesterday&to=today",
	} {
		rec, body := do(t, h, http.MethodPost, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.NotEmpty(t, body["error"], target)
	}

	rec, _ := do(t, h, http.MethodGet, "/accounts/7/sync")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSync_Errors(t *testing.T) {
	tests := map[string]struct {
		res  *syncer.Result
		err  error
		want int
	}{
		"not found":        {err: fmt.Errorf("%w: 7", syncer.ErrAccountNotFound), want: http.StatusNotFound},
		"no refresh token": {err: syncer.ErrMissingRefreshToken, want: http.StatusConflict},
		"unknown provider": {err: fmt.Errorf("account 7: %w", calendar.ErrUnknownProvider), want: http.StatusConflict},
		"storage":          {err: errors.New("connection refused"), want: http.StatusInternalServerError},
		"fetch stopped":    {res: &syncer.Result{AccountID: 7, Processed: 2}, err: calendar.ErrUnauthorized, want: http.StatusBadGateway},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := NewRouter(Deps{Runner: &fakeRunner{res: tt.res, err: tt.err}})

			rec, body := do(t, h, http.MethodPost, "/accounts/7/sync")
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestReprocess(t *testing.T) {
	runner := &fakeRunner{res: &syncer.Result{AccountID: 9, Processed: 1}}
	h := NewRouter(Deps{Runner: runner})

	rec, body := do(t, h, http.MethodPost, "/accounts/9/reprocess")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(9), runner.accountID)
	assert.Equal(t, 1.0, body["processed"])
}

func TestHealth(t *testing.T) {
	rec, body := do(t, NewRouter(Deps{DB: pinger{}}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, _ = do(t, NewRouter(Deps{DB: pinger{err: errors.New("down")}}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "calsync_runs_total 1")
	})
	h := NewRouter(Deps{Metrics: metrics})

	rec, _ := do(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "calsync_runs_total 1", rec.Body.String())

	rec, _ = do(t, NewRouter(Deps{}), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
