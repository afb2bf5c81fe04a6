package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/guilherme-santos/calsync/internal"
)

// Runner builds a Syncer per call. It is what the scheduler, the HTTP
// trigger and the command line share.
type Runner struct {
	Storage    Storage
	Mux        internal.Mux
	Config     Config
	CalendarID string
	PastDays   int
	FutureDays int
}

// Window returns the range synced when none is given, from PastDays before
// today until the end of the FutureDays-th day after it.
func (r *Runner) Window(now time.Time) (min, max time.Time) {
	loc := r.Config.Location
	if loc == nil {
		loc = time.UTC
	}
	today := internal.NewDateFromTime(now.In(loc))
	return today.AddDate(0, 0, -r.PastDays).Time, today.AddDate(0, 0, r.FutureDays+1).Time
}

func (r *Runner) Sync(ctx context.Context, accountID int64, min, max time.Time) (*Result, error) {
	s, err := New(ctx, r.Storage, r.Mux, accountID, r.Config)
	if err != nil {
		return nil, err
	}
	if min.IsZero() || max.IsZero() {
		min, max = r.Window(s.cfg.Now())
	}
	return s.SyncEvents(ctx, min, max, r.CalendarID, s.logEventError)
}

func (r *Runner) Reprocess(ctx context.Context, accountID int64) (*Result, error) {
	s, err := New(ctx, r.Storage, r.Mux, accountID, r.Config)
	if err != nil {
		return nil, err
	}
	return s.ReprocessEvents(ctx, s.logEventError)
}

func (s *Syncer) logEventError(err *internal.EventError) {
	s.logger.Debug("Event skipped", slog.String("event_id", err.Raw.ID()), slog.String("error", err.Error()))
}
