package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/guilherme-santos/calsync/internal"
)

var ErrProviderMismatch = errors.New("raw event belongs to another provider")

// ReprocessEvents transforms again the payloads stored since the last sync
// started and rewrites their events. Days are recalculated over the span
// the events cover.
func (s *Syncer) ReprocessEvents(ctx context.Context, onError ErrorLogger) (*Result, error) {
	var since time.Time
	if s.account.SyncStartedAt != nil {
		since = *s.account.SyncStartedAt
	}

	r := s.newRun(s.cfg.Now(), false, onError)
	r.logger.Info("Reprocess started", slog.Time("since", since))

	raws, err := s.storage.RawEventsSince(ctx, s.account.ID, since)
	if err != nil {
		return nil, fmt.Errorf("loading raw events: %w", err)
	}

	for _, raw := range raws {
		raw = unwrapRawEvent(raw)
		if raw.Provider != s.account.Platform {
			r.fail(ctx, nil, &internal.EventError{Raw: raw, Cause: ErrProviderMismatch})
			continue
		}
		e, ok := r.process(ctx, raw)
		if !ok || e.Start.IsZero() {
			continue
		}
		if r.res.Min.IsZero() || e.Start.Before(r.res.Min) {
			r.res.Min = e.Start
		}
		if e.End.After(r.res.Max) {
			r.res.Max = e.End
		}
	}

	r.finalize(ctx, r.res.Min, r.res.Max)
	return r.finish(ctx, nil)
}

// unwrapRawEvent strips the envelopes of payloads that were stored already
// wrapped as a RawEvent.
func unwrapRawEvent(raw *RawEvent) *RawEvent {
	for {
		var inner RawEvent
		if err := json.Unmarshal(raw.Data, &inner); err != nil || inner.Provider == "" || len(inner.Data) == 0 {
			return raw
		}
		raw = &inner
	}
}
