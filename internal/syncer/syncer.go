package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/guilherme-santos/calsync/internal"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrMissingProvider     = errors.New("account has no provider")
	ErrMissingCredentials  = errors.New("account has no credentials")
	ErrMissingAccessToken  = errors.New("account has no access token")
	ErrMissingRefreshToken = errors.New("account has no refresh token")
)

const (
	DefaultProgressEvery = 10
	DefaultDayBatch      = 10
)

type (
	Event    = internal.Event
	RawEvent = internal.RawEvent
)

type Storage interface {
	Account(_ context.Context, id int64) (*internal.Account, error)
	UpdateCredentials(_ context.Context, accountID int64, _ internal.Credentials) error
	MarkSyncStarted(_ context.Context, accountID int64, at time.Time) error
	SaveProgress(_ context.Context, accountID int64, progress *float64) error
	MarkSynced(_ context.Context, accountID int64, at time.Time) error
	SaveSyncState(_ context.Context, accountID int64, state string) error

	UpsertEvent(_ context.Context, accountID int64, _ *Event, day internal.Date) (int64, error)
	CancelEvent(_ context.Context, accountID int64, calID string) (int64, error)
	SaveRawEvent(_ context.Context, accountID int64, eventID *int64, _ *RawEvent) error
	RawEventsSince(_ context.Context, accountID int64, since time.Time) ([]*RawEvent, error)

	InsertContacts(_ context.Context, accountID int64, _ []internal.Contact) ([]internal.Contact, error)
	UpsertAttendees(context.Context, []internal.Participant) error
	UpdateContactNames(_ context.Context, names map[int64]string) error

	LinkSeries(_ context.Context, accountID int64) error
	RecalculateDays(_ context.Context, accountID int64, days []internal.Date) error
}

// Recorder receives the outcome of every run.
type Recorder interface {
	ObserveRun(*Result, error)
}

type Config struct {
	Clients  map[internal.Platform]internal.OAuthClient
	Location *time.Location
	// ProgressEvery is how many processed events trigger a progress
	// checkpoint.
	ProgressEvery int
	// DayBatch is how many days are recalculated per statement.
	DayBatch   int
	RateLimit  float64
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    Recorder
	Now        func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = DefaultProgressEvery
	}
	if c.DayBatch <= 0 {
		c.DayBatch = DefaultDayBatch
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// ErrorLogger receives every event that could not be stored.
type ErrorLogger func(*internal.EventError)

// Result summarizes one run.
type Result struct {
	RunID     uuid.UUID
	AccountID int64
	Provider  internal.Platform
	// Processed counts raw items stored without error.
	Processed int
	// Events counts the rows written, split parts included.
	Events    int
	Cancelled int
	Errors    int
	State     string
	Min, Max  time.Time
	Duration  time.Duration
}

type Syncer struct {
	storage  Storage
	provider internal.Provider
	account  *internal.Account
	cfg      Config
	logger   *slog.Logger
}

// New loads the account and builds its provider client. Refreshed
// credentials are persisted as soon as the client obtains them.
func New(ctx context.Context, storage Storage, mux internal.Mux, accountID int64, cfg Config) (*Syncer, error) {
	cfg = cfg.withDefaults()

	acc, err := storage.Account(ctx, accountID)
	if errors.Is(err, internal.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading account %d: %w", accountID, err)
	}
	switch {
	case acc.Platform == "":
		return nil, fmt.Errorf("%w: %d", ErrMissingProvider, accountID)
	case acc.Credentials == nil:
		return nil, fmt.Errorf("%w: %d", ErrMissingCredentials, accountID)
	case acc.Credentials.AccessToken == "":
		return nil, fmt.Errorf("%w: %d", ErrMissingAccessToken, accountID)
	case acc.Credentials.RefreshToken == "":
		return nil, fmt.Errorf("%w: %d", ErrMissingRefreshToken, accountID)
	}

	logger := cfg.Logger.With(slog.Int64("account_id", acc.ID), slog.String("provider", acc.Platform.String()))

	provider, err := mux.New(acc.Platform, internal.ProviderConfig{
		Email:       acc.Email,
		Client:      cfg.Clients[acc.Platform],
		Credentials: *acc.Credentials,
		UpdateCredentials: func(ctx context.Context, creds internal.Credentials) error {
			return storage.UpdateCredentials(ctx, acc.ID, creds)
		},
		Location:   cfg.Location,
		RateLimit:  cfg.RateLimit,
		Logger:     logger,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("account %d: %w", accountID, err)
	}

	return &Syncer{
		storage:  storage,
		provider: provider,
		account:  acc,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

func (s *Syncer) Account() *internal.Account {
	return s.account
}

// SyncEvents stores every event of [min, max) that changed since the last
// successful run. Events that fail are reported to onError and skipped. The
// returned error is the one that stopped the fetch, if any; the stored data
// is finalized either way.
func (s *Syncer) SyncEvents(ctx context.Context, min, max time.Time, calendarID string, onError ErrorLogger) (*Result, error) {
	started := s.cfg.Now()
	r := s.newRun(started, true, onError)
	r.res.Min, r.res.Max = min, max

	r.logger.Info("Sync started",
		slog.Time("min", min),
		slog.Time("max", max),
		slog.Bool("incremental", s.account.SyncState != ""),
	)
	if err := s.storage.MarkSyncStarted(ctx, s.account.ID, started); err != nil {
		r.logger.Error("Unable to save sync start", slog.Any("error", err))
	}

	it := s.provider.Events(ctx, calendarID, min, max, s.account.SyncState)
	for it.Next() {
		raw, err := it.Item().Get()
		if err != nil {
			r.fail(ctx, nil, err)
			continue
		}
		if _, ok := r.process(ctx, raw); !ok {
			continue
		}
		if r.res.Processed%s.cfg.ProgressEvery == 0 {
			r.checkpoint(ctx, it.Total())
		}
	}

	fetchErr := it.Err()
	if fetchErr != nil {
		r.logger.Error("Unable to fetch events", slog.Any("error", fetchErr))
		fetchErr = fmt.Errorf("fetching events: %w", fetchErr)
	} else if state := it.State(); state != "" {
		if err := s.storage.SaveSyncState(ctx, s.account.ID, state); err != nil {
			r.logger.Error("Unable to save sync state", slog.Any("error", err))
		} else {
			s.account.SyncState = state
			r.res.State = state
		}
	}

	r.finalize(ctx, min, max)
	return r.finish(ctx, fetchErr)
}

func (s *Syncer) newRun(started time.Time, keepRaw bool, onError ErrorLogger) *run {
	res := &Result{
		RunID:     uuid.New(),
		AccountID: s.account.ID,
		Provider:  s.account.Platform,
	}
	return &run{
		Syncer:       s,
		started:      started,
		keepRaw:      keepRaw,
		res:          res,
		onError:      onError,
		logger:       s.logger.With(slog.String("run_id", res.RunID.String())),
		contacts:     make(map[string]cachedContact),
		pendingNames: make(map[int64]string),
	}
}

// run holds the state of one SyncEvents or ReprocessEvents call.
type run struct {
	*Syncer

	started time.Time
	// keepRaw stores the payloads as they are received.
	keepRaw bool
	res     *Result
	onError ErrorLogger
	logger  *slog.Logger

	contacts     map[string]cachedContact
	pendingNames map[int64]string
}

// process stores the events of one raw item. It reports whether the item
// was stored without error.
func (r *run) process(ctx context.Context, raw *RawEvent) (*Event, bool) {
	e, err := r.provider.Transform(raw)
	if err != nil {
		r.fail(ctx, raw, err)
		return nil, false
	}

	var firstID *int64
	if e.IsCancelled && e.Start.IsZero() {
		id, err := r.storage.CancelEvent(ctx, r.account.ID, e.ID)
		switch {
		case err == nil:
			firstID = &id
		case errors.Is(err, internal.ErrNotFound):
		default:
			r.fail(ctx, raw, fmt.Errorf("cancelling event: %w", err))
			return nil, false
		}
		r.res.Cancelled++
	} else {
		for i, part := range e.Split(r.cfg.Location) {
			day := internal.NewDateFromTime(part.Start.In(r.cfg.Location))
			id, err := r.storage.UpsertEvent(ctx, r.account.ID, part, day)
			if err != nil {
				r.failLinked(ctx, raw, firstID, fmt.Errorf("saving event %s: %w", part.ID, err))
				return nil, false
			}
			if i == 0 {
				firstID = &id
			}
			if err := r.saveAttendees(ctx, id, part.Attendance); err != nil {
				r.failLinked(ctx, raw, firstID, fmt.Errorf("saving attendees of %s: %w", part.ID, err))
				return nil, false
			}
			r.res.Events++
		}
	}

	if r.keepRaw {
		if err := r.storage.SaveRawEvent(ctx, r.account.ID, firstID, raw); err != nil {
			r.logger.Error("Unable to save raw event", slog.String("event_id", e.ID), slog.Any("error", err))
		}
	}
	r.res.Processed++
	return e, true
}

func (r *run) fail(ctx context.Context, raw *RawEvent, err error) {
	r.failLinked(ctx, raw, nil, err)
}

// failLinked records a failed item. Its raw payload is linked to eventID when
// some of its parts were already stored.
func (r *run) failLinked(ctx context.Context, raw *RawEvent, eventID *int64, err error) {
	eventErr := internal.AsEventError(raw, err)
	r.res.Errors++
	r.logger.Warn("Unable to store event", slog.String("event_id", eventErr.Raw.ID()), slog.Any("error", eventErr))
	if r.onError != nil {
		r.onError(eventErr)
	}
	if !r.keepRaw || eventErr.Raw == nil {
		return
	}
	if err := r.storage.SaveRawEvent(ctx, r.account.ID, eventID, eventErr.Raw); err != nil {
		r.logger.Error("Unable to save raw event", slog.Any("error", err))
	}
}

func (r *run) checkpoint(ctx context.Context, total int) {
	count := r.res.Processed
	if total < count {
		total = count + 1
	}
	progress := internal.Progress{Count: count, Total: total}.Fraction()
	if err := r.storage.SaveProgress(ctx, r.account.ID, &progress); err != nil {
		r.logger.Error("Unable to save progress", slog.Any("error", err))
	}
}

// finalize recomputes what depends on the stored events. Steps are
// independent, a failing one does not stop the others.
func (r *run) finalize(ctx context.Context, from, to time.Time) {
	if err := r.storage.LinkSeries(ctx, r.account.ID); err != nil {
		r.logger.Error("Unable to link series", slog.Any("error", err))
	}
	if len(r.pendingNames) > 0 {
		if err := r.storage.UpdateContactNames(ctx, r.pendingNames); err != nil {
			r.logger.Error("Unable to update contact names", slog.Int("contacts", len(r.pendingNames)), slog.Any("error", err))
		} else {
			clear(r.pendingNames)
		}
	}
	if from.IsZero() || to.IsZero() {
		return
	}
	days := internal.DaysBetween(from, to, r.cfg.Location)
	for start := 0; start < len(days); start += r.cfg.DayBatch {
		batch := days[start:min(start+r.cfg.DayBatch, len(days))]
		if err := r.storage.RecalculateDays(ctx, r.account.ID, batch); err != nil {
			r.logger.Error("Unable to recalculate days",
				slog.String("from", batch[0].String()),
				slog.String("to", batch[len(batch)-1].String()),
				slog.Any("error", err),
			)
		}
	}
}

func (r *run) finish(ctx context.Context, err error) (*Result, error) {
	if perr := r.storage.SaveProgress(ctx, r.account.ID, nil); perr != nil {
		r.logger.Error("Unable to clear progress", slog.Any("error", perr))
	}
	// A run where every event failed, or the fetch failed before any event
	// was stored, did not sync anything.
	if r.res.Processed > 0 || (r.res.Errors == 0 && err == nil) {
		if serr := r.storage.MarkSynced(ctx, r.account.ID, r.cfg.Now()); serr != nil {
			r.logger.Error("Unable to save sync time", slog.Any("error", serr))
		}
	}
	r.res.Duration = r.cfg.Now().Sub(r.started)

	attrs := []any{
		slog.Int("processed", r.res.Processed),
		slog.Int("events", r.res.Events),
		slog.Int("cancelled", r.res.Cancelled),
		slog.Int("errors", r.res.Errors),
		slog.Duration("duration", r.res.Duration),
	}
	switch {
	case err != nil:
		r.logger.Error("Sync stopped with error", append(attrs, slog.Any("error", err))...)
	case r.res.Errors > 0:
		r.logger.Warn("Sync complete with errors", attrs...)
	default:
		r.logger.Info("Sync complete", attrs...)
	}
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.ObserveRun(r.res, err)
	}
	return r.res, err
}
