package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/guilherme-santos/calsync/internal"
)

// UpsertEvent stores e keyed by (account, provider id) and returns the row id.
func (s *Storage) UpsertEvent(ctx context.Context, accountID int64, e *internal.Event, day internal.Date) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, s.db.Rebind(`
		INSERT INTO events (
			account_id, cal_id, series, title, location, start_at, end_at, day, length,
			type, response, is_cancelled, is_private, is_online, is_onsite, is_offsite, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, cal_id) DO UPDATE SET
			series = excluded.series,
			title = excluded.title,
			location = excluded.location,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			day = excluded.day,
			length = excluded.length,
			type = excluded.type,
			response = excluded.response,
			is_cancelled = excluded.is_cancelled,
			is_private = excluded.is_private,
			is_online = excluded.is_online,
			is_onsite = excluded.is_onsite,
			is_offsite = excluded.is_offsite,
			updated_at = excluded.updated_at
		RETURNING id
	`),
		accountID, e.ID, e.Series, e.Title(), e.Location, e.Start.UTC(), e.End.UTC(), day, e.Length(),
		nullString(e.Type.String()), nullString(e.Response.String()),
		e.IsCancelled, e.IsPrivate, e.IsOnline, e.IsOnsite, e.IsOffsite, time.Now().UTC(),
	)
	return id, err
}

// CancelEvent flags an event and the parts it was split into as cancelled.
// It returns the id of the first matching row, or ErrNotFound.
func (s *Storage) CancelEvent(ctx context.Context, accountID int64, calID string) (int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, s.db.Rebind(`
		UPDATE events
		SET is_cancelled = ?, updated_at = ?
		WHERE account_id = ? AND (cal_id = ? OR cal_id LIKE ? ESCAPE '\')
		RETURNING id
	`), true, time.Now().UTC(), accountID, calID, escapeLike(calID)+":%")
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, ErrNotFound
	}
	first := ids[0]
	for _, id := range ids[1:] {
		first = min(first, id)
	}
	return first, nil
}

func (s *Storage) Event(ctx context.Context, accountID int64, calID string) (*Event, error) {
	var e Event
	err := s.db.GetContext(ctx, &e, s.db.Rebind(`
		SELECT id, account_id, cal_id, series, title, location, start_at, end_at, day, length,
			type, response, is_cancelled, is_private, is_online, is_onsite, is_offsite,
			series_head_id, is_recurring, updated_at
		FROM events
		WHERE account_id = ? AND cal_id = ?
	`), accountID, calID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &e, err
}

func (s *Storage) SaveRawEvent(ctx context.Context, accountID int64, eventID *int64, raw *internal.RawEvent) error {
	return s.exec(ctx, `
		INSERT INTO raw_events (account_id, event_id, provider, data, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, accountID, eventID, raw.Provider.String(), string(raw.Data), time.Now().UTC())
}

// RawEventsSince returns the payloads stored since the given time, oldest
// first.
func (s *Storage) RawEventsSince(ctx context.Context, accountID int64, since time.Time) ([]*internal.RawEvent, error) {
	var rows []RawEvent
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT provider, data
		FROM raw_events
		WHERE account_id = ? AND created_at >= ?
		ORDER BY id
	`), accountID, since.UTC())
	if err != nil {
		return nil, err
	}

	res := make([]*internal.RawEvent, len(rows))
	for i, r := range rows {
		res[i] = r.Convert()
	}
	return res, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
