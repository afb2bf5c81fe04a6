package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/guilherme-santos/calsync/internal"
)

// LinkSeries points every event of the account to the first stored event of
// its series and flags series with more than one event as recurring.
func (s *Storage) LinkSeries(ctx context.Context, accountID int64) error {
	if s.db.DriverName() == Postgres {
		return s.exec(ctx, `SELECT link_series(?)`, accountID)
	}
	return s.exec(ctx, `
		UPDATE events
		SET series_head_id = (
				SELECT MIN(h.id) FROM events h
				WHERE h.account_id = events.account_id AND h.series = events.series
			),
			is_recurring = (
				SELECT COUNT(*) > 1 FROM events h
				WHERE h.account_id = events.account_id AND h.series = events.series
			)
		WHERE account_id = ?
	`, accountID)
}

// RecalculateDays rebuilds the day aggregates of the given local dates.
// Cancelled and declined events do not count.
func (s *Storage) RecalculateDays(ctx context.Context, accountID int64, days []internal.Date) error {
	if len(days) == 0 {
		return nil
	}
	if s.db.DriverName() == Postgres {
		dates := make([]string, len(days))
		for i, d := range days {
			dates[i] = d.String()
		}
		return s.exec(ctx, `SELECT recalculate_days(?, ?)`, accountID, pq.Array(dates))
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query, args, err := sqlx.In(`DELETE FROM days WHERE account_id = ? AND day IN (?)`, accountID, days)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("deleting days: %w", err)
	}

	query, args, err = sqlx.In(`
		INSERT INTO days (account_id, day, event_count, meeting_minutes, internal_minutes, external_minutes, growth_minutes)
		SELECT account_id, day, COUNT(*),
			COALESCE(SUM(CASE WHEN type IS NOT NULL THEN length END), 0),
			COALESCE(SUM(CASE WHEN type = 'internal' THEN length END), 0),
			COALESCE(SUM(CASE WHEN type = 'external' THEN length END), 0),
			COALESCE(SUM(CASE WHEN type = 'growth' THEN length END), 0)
		FROM events
		WHERE account_id = ?
			AND day IN (?)
			AND NOT is_cancelled
			AND (response IS NULL OR response <> 'declined')
		GROUP BY account_id, day
	`, accountID, days)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("inserting days: %w", err)
	}
	return tx.Commit()
}

func (s *Storage) Days(ctx context.Context, accountID int64, from, to internal.Date) ([]Day, error) {
	var days []Day
	err := s.db.SelectContext(ctx, &days, s.db.Rebind(`
		SELECT day, event_count, meeting_minutes, internal_minutes, external_minutes, growth_minutes
		FROM days
		WHERE account_id = ? AND day >= ? AND day <= ?
		ORDER BY day
	`), accountID, from, to)
	return days, err
}
