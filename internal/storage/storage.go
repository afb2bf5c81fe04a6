package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/guilherme-santos/calsync/internal"
)

const (
	Postgres = "postgres"
	SQLite   = "sqlite3"
)

var ErrNotFound = internal.ErrNotFound

type Storage struct {
	db *sqlx.DB
}

// Open connects to a postgres:// or sqlite3:// database URL.
func Open(databaseURL string) (*Storage, error) {
	driver, dsn, err := parseURL(databaseURL)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: opening database: %w", err)
	}
	if driver == SQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	return NewStorage(db), nil
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) DB() *sqlx.DB {
	return s.db
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func parseURL(databaseURL string) (driver, dsn string, err error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", "", fmt.Errorf("storage: parsing database url: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		return Postgres, databaseURL, nil
	case SQLite:
		return SQLite, strings.TrimPrefix(databaseURL, SQLite+"://"), nil
	}
	return "", "", fmt.Errorf("storage: unsupported database %q", u.Scheme)
}

func (s *Storage) AddAccount(ctx context.Context, acc *internal.Account) (int64, error) {
	creds, err := marshalCredentials(acc.Credentials)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.db.GetContext(ctx, &id, s.db.Rebind(`
		INSERT INTO accounts (email, provider, credentials)
		VALUES (?, ?, ?)
		ON CONFLICT (provider, email) DO UPDATE
			SET credentials = excluded.credentials
		RETURNING id
	`), acc.Email, acc.Platform.String(), creds)
	return id, err
}

func (s *Storage) Account(ctx context.Context, id int64) (*internal.Account, error) {
	var acc Account
	err := s.db.GetContext(ctx, &acc, s.db.Rebind(`
		SELECT id, email, provider, credentials, sync_state, sync_started_at, sync_progress, synced_at
		FROM accounts
		WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return acc.Convert()
}

func (s *Storage) AccountIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, `SELECT id FROM accounts ORDER BY id`)
	return ids, err
}

func (s *Storage) UpdateCredentials(ctx context.Context, accountID int64, creds internal.Credentials) error {
	data, err := marshalCredentials(&creds)
	if err != nil {
		return err
	}
	return s.exec(ctx, `UPDATE accounts SET credentials = ? WHERE id = ?`, data, accountID)
}

func (s *Storage) MarkSyncStarted(ctx context.Context, accountID int64, at time.Time) error {
	return s.exec(ctx, `UPDATE accounts SET sync_started_at = ? WHERE id = ?`, at.UTC(), accountID)
}

// SaveProgress stores the sync progress. A nil progress means the account is
// not syncing anymore.
func (s *Storage) SaveProgress(ctx context.Context, accountID int64, progress *float64) error {
	return s.exec(ctx, `UPDATE accounts SET sync_progress = ? WHERE id = ?`, progress, accountID)
}

func (s *Storage) MarkSynced(ctx context.Context, accountID int64, at time.Time) error {
	return s.exec(ctx, `UPDATE accounts SET synced_at = ? WHERE id = ?`, at.UTC(), accountID)
}

func (s *Storage) SaveSyncState(ctx context.Context, accountID int64, state string) error {
	return s.exec(ctx, `UPDATE accounts SET sync_state = ? WHERE id = ?`, state, accountID)
}

func (s *Storage) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	return err
}

func marshalCredentials(creds *internal.Credentials) (sql.NullString, error) {
	if creds == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("storage: encoding credentials: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
