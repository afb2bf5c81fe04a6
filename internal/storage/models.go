package storage

import (
	"database/sql"
	"time"

	"github.com/goccy/go-json"

	"github.com/guilherme-santos/calsync/internal"
)

type Account struct {
	ID            int64           `db:"id"`
	Email         string          `db:"email"`
	Provider      string          `db:"provider"`
	Credentials   sql.NullString  `db:"credentials"`
	SyncState     string          `db:"sync_state"`
	SyncStartedAt sql.NullTime    `db:"sync_started_at"`
	SyncProgress  sql.NullFloat64 `db:"sync_progress"`
	SyncedAt      sql.NullTime    `db:"synced_at"`
}

func (a Account) Convert() (*internal.Account, error) {
	acc := &internal.Account{
		ID:        a.ID,
		Email:     a.Email,
		Platform:  internal.Platform(a.Provider),
		SyncState: a.SyncState,
	}
	if a.Credentials.Valid && a.Credentials.String != "" {
		var creds internal.Credentials
		if err := json.Unmarshal([]byte(a.Credentials.String), &creds); err != nil {
			return nil, err
		}
		acc.Credentials = &creds
	}
	if a.SyncStartedAt.Valid {
		t := a.SyncStartedAt.Time.UTC()
		acc.SyncStartedAt = &t
	}
	if a.SyncProgress.Valid {
		p := a.SyncProgress.Float64
		acc.SyncProgress = &p
	}
	if a.SyncedAt.Valid {
		t := a.SyncedAt.Time.UTC()
		acc.SyncedAt = &t
	}
	return acc, nil
}

// Event is a stored event row.
type Event struct {
	ID           int64          `db:"id"`
	AccountID    int64          `db:"account_id"`
	CalID        string         `db:"cal_id"`
	Series       string         `db:"series"`
	Title        string         `db:"title"`
	Location     string         `db:"location"`
	StartAt      time.Time      `db:"start_at"`
	EndAt        time.Time      `db:"end_at"`
	Day          string         `db:"day"`
	Length       int            `db:"length"`
	Type         sql.NullString `db:"type"`
	Response     sql.NullString `db:"response"`
	IsCancelled  bool           `db:"is_cancelled"`
	IsPrivate    bool           `db:"is_private"`
	IsOnline     bool           `db:"is_online"`
	IsOnsite     bool           `db:"is_onsite"`
	IsOffsite    bool           `db:"is_offsite"`
	SeriesHeadID sql.NullInt64  `db:"series_head_id"`
	IsRecurring  bool           `db:"is_recurring"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

type Contact struct {
	ID    int64          `db:"id"`
	Email string         `db:"email"`
	Name  sql.NullString `db:"name"`
}

func (c Contact) Convert() internal.Contact {
	return internal.Contact{
		ID:    c.ID,
		Email: c.Email,
		Name:  c.Name.String,
	}
}

type RawEvent struct {
	Provider string `db:"provider"`
	Data     string `db:"data"`
}

func (r RawEvent) Convert() *internal.RawEvent {
	return &internal.RawEvent{
		Provider: internal.Platform(r.Provider),
		Data:     []byte(r.Data),
	}
}

// Day is the aggregate of one local calendar day.
type Day struct {
	Day             string `db:"day"`
	EventCount      int    `db:"event_count"`
	MeetingMinutes  int    `db:"meeting_minutes"`
	InternalMinutes int    `db:"internal_minutes"`
	ExternalMinutes int    `db:"external_minutes"`
	GrowthMinutes   int    `db:"growth_minutes"`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
