package storage

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/guilherme-santos/calsync/internal"
)

// InsertContacts creates the contacts that do not exist yet and returns every
// requested contact as stored, existing names included.
func (s *Storage) InsertContacts(ctx context.Context, accountID int64, contacts []internal.Contact) ([]internal.Contact, error) {
	if len(contacts) == 0 {
		return nil, nil
	}

	hashes := make([]string, 0, len(contacts))
	args := make([]any, 0, len(contacts)*4)
	for _, c := range contacts {
		hash := internal.ContactHash(c.Email)
		hashes = append(hashes, hash)
		args = append(args, accountID, hash, strings.TrimSpace(c.Email), nullString(c.Name))
	}
	err := s.exec(ctx, `
		INSERT INTO contacts (account_id, email_hash, email, name)
		VALUES `+placeholders(len(contacts), 4)+`
		ON CONFLICT (account_id, email_hash) DO NOTHING
	`, args...)
	if err != nil {
		return nil, err
	}

	query, inArgs, err := sqlx.In(`
		SELECT id, email, name
		FROM contacts
		WHERE account_id = ? AND email_hash IN (?)
	`, accountID, hashes)
	if err != nil {
		return nil, err
	}
	var rows []Contact
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), inArgs...); err != nil {
		return nil, err
	}

	res := make([]internal.Contact, len(rows))
	for i, r := range rows {
		res[i] = r.Convert()
	}
	return res, nil
}

// UpsertAttendees links contacts to events, refreshing the response and the
// organizer flag of links that already exist.
func (s *Storage) UpsertAttendees(ctx context.Context, participants []internal.Participant) error {
	if len(participants) == 0 {
		return nil
	}
	args := make([]any, 0, len(participants)*4)
	for _, p := range participants {
		args = append(args, p.EventID, p.ContactID, nullString(p.Response.String()), p.IsOrganizer)
	}
	return s.exec(ctx, `
		INSERT INTO attendees (event_id, contact_id, response, is_organizer)
		VALUES `+placeholders(len(participants), 4)+`
		ON CONFLICT (event_id, contact_id) DO UPDATE SET
			response = excluded.response,
			is_organizer = excluded.is_organizer
	`, args...)
}

// UpdateContactNames sets the names of contacts in a single transaction.
func (s *Storage) UpdateContactNames(ctx context.Context, names map[int64]string) error {
	if len(names) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`UPDATE contacts SET name = ? WHERE id = ?`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for id, name := range names {
		if _, err := stmt.ExecContext(ctx, name, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Storage) Attendees(ctx context.Context, eventID int64) ([]internal.Participant, error) {
	var rows []struct {
		ContactID   int64   `db:"contact_id"`
		Response    *string `db:"response"`
		IsOrganizer bool    `db:"is_organizer"`
	}
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT contact_id, response, is_organizer
		FROM attendees
		WHERE event_id = ?
		ORDER BY contact_id
	`), eventID)
	if err != nil {
		return nil, err
	}

	res := make([]internal.Participant, len(rows))
	for i, r := range rows {
		res[i] = internal.Participant{
			EventID:     eventID,
			ContactID:   r.ContactID,
			IsOrganizer: r.IsOrganizer,
		}
		if r.Response != nil {
			res[i].Response = internal.ResponseStatus(*r.Response)
		}
	}
	return res, nil
}

// placeholders returns rows groups of n bind vars, "(?, ?), (?, ?)".
func placeholders(rows, n int) string {
	group := "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
	return strings.TrimSuffix(strings.Repeat(group+", ", rows), ", ")
}
