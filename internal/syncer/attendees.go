package syncer

import (
	"context"
	"strings"

	"github.com/guilherme-santos/calsync/internal"
)

type cachedContact struct {
	id    int64
	named bool
}

func contactKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// saveAttendees links the attendance of one stored event to contacts. Known
// contacts come from the run cache, the others are created in one batch.
// Names learned for contacts stored without one are written on finalize.
func (r *run) saveAttendees(ctx context.Context, eventID int64, attendance []internal.Attendee) error {
	if len(attendance) == 0 {
		return nil
	}

	var missing []internal.Contact
	for _, a := range attendance {
		key := contactKey(a.Email)
		if key == "" {
			continue
		}
		name := NormalizeName(a.Name)
		if c, ok := r.contacts[key]; ok {
			if !c.named && name != "" {
				r.pendingNames[c.id] = name
				c.named = true
				r.contacts[key] = c
			}
			continue
		}
		missing = append(missing, internal.Contact{Email: a.Email, Name: name})
	}

	if len(missing) > 0 {
		stored, err := r.storage.InsertContacts(ctx, r.account.ID, missing)
		if err != nil {
			return err
		}
		byKey := make(map[string]internal.Contact, len(stored))
		for _, c := range stored {
			byKey[contactKey(c.Email)] = c
		}
		for _, m := range missing {
			key := contactKey(m.Email)
			c, ok := byKey[key]
			if !ok {
				continue
			}
			named := c.Name != ""
			if !named && m.Name != "" {
				r.pendingNames[c.ID] = m.Name
				named = true
			}
			r.contacts[key] = cachedContact{id: c.ID, named: named}
		}
	}

	participants := make([]internal.Participant, 0, len(attendance))
	seen := make(map[int64]bool, len(attendance))
	for _, a := range attendance {
		c, ok := r.contacts[contactKey(a.Email)]
		if !ok || seen[c.id] {
			continue
		}
		seen[c.id] = true
		participants = append(participants, internal.Participant{
			EventID:     eventID,
			ContactID:   c.id,
			Response:    a.Response,
			IsOrganizer: a.IsOrganizer,
		})
	}
	return r.storage.UpsertAttendees(ctx, participants)
}

// NormalizeName turns a display name into "First Last". Trailing addresses
// and quotes are dropped, "Last, First" is reordered and names that are
// email addresses are discarded.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, "<"); i >= 0 && strings.HasSuffix(name, ">") {
		name = strings.TrimSpace(name[:i])
	}
	name = strings.TrimSpace(strings.Trim(name, `"'`))
	if strings.Contains(name, "@") {
		return ""
	}
	if last, first, ok := strings.Cut(name, ","); ok {
		first, last = strings.TrimSpace(first), strings.TrimSpace(last)
		if first != "" && last != "" && !strings.Contains(first, ",") {
			name = first + " " + last
		}
	}
	return strings.Join(strings.Fields(name), " ")
}
