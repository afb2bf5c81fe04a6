package syncer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/samber/mo"
	"github.com/stretchr/testify/require"

	"github.com/guilherme-santos/calsync/internal"
)

var errBadEvent = errors.New("bad event")

type storedEvent struct {
	id    int64
	event Event
	day   internal.Date
}

type savedRaw struct {
	eventID *int64
	raw     *RawEvent
}

type fakeStorage struct {
	account    *internal.Account
	accountErr error

	nextID       int64
	events       map[string]*storedEvent
	raws         []savedRaw
	contacts     map[string]internal.Contact
	participants []internal.Participant
	names        map[int64]string
	insertCalls  int

	credentials []internal.Credentials
	started     *time.Time
	progress    []*float64
	syncedAt    *time.Time
	state       string
	linked      int
	days        [][]internal.Date

	upsertErr error
	// upsertFailID makes only the upsert of that event id fail.
	upsertFailID string
	linkErr      error
}

func newFakeStorage(acc *internal.Account) *fakeStorage {
	return &fakeStorage{
		account:  acc,
		events:   make(map[string]*storedEvent),
		contacts: make(map[string]internal.Contact),
		names:    make(map[int64]string),
	}
}

func (s *fakeStorage) Account(_ context.Context, id int64) (*internal.Account, error) {
	if s.accountErr != nil {
		return nil, s.accountErr
	}
	if s.account == nil || s.account.ID != id {
		return nil, internal.ErrNotFound
	}
	acc := *s.account
	return &acc, nil
}

func (s *fakeStorage) UpdateCredentials(_ context.Context, _ int64, creds internal.Credentials) error {
	s.credentials = append(s.credentials, creds)
	return nil
}

func (s *fakeStorage) MarkSyncStarted(_ context.Context, _ int64, at time.Time) error {
	s.started = &at
	return nil
}

func (s *fakeStorage) SaveProgress(_ context.Context, _ int64, progress *float64) error {
	s.progress = append(s.progress, progress)
	return nil
}

func (s *fakeStorage) MarkSynced(_ context.Context, _ int64, at time.Time) error {
	s.syncedAt = &at
	return nil
}

func (s *fakeStorage) SaveSyncState(_ context.Context, _ int64, state string) error {
	s.state = state
	return nil
}

func (s *fakeStorage) UpsertEvent(_ context.Context, _ int64, e *Event, day internal.Date) (int64, error) {
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	if s.upsertFailID != "" && e.ID == s.upsertFailID {
		return 0, errors.New("disk full")
	}
	if stored, ok := s.events[e.ID]; ok {
		stored.event, stored.day = *e, day
		return stored.id, nil
	}
	s.nextID++
	s.events[e.ID] = &storedEvent{id: s.nextID, event: *e, day: day}
	return s.nextID, nil
}

func (s *fakeStorage) CancelEvent(_ context.Context, _ int64, calID string) (int64, error) {
	var first int64
	for id, stored := range s.events {
		if id != calID && !strings.HasPrefix(id, calID+":") {
			continue
		}
		stored.event.IsCancelled = true
		if first == 0 || stored.id < first {
			first = stored.id
		}
	}
	if first == 0 {
		return 0, internal.ErrNotFound
	}
	return first, nil
}

func (s *fakeStorage) SaveRawEvent(_ context.Context, _ int64, eventID *int64, raw *RawEvent) error {
	s.raws = append(s.raws, savedRaw{eventID: eventID, raw: raw})
	return nil
}

func (s *fakeStorage) RawEventsSince(context.Context, int64, time.Time) ([]*RawEvent, error) {
	res := make([]*RawEvent, len(s.raws))
	for i, r := range s.raws {
		res[i] = r.raw
	}
	return res, nil
}

func (s *fakeStorage) InsertContacts(_ context.Context, _ int64, contacts []internal.Contact) ([]internal.Contact, error) {
	s.insertCalls++
	res := make([]internal.Contact, 0, len(contacts))
	for _, c := range contacts {
		key := strings.ToLower(c.Email)
		stored, ok := s.contacts[key]
		if !ok {
			s.nextID++
			stored = internal.Contact{ID: s.nextID, Email: c.Email, Name: c.Name}
			s.contacts[key] = stored
		}
		res = append(res, stored)
	}
	return res, nil
}

func (s *fakeStorage) UpsertAttendees(_ context.Context, participants []internal.Participant) error {
	s.participants = append(s.participants, participants...)
	return nil
}

func (s *fakeStorage) UpdateContactNames(_ context.Context, names map[int64]string) error {
	for id, name := range names {
		s.names[id] = name
	}
	return nil
}

func (s *fakeStorage) LinkSeries(context.Context, int64) error {
	s.linked++
	return s.linkErr
}

func (s *fakeStorage) RecalculateDays(_ context.Context, _ int64, days []internal.Date) error {
	s.days = append(s.days, append([]internal.Date(nil), days...))
	return nil
}

func (s *fakeStorage) contactID(email string) int64 {
	return s.contacts[strings.ToLower(email)].ID
}

// fakeEvent is the payload understood by fakeProvider.
type fakeEvent struct {
	ID        string              `json:"id"`
	Start     time.Time           `json:"start"`
	End       time.Time           `json:"end"`
	Cancelled bool                `json:"cancelled,omitempty"`
	Fail      bool                `json:"fail,omitempty"`
	Attendees []internal.Attendee `json:"attendees,omitempty"`
}

func rawEvent(t *testing.T, e fakeEvent) *RawEvent {
	t.Helper()
	data, err := json.Marshal(e)
	require.NoError(t, err)
	return &RawEvent{Provider: internal.PlatformGoogle, Data: data}
}

type fakeProvider struct {
	items []mo.Result[*RawEvent]
	state string
	total int
	err   error

	gotState string
}

func (p *fakeProvider) add(raws ...*RawEvent) {
	for _, raw := range raws {
		p.items = append(p.items, mo.Ok(raw))
	}
}

func (p *fakeProvider) Events(_ context.Context, _ string, _, _ time.Time, state string) internal.Iterator {
	p.gotState = state
	return &fakeIterator{items: p.items, state: p.state, total: p.total, err: p.err, idx: -1}
}

func (p *fakeProvider) Transform(raw *RawEvent) (*Event, error) {
	var v fakeEvent
	if err := json.Unmarshal(raw.Data, &v); err != nil {
		return nil, err
	}
	if v.Fail {
		return nil, errBadEvent
	}
	return internal.NewEvent(internal.EventArgs{
		ID:           v.ID,
		Start:        v.Start,
		End:          v.End,
		AccountEmail: "me@acme.com",
		IsCancelled:  v.Cancelled,
		Attendance:   v.Attendees,
	}), nil
}

type fakeIterator struct {
	items []mo.Result[*RawEvent]
	state string
	total int
	err   error
	idx   int
}

func (it *fakeIterator) Next() bool {
	it.idx++
	return it.idx < len(it.items)
}

func (it *fakeIterator) Item() mo.Result[*RawEvent] {
	return it.items[it.idx]
}

func (it *fakeIterator) State() string {
	if it.err != nil {
		return ""
	}
	return it.state
}

func (it *fakeIterator) Total() int {
	return it.total
}

func (it *fakeIterator) Err() error {
	return it.err
}

type fakeMux struct {
	provider internal.Provider
	err      error
	cfg      internal.ProviderConfig
}

func (m *fakeMux) New(_ internal.Platform, cfg internal.ProviderConfig) (internal.Provider, error) {
	m.cfg = cfg
	return m.provider, m.err
}
