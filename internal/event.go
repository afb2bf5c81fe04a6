package internal

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type EventType string

func (t EventType) String() string {
	return string(t)
}

// IsMeeting reports whether the event was classified at all. An empty type
// is stored as NULL.
func (t EventType) IsMeeting() bool {
	return t != ""
}

var (
	EventTypeInternal EventType = "internal"
	EventTypeExternal EventType = "external"
	EventTypeGrowth   EventType = "growth"
	EventTypeFocus    EventType = "focus"
	EventTypePersonal EventType = "personal"
)

type ResponseStatus string

func (s ResponseStatus) String() string {
	return string(s)
}

var (
	NoResponse ResponseStatus = ""
	Accepted   ResponseStatus = "accepted"
	Declined   ResponseStatus = "declined"
	Tentative  ResponseStatus = "tentative"
)

type Attendee struct {
	Email       string
	Name        string
	Response    ResponseStatus
	IsOrganizer bool
	IsSelf      bool
}

// EventArgs is everything a provider knows about one occurrence.
type EventArgs struct {
	ID           string
	Series       string
	Start        time.Time
	End          time.Time
	AccountEmail string
	Title        string
	Description  string
	Location     string
	IsCancelled  bool
	IsPrivate    bool
	IsOnline     bool
	IsOnsite     bool
	NotMeeting   bool
	Attendance   []Attendee
}

type Event struct {
	ID          string
	Series      string
	Start       time.Time
	End         time.Time
	Description string
	Location    string
	IsCancelled bool
	IsPrivate   bool
	IsOnline    bool
	IsOnsite    bool
	IsOffsite   bool
	Type        EventType
	Response    ResponseStatus
	Attendance  []Attendee

	title        string
	accountEmail string
}

var (
	conferencingPattern = regexp.MustCompile(`(?i)https?://(?:[a-z0-9-]+\.)*(?:zoom\.us/(?:j|my|s|w)/|meet\.google\.com/[a-z]{3}-[a-z]{4}-[a-z]{3}|teams\.microsoft\.com/l/meetup-join/|teams\.live\.com/meet/)`)
	growthPattern       = regexp.MustCompile(`(?i)\b(?:coach(?:ing)?|mentor(?:ing|ship)?|training|health|volunteer(?:ing)?|breaks?|buffers?|yoga|massage)\b`)
)

const maxMeetingLength = 24 * time.Hour

func NewEvent(args EventArgs) *Event {
	e := &Event{
		ID:           args.ID,
		Series:       args.Series,
		Start:        args.Start.UTC(),
		End:          args.End.UTC(),
		Description:  args.Description,
		Location:     args.Location,
		IsCancelled:  args.IsCancelled,
		IsPrivate:    args.IsPrivate,
		IsOnsite:     args.IsOnsite,
		Attendance:   dedupAttendance(args.Attendance),
		title:        args.Title,
		accountEmail: args.AccountEmail,
	}
	if e.Series == "" {
		e.Series = e.ID
	}
	e.IsOnline = args.IsOnline ||
		conferencingPattern.MatchString(args.Location) ||
		conferencingPattern.MatchString(args.Description)
	e.IsOffsite = args.Location != "" && !e.IsOnline && !e.IsOnsite

	for _, a := range e.Attendance {
		if e.isSelf(a) {
			e.Response = a.Response
			break
		}
	}
	e.Type = e.classify(args.NotMeeting)
	return e
}

func dedupAttendance(in []Attendee) []Attendee {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]Attendee, 0, len(in))
	for _, a := range in {
		key := strings.ToLower(strings.TrimSpace(a.Email))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

func (e *Event) classify(notMeeting bool) EventType {
	if notMeeting || len(e.Attendance) <= 1 || e.End.Sub(e.Start) >= maxMeetingLength {
		return ""
	}
	if growthPattern.MatchString(e.title) {
		return EventTypeGrowth
	}
	domain := emailDomain(e.accountEmail)
	for _, a := range e.Attendance {
		if emailDomain(a.Email) != domain {
			return EventTypeExternal
		}
	}
	return EventTypeInternal
}

func (e *Event) isSelf(a Attendee) bool {
	return a.IsSelf || (e.accountEmail != "" && strings.EqualFold(a.Email, e.accountEmail))
}

// Length is the duration in whole minutes.
func (e *Event) Length() int {
	if !e.End.After(e.Start) {
		return 0
	}
	return int(e.End.Sub(e.Start) / time.Minute)
}

// Title returns the stored title, or one built from the attendees when the
// title is missing or the event is private.
func (e *Event) Title() string {
	if e.title != "" && !e.IsPrivate {
		return e.title
	}
	base := "Meeting"
	if e.IsPrivate {
		base = "Private meeting"
	}
	if len(e.Attendance) <= 1 {
		return base
	}

	var names []string
	for _, a := range e.Attendance {
		if e.isSelf(a) {
			continue
		}
		name := strings.TrimSpace(a.Name)
		if name == "" {
			name = a.Email
		}
		if name != "" {
			names = append(names, name)
		}
	}

	switch len(names) {
	case 0:
		return base
	case 1:
		return base + " with " + names[0]
	case 2:
		return base + " with " + names[0] + " and " + names[1]
	}
	rest := len(names) - 2
	others := "others"
	if rest == 1 {
		others = "other"
	}
	return fmt.Sprintf("%s with %s, %s, and %d %s", base, names[0], names[1], rest, others)
}

// Split returns one event per local day for events longer than a day. The
// first part keeps the provider id, the following ones get ":1", ":2"...
func (e *Event) Split(loc *time.Location) []*Event {
	spans := SplitDays(e.Start, e.End, loc)
	if len(spans) == 1 {
		return []*Event{e}
	}
	parts := make([]*Event, len(spans))
	for i, span := range spans {
		part := *e
		part.Start, part.End = span.Start, span.End
		if i > 0 {
			part.ID = fmt.Sprintf("%s:%d", e.ID, i)
		}
		parts[i] = &part
	}
	return parts
}

func emailDomain(email string) string {
	i := strings.LastIndex(email, "@")
	if i < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[i+1:]))
}
