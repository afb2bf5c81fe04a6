package outlook

import (
	"errors"
	"html"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/microcosm-cc/bluemonday"

	"github.com/guilherme-santos/calsync/internal"
)

var (
	ErrMissingID    = errors.New("outlook: event has no id")
	ErrMissingStart = errors.New("outlook: event has no start")
)

const graphTimeFormat = "2006-01-02T15:04:05.9999999"

var stripHTML = bluemonday.StrictPolicy()

type emailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type dateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type outlookEvent struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	SeriesMasterID string `json:"seriesMasterId"`
	Subject        string `json:"subject"`
	Body           struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	Start    *dateTimeZone `json:"start"`
	End      *dateTimeZone `json:"end"`
	Location struct {
		DisplayName  string `json:"displayName"`
		LocationType string `json:"locationType"`
	} `json:"location"`
	IsAllDay    bool `json:"isAllDay"`
	IsCancelled bool `json:"isCancelled"`
	Organizer   struct {
		EmailAddress emailAddress `json:"emailAddress"`
	} `json:"organizer"`
	Attendees []struct {
		Type   string `json:"type"`
		Status struct {
			Response string `json:"response"`
		} `json:"status"`
		EmailAddress emailAddress `json:"emailAddress"`
	} `json:"attendees"`
	IsOnlineMeeting bool `json:"isOnlineMeeting"`
	OnlineMeeting   *struct {
		JoinURL string `json:"joinUrl"`
	} `json:"onlineMeeting"`
	OnlineMeetingURL string `json:"onlineMeetingUrl"`
	ShowAs           string `json:"showAs"`
	Sensitivity      string `json:"sensitivity"`
	Removed          *struct {
		Reason string `json:"reason"`
	} `json:"@removed"`
}

func (c *Client) Transform(raw *internal.RawEvent) (*internal.Event, error) {
	var ev outlookEvent
	if err := json.Unmarshal(raw.Data, &ev); err != nil {
		return nil, err
	}
	return c.newEvent(&ev)
}

func (c *Client) newEvent(ev *outlookEvent) (*internal.Event, error) {
	if ev.ID == "" {
		return nil, ErrMissingID
	}
	if ev.Removed != nil {
		return internal.NewEvent(internal.EventArgs{
			ID:           ev.ID,
			Series:       ev.SeriesMasterID,
			AccountEmail: c.email,
			IsCancelled:  true,
		}), nil
	}

	args := internal.EventArgs{
		ID:           ev.ID,
		Series:       ev.SeriesMasterID,
		AccountEmail: c.email,
		Title:        ev.Subject,
		Description:  bodyText(ev.Body.ContentType, ev.Body.Content),
		Location:     ev.Location.DisplayName,
		IsCancelled:  ev.IsCancelled,
		IsPrivate:    ev.Sensitivity == "private" || ev.Sensitivity == "confidential",
		IsOnline:     ev.IsOnlineMeeting || ev.OnlineMeetingURL != "" || (ev.OnlineMeeting != nil && ev.OnlineMeeting.JoinURL != ""),
		IsOnsite:     ev.Location.LocationType == "conferenceRoom",
		NotMeeting:   notMeeting(ev.ShowAs),
	}

	var err error
	if args.Start, err = c.parseTime(ev.Start, ev.IsAllDay); err != nil {
		return nil, err
	}
	args.End = args.Start
	if ev.End != nil {
		if args.End, err = c.parseTime(ev.End, ev.IsAllDay); err != nil {
			return nil, err
		}
	}

	if organizer := ev.Organizer.EmailAddress; organizer.Address != "" {
		args.Attendance = append(args.Attendance, internal.Attendee{
			Email:       organizer.Address,
			Name:        organizer.Name,
			Response:    internal.Accepted,
			IsOrganizer: true,
		})
	}
	for _, a := range ev.Attendees {
		if a.Type == "resource" {
			args.IsOnsite = true
			continue
		}
		if a.EmailAddress.Address == "" {
			continue
		}
		args.Attendance = append(args.Attendance, internal.Attendee{
			Email:    a.EmailAddress.Address,
			Name:     a.EmailAddress.Name,
			Response: responseStatus(a.Status.Response),
		})
	}
	return internal.NewEvent(args), nil
}

// parseTime reads a Graph dateTimeTimeZone. All-day events are pinned to
// midnight of the configured location.
func (c *Client) parseTime(dt *dateTimeZone, allDay bool) (time.Time, error) {
	if dt == nil || dt.DateTime == "" {
		return time.Time{}, ErrMissingStart
	}
	loc := time.UTC
	switch {
	case allDay:
		loc = c.loc
	case dt.TimeZone != "" && dt.TimeZone != "UTC":
		if l, err := time.LoadLocation(dt.TimeZone); err == nil {
			loc = l
		}
	}
	return time.ParseInLocation(graphTimeFormat, dt.DateTime, loc)
}

func bodyText(contentType, content string) string {
	if !strings.EqualFold(contentType, "html") {
		return content
	}
	return strings.TrimSpace(html.UnescapeString(stripHTML.Sanitize(content)))
}

func notMeeting(showAs string) bool {
	switch showAs {
	case "free", "oof", "workingElsewhere":
		return true
	}
	return false
}

func responseStatus(s string) internal.ResponseStatus {
	switch s {
	case "organizer", "accepted":
		return internal.Accepted
	case "declined":
		return internal.Declined
	case "tentativelyAccepted":
		return internal.Tentative
	}
	return internal.NoResponse
}
