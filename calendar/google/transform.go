package google

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/guilherme-santos/calsync/internal"
)

var (
	ErrMissingID    = errors.New("google: event has no id")
	ErrMissingStart = errors.New("google: event has no start")
)

const idTimeFormat = "20060102T150405Z"

func (c *Client) Transform(raw *internal.RawEvent) (*internal.Event, error) {
	var item calendar.Event
	if err := json.Unmarshal(raw.Data, &item); err != nil {
		return nil, err
	}
	return c.newEvent(&item)
}

func (c *Client) newEvent(item *calendar.Event) (*internal.Event, error) {
	if item.Id == "" {
		return nil, ErrMissingID
	}

	args := internal.EventArgs{
		ID:           c.eventID(item),
		Series:       item.RecurringEventId,
		AccountEmail: c.email,
		Title:        item.Summary,
		Description:  item.Description,
		Location:     item.Location,
		IsCancelled:  item.Status == "cancelled",
		IsPrivate:    item.Visibility == "private" || item.Visibility == "confidential",
		IsOnline:     item.HangoutLink != "" || item.ConferenceData != nil,
		NotMeeting:   notMeeting(item),
	}

	var err error
	switch {
	case item.Start != nil:
		if args.Start, err = c.parseTime(item.Start); err != nil {
			return nil, err
		}
		args.End = args.Start
		if item.End != nil {
			if args.End, err = c.parseTime(item.End); err != nil {
				return nil, err
			}
		}
	case !args.IsCancelled:
		return nil, ErrMissingStart
	}

	var organizer string
	if item.Organizer != nil {
		organizer = item.Organizer.Email
	}
	for _, a := range item.Attendees {
		if a.Resource {
			args.IsOnsite = true
			continue
		}
		if a.Email == "" {
			continue
		}
		args.Attendance = append(args.Attendance, internal.Attendee{
			Email:       a.Email,
			Name:        a.DisplayName,
			Response:    responseStatus(a.ResponseStatus),
			IsOrganizer: a.Organizer || (organizer != "" && strings.EqualFold(a.Email, organizer)),
			IsSelf:      a.Self,
		})
	}
	return internal.NewEvent(args), nil
}

// eventID keeps modified instances of a recurring event under the id of the
// slot they were moved from.
func (c *Client) eventID(item *calendar.Event) string {
	if item.RecurringEventId == "" || item.OriginalStartTime == nil {
		return item.Id
	}
	if item.OriginalStartTime.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, item.OriginalStartTime.DateTime); err == nil {
			return item.RecurringEventId + "_" + t.UTC().Format(idTimeFormat)
		}
	}
	if item.OriginalStartTime.Date != "" {
		return item.RecurringEventId + "_" + strings.ReplaceAll(item.OriginalStartTime.Date, "-", "")
	}
	return item.Id
}

func (c *Client) parseTime(dt *calendar.EventDateTime) (time.Time, error) {
	if dt.DateTime != "" {
		return time.Parse(time.RFC3339, dt.DateTime)
	}
	if dt.Date != "" {
		return time.ParseInLocation(internal.DateFormat, dt.Date, c.loc)
	}
	return time.Time{}, ErrMissingStart
}

func notMeeting(item *calendar.Event) bool {
	switch item.EventType {
	case "focusTime", "outOfOffice", "workingLocation":
		return true
	}
	return item.Transparency == "transparent"
}

func responseStatus(s string) internal.ResponseStatus {
	switch s {
	case "accepted":
		return internal.Accepted
	case "declined":
		return internal.Declined
	case "tentative":
		return internal.Tentative
	}
	return internal.NoResponse
}
