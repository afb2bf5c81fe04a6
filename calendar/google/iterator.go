package google

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/mo"
	"google.golang.org/api/calendar/v3"

	"github.com/guilherme-santos/calsync/internal"
)

type eventIterator struct {
	ctx        context.Context
	c          *Client
	calendarID string
	min, max   time.Time
	syncToken  string
	restarted  bool

	pageToken string
	page      []*calendar.Event
	pos       int
	done      bool
	seen      int

	state   string
	current mo.Result[*internal.RawEvent]
	err     error
}

func (it *eventIterator) Next() bool {
	for it.err == nil {
		if it.pos < len(it.page) {
			item := it.page[it.pos]
			it.pos++
			it.seen++
			it.current = newRawEvent(item)
			return true
		}
		if it.done {
			return false
		}
		it.fetch()
	}
	return false
}

func (it *eventIterator) fetch() {
	call := it.c.svc.Events.List(it.calendarID).MaxResults(pageSize).SingleEvents(true)
	if it.syncToken != "" {
		call = call.SyncToken(it.syncToken)
	} else {
		call = call.
			TimeMin(it.min.Format(time.RFC3339)).
			TimeMax(it.max.Format(time.RFC3339))
	}
	if it.pageToken != "" {
		call = call.PageToken(it.pageToken)
	}

	events, err := it.c.list(it.ctx, call)
	if err != nil {
		if it.syncToken != "" && !it.restarted && syncTokenExpired(err) {
			it.c.logger.InfoContext(it.ctx, "sync token expired, fetching the whole window",
				slog.String("calendar_id", it.calendarID))
			it.syncToken, it.pageToken, it.restarted = "", "", true
			return
		}
		it.err = fmt.Errorf("google: listing events: %w", err)
		return
	}

	it.page, it.pos = events.Items, 0
	it.pageToken = events.NextPageToken
	if it.pageToken == "" {
		it.done = true
		it.state = events.NextSyncToken
	}
}

func (it *eventIterator) Item() mo.Result[*internal.RawEvent] {
	return it.current
}

func (it *eventIterator) State() string {
	if it.err != nil || !it.done {
		return ""
	}
	return it.state
}

func (it *eventIterator) Total() int {
	total := it.seen + len(it.page) - it.pos
	if !it.done {
		total += pageSize
	}
	return total
}

func (it *eventIterator) Err() error {
	return it.err
}

func newRawEvent(item *calendar.Event) mo.Result[*internal.RawEvent] {
	data, err := item.MarshalJSON()
	if err != nil {
		return mo.Err[*internal.RawEvent](&internal.EventError{Cause: err})
	}
	return mo.Ok(&internal.RawEvent{Provider: internal.PlatformGoogle, Data: data})
}
