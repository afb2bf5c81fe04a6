package outlook

import (
	"bytes"
	"errors"

	"github.com/goccy/go-json"
	"github.com/samber/mo"

	"github.com/guilherme-santos/calsync/internal"
)

var ErrUnknownSeriesMaster = errors.New("outlook: occurrence of an unknown series master")

// eventIterator hides series masters from the caller. Occurrences and
// exceptions are yielded merged over their master so they carry the
// subject, attendees and body the delta omits.
type eventIterator struct {
	pages   *pageIterator
	masters map[string]json.RawMessage
	current mo.Result[*internal.RawEvent]
}

func newEventIterator(pages *pageIterator) *eventIterator {
	return &eventIterator{
		pages:   pages,
		masters: make(map[string]json.RawMessage),
	}
}

type itemHead struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	SeriesMasterID string          `json:"seriesMasterId"`
	Removed        json.RawMessage `json:"@removed"`
}

func (it *eventIterator) Next() bool {
	for it.pages.Next() {
		data := it.pages.Item()
		raw := newRawEvent(data)

		var head itemHead
		if err := json.Unmarshal(data, &head); err != nil {
			it.current = mo.Err[*internal.RawEvent](&internal.EventError{Raw: raw, Cause: err})
			return true
		}

		switch {
		case len(head.Removed) > 0:
		case head.Type == "seriesMaster":
			it.masters[head.ID] = data
			continue
		case head.SeriesMasterID != "":
			master, ok := it.masters[head.SeriesMasterID]
			if !ok {
				it.current = mo.Err[*internal.RawEvent](&internal.EventError{Raw: raw, Cause: ErrUnknownSeriesMaster})
				return true
			}
			merged, err := merge(master, data)
			if err != nil {
				it.current = mo.Err[*internal.RawEvent](&internal.EventError{Raw: raw, Cause: err})
				return true
			}
			raw = newRawEvent(merged)
		}
		it.current = mo.Ok(raw)
		return true
	}
	return false
}

func (it *eventIterator) Item() mo.Result[*internal.RawEvent] {
	return it.current
}

func (it *eventIterator) State() string {
	return it.pages.DeltaLink()
}

func (it *eventIterator) Total() int {
	return it.pages.Total()
}

func (it *eventIterator) Err() error {
	return it.pages.Err()
}

// merge overlays the occurrence fields on top of its master. Null fields of
// the occurrence keep the master's value.
func merge(master, occurrence []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(master, &fields); err != nil {
		return nil, err
	}
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(occurrence, &overlay); err != nil {
		return nil, err
	}
	for k, v := range overlay {
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			continue
		}
		fields[k] = v
	}
	return json.Marshal(fields)
}

func newRawEvent(data []byte) *internal.RawEvent {
	return &internal.RawEvent{Provider: internal.PlatformAzure, Data: data}
}
