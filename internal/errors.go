package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by storages when a record does not exist.
var ErrNotFound = errors.New("not found")

// RawEvent is a provider payload exactly as it was received.
type RawEvent struct {
	Provider Platform        `json:"provider"`
	Data     json.RawMessage `json:"data"`
}

// ID peeks at the provider id without decoding the whole payload.
func (r *RawEvent) ID() string {
	if r == nil {
		return ""
	}
	var head struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(r.Data, &head)
	return head.ID
}

// EventError carries the payload that could not be turned into events so it
// can be stored and replayed later.
type EventError struct {
	Raw   *RawEvent
	Cause error
}

func (e *EventError) Error() string {
	var b strings.Builder
	b.WriteString("event")
	if id := e.Raw.ID(); id != "" {
		b.WriteString(" ")
		b.WriteString(id)
	}
	b.WriteString(": ")
	if e.Cause == nil {
		b.WriteString("unknown error")
		return b.String()
	}
	b.WriteString(e.Cause.Error())

	var detailed interface{ Detail() string }
	if errors.As(e.Cause, &detailed) {
		if d := detailed.Detail(); d != "" {
			b.WriteString(" (")
			b.WriteString(d)
			b.WriteString(")")
		}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(e.Cause, &syntaxErr) {
		fmt.Fprintf(&b, " at offset %d", syntaxErr.Offset)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(e.Cause, &typeErr) && typeErr.Field != "" {
		fmt.Fprintf(&b, " at field %q", typeErr.Field)
	}
	return b.String()
}

func (e *EventError) Unwrap() error {
	return e.Cause
}

// AsEventError returns err as an *EventError, wrapping it with raw when it
// is not one already.
func AsEventError(raw *RawEvent, err error) *EventError {
	var eventErr *EventError
	if errors.As(err, &eventErr) {
		if eventErr.Raw == nil {
			eventErr.Raw = raw
		}
		return eventErr
	}
	return &EventError{Raw: raw, Cause: err}
}
