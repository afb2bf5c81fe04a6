package internal

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type detailErr struct{}

func (detailErr) Error() string  { return "graph said no" }
func (detailErr) Detail() string { return "ErrorItemNotFound" }

func TestEventError_Error(t *testing.T) {
	raw := &RawEvent{Provider: PlatformGoogle, Data: json.RawMessage(`{"id":"abc","summary":"x"}`)}

	err := &EventError{Raw: raw, Cause: errors.New("missing start")}
	assert.Equal(t, "event abc: missing start", err.Error())

	err = &EventError{Raw: raw, Cause: detailErr{}}
	assert.Equal(t, "event abc: graph said no (ErrorItemNotFound)", err.Error())

	var v map[string]any
	syntaxErr := json.Unmarshal([]byte(`{"id":`), &v)
	err = &EventError{Raw: &RawEvent{Data: json.RawMessage(`{`)}, Cause: syntaxErr}
	assert.Contains(t, err.Error(), "at offset")
	assert.ErrorIs(t, err, syntaxErr)
}

func TestAsEventError(t *testing.T) {
	raw := &RawEvent{Provider: PlatformAzure, Data: json.RawMessage(`{"id":"1"}`)}
	cause := errors.New("boom")

	wrapped := AsEventError(raw, cause)
	assert.Same(t, raw, wrapped.Raw)
	assert.ErrorIs(t, wrapped, cause)

	again := AsEventError(nil, wrapped)
	assert.Same(t, wrapped, again)
}

func TestProgress_Fraction(t *testing.T) {
	assert.Equal(t, 0.0, Progress{}.Fraction())
	assert.Equal(t, 0.5, Progress{Count: 5, Total: 10}.Fraction())
	assert.Equal(t, 1.0, Progress{Count: 12, Total: 10}.Fraction())
}

func TestContactHash(t *testing.T) {
	assert.Equal(t, ContactHash("Bob@Acme.com "), ContactHash("bob@acme.com"))
	assert.Len(t, ContactHash("bob@acme.com"), 64)
}
