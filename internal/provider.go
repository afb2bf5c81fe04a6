package internal

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/mo"
)

type Mux interface {
	New(Platform, ProviderConfig) (Provider, error)
}

type Provider interface {
	// Events lists raw events. An empty state fetches the whole [min, max)
	// window, otherwise only what changed since state was issued.
	Events(_ context.Context, calendarID string, min, max time.Time, state string) Iterator
	Transform(*RawEvent) (*Event, error)
}

// Iterator pulls raw events lazily, one page at a time.
type Iterator interface {
	Next() bool
	// Item is either a raw event or an *EventError for that one item.
	Item() mo.Result[*RawEvent]
	// State is the cursor to resume from. Only valid once Next returned
	// false and Err is nil.
	State() string
	// Total is the number of items known so far, plus one page when more
	// pages are pending.
	Total() int
	Err() error
}

type OAuthClient struct {
	ID     string `yaml:"client_id"`
	Secret string `yaml:"client_secret"`
}

type ProviderConfig struct {
	Email       string
	Client      OAuthClient
	Credentials Credentials
	// UpdateCredentials is called with the new tokens every time they are
	// refreshed, before the failed request is retried.
	UpdateCredentials func(context.Context, Credentials) error

	Location  *time.Location
	RateLimit float64
	Logger    *slog.Logger

	HTTPClient *http.Client
	BaseURL    string
	TokenURL   string
}
