package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	calsync "github.com/guilherme-santos/calsync/calendar"
	"github.com/guilherme-santos/calsync/internal"
)

const (
	pageSize     = 250
	maxRetries   = 3
	defaultSleep = 5 * time.Second
)

type Client struct {
	svc    *calendar.Service
	email  string
	loc    *time.Location
	logger *slog.Logger

	// retrySleep is how long to back off when Google rate limits us.
	retrySleep time.Duration
}

// Factory registers the Google client in a calendar.Mux.
func Factory(cfg internal.ProviderConfig) (internal.Provider, error) {
	return NewClient(cfg)
}

func NewClient(cfg internal.ProviderConfig) (*Client, error) {
	opts := []option.ClientOption{
		option.WithHTTPClient(calsync.NewHTTPClient(cfg, googleoauth.Endpoint)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	svc, err := calendar.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("google: creating calendar service: %w", err)
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		svc:        svc,
		email:      cfg.Email,
		loc:        loc,
		logger:     logger.With(slog.String("provider", internal.PlatformGoogle.String())),
		retrySleep: defaultSleep,
	}, nil
}

func (c *Client) Events(ctx context.Context, calendarID string, min, max time.Time, state string) internal.Iterator {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &eventIterator{
		ctx:        ctx,
		c:          c,
		calendarID: calendarID,
		min:        min,
		max:        max,
		syncToken:  state,
	}
}

func (c *Client) list(ctx context.Context, call *calendar.EventsListCall) (*calendar.Events, error) {
	for attempt := 1; ; attempt++ {
		events, err := call.Context(ctx).Do()
		if err == nil || !shouldRetry(err) || attempt == maxRetries {
			return events, err
		}
		c.logger.WarnContext(ctx, "rate limited, retrying", slog.Int("attempt", attempt))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retrySleep):
		}
	}
}

func shouldRetry(err error) bool {
	return errIsReason(err, "rateLimitExceeded") || errIsReason(err, "userRateLimitExceeded")
}

// syncTokenExpired reports whether Google asks for a full sync.
func syncTokenExpired(err error) bool {
	var gErr *googleapi.Error
	return errors.As(err, &gErr) && gErr.Code == http.StatusGone
}

func errIsReason(err error, reason string) bool {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return false
	}

	for _, err := range gErr.Errors {
		if err.Reason == reason {
			return true
		}
	}
	return false
}
