package outlook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2/microsoft"

	calsync "github.com/guilherme-santos/calsync/calendar"
	"github.com/guilherme-santos/calsync/internal"
)

const (
	msGraphBaseURL = "https://graph.microsoft.com/v1.0"
	pageSize       = 50
	graphTimeQuery = "2006-01-02T15:04:05Z"
)

var preferHeader = fmt.Sprintf(`outlook.timezone="UTC", odata.maxpagesize=%d`, pageSize)

type Client struct {
	http    *http.Client
	baseURL string
	email   string
	loc     *time.Location
	logger  *slog.Logger
}

// Factory registers the Outlook client in a calendar.Mux.
func Factory(cfg internal.ProviderConfig) (internal.Provider, error) {
	return NewClient(cfg)
}

func NewClient(cfg internal.ProviderConfig) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = msGraphBaseURL
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
		http:    calsync.NewHTTPClient(cfg, microsoft.AzureADEndpoint("common")),
		baseURL: baseURL,
		email:   cfg.Email,
		loc:     loc,
		logger:  logger.With(slog.String("provider", internal.PlatformAzure.String())),
	}, nil
}

func (c *Client) Events(ctx context.Context, calendarID string, min, max time.Time, state string) internal.Iterator {
	return newEventIterator(&pageIterator{
		ctx:     ctx,
		c:       c,
		initial: c.deltaURL(calendarID, min, max),
		state:   state,
	})
}

func (c *Client) deltaURL(calendarID string, min, max time.Time) string {
	endpoint := c.baseURL + "/me/calendarView/delta"
	if calendarID != "" && calendarID != "primary" {
		endpoint = c.baseURL + "/me/calendars/" + url.PathEscape(calendarID) + "/calendarView/delta"
	}

	params := url.Values{}
	params.Set("startDateTime", min.UTC().Format(graphTimeQuery))
	params.Set("endDateTime", max.UTC().Format(graphTimeQuery))
	return endpoint + "?" + params.Encode()
}

type page struct {
	Value     []json.RawMessage `json:"value"`
	NextLink  string            `json:"@odata.nextLink"`
	DeltaLink string            `json:"@odata.deltaLink"`
}

func (c *Client) get(ctx context.Context, endpoint string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("outlook: creating request: %w", err)
	}
	req.Header.Set("Prefer", preferHeader)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("outlook: listing events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var p page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("outlook: decoding response: %w", err)
	}
	return &p, nil
}

// Error is the error body returned by Microsoft Graph.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("outlook: request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("outlook: request failed with status %d: %s", e.StatusCode, e.Message)
}

func (e *Error) Detail() string {
	return e.Code
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	return &Error{
		StatusCode: resp.StatusCode,
		Code:       payload.Error.Code,
		Message:    payload.Error.Message,
	}
}
