package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"
)

type Platform string

func (p Platform) String() string {
	return string(p)
}

var (
	PlatformGoogle Platform = "google"
	PlatformAzure  Platform = "azure"
)

type Account struct {
	ID            int64
	Email         string
	Platform      Platform
	Credentials   *Credentials
	SyncState     string
	SyncStartedAt *time.Time
	SyncProgress  *float64
	SyncedAt      *time.Time
}

func (a Account) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("id", a.ID),
		slog.String("provider", a.Platform.String()),
	)
}

// Credentials are the OAuth tokens of one account. They are rewritten every
// time the provider hands out a new access token.
type Credentials struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Progress counts processed events against the number of events known so
// far. A nil *Progress means the account is not syncing.
type Progress struct {
	Count int
	Total int
}

func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	return min(float64(p.Count)/float64(p.Total), 1)
}

type Contact struct {
	ID    int64
	Email string
	Name  string
}

// ContactHash is the stable key of a contact inside an account.
func ContactHash(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// Participant links a stored event to a stored contact.
type Participant struct {
	EventID     int64
	ContactID   int64
	Response    ResponseStatus
	IsOrganizer bool
}
