package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guilherme-santos/calsync/internal"
)

var (
	windowMin = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	windowMax = time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(internal.ProviderConfig{
		Email:       "me@acme.com",
		Credentials: internal.Credentials{AccessToken: "access", RefreshToken: "refresh"},
		BaseURL:     srv.URL + "/",
		TokenURL:    srv.URL + "/token",
		Location:    time.UTC,
	})
	require.NoError(t, err)
	c.retrySleep = 0
	return c
}

func collect(t *testing.T, it internal.Iterator) []string {
	t.Helper()
	var ids []string
	for it.Next() {
		raw, err := it.Item().Get()
		require.NoError(t, err)
		ids = append(ids, raw.ID())
	}
	return ids
}

func TestEvents_FullFetch(t *testing.T) {
	var requests int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		q := r.URL.Query()
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		assert.Equal(t, "true", q.Get("singleEvents"))
		assert.Equal(t, windowMin.Format(time.RFC3339), q.Get("timeMin"))
		assert.Equal(t, windowMax.Format(time.RFC3339), q.Get("timeMax"))
		assert.Empty(t, q.Get("syncToken"))

		w.Header().Set("Content-Type", "application/json")
		switch q.Get("pageToken") {
		case "":
			w.Write([]byte(`{"items":[{"id":"a"},{"id":"b"}],"nextPageToken":"p2"}`))
		case "p2":
			w.Write([]byte(`{"items":[{"id":"c"}],"nextSyncToken":"sync-1"}`))
		default:
			t.Errorf("unexpected page token %q", q.Get("pageToken"))
		}
	})

	it := c.Events(context.Background(), "", windowMin, windowMax, "")
	require.True(t, it.Next())
	assert.Equal(t, 2+pageSize, it.Total())
	assert.Empty(t, it.State())

	ids := []string{"a"}
	ids = append(ids, collect(t, it)...)
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, "sync-1", it.State())
	assert.Equal(t, 3, it.Total())
	assert.Equal(t, 2, requests)
}

func TestEvents_Incremental(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "sync-1", q.Get("syncToken"))
		assert.Empty(t, q.Get("timeMin"))
		assert.Empty(t, q.Get("timeMax"))
		assert.Equal(t, "true", q.Get("singleEvents"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":"a","status":"cancelled"}],"nextSyncToken":"sync-2"}`))
	})

	it := c.Events(context.Background(), "work", windowMin, windowMax, "sync-1")
	assert.Equal(t, []string{"a"}, collect(t, it))
	require.NoError(t, it.Err())
	assert.Equal(t, "sync-2", it.State())
}

func TestEvents_SyncTokenExpired(t *testing.T) {
	var requests int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("syncToken") != "" {
			w.WriteHeader(http.StatusGone)
			w.Write([]byte(`{"error":{"code":410,"message":"Sync token is no longer valid","errors":[{"domain":"calendar","reason":"fullSyncRequired"}]}}`))
			return
		}
		assert.NotEmpty(t, r.URL.Query().Get("timeMin"))
		w.Write([]byte(`{"items":[{"id":"a"}],"nextSyncToken":"sync-new"}`))
	})

	it := c.Events(context.Background(), "", windowMin, windowMax, "stale")
	assert.Equal(t, []string{"a"}, collect(t, it))
	require.NoError(t, it.Err())
	assert.Equal(t, "sync-new", it.State())
	assert.Equal(t, 2, requests)
}

func TestEvents_Error(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"forbidden","errors":[{"reason":"forbidden"}]}}`))
	})

	it := c.Events(context.Background(), "", windowMin, windowMax, "")
	assert.False(t, it.Next())
	assert.Error(t, it.Err())
	assert.Empty(t, it.State())
}

func TestEvents_RateLimited(t *testing.T) {
	var requests int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		if requests == 1 {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"code":403,"message":"slow down","errors":[{"reason":"rateLimitExceeded"}]}}`))
			return
		}
		w.Write([]byte(`{"items":[{"id":"a"}],"nextSyncToken":"sync-1"}`))
	})

	it := c.Events(context.Background(), "", windowMin, windowMax, "")
	assert.Equal(t, []string{"a"}, collect(t, it))
	require.NoError(t, it.Err())
	assert.Equal(t, 2, requests)
}
