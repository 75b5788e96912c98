package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleCreateEvent(t *testing.T) {
	var gotAuth string
	var gotEvent googleEvent

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/calendars/primary/events", r.URL.Path)

		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotEvent))

		gotEvent.HTMLLink = "https://calendar.google.com/event/abc"
		json.NewEncoder(w).Encode(gotEvent)
	}))
	defer srv.Close()

	connections := NewMemoryConnections()
	adapter := NewGoogleAdapter(connections, GoogleOptions{BaseURL: srv.URL})

	conn := Connection{UserID: uuid.New(), Provider: "google", AccessToken: "tok", Active: true}
	key := IdempotencyKey(uuid.New(), conn.UserID, "google")

	created, err := adapter.CreateEvent(context.Background(), conn, EventRequest{
		Title:          "kickoff",
		Start:          time.Now(),
		End:            time.Now().Add(time.Hour),
		Attendees:      []Attendee{{Email: "a@example.com", Organizer: true}},
		IdempotencyKey: key,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, strings.ReplaceAll(key, "-", ""), created.EventID)
	assert.Equal(t, "https://calendar.google.com/event/abc", created.EventLink)
	assert.Equal(t, "kickoff", gotEvent.Summary)
	require.Len(t, gotEvent.Attendees, 1)
}

func TestGoogleCreateEventConflictReturnsExisting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusConflict)
			return
		}

		// Conflict is followed by a fetch of the existing event.
		require.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(googleEvent{
			ID:       strings.TrimPrefix(r.URL.Path, "/calendars/primary/events/"),
			HTMLLink: "https://calendar.google.com/event/existing",
		})
	}))
	defer srv.Close()

	adapter := NewGoogleAdapter(NewMemoryConnections(), GoogleOptions{BaseURL: srv.URL})
	conn := Connection{AccessToken: "tok"}

	created, err := adapter.CreateEvent(context.Background(), conn, EventRequest{IdempotencyKey: "aaaa-bbbb"})
	require.NoError(t, err)
	assert.Equal(t, "aaaabbbb", created.EventID)
	assert.Equal(t, "https://calendar.google.com/event/existing", created.EventLink)
}

func TestGoogleErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusUnauthorized, KindAuth},
		{http.StatusTooManyRequests, KindTransient},
		{http.StatusBadRequest, KindPermanent},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))

		adapter := NewGoogleAdapter(NewMemoryConnections(), GoogleOptions{BaseURL: srv.URL})
		_, err := adapter.CreateEvent(context.Background(), Connection{AccessToken: "tok"}, EventRequest{IdempotencyKey: "k"})

		require.Error(t, err, "status %d", tt.status)
		assert.Equal(t, tt.kind, KindOf(err), "status %d", tt.status)

		srv.Close()
	}
}

func TestGoogleCancelEventGoneIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	adapter := NewGoogleAdapter(NewMemoryConnections(), GoogleOptions{BaseURL: srv.URL})

	err := adapter.CancelEvent(context.Background(), Connection{AccessToken: "tok"}, "ev")
	assert.NoError(t, err)
}

func TestGoogleTokenRefresh(t *testing.T) {
	refreshed := false

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		require.Equal(t, "refresh-me", r.Form.Get("refresh_token"))

		refreshed = true
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fresh",
			"expires_in":   3600,
		})
	}))
	defer tokenSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(googleEvent{ID: "ev"})
	}))
	defer apiSrv.Close()

	connections := NewMemoryConnections()
	adapter := NewGoogleAdapter(connections, GoogleOptions{BaseURL: apiSrv.URL, TokenURL: tokenSrv.URL})

	conn := Connection{
		UserID:         uuid.New(),
		Provider:       "google",
		AccessToken:    "stale",
		RefreshToken:   "refresh-me",
		TokenExpiresAt: time.Now().Add(-time.Hour),
		Active:         true,
	}
	require.NoError(t, connections.Save(context.Background(), conn))

	_, err := adapter.CreateEvent(context.Background(), conn, EventRequest{IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.True(t, refreshed)

	// The rotated credential is persisted for the next call.
	conns, err := connections.ConnectionsFor(context.Background(), conn.UserID)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "fresh", conns[0].AccessToken)
}

func TestGoogleTokenRefreshRejectedIsAuthError(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer tokenSrv.Close()

	adapter := NewGoogleAdapter(NewMemoryConnections(), GoogleOptions{BaseURL: "http://unused", TokenURL: tokenSrv.URL})

	conn := Connection{
		AccessToken:    "stale",
		RefreshToken:   "refresh-me",
		TokenExpiresAt: time.Now().Add(-time.Hour),
	}

	_, err := adapter.CreateEvent(context.Background(), conn, EventRequest{IdempotencyKey: "k"})
	require.Error(t, err)
	assert.Equal(t, KindAuth, KindOf(err))
}
