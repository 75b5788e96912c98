package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalmeetings "meetsync/internal/meetings"
)

func TestOutlookCreateEventConflictLooksUpByTransactionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var event outlookEvent
			require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
			require.Equal(t, "txn-1", event.TransactionID)

			w.WriteHeader(http.StatusConflict)
			return
		}

		require.Equal(t, http.MethodGet, r.Method)
		require.Contains(t, r.URL.RawQuery, "$filter=")

		json.NewEncoder(w).Encode(map[string]any{
			"value": []outlookEvent{{ID: "existing", WebLink: "https://outlook.example.com/existing"}},
		})
	}))
	defer srv.Close()

	adapter := NewOutlookAdapter(NewMemoryConnections(), OutlookOptions{BaseURL: srv.URL})

	created, err := adapter.CreateEvent(context.Background(), Connection{AccessToken: "tok"}, EventRequest{
		Title:          "retro",
		IdempotencyKey: "txn-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "existing", created.EventID)
	assert.Equal(t, "https://outlook.example.com/existing", created.EventLink)
}

func TestOutlookResponseActions(t *testing.T) {
	var gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	adapter := NewOutlookAdapter(NewMemoryConnections(), OutlookOptions{BaseURL: srv.URL})
	conn := Connection{AccessToken: "tok"}

	tests := []struct {
		status internalmeetings.ResponseStatus
		action string
	}{
		{internalmeetings.ResponseAccepted, "accept"},
		{internalmeetings.ResponseDeclined, "decline"},
		{internalmeetings.ResponseTentative, "tentativelyAccept"},
	}

	for _, tt := range tests {
		err := adapter.UpdateParticipantStatus(context.Background(), conn, "ev", "a@example.com", tt.status)
		require.NoError(t, err)
		assert.Equal(t, "/me/events/ev/"+tt.action, gotPath)
	}

	// Graph has no way back to pending.
	err := adapter.UpdateParticipantStatus(context.Background(), conn, "ev", "a@example.com", internalmeetings.ResponsePending)
	require.Error(t, err)
	assert.Equal(t, KindPermanent, KindOf(err))
}
