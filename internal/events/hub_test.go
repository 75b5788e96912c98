package events

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internallogger "meetsync/internal/logger"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(internallogger.New("error", &bytes.Buffer{}))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.URL.Query().Get("userId"))
		if err != nil {
			http.Error(w, "bad user id", http.StatusBadRequest)
			return
		}
		hub.ServeWS(w, r, userID)
	}))
	t.Cleanup(server.Close)

	return hub, server
}

func dial(t *testing.T, server *httptest.Server, userID uuid.UUID) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?userId=" + userID.String()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(message, &event))

	return event
}

func TestHubDeliversToRecipientsOnly(t *testing.T) {
	hub, server := startHub(t)

	alice := uuid.New()
	bob := uuid.New()

	aliceConn := dial(t, server, alice)
	bobConn := dial(t, server, bob)

	// Registration goes through the hub loop; give it a beat.
	time.Sleep(50 * time.Millisecond)

	meetingID := uuid.New()
	hub.Publish(Event{
		Type:       TypeMeetingCancelled,
		MeetingID:  meetingID,
		At:         time.Now().UTC(),
		Recipients: []uuid.UUID{alice},
	})

	event := readEvent(t, aliceConn)
	assert.Equal(t, TypeMeetingCancelled, event.Type)
	assert.Equal(t, meetingID, event.MeetingID)

	require.NoError(t, bobConn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := bobConn.ReadMessage()
	assert.Error(t, err)
}

func TestHubFansOutToAllSubscriptionsOfUser(t *testing.T) {
	hub, server := startHub(t)

	alice := uuid.New()
	first := dial(t, server, alice)
	second := dial(t, server, alice)

	time.Sleep(50 * time.Millisecond)

	hub.Publish(Event{
		Type:       TypeMeetingCreated,
		MeetingID:  uuid.New(),
		At:         time.Now().UTC(),
		Recipients: []uuid.UUID{alice},
	})

	assert.Equal(t, TypeMeetingCreated, readEvent(t, first).Type)
	assert.Equal(t, TypeMeetingCreated, readEvent(t, second).Type)
}
