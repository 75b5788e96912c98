package worker

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalevents "meetsync/internal/events"
	internallogger "meetsync/internal/logger"
	internalmeetings "meetsync/internal/meetings"
	internalstore "meetsync/internal/store"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []internalevents.Event
}

func (p *recordingPublisher) Publish(event internalevents.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)
}

func (p *recordingPublisher) all() []internalevents.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]internalevents.Event(nil), p.events...)
}

func seedMeeting(
	t *testing.T,
	store *internalstore.MemoryStore,
	startsIn time.Duration,
	status internalmeetings.Status,
	responses ...internalmeetings.ResponseStatus,
) (*internalmeetings.Meeting, []uuid.UUID) {
	t.Helper()

	now := time.Now().UTC()
	meeting := &internalmeetings.Meeting{
		ID:        uuid.New(),
		Title:     "kickoff",
		StartTime: now.Add(startsIn),
		EndTime:   now.Add(startsIn + time.Hour),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	users := make([]uuid.UUID, 0, len(responses))
	participants := make([]*internalmeetings.Participant, 0, len(responses))
	for _, response := range responses {
		userID := uuid.New()
		users = append(users, userID)
		participants = append(participants, &internalmeetings.Participant{
			MeetingID:      meeting.ID,
			UserID:         userID,
			ResponseStatus: response,
			InvitedAt:      now,
			Version:        1,
		})
	}

	require.NoError(t, store.CreateMeeting(context.Background(), meeting, participants))

	return meeting, users
}

func newReminders(store *internalstore.MemoryStore, hub Publisher, dryRun bool) *Reminders {
	logg := internallogger.New("error", &bytes.Buffer{})

	return NewReminders(logg, store, hub, time.Minute, 30*time.Minute, dryRun)
}

func TestScanRemindsUpcomingMeetings(t *testing.T) {
	store := internalstore.NewMemoryStore()
	hub := &recordingPublisher{}

	soon, users := seedMeeting(t, store, 10*time.Minute, internalmeetings.StatusScheduled,
		internalmeetings.ResponseAccepted, internalmeetings.ResponsePending)
	seedMeeting(t, store, 2*time.Hour, internalmeetings.StatusScheduled, internalmeetings.ResponseAccepted)
	seedMeeting(t, store, 10*time.Minute, internalmeetings.StatusCancelled, internalmeetings.ResponseAccepted)

	r := newReminders(store, hub, false)
	r.Scan(context.Background())

	events := hub.all()
	require.Len(t, events, 1)
	assert.Equal(t, internalevents.TypeMeetingReminder, events[0].Type)
	assert.Equal(t, soon.ID, events[0].MeetingID)
	assert.ElementsMatch(t, users, events[0].Recipients)
}

func TestScanRemindsEachMeetingOnce(t *testing.T) {
	store := internalstore.NewMemoryStore()
	hub := &recordingPublisher{}

	seedMeeting(t, store, 10*time.Minute, internalmeetings.StatusScheduled, internalmeetings.ResponseAccepted)

	r := newReminders(store, hub, false)
	r.Scan(context.Background())
	r.Scan(context.Background())

	assert.Len(t, hub.all(), 1)
}

func TestScanExcludesDeclinedParticipants(t *testing.T) {
	store := internalstore.NewMemoryStore()
	hub := &recordingPublisher{}

	_, users := seedMeeting(t, store, 10*time.Minute, internalmeetings.StatusScheduled,
		internalmeetings.ResponseAccepted, internalmeetings.ResponseDeclined)

	r := newReminders(store, hub, false)
	r.Scan(context.Background())

	events := hub.all()
	require.Len(t, events, 1)
	assert.Equal(t, []uuid.UUID{users[0]}, events[0].Recipients)
}

func TestScanDryRunPublishesNothing(t *testing.T) {
	store := internalstore.NewMemoryStore()
	hub := &recordingPublisher{}

	seedMeeting(t, store, 10*time.Minute, internalmeetings.StatusScheduled, internalmeetings.ResponseAccepted)

	r := newReminders(store, hub, true)
	r.Scan(context.Background())

	assert.Empty(t, hub.all())
}
