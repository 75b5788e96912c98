package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalmeetings "meetsync/internal/meetings"
)

func newMeeting(t *testing.T) (*internalmeetings.Meeting, []*internalmeetings.Participant) {
	t.Helper()

	now := time.Now().UTC()
	organizer := uuid.New()
	invitee := uuid.New()

	meeting := &internalmeetings.Meeting{
		ID:          uuid.New(),
		Title:       "sync",
		StartTime:   now.Add(time.Hour),
		EndTime:     now.Add(2 * time.Hour),
		OrganizerID: organizer,
		Status:      internalmeetings.StatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}

	participants := []*internalmeetings.Participant{
		{MeetingID: meeting.ID, UserID: organizer, ResponseStatus: internalmeetings.ResponsePending, IsOrganizer: true, InvitedAt: now, Version: 1},
		{MeetingID: meeting.ID, UserID: invitee, ResponseStatus: internalmeetings.ResponsePending, InvitedAt: now, Version: 1},
	}

	return meeting, participants
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	meeting, participants := newMeeting(t)
	require.NoError(t, s.CreateMeeting(ctx, meeting, participants))

	got, err := s.GetMeeting(ctx, meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, meeting.ID, got.ID)
	assert.Equal(t, int64(1), got.Version)

	listed, err := s.ListParticipants(ctx, meeting.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	_, err = s.GetMeeting(ctx, uuid.New())
	assert.ErrorIs(t, err, internalmeetings.ErrNotFound)
}

func TestMemoryStoreVersionConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	meeting, participants := newMeeting(t)
	require.NoError(t, s.CreateMeeting(ctx, meeting, participants))

	updated, err := s.UpdateMeeting(ctx, meeting.ID, 1, func(m *internalmeetings.Meeting) {
		m.Title = "renamed"
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	// Stale version must be rejected, not overwritten.
	_, err = s.UpdateMeeting(ctx, meeting.ID, 1, func(m *internalmeetings.Meeting) {
		m.Title = "stale write"
	})
	assert.ErrorIs(t, err, internalmeetings.ErrVersionConflict)

	got, err := s.GetMeeting(ctx, meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
}

func TestMemoryStoreUpdateParticipant(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	meeting, participants := newMeeting(t)
	require.NoError(t, s.CreateMeeting(ctx, meeting, participants))

	userID := participants[1].UserID
	now := time.Now().UTC()

	updated, err := s.UpdateParticipant(ctx, meeting.ID, userID, 1,
		func(p *internalmeetings.Participant) {
			p.ResponseStatus = internalmeetings.ResponseAccepted
			p.RespondedAt = &now
		})
	require.NoError(t, err)
	assert.Equal(t, internalmeetings.ResponseAccepted, updated.ResponseStatus)
	assert.Equal(t, int64(2), updated.Version)

	_, err = s.UpdateParticipant(ctx, meeting.ID, userID, 1, func(p *internalmeetings.Participant) {})
	assert.ErrorIs(t, err, internalmeetings.ErrVersionConflict)

	_, err = s.UpdateParticipant(ctx, meeting.ID, uuid.New(), 1, func(p *internalmeetings.Participant) {})
	assert.ErrorIs(t, err, internalmeetings.ErrNotFound)
}

func TestMemoryStoreConcurrentParticipantUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	meeting, participants := newMeeting(t)
	require.NoError(t, s.CreateMeeting(ctx, meeting, participants))

	// Distinct participant rows carry distinct versions; parallel updates
	// must both land.
	var wg sync.WaitGroup
	for _, p := range participants {
		wg.Add(1)

		go func(userID uuid.UUID) {
			defer wg.Done()

			_, err := s.UpdateParticipant(ctx, meeting.ID, userID, 1,
				func(p *internalmeetings.Participant) {
					p.ResponseStatus = internalmeetings.ResponseAccepted
				})
			assert.NoError(t, err)
		}(p.UserID)
	}
	wg.Wait()

	listed, err := s.ListParticipants(ctx, meeting.ID)
	require.NoError(t, err)
	for _, p := range listed {
		assert.Equal(t, internalmeetings.ResponseAccepted, p.ResponseStatus)
	}
}

func TestMemoryStoreSnapshotsDoNotAlias(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	meeting, participants := newMeeting(t)
	require.NoError(t, s.CreateMeeting(ctx, meeting, participants))

	got, err := s.GetMeeting(ctx, meeting.ID)
	require.NoError(t, err)

	got.Title = "mutated outside the store"

	again, err := s.GetMeeting(ctx, meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, "sync", again.Title)
}

func TestMemoryStoreListStartingBetween(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Now().UTC()

	early, earlyParts := newMeeting(t)
	early.StartTime = now.Add(10 * time.Minute)
	require.NoError(t, s.CreateMeeting(ctx, early, earlyParts))

	late, lateParts := newMeeting(t)
	late.StartTime = now.Add(2 * time.Hour)
	require.NoError(t, s.CreateMeeting(ctx, late, lateParts))

	upcoming, err := s.ListStartingBetween(ctx, now, now.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, early.ID, upcoming[0].ID)
}

func TestMemoryStoreListMeetingsForUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	meeting, participants := newMeeting(t)
	require.NoError(t, s.CreateMeeting(ctx, meeting, participants))

	other, otherParts := newMeeting(t)
	require.NoError(t, s.CreateMeeting(ctx, other, otherParts))

	mine, err := s.ListMeetingsForUser(ctx, participants[0].UserID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, meeting.ID, mine[0].ID)
}
