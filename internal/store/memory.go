package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	internalmeetings "meetsync/internal/meetings"
)

type participantKey struct {
	meetingID uuid.UUID
	userID    uuid.UUID
}

// MemoryStore keeps meetings in process memory. It is the default driver and
// the one the tests run against; the lock discipline matches MongoStore's
// conditional updates so orchestrators behave identically on either.
type MemoryStore struct {
	mu           sync.RWMutex
	meetings     map[uuid.UUID]*internalmeetings.Meeting
	participants map[participantKey]*internalmeetings.Participant
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		meetings:     make(map[uuid.UUID]*internalmeetings.Meeting),
		participants: make(map[participantKey]*internalmeetings.Participant),
	}
}

func (s *MemoryStore) CreateMeeting(
	_ context.Context,
	meeting *internalmeetings.Meeting,
	participants []*internalmeetings.Participant,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meetings[meeting.ID]; ok {
		return internalmeetings.Invalid("meeting", "already exists")
	}

	s.meetings[meeting.ID] = meeting.Clone()
	for _, p := range participants {
		s.participants[participantKey{meetingID: meeting.ID, userID: p.UserID}] = p.Clone()
	}

	return nil
}

func (s *MemoryStore) GetMeeting(_ context.Context, id uuid.UUID) (*internalmeetings.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meeting, ok := s.meetings[id]
	if !ok {
		return nil, internalmeetings.ErrNotFound
	}

	return meeting.Clone(), nil
}

func (s *MemoryStore) GetParticipant(
	_ context.Context,
	meetingID, userID uuid.UUID,
) (*internalmeetings.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participant, ok := s.participants[participantKey{meetingID: meetingID, userID: userID}]
	if !ok {
		return nil, internalmeetings.ErrNotFound
	}

	return participant.Clone(), nil
}

func (s *MemoryStore) ListParticipants(
	_ context.Context,
	meetingID uuid.UUID,
) ([]*internalmeetings.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.meetings[meetingID]; !ok {
		return nil, internalmeetings.ErrNotFound
	}

	var participants []*internalmeetings.Participant
	for key, p := range s.participants {
		if key.meetingID == meetingID {
			participants = append(participants, p.Clone())
		}
	}

	sort.Slice(participants, func(i, j int) bool {
		return participants[i].UserID.String() < participants[j].UserID.String()
	})

	return participants, nil
}

func (s *MemoryStore) UpdateMeeting(
	_ context.Context,
	id uuid.UUID,
	expectedVersion int64,
	mutate MeetingMutation,
) (*internalmeetings.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meeting, ok := s.meetings[id]
	if !ok {
		return nil, internalmeetings.ErrNotFound
	}

	if meeting.Version != expectedVersion {
		return nil, internalmeetings.ErrVersionConflict
	}

	updated := meeting.Clone()
	mutate(updated)
	updated.Version = meeting.Version + 1
	updated.UpdatedAt = time.Now().UTC()

	s.meetings[id] = updated

	return updated.Clone(), nil
}

func (s *MemoryStore) UpdateParticipant(
	_ context.Context,
	meetingID, userID uuid.UUID,
	expectedVersion int64,
	mutate ParticipantMutation,
) (*internalmeetings.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := participantKey{meetingID: meetingID, userID: userID}
	participant, ok := s.participants[key]
	if !ok {
		return nil, internalmeetings.ErrNotFound
	}

	if participant.Version != expectedVersion {
		return nil, internalmeetings.ErrVersionConflict
	}

	updated := participant.Clone()
	mutate(updated)
	updated.Version = participant.Version + 1

	s.participants[key] = updated

	return updated.Clone(), nil
}

func (s *MemoryStore) ListMeetingsForUser(
	_ context.Context,
	userID uuid.UUID,
) ([]*internalmeetings.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*internalmeetings.Meeting
	for key, p := range s.participants {
		if p.UserID != userID {
			continue
		}

		if meeting, ok := s.meetings[key.meetingID]; ok {
			result = append(result, meeting.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})

	return result, nil
}

func (s *MemoryStore) ListStartingBetween(
	_ context.Context,
	from, to time.Time,
) ([]*internalmeetings.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*internalmeetings.Meeting
	for _, meeting := range s.meetings {
		if !meeting.StartTime.Before(from) && meeting.StartTime.Before(to) {
			result = append(result, meeting.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})

	return result, nil
}
