package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	internalmeetings "meetsync/internal/meetings"
)

// MeetingMutation edits a meeting in place inside a version-checked update.
type MeetingMutation func(*internalmeetings.Meeting)

// ParticipantMutation edits a participant in place inside a version-checked update.
type ParticipantMutation func(*internalmeetings.Participant)

// Store is the single point of truth for meetings and participants. Every
// mutating call carries the version read immediately before it; a mismatch
// returns meetings.ErrVersionConflict and the caller re-reads and retries.
type Store interface {
	// CreateMeeting persists the meeting and its participants atomically.
	// The participant set is fixed from then on.
	CreateMeeting(ctx context.Context, meeting *internalmeetings.Meeting, participants []*internalmeetings.Participant) error

	GetMeeting(ctx context.Context, id uuid.UUID) (*internalmeetings.Meeting, error)

	GetParticipant(ctx context.Context, meetingID, userID uuid.UUID) (*internalmeetings.Participant, error)

	ListParticipants(ctx context.Context, meetingID uuid.UUID) ([]*internalmeetings.Participant, error)

	// UpdateMeeting applies mutate under the optimistic version check and
	// returns the stored result with its new version.
	UpdateMeeting(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate MeetingMutation) (*internalmeetings.Meeting, error)

	// UpdateParticipant is UpdateMeeting for one participant row.
	UpdateParticipant(ctx context.Context, meetingID, userID uuid.UUID, expectedVersion int64, mutate ParticipantMutation) (*internalmeetings.Participant, error)

	// ListMeetingsForUser returns every meeting the user participates in,
	// ordered by start time.
	ListMeetingsForUser(ctx context.Context, userID uuid.UUID) ([]*internalmeetings.Meeting, error)

	// ListStartingBetween returns meetings with a start time inside
	// [from, to), used by the reminder worker.
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]*internalmeetings.Meeting, error)
}
