package events

import (
	"time"

	"github.com/google/uuid"

	internalmeetings "meetsync/internal/meetings"
)

type Type string

const (
	TypeMeetingCreated       Type = "meeting.created"
	TypeParticipantResponded Type = "participant.responded"
	TypeMeetingCancelled     Type = "meeting.cancelled"
	TypeMeetingReminder      Type = "meeting.reminder"
)

// Event is one meeting lifecycle notification fanned out to the subscribed
// participants.
type Event struct {
	Type      Type                             `json:"type"`
	MeetingID uuid.UUID                        `json:"meetingId"`
	UserID    *uuid.UUID                       `json:"userId,omitempty"`
	Response  *internalmeetings.ResponseStatus `json:"responseStatus,omitempty"`
	Meeting   *internalmeetings.Meeting        `json:"meeting,omitempty"`
	At        time.Time                        `json:"at"`

	// Recipients limits delivery to these users' subscriptions.
	Recipients []uuid.UUID `json:"-"`
}
