package meetings

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ResponseStatus string

const (
	ResponsePending   ResponseStatus = "pending"
	ResponseAccepted  ResponseStatus = "accepted"
	ResponseDeclined  ResponseStatus = "declined"
	ResponseTentative ResponseStatus = "tentative"
)

// Valid reports whether s is one of the known response states.
func (s ResponseStatus) Valid() bool {
	switch s {
	case ResponsePending, ResponseAccepted, ResponseDeclined, ResponseTentative:
		return true
	}

	return false
}

// Participant is one invited user of one meeting, identified by
// (MeetingID, UserID). Exactly one participant per meeting is the organizer.
type Participant struct {
	MeetingID      uuid.UUID      `json:"meetingId" bson:"meeting_id"`
	UserID         uuid.UUID      `json:"userId" bson:"user_id"`
	ResponseStatus ResponseStatus `json:"responseStatus" bson:"response_status"`
	IsOrganizer    bool           `json:"isOrganizer" bson:"is_organizer"`
	EventID        *string        `json:"eventId,omitempty" bson:"event_id,omitempty"`
	InvitedAt      time.Time      `json:"invitedAt" bson:"invited_at"`
	RespondedAt    *time.Time     `json:"respondedAt,omitempty" bson:"responded_at,omitempty"`
	Version        int64          `json:"version" bson:"version"`
}

func (p *Participant) String() string {
	return fmt.Sprintf("userID=%v, meeting=%v, response=%v", p.UserID, p.MeetingID, p.ResponseStatus)
}

// Clone returns a copy safe to hand out of the store.
func (p *Participant) Clone() *Participant {
	clone := *p
	return &clone
}
