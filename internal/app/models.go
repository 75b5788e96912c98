package app

import (
	"time"

	"github.com/google/uuid"

	internalmeetings "meetsync/internal/meetings"
)

type CreateMeetingRequest struct {
	Title          string      `json:"title"`
	Description    *string     `json:"description,omitempty"`
	StartTime      time.Time   `json:"startTime"`
	EndTime        time.Time   `json:"endTime"`
	ParticipantIDs []uuid.UUID `json:"participantIds"`
	OrganizerID    uuid.UUID   `json:"organizerId"`
	ProjectID      *uuid.UUID  `json:"projectId,omitempty"`
	Location       *string     `json:"location,omitempty"`
	MeetingLink    *string     `json:"meetingLink,omitempty"`
}

// InviteResult is the per-(participant, provider) outcome of invitation
// fan-out. Participants with no connected provider get one entry with
// Skipped set; they are never silently omitted.
type InviteResult struct {
	UserID            uuid.UUID `json:"userId"`
	ProviderID        string    `json:"providerId,omitempty"`
	Success           bool      `json:"success"`
	Skipped           bool      `json:"skipped,omitempty"`
	EventID           *string   `json:"eventId,omitempty"`
	EventLink         *string   `json:"eventLink,omitempty"`
	Error             *string   `json:"error,omitempty"`
	ReconnectRequired bool      `json:"reconnectRequired,omitempty"`
}

type CreateMeetingResponse struct {
	Meeting       *internalmeetings.Meeting       `json:"meeting"`
	Participants  []*internalmeetings.Participant `json:"participants"`
	InviteResults []InviteResult                  `json:"inviteResults"`
}

type UpdateParticipantRequest struct {
	MeetingID      uuid.UUID                       `json:"meetingId"`
	UserID         uuid.UUID                       `json:"userId"`
	ResponseStatus internalmeetings.ResponseStatus `json:"responseStatus"`
}

type CancelMeetingRequest struct {
	MeetingID uuid.UUID `json:"meetingId"`
}

type CancelMeetingResponse struct {
	Success         bool     `json:"success"`
	CancelledEvents int      `json:"cancelledEvents"`
	Errors          []string `json:"errors,omitempty"`
}

type GetMeetingResponse struct {
	Meeting      *internalmeetings.Meeting       `json:"meeting"`
	Participants []*internalmeetings.Participant `json:"participants"`
}

type ConnectCalendarRequest struct {
	UserID         uuid.UUID `json:"userId"`
	Provider       string    `json:"provider"`
	AccessToken    string    `json:"accessToken"`
	RefreshToken   string    `json:"refreshToken,omitempty"`
	TokenExpiresAt time.Time `json:"tokenExpiresAt,omitempty"`
	Email          string    `json:"email"`
}
