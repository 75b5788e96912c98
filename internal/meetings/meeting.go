package meetings

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Terminal reports whether no further status transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// CalendarEventMapping ties one participant to the event created for them
// in one external calendar system.
type CalendarEventMapping struct {
	ParticipantID uuid.UUID `json:"participantId" bson:"participant_id"`
	ProviderID    string    `json:"providerId" bson:"provider_id"`
	EventID       string    `json:"eventId" bson:"event_id"`
	EventLink     *string   `json:"eventLink,omitempty" bson:"event_link,omitempty"`
}

// Meeting is the authoritative record of a scheduled event. It is owned by
// the store and mutated only through version-checked updates.
type Meeting struct {
	ID              uuid.UUID              `json:"id" bson:"_id"`
	Title           string                 `json:"title" bson:"title"`
	Description     *string                `json:"description,omitempty" bson:"description,omitempty"`
	StartTime       time.Time              `json:"startTime" bson:"start_time"`
	EndTime         time.Time              `json:"endTime" bson:"end_time"`
	DurationSeconds int64                  `json:"durationSeconds" bson:"duration_seconds"`
	Location        *string                `json:"location,omitempty" bson:"location,omitempty"`
	MeetingLink     *string                `json:"meetingLink,omitempty" bson:"meeting_link,omitempty"`
	OrganizerID     uuid.UUID              `json:"organizerId" bson:"organizer_id"`
	ProjectID       *uuid.UUID             `json:"projectId,omitempty" bson:"project_id,omitempty"`
	Status          Status                 `json:"status" bson:"status"`
	EventMappings   []CalendarEventMapping `json:"eventMappings" bson:"event_mappings"`
	RecordingURL    *string                `json:"recordingUrl,omitempty" bson:"recording_url,omitempty"`
	TranscriptURL   *string                `json:"transcriptUrl,omitempty" bson:"transcript_url,omitempty"`
	Summary         *string                `json:"summary,omitempty" bson:"summary,omitempty"`
	CreatedAt       time.Time              `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time              `json:"updatedAt" bson:"updated_at"`
	CancelledAt     *time.Time             `json:"cancelledAt,omitempty" bson:"cancelled_at,omitempty"`
	Version         int64                  `json:"version" bson:"version"`
}

func (m *Meeting) String() string {
	return fmt.Sprintf("meeting=%v, status=%v, mappings=%v", m.ID, m.Status, len(m.EventMappings))
}

// SetMapping upserts a mapping, keyed by (participant, provider). Re-running
// an invitation therefore replaces the pair instead of duplicating it.
func (m *Meeting) SetMapping(mapping CalendarEventMapping) {
	for i, existing := range m.EventMappings {
		if existing.ParticipantID == mapping.ParticipantID && existing.ProviderID == mapping.ProviderID {
			m.EventMappings[i] = mapping
			return
		}
	}

	m.EventMappings = append(m.EventMappings, mapping)
}

// MappingsFor returns every mapping belonging to one participant.
func (m *Meeting) MappingsFor(participantID uuid.UUID) []CalendarEventMapping {
	var mappings []CalendarEventMapping
	for _, mapping := range m.EventMappings {
		if mapping.ParticipantID == participantID {
			mappings = append(mappings, mapping)
		}
	}

	return mappings
}

// Clone returns a deep copy, so store snapshots never alias caller memory.
func (m *Meeting) Clone() *Meeting {
	clone := *m
	clone.EventMappings = append([]CalendarEventMapping(nil), m.EventMappings...)
	return &clone
}
