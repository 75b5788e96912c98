package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	internalmeetings "meetsync/internal/meetings"
)

// Attendee is one invitee as an external calendar sees them.
type Attendee struct {
	Email     string `json:"email"`
	Organizer bool   `json:"organizer,omitempty"`
}

// EventRequest describes the event to create externally. IdempotencyKey is
// deterministic per (meeting, participant, provider): a retried create must
// not produce a second event.
type EventRequest struct {
	Title          string
	Description    string
	Start          time.Time
	End            time.Time
	Location       string
	MeetingLink    string
	Attendees      []Attendee
	IdempotencyKey string
}

// CreatedEvent is the external half of a CalendarEventMapping.
type CreatedEvent struct {
	EventID   string
	EventLink string
}

// Adapter is the capability one external calendar system implements. Adding
// a provider means adding an Adapter variant; orchestration never changes.
//
// CreateEvent must be idempotent under EventRequest.IdempotencyKey.
// UpdateParticipantStatus is best-effort: local state stays authoritative
// whatever it returns.
type Adapter interface {
	ID() string
	CreateEvent(ctx context.Context, conn Connection, req EventRequest) (CreatedEvent, error)
	CancelEvent(ctx context.Context, conn Connection, eventID string) error
	UpdateParticipantStatus(ctx context.Context, conn Connection, eventID, email string, status internalmeetings.ResponseStatus) error
}

var keyNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// IdempotencyKey derives the deterministic token for one
// (meeting, participant, provider) triple.
func IdempotencyKey(meetingID, userID uuid.UUID, providerID string) string {
	name := fmt.Sprintf("%s/%s/%s", meetingID, userID, providerID)
	return uuid.NewSHA1(keyNamespace, []byte(name)).String()
}

// Registry maps provider ids to their adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.adapters[adapter.ID()] = adapter
}

func (r *Registry) Get(providerID string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[providerID]
	return adapter, ok
}
