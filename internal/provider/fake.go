package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	internalmeetings "meetsync/internal/meetings"
)

// Fake is an in-memory Adapter for tests and local runs. It honors the
// idempotency contract: a repeated create under the same key returns the
// event from the first call.
type Fake struct {
	Provider string

	// CreateErr, CancelErr and StatusErr, when set, are consulted before the
	// call succeeds; returning nil lets the call through.
	CreateErr func(req EventRequest) error
	CancelErr func(eventID string) error
	StatusErr func(eventID string) error

	mu        sync.Mutex
	events    map[string]CreatedEvent // idempotency key -> event
	cancelled map[string]bool
	statuses  map[string]internalmeetings.ResponseStatus // eventID/email -> status
	creates   int
	cancels   int
}

func NewFake(providerID string) *Fake {
	return &Fake{
		Provider:  providerID,
		events:    make(map[string]CreatedEvent),
		cancelled: make(map[string]bool),
		statuses:  make(map[string]internalmeetings.ResponseStatus),
	}
}

func (f *Fake) ID() string {
	return f.Provider
}

func (f *Fake) CreateEvent(_ context.Context, _ Connection, req EventRequest) (CreatedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.creates++

	if f.CreateErr != nil {
		if err := f.CreateErr(req); err != nil {
			return CreatedEvent{}, err
		}
	}

	if event, ok := f.events[req.IdempotencyKey]; ok {
		return event, nil
	}

	event := CreatedEvent{
		EventID:   uuid.NewString(),
		EventLink: fmt.Sprintf("https://calendar.example.com/%s/%s", f.Provider, req.IdempotencyKey),
	}
	f.events[req.IdempotencyKey] = event

	return event, nil
}

func (f *Fake) CancelEvent(_ context.Context, _ Connection, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cancels++

	if f.CancelErr != nil {
		if err := f.CancelErr(eventID); err != nil {
			return err
		}
	}

	f.cancelled[eventID] = true
	return nil
}

func (f *Fake) UpdateParticipantStatus(
	_ context.Context,
	_ Connection,
	eventID, email string,
	status internalmeetings.ResponseStatus,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.StatusErr != nil {
		if err := f.StatusErr(eventID); err != nil {
			return err
		}
	}

	f.statuses[eventID+"/"+email] = status
	return nil
}

// Cancelled reports whether CancelEvent succeeded for the event.
func (f *Fake) Cancelled(eventID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.cancelled[eventID]
}

// StatusOf returns the last mirrored response for (event, email).
func (f *Fake) StatusOf(eventID, email string) (internalmeetings.ResponseStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	status, ok := f.statuses[eventID+"/"+email]
	return status, ok
}

// CreateCalls returns how many times CreateEvent was invoked, retries included.
func (f *Fake) CreateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.creates
}

// CancelCalls returns how many times CancelEvent was invoked.
func (f *Fake) CancelCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.cancels
}

// EventCount returns how many distinct events exist.
func (f *Fake) EventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.events)
}
