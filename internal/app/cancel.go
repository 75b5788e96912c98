package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ossrs/go-oryx-lib/logger"

	internalevents "meetsync/internal/events"
	internalmeetings "meetsync/internal/meetings"
	internalprovider "meetsync/internal/provider"
)

// CancelMeeting cancels every provider event mapped to the meeting
// concurrently, then transitions the meeting to cancelled no matter what the
// external calls did. Unresolved provider failures come back in Errors for
// manual follow-up; a terminal meeting is an idempotent no-op.
func (a *App) CancelMeeting(ctx context.Context, req CancelMeetingRequest) (*CancelMeetingResponse, error) {
	ctx = context.WithoutCancel(ctx)

	logger.Tf(ctx, "CancelMeeting start")

	meeting, err := a.store.GetMeeting(ctx, req.MeetingID)
	if err != nil {
		return nil, err
	}

	if meeting.Status.Terminal() {
		logger.Tf(ctx, "CancelMeeting %v already %v", meeting.ID, meeting.Status)
		return &CancelMeetingResponse{Success: true, CancelledEvents: 0}, nil
	}

	cancelled, errs := a.fanOutCancels(ctx, meeting)

	now := time.Now().UTC()
	updated, err := a.updateMeetingWithRetry(ctx, meeting.ID, func(m *internalmeetings.Meeting) {
		// Another cancel may have won the race; the transition stays monotonic.
		if m.Status.Terminal() {
			return
		}
		m.Status = internalmeetings.StatusCancelled
		m.CancelledAt = &now
	})
	if err != nil {
		return nil, err
	}

	a.hub.Publish(internalevents.Event{
		Type:       internalevents.TypeMeetingCancelled,
		MeetingID:  updated.ID,
		Meeting:    updated,
		At:         time.Now().UTC(),
		Recipients: a.participantIDs(ctx, updated.ID),
	})

	logger.Tf(ctx, "CancelMeeting %v ok, cancelled=%v errors=%v", meeting.ID, cancelled, len(errs))

	return &CancelMeetingResponse{
		Success:         true,
		CancelledEvents: cancelled,
		Errors:          errs,
	}, nil
}

// fanOutCancels issues one cancelEvent per mapping concurrently under the
// same per-provider bounds as invitation. Each outcome is independent.
func (a *App) fanOutCancels(ctx context.Context, meeting *internalmeetings.Meeting) (int, []string) {
	outcomes := make([]error, len(meeting.EventMappings))

	var wg sync.WaitGroup
	for i, mapping := range meeting.EventMappings {
		wg.Add(1)

		go func(i int, mapping internalmeetings.CalendarEventMapping) {
			defer wg.Done()
			outcomes[i] = a.cancelEvent(ctx, mapping)
		}(i, mapping)
	}
	wg.Wait()

	cancelled := 0
	var errs []string
	for i, err := range outcomes {
		if err == nil {
			cancelled++
			continue
		}

		mapping := meeting.EventMappings[i]
		errs = append(errs, fmt.Sprintf("%s/%s: %v", mapping.ProviderID, mapping.EventID, err))
	}

	sort.Strings(errs)

	return cancelled, errs
}

func (a *App) cancelEvent(ctx context.Context, mapping internalmeetings.CalendarEventMapping) error {
	adapter, ok := a.providers.Get(mapping.ProviderID)
	if !ok {
		return fmt.Errorf("no adapter registered for provider %s", mapping.ProviderID)
	}

	conns, err := a.connections.ConnectionsFor(ctx, mapping.ParticipantID)
	if err != nil {
		return fmt.Errorf("list connections: %w", err)
	}

	var conn *internalprovider.Connection
	for i := range conns {
		if conns[i].Provider == mapping.ProviderID {
			conn = &conns[i]
			break
		}
	}
	if conn == nil {
		return fmt.Errorf("no active %s connection for participant %s", mapping.ProviderID, mapping.ParticipantID)
	}

	release := a.sems.acquire(mapping.ProviderID)
	defer release()

	return a.callWithRetry(ctx, func(callCtx context.Context) error {
		return adapter.CancelEvent(callCtx, *conn, mapping.EventID)
	})
}
