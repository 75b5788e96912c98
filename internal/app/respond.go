package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ossrs/go-oryx-lib/logger"

	internalevents "meetsync/internal/events"
	internalmeetings "meetsync/internal/meetings"
)

const participantUpdateRetries = 3

// UpdateParticipantResponse applies an accept/decline/tentative response.
// The local update is authoritative; mirroring to the participant's provider
// events is best-effort and only logged on failure.
func (a *App) UpdateParticipantResponse(
	ctx context.Context,
	req UpdateParticipantRequest,
) (*internalmeetings.Participant, error) {
	ctx = context.WithoutCancel(ctx)

	logger.Tf(ctx, "UpdateParticipantResponse start")

	switch req.ResponseStatus {
	case internalmeetings.ResponseAccepted, internalmeetings.ResponseDeclined, internalmeetings.ResponseTentative:
	default:
		return nil, internalmeetings.Invalid("responseStatus",
			"must be accepted, declined or tentative")
	}

	var meeting *internalmeetings.Meeting
	var updated *internalmeetings.Participant

	// Duplicate requests for the same participant race on the row version;
	// re-read and retry, re-checking the meeting status each time.
	for attempt := 0; ; attempt++ {
		var err error
		meeting, err = a.store.GetMeeting(ctx, req.MeetingID)
		if err != nil {
			return nil, err
		}

		// Responses are frozen once the meeting leaves scheduled.
		if meeting.Status != internalmeetings.StatusScheduled {
			return nil, internalmeetings.ErrInvalidState
		}

		participant, err := a.store.GetParticipant(ctx, req.MeetingID, req.UserID)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		updated, err = a.store.UpdateParticipant(ctx, req.MeetingID, req.UserID, participant.Version,
			func(p *internalmeetings.Participant) {
				p.ResponseStatus = req.ResponseStatus
				p.RespondedAt = &now
			})
		if err == nil {
			break
		}
		if err != internalmeetings.ErrVersionConflict || attempt >= participantUpdateRetries-1 {
			return nil, err
		}
	}

	a.mirrorResponse(ctx, meeting, updated)

	userID := req.UserID
	status := updated.ResponseStatus
	a.hub.Publish(internalevents.Event{
		Type:       internalevents.TypeParticipantResponded,
		MeetingID:  meeting.ID,
		UserID:     &userID,
		Response:   &status,
		At:         time.Now().UTC(),
		Recipients: a.participantIDs(ctx, meeting.ID),
	})

	logger.Tf(ctx, "UpdateParticipantResponse %v/%v -> %v ok", req.MeetingID, req.UserID, req.ResponseStatus)

	return updated, nil
}

// mirrorResponse pushes the response to every provider event mapped to the
// participant. Failures degrade nothing: local state already committed.
func (a *App) mirrorResponse(
	ctx context.Context,
	meeting *internalmeetings.Meeting,
	participant *internalmeetings.Participant,
) {
	mappings := meeting.MappingsFor(participant.UserID)
	if len(mappings) == 0 {
		return
	}

	conns, err := a.connections.ConnectionsFor(ctx, participant.UserID)
	if err != nil {
		logger.Wf(ctx, "mirror %v/%v list connections err %v", meeting.ID, participant.UserID, err)
		return
	}

	byProvider := make(map[string]int, len(conns))
	for i, conn := range conns {
		byProvider[conn.Provider] = i
	}

	for _, mapping := range mappings {
		adapter, ok := a.providers.Get(mapping.ProviderID)
		if !ok {
			continue
		}

		idx, ok := byProvider[mapping.ProviderID]
		if !ok {
			logger.Wf(ctx, "mirror %v/%v no connection for %v", meeting.ID, participant.UserID, mapping.ProviderID)
			continue
		}
		conn := conns[idx]

		release := a.sems.acquire(mapping.ProviderID)

		callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
		err := adapter.UpdateParticipantStatus(callCtx, conn, mapping.EventID, conn.Email, participant.ResponseStatus)
		cancel()
		release()

		if err != nil {
			logger.Wf(ctx, "mirror %v/%v event %v err %v", meeting.ID, participant.UserID, mapping.EventID, err)
		}
	}
}

func (a *App) participantIDs(ctx context.Context, meetingID uuid.UUID) []uuid.UUID {
	participants, err := a.store.ListParticipants(ctx, meetingID)
	if err != nil {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}

	return ids
}
