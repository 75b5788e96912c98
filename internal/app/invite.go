package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ossrs/go-oryx-lib/logger"

	internalevents "meetsync/internal/events"
	internalmeetings "meetsync/internal/meetings"
	internalprovider "meetsync/internal/provider"
)

// inviteTask is one (participant, connected provider) pair to fan out.
type inviteTask struct {
	userID uuid.UUID
	conn   internalprovider.Connection
}

// CreateMeeting persists the meeting first, then fans out event creation to
// every participant's connected providers. External failures degrade the
// invite results, never the creation itself.
func (a *App) CreateMeeting(ctx context.Context, req CreateMeetingRequest) (*CreateMeetingResponse, error) {
	// Orchestration outlives the client connection: a disconnect must not
	// abort in-flight provider calls.
	ctx = context.WithoutCancel(ctx)

	logger.Tf(ctx, "CreateMeeting start")

	participantIDs, err := validateCreate(req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	meeting := &internalmeetings.Meeting{
		ID:              uuid.New(),
		Title:           req.Title,
		Description:     req.Description,
		StartTime:       req.StartTime.UTC(),
		EndTime:         req.EndTime.UTC(),
		DurationSeconds: int64(req.EndTime.Sub(req.StartTime).Seconds()),
		Location:        req.Location,
		MeetingLink:     req.MeetingLink,
		OrganizerID:     req.OrganizerID,
		ProjectID:       req.ProjectID,
		Status:          internalmeetings.StatusScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}

	participants := make([]*internalmeetings.Participant, 0, len(participantIDs))
	for _, userID := range participantIDs {
		participants = append(participants, &internalmeetings.Participant{
			MeetingID:      meeting.ID,
			UserID:         userID,
			ResponseStatus: internalmeetings.ResponsePending,
			IsOrganizer:    userID == req.OrganizerID,
			InvitedAt:      now,
			Version:        1,
		})
	}

	// The meeting exists locally before any external call is attempted.
	if err := a.store.CreateMeeting(ctx, meeting, participants); err != nil {
		return nil, err
	}

	tasks, results, emails := a.resolveInvites(ctx, participantIDs)

	results = append(results, a.fanOutInvites(ctx, meeting, tasks, emails)...)

	sort.Slice(results, func(i, j int) bool {
		if results[i].UserID != results[j].UserID {
			return results[i].UserID.String() < results[j].UserID.String()
		}
		return results[i].ProviderID < results[j].ProviderID
	})

	updated := a.recordInviteOutcome(ctx, meeting, results)

	finalParticipants, err := a.store.ListParticipants(ctx, meeting.ID)
	if err != nil {
		logger.Wf(ctx, "CreateMeeting %v list participants err %v", meeting.ID, err)
		finalParticipants = participants
	}

	a.hub.Publish(internalevents.Event{
		Type:       internalevents.TypeMeetingCreated,
		MeetingID:  updated.ID,
		Meeting:    updated,
		At:         time.Now().UTC(),
		Recipients: participantIDs,
	})

	logger.Tf(ctx, "CreateMeeting %v ok, invites=%v", meeting.ID, len(results))

	return &CreateMeetingResponse{
		Meeting:       updated,
		Participants:  finalParticipants,
		InviteResults: results,
	}, nil
}

func validateCreate(req CreateMeetingRequest) ([]uuid.UUID, error) {
	if req.Title == "" {
		return nil, internalmeetings.Invalid("title", "required")
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return nil, internalmeetings.Invalid("time window", "startTime and endTime are required")
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, internalmeetings.Invalid("time window", "endTime must be after startTime")
	}
	if len(req.ParticipantIDs) == 0 {
		return nil, internalmeetings.Invalid("participantIds", "at least one participant is required")
	}
	if req.OrganizerID == uuid.Nil {
		return nil, internalmeetings.Invalid("organizerId", "required")
	}

	// Dedupe and make sure the organizer is invited too.
	seen := make(map[uuid.UUID]bool, len(req.ParticipantIDs)+1)
	ids := make([]uuid.UUID, 0, len(req.ParticipantIDs)+1)
	for _, id := range req.ParticipantIDs {
		if id == uuid.Nil {
			return nil, internalmeetings.Invalid("participantIds", "contains an empty id")
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if !seen[req.OrganizerID] {
		ids = append(ids, req.OrganizerID)
	}

	return ids, nil
}

// resolveInvites splits participants into fan-out tasks and immediate
// results (no connection, or a provider nothing is registered for).
func (a *App) resolveInvites(
	ctx context.Context,
	participantIDs []uuid.UUID,
) ([]inviteTask, []InviteResult, map[uuid.UUID]string) {
	var tasks []inviteTask
	var results []InviteResult
	emails := make(map[uuid.UUID]string)

	for _, userID := range participantIDs {
		conns, err := a.connections.ConnectionsFor(ctx, userID)
		if err != nil {
			msg := "list calendar connections: " + err.Error()
			results = append(results, InviteResult{UserID: userID, Error: &msg})
			continue
		}

		attempted := 0
		for _, conn := range conns {
			if emails[userID] == "" {
				emails[userID] = conn.Email
			}

			if _, ok := a.providers.Get(conn.Provider); !ok {
				msg := "no adapter registered for provider " + conn.Provider
				results = append(results, InviteResult{UserID: userID, ProviderID: conn.Provider, Error: &msg})
				attempted++
				continue
			}

			tasks = append(tasks, inviteTask{userID: userID, conn: conn})
			attempted++
		}

		if attempted == 0 {
			results = append(results, InviteResult{UserID: userID, Skipped: true})
		}
	}

	return tasks, results, emails
}

// fanOutInvites runs one createEvent per task concurrently, bounded per
// provider, and joins all outcomes.
func (a *App) fanOutInvites(
	ctx context.Context,
	meeting *internalmeetings.Meeting,
	tasks []inviteTask,
	emails map[uuid.UUID]string,
) []InviteResult {
	attendees := make([]internalprovider.Attendee, 0, len(emails))
	for userID, email := range emails {
		if email != "" {
			attendees = append(attendees, internalprovider.Attendee{
				Email:     email,
				Organizer: userID == meeting.OrganizerID,
			})
		}
	}
	sort.Slice(attendees, func(i, j int) bool { return attendees[i].Email < attendees[j].Email })

	results := make([]InviteResult, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)

		go func(i int, task inviteTask) {
			defer wg.Done()
			results[i] = a.createEvent(ctx, meeting, task, attendees)
		}(i, task)
	}
	wg.Wait()

	return results
}

func (a *App) createEvent(
	ctx context.Context,
	meeting *internalmeetings.Meeting,
	task inviteTask,
	attendees []internalprovider.Attendee,
) InviteResult {
	adapter, _ := a.providers.Get(task.conn.Provider)

	req := internalprovider.EventRequest{
		Title:          meeting.Title,
		Start:          meeting.StartTime,
		End:            meeting.EndTime,
		Attendees:      attendees,
		IdempotencyKey: internalprovider.IdempotencyKey(meeting.ID, task.userID, task.conn.Provider),
	}
	if meeting.Description != nil {
		req.Description = *meeting.Description
	}
	if meeting.Location != nil {
		req.Location = *meeting.Location
	}
	if meeting.MeetingLink != nil {
		req.MeetingLink = *meeting.MeetingLink
	}

	release := a.sems.acquire(task.conn.Provider)
	defer release()

	var created internalprovider.CreatedEvent
	err := a.callWithRetry(ctx, func(callCtx context.Context) error {
		var callErr error
		created, callErr = adapter.CreateEvent(callCtx, task.conn, req)
		return callErr
	})
	if err != nil {
		logger.Wf(ctx, "CreateMeeting %v invite %v/%v err %v", meeting.ID, task.userID, task.conn.Provider, err)

		msg := err.Error()
		return InviteResult{
			UserID:            task.userID,
			ProviderID:        task.conn.Provider,
			Error:             &msg,
			ReconnectRequired: internalprovider.KindOf(err) == internalprovider.KindAuth,
		}
	}

	result := InviteResult{
		UserID:     task.userID,
		ProviderID: task.conn.Provider,
		Success:    true,
		EventID:    &created.EventID,
	}
	if created.EventLink != "" {
		result.EventLink = &created.EventLink
	}

	return result
}

// recordInviteOutcome appends every successful mapping in one
// version-checked update, replayed on conflict. SetMapping upserts, so a
// retried orchestration cannot duplicate a pair.
func (a *App) recordInviteOutcome(
	ctx context.Context,
	meeting *internalmeetings.Meeting,
	results []InviteResult,
) *internalmeetings.Meeting {
	var mappings []internalmeetings.CalendarEventMapping
	firstEvent := make(map[uuid.UUID]string)

	for _, result := range results {
		if !result.Success || result.EventID == nil {
			continue
		}

		mappings = append(mappings, internalmeetings.CalendarEventMapping{
			ParticipantID: result.UserID,
			ProviderID:    result.ProviderID,
			EventID:       *result.EventID,
			EventLink:     result.EventLink,
		})

		if _, ok := firstEvent[result.UserID]; !ok {
			firstEvent[result.UserID] = *result.EventID
		}
	}

	updated := meeting
	if len(mappings) > 0 {
		var err error
		updated, err = a.updateMeetingWithRetry(ctx, meeting.ID, func(m *internalmeetings.Meeting) {
			for _, mapping := range mappings {
				m.SetMapping(mapping)
			}
		})
		if err != nil {
			logger.Wf(ctx, "CreateMeeting %v record mappings err %v", meeting.ID, err)
			updated = meeting
		}
	}

	for userID, eventID := range firstEvent {
		eventID := eventID

		participant, err := a.store.GetParticipant(ctx, meeting.ID, userID)
		if err != nil {
			continue
		}

		_, err = a.store.UpdateParticipant(ctx, meeting.ID, userID, participant.Version,
			func(p *internalmeetings.Participant) {
				p.EventID = &eventID
			})
		if err != nil {
			logger.Wf(ctx, "CreateMeeting %v participant %v event id err %v", meeting.ID, userID, err)
		}
	}

	return updated
}
