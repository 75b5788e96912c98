// Package worker holds the scheduled background jobs.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	internalevents "meetsync/internal/events"
	internalmeetings "meetsync/internal/meetings"
	internalstore "meetsync/internal/store"
)

type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

type Publisher interface {
	Publish(event internalevents.Event)
}

// Reminders periodically scans for meetings starting soon and publishes one
// reminder event per meeting to its participants. Each meeting is reminded
// at most once per process lifetime.
type Reminders struct {
	logger   Logger
	store    internalstore.Store
	hub      Publisher
	interval time.Duration
	window   time.Duration
	dryRun   bool

	mu   sync.Mutex
	sent map[uuid.UUID]bool
}

func NewReminders(
	logger Logger,
	store internalstore.Store,
	hub Publisher,
	interval, window time.Duration,
	dryRun bool,
) *Reminders {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 30 * time.Minute
	}

	return &Reminders{
		logger:   logger,
		store:    store,
		hub:      hub,
		interval: interval,
		window:   window,
		dryRun:   dryRun,
		sent:     make(map[uuid.UUID]bool),
	}
}

// Run scans on a ticker until the context ends.
func (r *Reminders) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Scan(ctx)
		}
	}
}

// Scan runs one reminder pass. Exported so tests drive it directly.
func (r *Reminders) Scan(ctx context.Context) {
	now := time.Now().UTC()

	meetings, err := r.store.ListStartingBetween(ctx, now, now.Add(r.window))
	if err != nil {
		r.logger.Error("reminders: list upcoming meetings: " + err.Error())
		return
	}

	reminded := 0
	for _, meeting := range meetings {
		if meeting.Status != internalmeetings.StatusScheduled {
			continue
		}
		if !r.markSent(meeting.ID) {
			continue
		}

		participants, err := r.store.ListParticipants(ctx, meeting.ID)
		if err != nil {
			r.logger.Warn(fmt.Sprintf("reminders: participants for %s: %v", meeting.ID, err))
			continue
		}

		recipients := make([]uuid.UUID, 0, len(participants))
		for _, p := range participants {
			// Declined participants asked not to be there.
			if p.ResponseStatus != internalmeetings.ResponseDeclined {
				recipients = append(recipients, p.UserID)
			}
		}

		if r.dryRun {
			r.logger.Info(fmt.Sprintf("reminders: dry run, would remind %d participants of %s", len(recipients), meeting.ID))
			continue
		}

		r.hub.Publish(internalevents.Event{
			Type:       internalevents.TypeMeetingReminder,
			MeetingID:  meeting.ID,
			Meeting:    meeting,
			At:         now,
			Recipients: recipients,
		})
		reminded++
	}

	if reminded > 0 {
		r.logger.Info(fmt.Sprintf("reminders: sent %d reminders", reminded))
	}
}

// markSent reports whether this call claimed the meeting's reminder.
func (r *Reminders) markSent(meetingID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sent[meetingID] {
		return false
	}

	r.sent[meetingID] = true
	return true
}
