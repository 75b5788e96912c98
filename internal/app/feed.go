package app

import (
	"context"

	"github.com/google/uuid"

	internalical "meetsync/internal/ical"
	internalmeetings "meetsync/internal/meetings"
)

// Feed renders the user's meetings as an iCalendar document for webcal
// subscriptions. Cancelled meetings stay in the feed with STATUS:CANCELLED so
// consumers see the removal.
func (a *App) Feed(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	if userID == uuid.Nil {
		return nil, internalmeetings.Invalid("userId", "required")
	}

	meetings, err := a.store.ListMeetingsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return internalical.Encode(meetings)
}
