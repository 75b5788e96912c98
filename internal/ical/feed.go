// Package ical renders a user's meetings as an iCalendar feed.
package ical

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	internalmeetings "meetsync/internal/meetings"
)

const productID = "-//meetsync//calendar feed//EN"

// Encode renders the meetings as a VCALENDAR document.
func Encode(meetings []*internalmeetings.Meeting) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, meeting := range meetings {
		cal.Children = append(cal.Children, eventFor(meeting))
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}

	return buf.Bytes(), nil
}

func eventFor(meeting *internalmeetings.Meeting) *ical.Component {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, meeting.ID.String()+"@meetsync")
	event.Props.SetDateTime(ical.PropDateTimeStamp, meeting.UpdatedAt.UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, meeting.StartTime.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, meeting.EndTime.UTC())
	event.Props.SetText(ical.PropSummary, meeting.Title)
	event.Props.SetText(ical.PropStatus, icalStatus(meeting.Status))

	if meeting.Description != nil {
		event.Props.SetText(ical.PropDescription, *meeting.Description)
	}
	if meeting.Location != nil {
		event.Props.SetText(ical.PropLocation, *meeting.Location)
	}
	if meeting.MeetingLink != nil {
		event.Props.SetText(ical.PropURL, *meeting.MeetingLink)
	}
	if meeting.CancelledAt != nil {
		event.Props.SetDateTime(ical.PropLastModified, meeting.CancelledAt.UTC())
	}

	return event.Component
}

func icalStatus(status internalmeetings.Status) string {
	if status == internalmeetings.StatusCancelled {
		return "CANCELLED"
	}

	return "CONFIRMED"
}

// FeedName labels the feed attachment for a given day.
func FeedName(now time.Time) string {
	return fmt.Sprintf("meetings-%s.ics", now.UTC().Format("2006-01-02"))
}
