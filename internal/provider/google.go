package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	internalmeetings "meetsync/internal/meetings"
	internalrestclient "meetsync/internal/restclient"
)

const (
	googleBaseURL  = "https://www.googleapis.com/calendar/v3"
	googleTokenURL = "https://oauth2.googleapis.com/token"
)

// GoogleAdapter talks to the Google Calendar REST API. Idempotency rides on
// client-supplied event ids: the idempotency key becomes the event id, so a
// retried insert collides (409) instead of duplicating the event.
type GoogleAdapter struct {
	client       *internalrestclient.Client
	connections  ConnectionStore
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
}

type GoogleOptions struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	Timeout      time.Duration
}

func NewGoogleAdapter(connections ConnectionStore, opts GoogleOptions) *GoogleAdapter {
	if opts.BaseURL == "" {
		opts.BaseURL = googleBaseURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = googleTokenURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	return &GoogleAdapter{
		client:       internalrestclient.New(opts.Timeout),
		connections:  connections,
		baseURL:      opts.BaseURL,
		tokenURL:     opts.TokenURL,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
	}
}

func (g *GoogleAdapter) ID() string {
	return "google"
}

type googleEventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type googleAttendee struct {
	Email          string `json:"email"`
	Organizer      bool   `json:"organizer,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
}

type googleEvent struct {
	ID          string           `json:"id,omitempty"`
	Summary     string           `json:"summary,omitempty"`
	Description string           `json:"description,omitempty"`
	Location    string           `json:"location,omitempty"`
	Start       *googleEventTime `json:"start,omitempty"`
	End         *googleEventTime `json:"end,omitempty"`
	Attendees   []googleAttendee `json:"attendees,omitempty"`
	HTMLLink    string           `json:"htmlLink,omitempty"`
}

func (g *GoogleAdapter) CreateEvent(ctx context.Context, conn Connection, req EventRequest) (CreatedEvent, error) {
	token, err := g.ensureToken(ctx, conn)
	if err != nil {
		return CreatedEvent{}, err
	}

	// Google event ids are base32hex; the dashless key fits the alphabet.
	eventID := strings.ReplaceAll(req.IdempotencyKey, "-", "")

	description := req.Description
	if req.MeetingLink != "" {
		description = strings.TrimSpace(description + "\n\nJoin: " + req.MeetingLink)
	}

	body := googleEvent{
		ID:          eventID,
		Summary:     req.Title,
		Description: description,
		Location:    req.Location,
		Start:       &googleEventTime{DateTime: req.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:         &googleEventTime{DateTime: req.End.UTC().Format(time.RFC3339), TimeZone: "UTC"},
	}
	for _, attendee := range req.Attendees {
		body.Attendees = append(body.Attendees, googleAttendee{Email: attendee.Email, Organizer: attendee.Organizer})
	}

	resp, err := g.client.Do(ctx, http.MethodPost,
		fmt.Sprintf("%s/calendars/primary/events", g.baseURL), g.authHeader(token), body)
	if err != nil {
		return CreatedEvent{}, Transient(g.ID(), "create event: %v", err)
	}

	// 409 means the id already exists: the previous attempt got through.
	if resp.Status == http.StatusConflict {
		return g.fetchEvent(ctx, token, eventID)
	}

	if !resp.Success() {
		return CreatedEvent{}, statusError(g.ID(), resp.Status, resp.Body)
	}

	var created googleEvent
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return CreatedEvent{}, Permanent(g.ID(), "decode event: %v", err)
	}

	return CreatedEvent{EventID: created.ID, EventLink: created.HTMLLink}, nil
}

func (g *GoogleAdapter) CancelEvent(ctx context.Context, conn Connection, eventID string) error {
	token, err := g.ensureToken(ctx, conn)
	if err != nil {
		return err
	}

	resp, err := g.client.Do(ctx, http.MethodDelete,
		fmt.Sprintf("%s/calendars/primary/events/%s", g.baseURL, eventID), g.authHeader(token), nil)
	if err != nil {
		return Transient(g.ID(), "cancel event %s: %v", eventID, err)
	}

	// Already deleted counts as cancelled.
	if resp.Status == http.StatusNotFound || resp.Status == http.StatusGone {
		return nil
	}

	if !resp.Success() {
		return statusError(g.ID(), resp.Status, resp.Body)
	}

	return nil
}

func (g *GoogleAdapter) UpdateParticipantStatus(
	ctx context.Context,
	conn Connection,
	eventID, email string,
	status internalmeetings.ResponseStatus,
) error {
	token, err := g.ensureToken(ctx, conn)
	if err != nil {
		return err
	}

	eventURL := fmt.Sprintf("%s/calendars/primary/events/%s", g.baseURL, eventID)

	resp, err := g.client.Do(ctx, http.MethodGet, eventURL, g.authHeader(token), nil)
	if err != nil {
		return Transient(g.ID(), "fetch event %s: %v", eventID, err)
	}
	if !resp.Success() {
		return statusError(g.ID(), resp.Status, resp.Body)
	}

	var event googleEvent
	if err := json.Unmarshal(resp.Body, &event); err != nil {
		return Permanent(g.ID(), "decode event: %v", err)
	}

	found := false
	for i, attendee := range event.Attendees {
		if attendee.Email == email {
			event.Attendees[i].ResponseStatus = googleResponseStatus(status)
			found = true
		}
	}
	if !found {
		return Permanent(g.ID(), "attendee %s not on event %s", email, eventID)
	}

	patch := googleEvent{Attendees: event.Attendees}
	resp, err = g.client.Do(ctx, http.MethodPatch, eventURL, g.authHeader(token), patch)
	if err != nil {
		return Transient(g.ID(), "patch event %s: %v", eventID, err)
	}
	if !resp.Success() {
		return statusError(g.ID(), resp.Status, resp.Body)
	}

	return nil
}

func (g *GoogleAdapter) fetchEvent(ctx context.Context, token, eventID string) (CreatedEvent, error) {
	resp, err := g.client.Do(ctx, http.MethodGet,
		fmt.Sprintf("%s/calendars/primary/events/%s", g.baseURL, eventID), g.authHeader(token), nil)
	if err != nil {
		return CreatedEvent{}, Transient(g.ID(), "fetch event %s: %v", eventID, err)
	}
	if !resp.Success() {
		return CreatedEvent{}, statusError(g.ID(), resp.Status, resp.Body)
	}

	var event googleEvent
	if err := json.Unmarshal(resp.Body, &event); err != nil {
		return CreatedEvent{}, Permanent(g.ID(), "decode event: %v", err)
	}

	return CreatedEvent{EventID: event.ID, EventLink: event.HTMLLink}, nil
}

// ensureToken refreshes an expired access token through the OAuth endpoint
// and persists the rotated credential. A failed refresh is an auth error:
// the user has to reconnect their calendar.
func (g *GoogleAdapter) ensureToken(ctx context.Context, conn Connection) (string, error) {
	if !conn.TokenExpired(time.Now()) {
		return conn.AccessToken, nil
	}

	if conn.RefreshToken == "" {
		return "", Auth(g.ID(), "token expired and no refresh token for user %s", conn.UserID)
	}

	form := url.Values{
		"refresh_token": {conn.RefreshToken},
		"client_id":     {g.clientID},
		"client_secret": {g.clientSecret},
		"grant_type":    {"refresh_token"},
	}

	resp, err := g.client.PostForm(ctx, g.tokenURL, form)
	if err != nil {
		return "", Transient(g.ID(), "token refresh: %v", err)
	}
	if !resp.Success() {
		return "", Auth(g.ID(), "token refresh rejected: status %d", resp.Status)
	}

	var refreshed struct {
		AccessToken  string `json:"access_token"`
		ExpiresIn    int64  `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(resp.Body, &refreshed); err != nil {
		return "", Auth(g.ID(), "decode token refresh: %v", err)
	}

	conn.AccessToken = refreshed.AccessToken
	conn.TokenExpiresAt = time.Now().Add(time.Duration(refreshed.ExpiresIn) * time.Second)
	if refreshed.RefreshToken != "" {
		conn.RefreshToken = refreshed.RefreshToken
	}

	if err := g.connections.Save(ctx, conn); err != nil {
		return "", Transient(g.ID(), "save refreshed token: %v", err)
	}

	return conn.AccessToken, nil
}

func (g *GoogleAdapter) authHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func googleResponseStatus(status internalmeetings.ResponseStatus) string {
	if status == internalmeetings.ResponsePending {
		return "needsAction"
	}

	return string(status)
}
