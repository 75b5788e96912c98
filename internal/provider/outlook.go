package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	internalmeetings "meetsync/internal/meetings"
	internalrestclient "meetsync/internal/restclient"
)

const (
	outlookBaseURL  = "https://graph.microsoft.com/v1.0"
	outlookTokenURL = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
)

// OutlookAdapter talks to the Microsoft Graph calendar API. Graph keys
// idempotent creates on the event's transactionId: a retried create with the
// same transaction id conflicts instead of duplicating, and the existing
// event is looked up by that id.
type OutlookAdapter struct {
	client       *internalrestclient.Client
	connections  ConnectionStore
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
}

type OutlookOptions struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	Timeout      time.Duration
}

func NewOutlookAdapter(connections ConnectionStore, opts OutlookOptions) *OutlookAdapter {
	if opts.BaseURL == "" {
		opts.BaseURL = outlookBaseURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = outlookTokenURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	return &OutlookAdapter{
		client:       internalrestclient.New(opts.Timeout),
		connections:  connections,
		baseURL:      opts.BaseURL,
		tokenURL:     opts.TokenURL,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
	}
}

func (o *OutlookAdapter) ID() string {
	return "outlook"
}

type outlookDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type outlookBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type outlookAttendee struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
	Type string `json:"type"`
}

type outlookEvent struct {
	ID            string            `json:"id,omitempty"`
	Subject       string            `json:"subject,omitempty"`
	Body          *outlookBody      `json:"body,omitempty"`
	Start         *outlookDateTime  `json:"start,omitempty"`
	End           *outlookDateTime  `json:"end,omitempty"`
	Location      map[string]string `json:"location,omitempty"`
	Attendees     []outlookAttendee `json:"attendees,omitempty"`
	TransactionID string            `json:"transactionId,omitempty"`
	WebLink       string            `json:"webLink,omitempty"`
}

func (o *OutlookAdapter) CreateEvent(ctx context.Context, conn Connection, req EventRequest) (CreatedEvent, error) {
	token, err := o.ensureToken(ctx, conn)
	if err != nil {
		return CreatedEvent{}, err
	}

	content := req.Description
	if req.MeetingLink != "" {
		content = content + "\n\nJoin: " + req.MeetingLink
	}

	body := outlookEvent{
		Subject:       req.Title,
		Body:          &outlookBody{ContentType: "text", Content: content},
		Start:         &outlookDateTime{DateTime: req.Start.UTC().Format("2006-01-02T15:04:05"), TimeZone: "UTC"},
		End:           &outlookDateTime{DateTime: req.End.UTC().Format("2006-01-02T15:04:05"), TimeZone: "UTC"},
		TransactionID: req.IdempotencyKey,
	}
	if req.Location != "" {
		body.Location = map[string]string{"displayName": req.Location}
	}
	for _, attendee := range req.Attendees {
		a := outlookAttendee{Type: "required"}
		a.EmailAddress.Address = attendee.Email
		body.Attendees = append(body.Attendees, a)
	}

	resp, err := o.client.Do(ctx, http.MethodPost, o.baseURL+"/me/events", o.authHeader(token), body)
	if err != nil {
		return CreatedEvent{}, Transient(o.ID(), "create event: %v", err)
	}

	if resp.Status == http.StatusConflict {
		return o.findByTransactionID(ctx, token, req.IdempotencyKey)
	}

	if !resp.Success() {
		return CreatedEvent{}, statusError(o.ID(), resp.Status, resp.Body)
	}

	var created outlookEvent
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return CreatedEvent{}, Permanent(o.ID(), "decode event: %v", err)
	}

	return CreatedEvent{EventID: created.ID, EventLink: created.WebLink}, nil
}

func (o *OutlookAdapter) CancelEvent(ctx context.Context, conn Connection, eventID string) error {
	token, err := o.ensureToken(ctx, conn)
	if err != nil {
		return err
	}

	resp, err := o.client.Do(ctx, http.MethodDelete,
		fmt.Sprintf("%s/me/events/%s", o.baseURL, eventID), o.authHeader(token), nil)
	if err != nil {
		return Transient(o.ID(), "cancel event %s: %v", eventID, err)
	}

	if resp.Status == http.StatusNotFound || resp.Status == http.StatusGone {
		return nil
	}

	if !resp.Success() {
		return statusError(o.ID(), resp.Status, resp.Body)
	}

	return nil
}

func (o *OutlookAdapter) UpdateParticipantStatus(
	ctx context.Context,
	conn Connection,
	eventID, _ string,
	status internalmeetings.ResponseStatus,
) error {
	action, ok := outlookResponseAction(status)
	if !ok {
		// Graph has no "back to pending" response.
		return Permanent(o.ID(), "unsupported response status %q", status)
	}

	token, err := o.ensureToken(ctx, conn)
	if err != nil {
		return err
	}

	resp, err := o.client.Do(ctx, http.MethodPost,
		fmt.Sprintf("%s/me/events/%s/%s", o.baseURL, eventID, action),
		o.authHeader(token), map[string]bool{"sendResponse": false})
	if err != nil {
		return Transient(o.ID(), "respond to event %s: %v", eventID, err)
	}
	if !resp.Success() {
		return statusError(o.ID(), resp.Status, resp.Body)
	}

	return nil
}

func (o *OutlookAdapter) findByTransactionID(ctx context.Context, token, transactionID string) (CreatedEvent, error) {
	filter := url.QueryEscape(fmt.Sprintf("transactionId eq '%s'", transactionID))

	resp, err := o.client.Do(ctx, http.MethodGet,
		fmt.Sprintf("%s/me/events?$filter=%s", o.baseURL, filter), o.authHeader(token), nil)
	if err != nil {
		return CreatedEvent{}, Transient(o.ID(), "lookup event: %v", err)
	}
	if !resp.Success() {
		return CreatedEvent{}, statusError(o.ID(), resp.Status, resp.Body)
	}

	var page struct {
		Value []outlookEvent `json:"value"`
	}
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return CreatedEvent{}, Permanent(o.ID(), "decode event page: %v", err)
	}
	if len(page.Value) == 0 {
		return CreatedEvent{}, Permanent(o.ID(), "conflicting event not found by transaction id")
	}

	return CreatedEvent{EventID: page.Value[0].ID, EventLink: page.Value[0].WebLink}, nil
}

func (o *OutlookAdapter) ensureToken(ctx context.Context, conn Connection) (string, error) {
	if !conn.TokenExpired(time.Now()) {
		return conn.AccessToken, nil
	}

	if conn.RefreshToken == "" {
		return "", Auth(o.ID(), "token expired and no refresh token for user %s", conn.UserID)
	}

	form := url.Values{
		"refresh_token": {conn.RefreshToken},
		"client_id":     {o.clientID},
		"client_secret": {o.clientSecret},
		"grant_type":    {"refresh_token"},
	}

	resp, err := o.client.PostForm(ctx, o.tokenURL, form)
	if err != nil {
		return "", Transient(o.ID(), "token refresh: %v", err)
	}
	if !resp.Success() {
		return "", Auth(o.ID(), "token refresh rejected: status %d", resp.Status)
	}

	var refreshed struct {
		AccessToken  string `json:"access_token"`
		ExpiresIn    int64  `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(resp.Body, &refreshed); err != nil {
		return "", Auth(o.ID(), "decode token refresh: %v", err)
	}

	conn.AccessToken = refreshed.AccessToken
	conn.TokenExpiresAt = time.Now().Add(time.Duration(refreshed.ExpiresIn) * time.Second)
	if refreshed.RefreshToken != "" {
		conn.RefreshToken = refreshed.RefreshToken
	}

	if err := o.connections.Save(ctx, conn); err != nil {
		return "", Transient(o.ID(), "save refreshed token: %v", err)
	}

	return conn.AccessToken, nil
}

func (o *OutlookAdapter) authHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func outlookResponseAction(status internalmeetings.ResponseStatus) (string, bool) {
	switch status {
	case internalmeetings.ResponseAccepted:
		return "accept", true
	case internalmeetings.ResponseDeclined:
		return "decline", true
	case internalmeetings.ResponseTentative:
		return "tentativelyAccept", true
	}

	return "", false
}
