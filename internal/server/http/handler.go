package internalhttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	internalapp "meetsync/internal/app"
	internalmeetings "meetsync/internal/meetings"
)

// Subscriber attaches a websocket event subscription for a user.
type Subscriber interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID uuid.UUID)
}

type handler struct {
	logger     Logger
	app        Application
	subscriber Subscriber
}

func NewHandler(logger Logger, app Application, subscriber Subscriber) http.Handler {
	h := &handler{
		logger:     logger,
		app:        app,
		subscriber: subscriber,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/cal/v1/version", h.Version).Methods(http.MethodGet)
	r.HandleFunc("/cal/v1/meetings", h.CreateMeeting).Methods(http.MethodPost)
	r.HandleFunc("/cal/v1/meetings/response", h.UpdateParticipantResponse).Methods(http.MethodPost)
	r.HandleFunc("/cal/v1/meetings/cancel", h.CancelMeeting).Methods(http.MethodPost)
	r.HandleFunc("/cal/v1/meetings/{id}", h.GetMeeting).Methods(http.MethodGet)
	r.HandleFunc("/cal/v1/connections", h.ConnectCalendar).Methods(http.MethodPost)
	r.HandleFunc("/cal/v1/feed/{userId}", h.Feed).Methods(http.MethodGet)
	r.HandleFunc("/cal/v1/events", h.Events).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)
	r.NotFoundHandler = http.HandlerFunc(methodNotFoundHandler)

	return r
}

func (s *handler) Health(w http.ResponseWriter, r *http.Request) {
	response := s.app.Health(r.Context())

	_, err := w.Write(response)
	if err != nil {
		s.logger.Error(fmt.Sprintf("Health - response error: %s", err))
	}
}

func (s *handler) Version(w http.ResponseWriter, r *http.Request) {
	response := s.app.Version(r.Context())

	_, err := w.Write(response)
	if err != nil {
		s.logger.Error(fmt.Sprintf("Version - response error: %s", err))
	}
}

func (s *handler) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	var req internalapp.CreateMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	response, err := s.app.CreateMeeting(r.Context(), req)
	if err != nil {
		s.respondAppError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, response)
}

func (s *handler) UpdateParticipantResponse(w http.ResponseWriter, r *http.Request) {
	var req internalapp.UpdateParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	participant, err := s.app.UpdateParticipantResponse(r.Context(), req)
	if err != nil {
		s.respondAppError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, participant)
}

func (s *handler) CancelMeeting(w http.ResponseWriter, r *http.Request) {
	var req internalapp.CancelMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	response, err := s.app.CancelMeeting(r.Context(), req)
	if err != nil {
		s.respondAppError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, response)
}

func (s *handler) GetMeeting(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid meeting id")
		return
	}

	response, err := s.app.GetMeeting(r.Context(), id)
	if err != nil {
		s.respondAppError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, response)
}

func (s *handler) ConnectCalendar(w http.ResponseWriter, r *http.Request) {
	var req internalapp.ConnectCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conn, err := s.app.ConnectCalendar(r.Context(), req)
	if err != nil {
		s.respondAppError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, conn)
}

func (s *handler) Feed(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(mux.Vars(r)["userId"])
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	feed, err := s.app.Feed(r.Context(), userID)
	if err != nil {
		s.respondAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	if _, err := w.Write(feed); err != nil {
		s.logger.Error(fmt.Sprintf("Feed - response error: %s", err))
	}
}

func (s *handler) Events(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("userId"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid or missing userId")
		return
	}

	s.subscriber.ServeWS(w, r, userID)
}

func (s *handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error(fmt.Sprintf("response encode error: %s", err))
	}
}

func (s *handler) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}

// respondAppError maps the error taxonomy onto status codes. Provider
// failures never reach here: orchestrators fold them into result payloads.
func (s *handler) respondAppError(w http.ResponseWriter, err error) {
	switch {
	case internalmeetings.IsValidation(err):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, internalmeetings.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, internalmeetings.ErrInvalidState):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, internalmeetings.ErrVersionConflict):
		s.respondError(w, http.StatusConflict, "concurrent modification, retry")
	default:
		s.logger.Error("request failed: " + err.Error())
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowedHandler(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "405 Method Not Allowed", http.StatusMethodNotAllowed)
}

func methodNotFoundHandler(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "404 Not Found", http.StatusNotFound)
}
