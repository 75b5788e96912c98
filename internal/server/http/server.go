package internalhttp

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	internalapp "meetsync/internal/app"
	internalmeetings "meetsync/internal/meetings"
	internalprovider "meetsync/internal/provider"
)

type Server struct {
	server *http.Server
	logger Logger
}

type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// Application is the orchestration surface the handler exposes over HTTP.
type Application interface {
	Health(ctx context.Context) []byte
	Version(ctx context.Context) []byte
	CreateMeeting(ctx context.Context, req internalapp.CreateMeetingRequest) (*internalapp.CreateMeetingResponse, error)
	UpdateParticipantResponse(ctx context.Context, req internalapp.UpdateParticipantRequest) (*internalmeetings.Participant, error)
	CancelMeeting(ctx context.Context, req internalapp.CancelMeetingRequest) (*internalapp.CancelMeetingResponse, error)
	GetMeeting(ctx context.Context, id uuid.UUID) (*internalapp.GetMeetingResponse, error)
	ConnectCalendar(ctx context.Context, req internalapp.ConnectCalendarRequest) (*internalprovider.Connection, error)
	Feed(ctx context.Context, userID uuid.UUID) ([]byte, error)
}

func New(logger Logger, app Application, subscriber Subscriber, host string, port int) *Server {
	server := &http.Server{
		Addr:         net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:      NewHandler(logger, app, subscriber),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return &Server{
		server: server,
		logger: logger,
	}
}

func (s *Server) Start(ctx context.Context) error {
	err := s.server.ListenAndServe()
	if err != nil {
		return err
	}

	<-ctx.Done()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
