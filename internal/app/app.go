package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	internalevents "meetsync/internal/events"
	internalmeetings "meetsync/internal/meetings"
	internalprovider "meetsync/internal/provider"
	internalstore "meetsync/internal/store"
)

const meetingUpdateRetries = 5

type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// Publisher receives meeting lifecycle events for fan-out to subscribers.
type Publisher interface {
	Publish(event internalevents.Event)
}

// RetryPolicy bounds the transient-error retry loop around provider calls.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

type Options struct {
	Retry               RetryPolicy
	ProviderConcurrency int
	CallTimeout         time.Duration
}

// App runs the three orchestrations against the store and the provider
// adapters. The store is the single point of truth; provider outcomes only
// ever shape the result payload.
type App struct {
	logger      Logger
	store       internalstore.Store
	connections internalprovider.ConnectionStore
	providers   *internalprovider.Registry
	hub         Publisher
	retry       RetryPolicy
	callTimeout time.Duration
	sems        *semaphores
}

func New(
	logger Logger,
	store internalstore.Store,
	connections internalprovider.ConnectionStore,
	providers *internalprovider.Registry,
	hub Publisher,
	opts Options,
) *App {
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = 3
	}
	if opts.Retry.BaseDelay <= 0 {
		opts.Retry.BaseDelay = 200 * time.Millisecond
	}
	if opts.ProviderConcurrency <= 0 {
		opts.ProviderConcurrency = 4
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}

	return &App{
		logger:      logger,
		store:       store,
		connections: connections,
		providers:   providers,
		hub:         hub,
		retry:       opts.Retry,
		callTimeout: opts.CallTimeout,
		sems:        newSemaphores(opts.ProviderConcurrency),
	}
}

func (a *App) Health(_ context.Context) []byte {
	return []byte("OK")
}

func (a *App) Version(_ context.Context) []byte {
	return []byte("1.0.0")
}

// GetMeeting returns the meeting with its participants.
func (a *App) GetMeeting(ctx context.Context, id uuid.UUID) (*GetMeetingResponse, error) {
	meeting, err := a.store.GetMeeting(ctx, id)
	if err != nil {
		return nil, err
	}

	participants, err := a.store.ListParticipants(ctx, id)
	if err != nil {
		return nil, err
	}

	return &GetMeetingResponse{Meeting: meeting, Participants: participants}, nil
}

// ConnectCalendar registers a user's calendar provider connection.
func (a *App) ConnectCalendar(ctx context.Context, req ConnectCalendarRequest) (*internalprovider.Connection, error) {
	if req.UserID == uuid.Nil {
		return nil, internalmeetings.Invalid("userId", "required")
	}
	if _, ok := a.providers.Get(req.Provider); !ok {
		return nil, internalmeetings.Invalid("provider", "unknown provider "+req.Provider)
	}
	if req.AccessToken == "" {
		return nil, internalmeetings.Invalid("accessToken", "required")
	}

	conn := internalprovider.Connection{
		UserID:         req.UserID,
		Provider:       req.Provider,
		AccessToken:    req.AccessToken,
		RefreshToken:   req.RefreshToken,
		TokenExpiresAt: req.TokenExpiresAt,
		Email:          req.Email,
		Active:         true,
	}

	if err := a.connections.Save(ctx, conn); err != nil {
		return nil, err
	}

	return &conn, nil
}

// callWithRetry runs one provider call with a bounded timeout per attempt.
// Transient failures back off exponentially up to the attempt bound; auth and
// permanent failures return immediately.
func (a *App) callWithRetry(ctx context.Context, call func(context.Context) error) error {
	delay := a.retry.BaseDelay

	for attempt := 1; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
		err := call(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		if internalprovider.KindOf(err) != internalprovider.KindTransient || attempt >= a.retry.MaxAttempts {
			return err
		}

		time.Sleep(delay)
		delay *= 2
	}
}

// updateMeetingWithRetry re-reads and replays the mutation on version
// conflict, so structural updates racing each other serialize instead of
// overwriting.
func (a *App) updateMeetingWithRetry(
	ctx context.Context,
	id uuid.UUID,
	mutate internalstore.MeetingMutation,
) (*internalmeetings.Meeting, error) {
	var lastErr error

	for attempt := 0; attempt < meetingUpdateRetries; attempt++ {
		meeting, err := a.store.GetMeeting(ctx, id)
		if err != nil {
			return nil, err
		}

		updated, err := a.store.UpdateMeeting(ctx, id, meeting.Version, mutate)
		if err == nil {
			return updated, nil
		}
		if err != internalmeetings.ErrVersionConflict {
			return nil, err
		}

		lastErr = err
	}

	return nil, lastErr
}

// semaphores bounds in-flight calls per provider so fan-out respects
// external rate limits.
type semaphores struct {
	mu    sync.Mutex
	limit int
	slots map[string]chan struct{}
}

func newSemaphores(limit int) *semaphores {
	return &semaphores{
		limit: limit,
		slots: make(map[string]chan struct{}),
	}
}

// acquire blocks until a slot for the provider frees up and returns the
// release function.
func (s *semaphores) acquire(providerID string) func() {
	s.mu.Lock()
	slot, ok := s.slots[providerID]
	if !ok {
		slot = make(chan struct{}, s.limit)
		s.slots[providerID] = slot
	}
	s.mu.Unlock()

	slot <- struct{}{}
	return func() { <-slot }
}
