package provider

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Connection is one user's link to one external calendar system. Read-only
// for orchestrators; only token refresh rewrites it.
type Connection struct {
	UserID         uuid.UUID `json:"userId"`
	Provider       string    `json:"provider"`
	AccessToken    string    `json:"-"`
	RefreshToken   string    `json:"-"`
	TokenExpiresAt time.Time `json:"tokenExpiresAt"`
	Email          string    `json:"email"`
	Active         bool      `json:"active"`
}

// TokenExpired reports whether the access token needs a refresh before use.
func (c Connection) TokenExpired(now time.Time) bool {
	return !c.TokenExpiresAt.IsZero() && c.TokenExpiresAt.Before(now)
}

// ConnectionStore resolves which providers a user is connected to.
type ConnectionStore interface {
	// ConnectionsFor returns the user's active connections, one per provider.
	ConnectionsFor(ctx context.Context, userID uuid.UUID) ([]Connection, error)

	// Save upserts a connection keyed by (user, provider).
	Save(ctx context.Context, conn Connection) error
}

type connectionKey struct {
	userID   uuid.UUID
	provider string
}

// MemoryConnections is the in-process ConnectionStore.
type MemoryConnections struct {
	mu          sync.RWMutex
	connections map[connectionKey]Connection
}

func NewMemoryConnections() *MemoryConnections {
	return &MemoryConnections{connections: make(map[connectionKey]Connection)}
}

func (s *MemoryConnections) ConnectionsFor(_ context.Context, userID uuid.UUID) ([]Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Connection
	for key, conn := range s.connections {
		if key.userID == userID && conn.Active {
			result = append(result, conn)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Provider < result[j].Provider
	})

	return result, nil
}

func (s *MemoryConnections) Save(_ context.Context, conn Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connections[connectionKey{userID: conn.UserID, provider: conn.Provider}] = conn
	return nil
}
