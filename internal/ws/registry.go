package ws

import (
	"sync"

	"github.com/google/uuid"

	"teamhub-backend/pkg/metrics"
)

const registryShardCount = 16

// ConnectionRegistry tracks which users have live websocket connections.
// A user may hold several connections at once (multiple tabs, devices);
// presence transitions fire only on the first connection and the last
// disconnect. Sharded by user id to keep lock contention low.
type ConnectionRegistry struct {
	shards [registryShardCount]registryShard
}

type registryShard struct {
	mu    sync.RWMutex
	users map[uuid.UUID]map[string]bool
}

// NewConnectionRegistry creates a new ConnectionRegistry
func NewConnectionRegistry() *ConnectionRegistry {
	r := &ConnectionRegistry{}
	for i := range r.shards {
		r.shards[i].users = make(map[uuid.UUID]map[string]bool)
	}
	return r
}

func (r *ConnectionRegistry) shard(userID uuid.UUID) *registryShard {
	return &r.shards[int(userID[0])%registryShardCount]
}

// Register records a connection for a user and reports whether the user
// just came online (first live connection)
func (r *ConnectionRegistry) Register(userID uuid.UUID, connID string) (cameOnline bool) {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[userID]
	if !ok {
		conns = make(map[string]bool)
		s.users[userID] = conns
		metrics.ChatUsersOnline.Inc()
	}
	conns[connID] = true
	return !ok
}

// Unregister drops a connection for a user and reports whether the user
// just went offline (no live connections remain)
func (r *ConnectionRegistry) Unregister(userID uuid.UUID, connID string) (wentOffline bool) {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[userID]
	if !ok {
		return false
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(s.users, userID)
		metrics.ChatUsersOnline.Dec()
		return true
	}
	return false
}

// IsOnline reports whether a user has at least one live connection
func (r *ConnectionRegistry) IsOnline(userID uuid.UUID) bool {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users[userID]) > 0
}

// OnlineCount returns the number of distinct users online
func (r *ConnectionRegistry) OnlineCount() int {
	count := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		count += len(s.users)
		s.mu.RUnlock()
	}
	return count
}

// OnlineUsers returns the ids of all users with a live connection
func (r *ConnectionRegistry) OnlineUsers() []uuid.UUID {
	var users []uuid.UUID
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for userID := range s.users {
			users = append(users, userID)
		}
		s.mu.RUnlock()
	}
	return users
}
