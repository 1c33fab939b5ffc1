package ws

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_OnlineTransitions(t *testing.T) {
	registry := NewConnectionRegistry()
	userID := uuid.New()

	assert.False(t, registry.IsOnline(userID))

	// First connection brings the user online
	assert.True(t, registry.Register(userID, "conn-1"))
	assert.True(t, registry.IsOnline(userID))

	// Second connection does not fire another transition
	assert.False(t, registry.Register(userID, "conn-2"))

	// Dropping one of two connections keeps the user online
	assert.False(t, registry.Unregister(userID, "conn-1"))
	assert.True(t, registry.IsOnline(userID))

	// Dropping the last connection takes the user offline
	assert.True(t, registry.Unregister(userID, "conn-2"))
	assert.False(t, registry.IsOnline(userID))
}

func TestRegistry_UnregisterUnknownConnection(t *testing.T) {
	registry := NewConnectionRegistry()

	assert.False(t, registry.Unregister(uuid.New(), "ghost"))
}

func TestRegistry_OnlineCount(t *testing.T) {
	registry := NewConnectionRegistry()

	a, b := uuid.New(), uuid.New()
	registry.Register(a, "a-1")
	registry.Register(a, "a-2")
	registry.Register(b, "b-1")

	assert.Equal(t, 2, registry.OnlineCount())
	assert.ElementsMatch(t, []uuid.UUID{a, b}, registry.OnlineUsers())

	registry.Unregister(a, "a-1")
	registry.Unregister(a, "a-2")
	assert.Equal(t, 1, registry.OnlineCount())
}

func TestRegistry_ConcurrentRegisterUnregister(t *testing.T) {
	registry := NewConnectionRegistry()
	userID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			connID := fmt.Sprintf("conn-%d", n)
			registry.Register(userID, connID)
			registry.Unregister(userID, connID)
		}(i)
	}
	wg.Wait()

	assert.False(t, registry.IsOnline(userID))
	assert.Equal(t, 0, registry.OnlineCount())
}
