package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestToggleReaction(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	m := &Message{}

	added := m.ToggleReaction("👍", alice)
	assert.True(t, added)
	assert.Equal(t, 1, m.Reactions["👍"].Count)

	added = m.ToggleReaction("👍", bob)
	assert.True(t, added)
	assert.Equal(t, 2, m.Reactions["👍"].Count)

	added = m.ToggleReaction("👍", alice)
	assert.False(t, added)
	assert.Equal(t, 1, m.Reactions["👍"].Count)
	assert.Equal(t, []uuid.UUID{bob}, m.Reactions["👍"].Users)

	// last user leaving drops the bucket entirely
	added = m.ToggleReaction("👍", bob)
	assert.False(t, added)
	assert.NotContains(t, m.Reactions, "👍")
}

func TestIsReadBy(t *testing.T) {
	reader := uuid.New()
	m := &Message{ReadBy: []ReadReceipt{{UserID: reader}}}

	assert.True(t, m.IsReadBy(reader))
	assert.False(t, m.IsReadBy(uuid.New()))
}

func TestMessageKindIsValid(t *testing.T) {
	assert.True(t, MessageText.IsValid())
	assert.True(t, MessageSystem.IsValid())
	assert.False(t, MessageKind("gif").IsValid())
	assert.False(t, MessageKind("").IsValid())
}
