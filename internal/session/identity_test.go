package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveConversationIDCommutative(t *testing.T) {
	ab, err := DeriveConversationID("alice", "bob")
	require.NoError(t, err)
	ba, err := DeriveConversationID("bob", "alice")
	require.NoError(t, err)

	assert.Equal(t, "alicebob", ab)
	assert.Equal(t, ab, ba)
}

func TestDeriveConversationIDOrdersLexicographically(t *testing.T) {
	id, err := DeriveConversationID("zed", "amy")
	require.NoError(t, err)
	assert.Equal(t, "amyzed", id)
}

func TestDeriveConversationIDEmptyParticipant(t *testing.T) {
	_, err := DeriveConversationID("", "bob")
	assert.ErrorIs(t, err, ErrEmptyParticipant)

	_, err = DeriveConversationID("alice", "")
	assert.ErrorIs(t, err, ErrEmptyParticipant)
}

func TestDeriveConversationIDRejectsSelf(t *testing.T) {
	_, err := DeriveConversationID("alice", "alice")
	assert.ErrorIs(t, err, ErrSelfConversation)
}
