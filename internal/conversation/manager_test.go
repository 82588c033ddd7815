package conversation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAssignsIDsAndTimestamps(t *testing.T) {
	m := NewManager(10, nil, nil)

	msg := m.AddUser("你好")
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.Equal(t, RoleUser, msg.Role)

	other := m.AddAssistant("你好!")
	assert.NotEqual(t, msg.ID, other.ID)
}

func TestHistoryBoundEvictsOldestNonSystem(t *testing.T) {
	m := NewManager(3, nil, nil)
	m.AddSystem("system prompt")
	m.AddUser("one")
	m.AddAssistant("two")
	m.AddUser("three")

	msgs := m.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, "two", msgs[1].Content)
	assert.Equal(t, "three", msgs[2].Content)
}

func TestRecentProjectsLastNTurns(t *testing.T) {
	m := NewManager(10, nil, nil)
	for i := 1; i <= 5; i++ {
		m.AddUser(fmt.Sprintf("turn %d", i))
	}

	recent := m.Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, "turn 3", recent[0].Content)
	assert.Equal(t, "turn 5", recent[2].Content)
	assert.Equal(t, "user", recent[0].Role)
}

func TestRecentWithShortHistory(t *testing.T) {
	m := NewManager(10, nil, nil)
	m.AddUser("only one")

	assert.Len(t, m.Recent(3), 1)
}

func TestClearKeepsSystemMessages(t *testing.T) {
	m := NewManager(10, nil, nil)
	m.AddSystem("rules")
	m.AddUser("hello")
	m.AddAssistant("hi")

	m.Clear()
	msgs := m.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleSystem, msgs[0].Role)
}

func TestSummaryCounts(t *testing.T) {
	m := NewManager(10, nil, nil)
	m.AddSystem("rules")
	m.AddUser("q1")
	m.AddAssistant("a1")
	m.AddUser("q2")

	s := m.Summary()
	assert.Equal(t, m.ID(), s.ConversationID)
	assert.Equal(t, 4, s.MessageCount)
	assert.Equal(t, 2, s.UserMessages)
	assert.Equal(t, 1, s.AssistantMessages)
}
