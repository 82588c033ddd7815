// Package conversation stores the dialogue history that feeds the model
// analyzer's context window and survives restarts through a small SQLite
// store.
package conversation

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rvwalker/concierge/internal/llm"
)

// Roles of a conversation message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of dialogue.
type Message struct {
	ID        string
	Role      string
	Content   string
	CreatedAt time.Time
}

// Summary describes a conversation at a glance.
type Summary struct {
	ConversationID    string
	MessageCount      int
	UserMessages      int
	AssistantMessages int
}

// Manager keeps a bounded in-memory dialogue history. When a Store is
// attached, every message is also appended there and the most recent
// history is reloaded on construction; store failures are logged and never
// block the conversation.
type Manager struct {
	id     string
	max    int
	msgs   []Message
	store  *Store
	logger *log.Logger
}

// NewManager creates a manager bounded to maxHistory messages. store may be
// nil for a purely in-memory conversation.
func NewManager(maxHistory int, store *Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(os.Stderr, "conversation: ", log.LstdFlags)
	}
	if maxHistory <= 0 {
		maxHistory = 20
	}

	m := &Manager{
		id:     uuid.New().String(),
		max:    maxHistory,
		store:  store,
		logger: logger,
	}

	if store != nil {
		history, err := store.History(context.Background(), maxHistory)
		if err != nil {
			logger.Printf("failed to load history: %v", err)
		} else {
			m.msgs = history
		}
	}
	return m
}

// ID returns the conversation id.
func (m *Manager) ID() string { return m.id }

// AddUser appends a user message.
func (m *Manager) AddUser(content string) Message { return m.add(RoleUser, content) }

// AddAssistant appends an assistant message.
func (m *Manager) AddAssistant(content string) Message { return m.add(RoleAssistant, content) }

// AddSystem appends a system message. System messages are never evicted by
// the history bound.
func (m *Manager) AddSystem(content string) Message { return m.add(RoleSystem, content) }

func (m *Manager) add(role, content string) Message {
	msg := Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	m.msgs = append(m.msgs, msg)

	// Past the bound, drop the oldest non-system message.
	if len(m.msgs) > m.max {
		for i, old := range m.msgs {
			if old.Role != RoleSystem {
				m.msgs = append(m.msgs[:i], m.msgs[i+1:]...)
				break
			}
		}
	}

	if m.store != nil {
		if err := m.store.Append(context.Background(), m.id, msg); err != nil {
			m.logger.Printf("failed to persist message: %v", err)
		}
	}
	return msg
}

// Messages returns a copy of the current history.
func (m *Manager) Messages() []Message {
	return append([]Message(nil), m.msgs...)
}

// Recent returns at most n of the most recent turns reduced to role and
// content, the projection the model analyzer consumes.
func (m *Manager) Recent(n int) []llm.Message {
	msgs := m.msgs
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]llm.Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}

// Clear drops the history, keeping system messages.
func (m *Manager) Clear() {
	kept := m.msgs[:0]
	for _, msg := range m.msgs {
		if msg.Role == RoleSystem {
			kept = append(kept, msg)
		}
	}
	m.msgs = kept
}

// Summary reports message counts for the conversation.
func (m *Manager) Summary() Summary {
	s := Summary{ConversationID: m.id, MessageCount: len(m.msgs)}
	for _, msg := range m.msgs {
		switch msg.Role {
		case RoleUser:
			s.UserMessages++
		case RoleAssistant:
			s.AssistantMessages++
		}
	}
	return s
}
