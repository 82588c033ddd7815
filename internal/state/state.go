// Package state holds the ambient context the core consumes: where the user
// is, and the closed set of preferences other components read. Mutation goes
// through named setters only; UI state and its persistence live in the host
// application, not here.
package state

import "sync"

// Context is the ambient situational information used to fill in parameters
// an intent does not carry itself.
type Context struct {
	Location string
	Venue    string
}

// Preferences is the closed set of user preferences the core reads.
type Preferences struct {
	SystemPrompt string
	MaxHistory   int
	EnabledTools []string
}

// ContextListener observes context changes.
type ContextListener func(old, updated Context)

// Manager owns the ambient state. All accessors are safe for concurrent
// use; snapshots are returned by value so callers never observe a torn
// update.
type Manager struct {
	mu        sync.RWMutex
	ctx       Context
	prefs     Preferences
	listeners []ContextListener
}

// NewManager creates a manager with the deployment defaults: the venue the
// assistant is installed in and the conversational preferences the original
// deployment shipped with.
func NewManager() *Manager {
	return &Manager{
		ctx: Context{
			Location: "重庆市永川区",
			Venue:    "时代天街",
		},
		prefs: Preferences{
			SystemPrompt: "你是一个有用的助手。",
			MaxHistory:   20,
			EnabledTools: []string{"weather", "market", "area_search"},
		},
	}
}

// Context returns a snapshot of the ambient context.
func (m *Manager) Context() Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctx
}

// Preferences returns a snapshot of the preferences.
func (m *Manager) Preferences() Preferences {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.prefs
	p.EnabledTools = append([]string(nil), p.EnabledTools...)
	return p
}

// SetLocation updates the current location and notifies listeners.
func (m *Manager) SetLocation(location string) {
	m.updateContext(func(c *Context) { c.Location = location })
}

// SetVenue updates the current venue and notifies listeners.
func (m *Manager) SetVenue(venue string) {
	m.updateContext(func(c *Context) { c.Venue = venue })
}

// SetSystemPrompt replaces the system prompt preference.
func (m *Manager) SetSystemPrompt(prompt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs.SystemPrompt = prompt
}

// SetMaxHistory replaces the conversation history bound.
func (m *Manager) SetMaxHistory(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs.MaxHistory = n
}

// SetEnabledTools replaces the enabled tool list.
func (m *Manager) SetEnabledTools(tools []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs.EnabledTools = append([]string(nil), tools...)
}

// OnContextChange registers a listener invoked after every context update.
// Listeners run synchronously on the mutating goroutine.
func (m *Manager) OnContextChange(fn ContextListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) updateContext(mutate func(*Context)) {
	m.mu.Lock()
	old := m.ctx
	mutate(&m.ctx)
	updated := m.ctx
	listeners := append([]ContextListener(nil), m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(old, updated)
	}
}
