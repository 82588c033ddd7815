// Package router dispatches resolved intents to tool processes. It owns the
// tool registry (which tool is started how), the per-tool sessions, and the
// mapping from an intent to a concrete operation call.
package router

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rvwalker/concierge/internal/intent"
	"github.com/rvwalker/concierge/internal/mcp"
	"github.com/rvwalker/concierge/internal/state"
)

// ToolDefinition describes how to start one tool process.
type ToolDefinition struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type registryFile struct {
	Tools []ToolDefinition `yaml:"tools"`
}

// DefaultDefinitions returns the built-in tool registry used when no
// registry file is present.
func DefaultDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{Name: "weather", Command: "python3", Args: []string{"tools/weatherMCP.py"}},
		{Name: "market", Command: "python3", Args: []string{"tools/marketMCP.py"}},
		{Name: "area_search", Command: "python3", Args: []string{"tools/areaSearchMCP.py"}},
	}
}

// LoadDefinitions reads the tool registry from a YAML file. A missing file
// falls back to the built-in registry; a malformed one is an error.
func LoadDefinitions(path string) ([]ToolDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultDefinitions(), nil
		}
		return nil, fmt.Errorf("router: failed to read registry %s: %w", path, err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("router: failed to parse registry %s: %w", path, err)
	}
	if len(file.Tools) == 0 {
		return nil, fmt.Errorf("router: registry %s defines no tools", path)
	}
	for _, def := range file.Tools {
		if def.Name == "" || def.Command == "" {
			return nil, fmt.Errorf("router: registry %s has a tool without name or command", path)
		}
	}
	return file.Tools, nil
}

// Status classifies the outcome of a routed call.
type Status int

const (
	StatusSuccess Status = iota
	StatusError
	StatusPending
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusPending:
		return "pending"
	case StatusNotFound:
		return "not_found"
	default:
		return "error"
	}
}

// ToolResult is the outcome of routing one intent.
type ToolResult struct {
	Status  Status
	Data    string
	Message string
}

// toolSession is the slice of mcp.Session the router needs. Tests inject
// fakes here.
type toolSession interface {
	Supports(operation string) bool
	Operations() []string
	CallTool(ctx context.Context, operation string, params map[string]interface{}) (string, error)
	Close() error
}

// sessionOpener spawns and handshakes a session for a tool definition.
type sessionOpener func(ctx context.Context, def ToolDefinition) (toolSession, error)

// Router maps intents to tool calls. Sessions are opened lazily on first
// use and reused until Cleanup; a tool that fails to start is retried on
// the next intent that needs it.
type Router struct {
	mu       sync.Mutex
	defs     map[string]ToolDefinition
	sessions map[string]toolSession
	open     sessionOpener
	state    *state.Manager
	logger   *log.Logger
}

// New creates a router over the given tool definitions. st supplies the
// ambient location and venue used to fill in missing parameters; it may be
// nil.
func New(defs []ToolDefinition, st *state.Manager, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.New(os.Stderr, "router: ", log.LstdFlags)
	}
	byName := make(map[string]ToolDefinition, len(defs))
	for _, def := range defs {
		byName[def.Name] = def
	}
	return &Router{
		defs:     byName,
		sessions: make(map[string]toolSession),
		open: func(ctx context.Context, def ToolDefinition) (toolSession, error) {
			return mcp.Open(ctx, def.Name, def.Command, def.Args, logger)
		},
		state:  st,
		logger: logger,
	}
}

// newWithOpener is the test constructor.
func newWithOpener(defs []ToolDefinition, st *state.Manager, open sessionOpener, logger *log.Logger) *Router {
	r := New(defs, st, logger)
	r.open = open
	return r
}

// Initialize eagerly connects every registered tool. Failures are logged
// and left for the lazy path to retry; a cold start with tools down must
// not take the assistant down with it.
func (r *Router) Initialize(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, def := range r.defs {
		if _, ok := r.sessions[name]; ok {
			continue
		}
		sess, err := r.open(ctx, def)
		if err != nil {
			r.logger.Printf("failed to start tool %s: %v", name, err)
			continue
		}
		r.sessions[name] = sess
	}
}

// Route dispatches the intent to its tool. An intent naming an unregistered
// tool resolves to not_found without any connection attempt.
func (r *Router) Route(ctx context.Context, in intent.Intent) ToolResult {
	if in.ToolName == "" {
		return ToolResult{Status: StatusNotFound, Message: "intent carries no tool"}
	}

	r.mu.Lock()
	def, registered := r.defs[in.ToolName]
	if !registered {
		r.mu.Unlock()
		return ToolResult{Status: StatusNotFound, Message: fmt.Sprintf("tool %q is not registered", in.ToolName)}
	}

	sess, ok := r.sessions[in.ToolName]
	if !ok {
		var err error
		sess, err = r.open(ctx, def)
		if err != nil {
			r.mu.Unlock()
			r.logger.Printf("failed to start tool %s: %v", in.ToolName, err)
			return ToolResult{Status: StatusError, Message: fmt.Sprintf("tool %s unavailable: %v", in.ToolName, err)}
		}
		r.sessions[in.ToolName] = sess
	}
	r.mu.Unlock()

	var ambient state.Context
	if r.state != nil {
		ambient = r.state.Context()
	}
	operation, params := buildCall(in, ambient)

	if !sess.Supports(operation) {
		return ToolResult{
			Status:  StatusError,
			Message: fmt.Sprintf("tool %s does not support %s (has %v)", in.ToolName, operation, sess.Operations()),
		}
	}

	data, err := sess.CallTool(ctx, operation, params)
	if err != nil {
		return ToolResult{Status: StatusError, Message: err.Error()}
	}
	return ToolResult{Status: StatusSuccess, Data: data}
}

// Cleanup closes every open session. Close failures are logged per tool so
// one stuck process cannot block the rest of shutdown.
func (r *Router) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, sess := range r.sessions {
		if err := sess.Close(); err != nil {
			r.logger.Printf("failed to close tool %s: %v", name, err)
		}
		delete(r.sessions, name)
	}
}
