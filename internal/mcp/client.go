package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"time"
)

// protocolVersion is the MCP protocol revision this client speaks.
const protocolVersion = "2024-11-05"

// closeGrace is how long Close waits for a tool process to exit after its
// stdin is closed before killing it.
const closeGrace = 3 * time.Second

// Transport is one bidirectional framed channel to a tool process. Each
// Send writes one request line; each Recv blocks for the next response
// line. The stdio implementation is the production one; tests substitute
// in-memory pipes.
type Transport interface {
	Send(line []byte) error
	Recv() ([]byte, error)
	Close() error
}

// stdioTransport runs a tool as a child process and frames JSON-RPC over
// its stdin/stdout. The child's stderr is passed through to our stderr so
// tool diagnostics stay visible without touching the protocol stream.
type stdioTransport struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	scanner *bufio.Scanner
}

func newStdioTransport(command string, args []string) (*stdioTransport, error) {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: failed to open stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("mcp: failed to start %q: %w", command, err)
	}

	scanner := bufio.NewScanner(stdout)
	// Allow large payloads (up to 4 MB per response line).
	const maxBuf = 4 * 1024 * 1024
	scanner.Buffer(make([]byte, maxBuf), maxBuf)

	return &stdioTransport{cmd: cmd, stdin: stdin, scanner: scanner}, nil
}

func (t *stdioTransport) Send(line []byte) error {
	if _, err := t.stdin.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("mcp: write request: %w", err)
	}
	return nil
}

func (t *stdioTransport) Recv() ([]byte, error) {
	for t.scanner.Scan() {
		line := t.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		// Copy out: the scanner reuses its buffer on the next Scan.
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
	if err := t.scanner.Err(); err != nil {
		return nil, fmt.Errorf("mcp: read response: %w", err)
	}
	return nil, io.EOF
}

// Close shuts the tool down by closing its stdin and waiting briefly for a
// clean exit, killing the process if it lingers. The process handle is
// released in every path.
func (t *stdioTransport) Close() error {
	_ = t.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- t.cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(closeGrace):
		_ = t.cmd.Process.Kill()
		return <-done
	}
}

// Session is one live channel to a tool process, reused across invocations.
// Calls are serialised by a mutex: one in-flight request per underlying
// channel, in request order. Concurrent callers queue on the lock.
type Session struct {
	ToolName string

	mu         sync.Mutex
	transport  Transport
	nextID     int64
	operations map[string]struct{}
	opOrder    []string
	logger     *log.Logger
	closed     bool
}

// NewSession wraps an established transport without performing the
// handshake. Production code uses Open; tests inject pipe transports here.
func NewSession(toolName string, transport Transport, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.New(os.Stderr, "mcp-client: ", log.LstdFlags)
	}
	return &Session{
		ToolName:   toolName,
		transport:  transport,
		operations: make(map[string]struct{}),
		logger:     logger,
	}
}

// Open spawns the tool process and performs the protocol handshake:
// initialize, the initialized notification, then tools/list to enumerate
// the operations the tool advertises.
func Open(ctx context.Context, toolName, command string, args []string, logger *log.Logger) (*Session, error) {
	transport, err := newStdioTransport(command, args)
	if err != nil {
		return nil, err
	}

	s := NewSession(toolName, transport, logger)
	if err := s.Handshake(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Handshake performs the initialize exchange and operation enumeration.
func (s *Session) Handshake(ctx context.Context) error {
	var initResult InitializeResult
	err := s.call(ctx, "initialize", InitializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]interface{}{},
		ClientInfo:      ClientInfo{Name: "concierge", Version: "1.0.0"},
	}, &initResult)
	if err != nil {
		return fmt.Errorf("mcp: initialize %s: %w", s.ToolName, err)
	}

	if err := s.notify("notifications/initialized", nil); err != nil {
		return fmt.Errorf("mcp: initialized notification %s: %w", s.ToolName, err)
	}

	var listResult ToolsListResult
	if err := s.call(ctx, "tools/list", struct{}{}, &listResult); err != nil {
		return fmt.Errorf("mcp: tools/list %s: %w", s.ToolName, err)
	}

	s.mu.Lock()
	s.operations = make(map[string]struct{}, len(listResult.Tools))
	s.opOrder = s.opOrder[:0]
	for _, t := range listResult.Tools {
		s.operations[t.Name] = struct{}{}
		s.opOrder = append(s.opOrder, t.Name)
	}
	s.mu.Unlock()

	s.logger.Printf("connected to %s (%s), operations: %v",
		s.ToolName, initResult.ServerInfo.Name, s.opOrder)
	return nil
}

// Operations returns the operation names the tool advertised, in listing
// order.
func (s *Session) Operations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.opOrder...)
}

// Supports reports whether the tool advertised the named operation.
func (s *Session) Supports(operation string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.operations[operation]
	return ok
}

// CallTool invokes one operation and returns the first content item's text.
// A remote error flag, an error frame, or a closed channel all surface as
// errors; the call is never retried. There is no cancellation of a request
// already written: a caller abandoning the result leaves the response to be
// drained by the next call's id matching.
func (s *Session) CallTool(ctx context.Context, operation string, params map[string]interface{}) (string, error) {
	if params == nil {
		params = map[string]interface{}{}
	}

	var result ToolCallResult
	err := s.call(ctx, "tools/call", ToolCallParams{Name: operation, Arguments: params}, &result)
	if err != nil {
		return "", fmt.Errorf("mcp: call %s.%s: %w", s.ToolName, operation, err)
	}

	if len(result.Content) == 0 {
		if result.IsError {
			return "", fmt.Errorf("mcp: %s.%s reported an error with no content", s.ToolName, operation)
		}
		return "", nil
	}
	if result.IsError {
		return "", fmt.Errorf("mcp: %s.%s failed: %s", s.ToolName, operation, result.Content[0].Text)
	}
	return result.Content[0].Text, nil
}

// call sends one request and blocks for the response with the matching id,
// skipping any notification frames the tool emits in between.
func (s *Session) call(ctx context.Context, method string, params, result interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("session closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.nextID++
	id := s.nextID

	data, err := json.Marshal(JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if err := s.transport.Send(data); err != nil {
		return err
	}

	for {
		line, err := s.transport.Recv()
		if err != nil {
			return fmt.Errorf("channel closed: %w", err)
		}

		var resp struct {
			JSONRPC string          `json:"jsonrpc"`
			Result  json.RawMessage `json:"result"`
			Error   *JSONRPCError   `json:"error"`
			ID      *float64        `json:"id"`
		}
		if err := json.Unmarshal(line, &resp); err != nil {
			return fmt.Errorf("malformed response: %w", err)
		}

		// Frames without an id are server notifications; frames with a
		// different id belong to an abandoned earlier call. Skip both.
		if resp.ID == nil || int64(*resp.ID) != id {
			continue
		}

		if resp.Error != nil {
			return fmt.Errorf("remote error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("malformed result: %w", err)
			}
		}
		return nil
	}
}

// notify sends a notification frame, which expects no response.
func (s *Session) notify(method string, params interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return s.transport.Send(data)
}

// Close tears the session down and releases the process handle. Safe to
// call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.transport.Close()
}
