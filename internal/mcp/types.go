// Package mcp implements the client side of the tool process protocol:
// line-delimited JSON-RPC 2.0 over the stdin/stdout of a spawned tool
// process, with the standard initialize / tools-list / tools-call exchange.
package mcp

// JSONRPCRequest represents a JSON-RPC 2.0 request. A nil ID marks a
// notification, which expects no response frame.
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"` // must be "2.0"
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      interface{} `json:"id,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
	ID      interface{}   `json:"id"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON-RPC error codes.
const (
	ErrCodeParseError     = -32700 // invalid JSON
	ErrCodeInvalidRequest = -32600 // invalid request object
	ErrCodeMethodNotFound = -32601 // method not found
	ErrCodeInvalidParams  = -32602 // invalid method parameters
	ErrCodeInternalError  = -32603 // internal JSON-RPC error
	ErrCodeServerError    = -32000 // server error
)

// ---------------------------------------------------------------------------
// Standard MCP protocol types (initialize / tools/list / tools/call)
// ---------------------------------------------------------------------------

// InitializeParams holds the parameters this client sends in the initialize
// request.
type InitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ClientInfo      ClientInfo             `json:"clientInfo"`
}

// ClientInfo identifies this client to the tool process.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerInfo identifies the tool process.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the tool's response to the initialize request.
type InitializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      ServerInfo             `json:"serverInfo"`
}

// Tool describes one operation exposed via tools/list.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// ToolsListResult is the response to a tools/list request.
type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

// ToolCallParams holds the parameters sent in a tools/call request.
type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolCallContent is a single content block in a tool call response. Only
// the first text block is consumed by the router.
type ToolCallContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolCallResult is the response to a tools/call request.
type ToolCallResult struct {
	Content []ToolCallContent `json:"content"`
	IsError bool              `json:"isError,omitempty"`
}
