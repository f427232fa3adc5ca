// Package protocol serves listing generation as line-delimited JSON-RPC 2.0.
package protocol

import "encoding/json"

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"` // string or number; nil for notifications
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Application error codes.
const (
	CodeGenerateFailed = -32000
	CodeTaskNotFound   = -32001
	CodeRunNotFound    = -32002
	CodeHistoryOff     = -32003
)

const (
	MethodGigGenerate = "gig.generate"
	MethodGigValidate = "gig.validate"

	MethodGraphPlan = "graph.plan"

	MethodTasksList     = "tasks.list"
	MethodTasksDescribe = "tasks.describe"

	MethodRunsList   = "runs.list"
	MethodRunsGet    = "runs.get"
	MethodRunsEvents = "runs.events"
)

// NewResponse creates a successful response.
func NewResponse(id any, result any) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id any, code int, message string, data any) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// GenerateParams holds parameters for "gig.generate" and "gig.validate".
type GenerateParams struct {
	Keyword string `json:"keyword"`
}

// ValidateResult is the result of "gig.validate".
type ValidateResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// TaskInfo describes a task in the tasks.list response.
type TaskInfo struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	DependsOn   []string `json:"depends_on,omitempty"`
	Fields      []string `json:"fields,omitempty"`
}

// TaskParams holds parameters for "tasks.describe".
type TaskParams struct {
	ID string `json:"id"`
}

// RunsListParams holds parameters for "runs.list".
type RunsListParams struct {
	Limit int `json:"limit,omitempty"`
}

// RunParams holds parameters for "runs.get" and "runs.events".
type RunParams struct {
	RunID string `json:"run_id"`
}
