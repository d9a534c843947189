// Package rpc implements the JSON-RPC 2.0 over HTTP transport used by the
// remote dataset store and the remote lens engine.
//
// Each call is a single HTTP POST carrying one request object. Validation
// errors raised by the remote side are carried in the error data and
// reconstructed on the client so that errors.Is keeps working across the wire.
package rpc

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeValidation marks an application-level validation failure. The
	// error data carries {"code": <validation code>}.
	CodeValidation = -32000

	// CodeNotFound marks a missing record.
	CodeNotFound = -32004
)

// Request represents a JSON-RPC 2.0 request
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC 2.0 error
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("JSON-RPC error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// requestIDCounter is used to generate unique request IDs
var requestIDCounter uint64

// newRequestID generates a unique request ID as a string to avoid type mismatch issues
func newRequestID() string {
	return fmt.Sprintf("%d", atomic.AddUint64(&requestIDCounter, 1))
}

// newRequest creates a new JSON-RPC request
func newRequest(method string, params interface{}) (*Request, error) {
	var paramsJSON json.RawMessage
	if params != nil {
		var err error
		paramsJSON, err = json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
	}

	return &Request{
		JSONRPC: "2.0",
		ID:      newRequestID(),
		Method:  method,
		Params:  paramsJSON,
	}, nil
}
