// Package rpc exposes chain and game state via a JSON-RPC 2.0 HTTP endpoint
// and streams emitted events over a websocket.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolelom/propchain/core"
)

// Version is the only accepted jsonrpc field value.
const Version = "2.0"

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// NewRequest marshals params into a request envelope.
func NewRequest(id any, method string, params any) (Request, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Request{}, fmt.Errorf("%s params: %w", method, err)
	}
	return Request{JSONRPC: Version, ID: id, Method: method, Params: raw}, nil
}

// Response is a JSON-RPC 2.0 response envelope. Result stays raw on the
// client side; see ClientResponse.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// ClientResponse is Response as decoded by a caller.
type ClientResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// Error is a JSON-RPC error object. It doubles as a Go error on the client.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeUnauthorized   = -32000
	CodeNotFound       = -32001
)

// paramsError marks a malformed request as opposed to a failed lookup.
type paramsError struct{ msg string }

func (e *paramsError) Error() string { return e.msg }

func badParams(format string, args ...any) error {
	return &paramsError{msg: fmt.Sprintf(format, args...)}
}

// codeFor maps a method error to its JSON-RPC code.
func codeFor(err error) int {
	var pe *paramsError
	switch {
	case errors.As(err, &pe):
		return CodeInvalidParams
	case errors.Is(err, core.ErrNotFound):
		return CodeNotFound
	default:
		return CodeInternalError
	}
}

func errResponse(id any, code int, msg string) Response {
	return Response{JSONRPC: Version, ID: id, Error: &Error{Code: code, Message: msg}}
}

func okResponse(id, result any) Response {
	return Response{JSONRPC: Version, ID: id, Result: result}
}
