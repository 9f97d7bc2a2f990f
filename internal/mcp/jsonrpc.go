// ABOUTME: JSON-RPC 2.0 envelope types shared by the stdio frontend and backend transports.
// ABOUTME: Distinguishes requests from notifications by the presence of the id member.

package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version is the only JSON-RPC version spoken on either side of the gateway.
const Version = "2.0"

// Standard JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// nullID is the id used for responses that cannot be correlated to a request.
var nullID = json.RawMessage("null")

// Request represents a JSON-RPC 2.0 request or notification.
// An empty ID means the member was absent; a literal null is kept as "null".
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("%s (code %d): %v", e.Message, e.Code, e.Data)
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// InvalidRequestError is returned by DecodeRequest for a JSON object that is
// not a valid request, such as one whose method is not a string. ID holds the
// request's id when it was usable, so the reply can echo it.
type InvalidRequestError struct {
	ID  json.RawMessage
	Err error
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Err.Error()
}

func (e *InvalidRequestError) Unwrap() error {
	return e.Err
}

// DecodeRequest parses one JSON-RPC message. It records whether an "id"
// member was present at all, so {"id": null} stays a request. Input that is
// not a JSON object fails with the decoder's error; an object with
// wrong-typed members fails with *InvalidRequestError.
func DecodeRequest(data []byte) (*Request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	raw, hasID := fields["id"]
	if hasID && !validID(raw) {
		return nil, &InvalidRequestError{Err: fmt.Errorf("id must be a string, number or null, got %s", raw)}
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		invalid := &InvalidRequestError{Err: err}
		if hasID {
			invalid.ID = raw
		}
		return nil, invalid
	}
	req.ID = nil
	if hasID {
		req.ID = raw
	}
	return &req, nil
}

func validID(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	switch c := trimmed[0]; {
	case c == '"', c == '-', c >= '0' && c <= '9':
		return true
	default:
		return bytes.Equal(trimmed, nullID)
	}
}

// NewRequest builds a request (or, with a nil id, a notification) with params
// marshaled from v. A nil v leaves params out.
func NewRequest(id json.RawMessage, method string, v any) (*Request, error) {
	req := &Request{JSONRPC: Version, ID: id, Method: method}
	if v != nil {
		params, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s params: %w", method, err)
		}
		req.Params = params
	}
	return req, nil
}

// IsNotification reports whether the message carries no id member.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// NewResult builds a success response carrying v as the result.
func NewResult(id json.RawMessage, v any) (*Response, error) {
	result, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &Response{JSONRPC: Version, ID: responseID(id), Result: result}, nil
}

// NewError builds an error response. Data is omitted when nil.
func NewError(id json.RawMessage, code int, message string, data any) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      responseID(id),
		Error:   &Error{Code: code, Message: message, Data: data},
	}
}

func responseID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return nullID
	}
	return id
}

// IDKey normalizes a raw id into a map key so that 7 and 7 with different
// whitespace correlate, while 7 and "7" stay distinct.
func IDKey(id json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, id); err != nil {
		return string(bytes.TrimSpace(id))
	}
	return buf.String()
}
