// protocol.go — JSON-RPC 2.0 message types for the bridge wire protocol.
package rpc

import (
	"bytes"
	"encoding/json"
)

// Request represents an incoming JSON-RPC 2.0 request or notification.
// A notification is a Request with no id field at all.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	// ID is a number-or-string per the JSON-RPC 2.0 spec; nil when absent.
	ID              any             `json:"id,omitempty"`
	Method          string          `json:"method"`
	Params          json.RawMessage `json:"params,omitempty"`
	idPresent       bool            `json:"-"`
	idExplicitNull  bool            `json:"-"`
	idInvalidFormat bool            `json:"-"`
}

// UnmarshalJSON captures whether id was present, explicitly null, or of a
// disallowed type, in addition to the ordinary fields. This is required
// because encoding/json alone cannot distinguish "id absent" from "id null"
// once both decode to a nil interface value.
func (r *Request) UnmarshalJSON(data []byte) error {
	type rawRequest struct {
		JSONRPC string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}

	var raw rawRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(data, &object); err != nil {
		return err
	}

	r.JSONRPC = raw.JSONRPC
	r.Method = raw.Method
	r.Params = raw.Params
	r.ID = nil
	_, r.idPresent = object["id"]
	r.idExplicitNull = false
	r.idInvalidFormat = false

	rawID, ok := object["id"]
	if !ok {
		return nil
	}

	trimmedID := bytes.TrimSpace(rawID)
	if bytes.Equal(trimmedID, []byte("null")) {
		r.idExplicitNull = true
		return nil
	}

	var parsedID any
	if err := json.Unmarshal(trimmedID, &parsedID); err != nil {
		return err
	}
	switch parsedID.(type) {
	case string, float64:
		r.ID = parsedID
	default:
		r.idInvalidFormat = true
	}
	return nil
}

// HasID reports whether the request carries a usable (non-null, well-formed) id.
func (r Request) HasID() bool {
	return r.idPresent && !r.idExplicitNull && !r.idInvalidFormat
}

// IsNotification reports whether the message has no id field at all —
// a request with id omitted is a notification and must never be replied to.
func (r Request) IsNotification() bool {
	return !r.idPresent
}

// HasInvalidID reports whether id was explicitly null or of a disallowed type.
func (r Request) HasInvalidID() bool {
	return r.idExplicitNull || r.idInvalidFormat
}

// Response represents an outgoing JSON-RPC 2.0 response.
// Exactly one of Result/Error is set, matching spec §4.4.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Notification is a server-originated message carrying no id (§6).
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewResponse builds a successful response echoing id bit-for-bit.
func NewResponse(id any, result any) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, err
	}
	return Response{JSONRPC: "2.0", ID: id, Result: raw}, nil
}

// NewErrorResponse builds an error response echoing id bit-for-bit.
func NewErrorResponse(id any, e *Error) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: e}
}
