// errors.go — The closed error-kind taxonomy (spec §7) and its JSON-RPC code mapping.
package rpc

import "github.com/cockroachdb/errors"

// Kind is one of the closed set of error kinds the bridge can surface.
// FrameError, BufferOverflow, and ShutdownError have no JSON-RPC code because
// they fault the connection instead of producing a reply.
type Kind string

const (
	KindParseError      Kind = "parse_error"
	KindInvalidRequest  Kind = "invalid_request"
	KindUnknownTool     Kind = "unknown_tool"
	KindInvalidParams   Kind = "invalid_params"
	KindInternalError   Kind = "internal_error"
	KindSecurityBlocked Kind = "security_blocked"
	KindEnvironmentBusy Kind = "environment_busy"
	KindFrameError      Kind = "frame_error"
	KindBufferOverflow  Kind = "buffer_overflow"
	KindShutdownError   Kind = "shutdown_error"
)

// code maps a Kind to its JSON-RPC 2.0 numeric code. Kinds with no wire
// representation return 0; callers must not reply for those.
func code(k Kind) int {
	switch k {
	case KindParseError:
		return -32700
	case KindInvalidRequest:
		return -32600
	case KindUnknownTool:
		return -32601
	case KindInvalidParams:
		return -32602
	case KindInternalError, KindSecurityBlocked, KindEnvironmentBusy:
		return -32603
	default:
		return 0
	}
}

// HasReply reports whether this Kind produces a JSON-RPC reply at all.
func HasReply(k Kind) bool {
	return code(k) != 0
}

// DispatchError is an internal error value carrying a Kind plus enough
// context to build both the wire Error and a log line. Handler code
// returns these; the processor (C4) is the only place that turns them
// into wire bytes.
type DispatchError struct {
	Kind    Kind
	Message string
	Data    any
	cause   error
}

func (e *DispatchError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *DispatchError) Unwrap() error { return e.cause }

// New builds a DispatchError of the given kind.
func New(kind Kind, message string) *DispatchError {
	return &DispatchError{Kind: kind, Message: message}
}

// Wrap builds an InternalError DispatchError around cause, preserving a
// stack trace on the cause via cockroachdb/errors. No correlation id is
// attached, and the processor does not log InternalError replies.
func Wrap(cause error, message string) *DispatchError {
	return &DispatchError{Kind: KindInternalError, Message: message, cause: errors.Wrap(cause, message)}
}

// WithData attaches a structured data payload (e.g. security_blocked details).
func (e *DispatchError) WithData(data any) *DispatchError {
	e.Data = data
	return e
}

// ToWireError converts a DispatchError into the JSON-RPC Error object.
// Panics if called on a Kind with no wire representation — callers must
// check HasReply first (those kinds fault the connection instead).
func (e *DispatchError) ToWireError() *Error {
	c := code(e.Kind)
	if c == 0 {
		panic("rpc: " + string(e.Kind) + " has no wire representation")
	}
	return &Error{Code: c, Message: e.Message, Data: e.Data}
}

// SecurityBlockedData is the structured payload for SecurityBlocked errors (§7, S4).
type SecurityBlockedData struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

// SecurityBlocked builds the exact error shape spec §8 scenario S4 requires.
func SecurityBlocked(command, reason string) *DispatchError {
	return New(KindSecurityBlocked, "Tool blocked by security settings").WithData(SecurityBlockedData{
		Type:    "security_blocked",
		Command: command,
		Reason:  reason,
	})
}
