package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"
)

// Request type constants
const (
	TypeInit      = "init"
	TypeReadFile  = "read_file"
	TypeCheckFile = "check_file"
)

// Short error messages that cross the wire
const (
	MsgMessageTooLarge    = "Message too large"
	MsgReadTimeout        = "Read timeout"
	MsgInvalidJSON        = "Invalid JSON"
	MsgUnknownRequestType = "Unknown request type"
	MsgAccessDenied       = "Access denied"
	MsgNoValidPath        = "No valid path provided"
	MsgPathMustBeString   = "Path must be a string"
)

// ErrInvalidJSON is returned by Parse when the payload is not valid
// UTF-8 JSON with an object at the top level.
var ErrInvalidJSON = errors.New("invalid JSON payload")

// Request is the decoded wire request, tagged by Type. Exactly one of
// the variant pointers is populated for a known type; all are nil for a
// missing or unrecognized type.
type Request struct {
	Type      string
	Init      *InitParams
	ReadFile  *ReadFileParams
	CheckFile *CheckFileParams
}

// InitParams carries the optional handshake options. The options are
// opaque and only logged.
type InitParams struct {
	Options map[string]interface{}
}

// ReadFileParams carries the normalized path parameters for read_file.
// A nil pointer means the field was absent, null, not a string, or the
// literal text "undefined".
type ReadFileParams struct {
	Path *string
	File *string
}

// CheckFileParams carries the normalized path for check_file. Path is
// nil when the field was absent, null, not a string, or "undefined";
// handlers must reject that case with MsgPathMustBeString.
type CheckFileParams struct {
	Path *string
}

type envelope struct {
	Type    *string         `json:"type"`
	Options json.RawMessage `json:"options"`
	Path    json.RawMessage `json:"path"`
	File    json.RawMessage `json:"file"`
}

// Parse decodes a frame payload into a Request. ErrInvalidJSON is
// returned for payloads that are not UTF-8 or not a JSON object; a
// missing type yields a Request with an empty Type rather than an error
// so the dispatcher can answer with a structured response.
func Parse(payload []byte) (*Request, error) {
	if !utf8.Valid(payload) {
		return nil, ErrInvalidJSON
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, ErrInvalidJSON
	}

	req := &Request{}
	if env.Type == nil {
		return req, nil
	}
	req.Type = *env.Type

	switch req.Type {
	case TypeInit:
		params := &InitParams{}
		if len(env.Options) > 0 {
			// Best effort: malformed options stay nil, the handshake
			// succeeds regardless.
			var opts map[string]interface{}
			if err := json.Unmarshal(env.Options, &opts); err == nil {
				params.Options = opts
			}
		}
		req.Init = params

	case TypeReadFile:
		req.ReadFile = &ReadFileParams{
			Path: normalizeStringParam(env.Path),
			File: normalizeStringParam(env.File),
		}

	case TypeCheckFile:
		req.CheckFile = &CheckFileParams{
			Path: normalizeStringParam(env.Path),
		}
	}

	return req, nil
}

// normalizeStringParam extracts an optional string parameter. Absent
// fields, JSON null, non-string values, and the literal text
// "undefined" (any case) all count as not provided; some client
// libraries serialize missing values as the string "undefined" instead
// of omitting the field.
func normalizeStringParam(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	if strings.EqualFold(s, "undefined") {
		return nil
	}
	return &s
}

// Capabilities advertises which operations the server supports.
type Capabilities struct {
	FileAccess bool `json:"fileAccess"`
	CheckFile  bool `json:"checkFile"`
	ReadFile   bool `json:"readFile"`
}

// InitResponse is the successful handshake payload.
type InitResponse struct {
	Status        string       `json:"status"`
	Message       string       `json:"message"`
	ServerName    string       `json:"serverName"`
	ServerVersion string       `json:"serverVersion"`
	Capabilities  Capabilities `json:"capabilities"`
}

// ReadFileResponse carries the full UTF-8 contents of a file.
type ReadFileResponse struct {
	Content string `json:"content"`
}

// CheckFileResponse reports whether a path exists, echoing back the
// client-supplied path rather than the resolved one.
type CheckFileResponse struct {
	Exists bool   `json:"exists"`
	Path   string `json:"path"`
}

// ErrorResponse is the generic failure payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusError is the failure payload for dispatch-level errors such as
// a missing or unrecognized request type.
type StatusError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewStatusError builds a StatusError with status "error".
func NewStatusError(message string) StatusError {
	return StatusError{Status: "error", Message: message}
}

// Encode marshals a response payload for framing. Marshaling these
// fixed shapes cannot fail in practice, but the error is surfaced so
// sessions can close instead of sending a corrupt frame.
func Encode(response interface{}) ([]byte, error) {
	return json.Marshal(response)
}
