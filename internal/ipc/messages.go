// Package ipc carries commands and events between the client and the worker
// process as newline-delimited JSON, over a Unix domain socket or a Windows
// named pipe.
//
// Each line is one message. The client sends requests; the worker answers
// each with exactly one response carrying the same id, and may push any
// number of events at any time. Events produced while serving a request are
// tagged with that request's generation.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/packwisely/patchdesk/internal/events"
)

// Kind discriminates the message envelope.
type Kind string

const (
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
	KindEvent    Kind = "event"
)

// Command names a worker command.
type Command string

const (
	CmdGetUpdateCheckStatus Command = "get_update_check_status"
	CmdInstall              Command = "install"
	CmdCreatePatch          Command = "create_patch"
)

// ErrUnknownKind is returned when decoding a line with an unrecognized kind.
var ErrUnknownKind = errors.New("unknown message kind")

// Request is a command sent to the worker.
type Request struct {
	Kind       Kind            `json:"kind"`
	ID         string          `json:"id"`
	Command    Command         `json:"command"`
	Generation uint64          `json:"generation,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
}

// Response settles the request with the same ID.
type Response struct {
	Kind    Kind            `json:"kind"`
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Event is a fire-and-forget notification from the worker.
type Event struct {
	Kind       Kind             `json:"kind"`
	Channel    events.EventType `json:"channel"`
	Generation uint64           `json:"generation,omitempty"`
	Payload    json.RawMessage  `json:"payload,omitempty"`
}

// NewRequest creates a request with a fresh id. args may be nil.
func NewRequest(cmd Command, generation uint64, args any) (*Request, error) {
	req := &Request{
		Kind:       KindRequest,
		ID:         uuid.NewString(),
		Command:    cmd,
		Generation: generation,
	}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode %s args: %w", cmd, err)
		}
		req.Args = raw
	}
	return req, nil
}

// NewOKResponse creates a success response. data may be nil.
func NewOKResponse(id string, data any) (*Response, error) {
	resp := &Response{Kind: KindResponse, ID: id, Success: true}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode response data: %w", err)
		}
		resp.Data = raw
	}
	return resp, nil
}

// NewErrorResponse creates a failure response.
func NewErrorResponse(id, message string) *Response {
	return &Response{Kind: KindResponse, ID: id, Success: false, Error: message}
}

// NewEvent creates an event. payload may be nil.
func NewEvent(channel events.EventType, generation uint64, payload any) (*Event, error) {
	ev := &Event{Kind: KindEvent, Channel: channel, Generation: generation}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", channel, err)
		}
		ev.Payload = raw
	}
	return ev, nil
}

// DecodeArgs decodes the request arguments into v.
func (r *Request) DecodeArgs(v any) error {
	if len(r.Args) == 0 {
		return fmt.Errorf("%s: missing args", r.Command)
	}
	if err := json.Unmarshal(r.Args, v); err != nil {
		return fmt.Errorf("%s: decode args: %w", r.Command, err)
	}
	return nil
}

// DecodeData decodes the response data into v.
func (r *Response) DecodeData(v any) error {
	if len(r.Data) == 0 {
		return errors.New("response has no data")
	}
	return json.Unmarshal(r.Data, v)
}

// Encode serializes a message as one line, newline included.
func Encode(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Decode parses one line into a *Request, *Response or *Event.
func Decode(line []byte) (any, error) {
	var head struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return nil, err
	}

	var msg any
	switch head.Kind {
	case KindRequest:
		msg = &Request{}
	case KindResponse:
		msg = &Response{}
	case KindEvent:
		msg = &Event{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, head.Kind)
	}
	if err := json.Unmarshal(line, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
