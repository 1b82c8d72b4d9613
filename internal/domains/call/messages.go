package call

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound control messages from the client, discriminated by "type".
// Each kind is its own struct so dispatch is checked at compile time
// rather than by poking at loose maps.

type ClientMessage interface {
	isClientMessage()
}

type CallAccepted struct{}

type CallEnded struct {
	Reason string `json:"reason"`
}

type ClientPing struct{}

func (CallAccepted) isClientMessage() {}
func (CallEnded) isClientMessage()    {}
func (ClientPing) isClientMessage()   {}

type clientEnvelope struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

// DecodeClientMessage parses one inbound JSON control message.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var env clientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed client message: %w", err)
	}
	switch env.Type {
	case "call_accepted":
		return CallAccepted{}, nil
	case "call_ended":
		return CallEnded{Reason: env.Reason}, nil
	case "ping":
		return ClientPing{}, nil
	default:
		return nil, fmt.Errorf("unknown client message type %q", env.Type)
	}
}

// Outbound messages to the client. Each carries its own type tag so it
// serializes directly.

type StatusChange struct {
	Type      string `json:"type"`
	NewStatus string `json:"new_status"`
	Message   string `json:"message,omitempty"`
}

func NewStatusChange(status, message string) StatusChange {
	return StatusChange{Type: "status_change", NewStatus: status, Message: message}
}

type ErrorMessage struct {
	Type         string `json:"type"`
	ErrorMessage string `json:"error_message"`
}

func NewErrorMessage(msg string) ErrorMessage {
	return ErrorMessage{Type: "error", ErrorMessage: msg}
}

type AudioStream struct {
	Type      string    `json:"type"`
	AudioData string    `json:"audio_data"`
	Timestamp time.Time `json:"timestamp"`
}

type FieldExtracted struct {
	Type   string            `json:"type"`
	Fields map[string]string `json:"fields"`
}

func NewFieldExtracted(fields map[string]string) FieldExtracted {
	return FieldExtracted{Type: "field_extracted", Fields: fields}
}
