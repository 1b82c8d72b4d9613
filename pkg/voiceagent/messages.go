package voiceagent

import (
	"encoding/base64"
	"encoding/json"

	"github.com/gorilla/websocket"
)

// MessageType discriminates the neutral message shapes the connector
// produces. Callers never see the vendor's own framing.
type MessageType string

const (
	TypeAudio            MessageType = "audio"
	TypeUserTranscript   MessageType = "user_transcript"
	TypeAgentResponse    MessageType = "agent_response"
	TypeConversationInit MessageType = "conversation_initiation_metadata"
	TypeConversationEnd  MessageType = "conversation_end"
	TypePing             MessageType = "ping"
	TypePassthrough      MessageType = "passthrough"
)

// Message is the neutral internal shape for everything the vendor sends.
// Audio is set for TypeAudio, Text for transcript and response messages,
// Raw keeps the original payload for passthrough messages.
type Message struct {
	Type    MessageType
	Audio   []byte
	Text    string
	EventID int
	Raw     json.RawMessage
}

// vendorFrame covers the union of JSON envelopes the agent service emits.
type vendorFrame struct {
	Type       string `json:"type"`
	AudioEvent *struct {
		AudioBase64 string `json:"audio_base_64"`
		EventID     int    `json:"event_id"`
	} `json:"audio_event,omitempty"`
	UserTranscriptionEvent *struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event,omitempty"`
	AgentResponseEvent *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event,omitempty"`
	PingEvent *struct {
		EventID int `json:"event_id"`
	} `json:"ping_event,omitempty"`
}

// audioChunk is the envelope for outbound audio to the agent service.
type audioChunk struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

// pongReply answers a vendor ping.
type pongReply struct {
	Type    string `json:"type"`
	EventID int    `json:"event_id"`
}

// decodeFrame normalizes one inbound vendor websocket frame. Binary
// frames are raw audio; JSON frames are mapped by their event type, with
// unrecognized types passed through untouched.
func decodeFrame(wsType int, data []byte) Message {
	if wsType == websocket.BinaryMessage {
		return Message{Type: TypeAudio, Audio: data}
	}

	var frame vendorFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Message{Type: TypePassthrough, Raw: append(json.RawMessage(nil), data...)}
	}

	switch frame.Type {
	case "audio":
		if frame.AudioEvent != nil {
			pcm, err := base64.StdEncoding.DecodeString(frame.AudioEvent.AudioBase64)
			if err == nil {
				return Message{Type: TypeAudio, Audio: pcm, EventID: frame.AudioEvent.EventID}
			}
		}
		return Message{Type: TypePassthrough, Raw: append(json.RawMessage(nil), data...)}
	case "user_transcript":
		if frame.UserTranscriptionEvent != nil {
			return Message{Type: TypeUserTranscript, Text: frame.UserTranscriptionEvent.UserTranscript}
		}
	case "agent_response":
		if frame.AgentResponseEvent != nil {
			return Message{Type: TypeAgentResponse, Text: frame.AgentResponseEvent.AgentResponse}
		}
	case "conversation_initiation_metadata":
		return Message{Type: TypeConversationInit, Raw: append(json.RawMessage(nil), data...)}
	case "conversation_end":
		return Message{Type: TypeConversationEnd}
	case "ping":
		msg := Message{Type: TypePing}
		if frame.PingEvent != nil {
			msg.EventID = frame.PingEvent.EventID
		}
		return msg
	}
	return Message{Type: TypePassthrough, Raw: append(json.RawMessage(nil), data...)}
}
