package core

import (
	"encoding/json"

	"github.com/connectify/connectify/internal/domain"
)

// Envelope is the wire format of every realtime event, in both directions:
// a name plus an event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client → relay events. This is a closed set: the signal controller matches
// it exhaustively and drops anything else.
const (
	EventCallUser     = "call-user"
	EventAnswerCall   = "answer-call"
	EventICECandidate = "ice-candidate"
	EventRejectCall   = "reject-call"
	EventTyping       = "typing"
)

// Relay → client events. EventICECandidate and EventTyping keep the same
// name in both directions.
const (
	EventOnlineUsers     = "getOnlineUsers"
	EventIncomingCall    = "incoming-call"
	EventCallAccepted    = "call-accepted"
	EventCallRejected    = "call-rejected"
	EventNewMessage      = "newMessage"
	EventMessageReaction = "messageReaction"
)

// CallOffer is the client's call-user payload. Offer is relayed verbatim;
// the relay never parses SDP.
type CallOffer struct {
	To       string          `json:"to"`
	Offer    json.RawMessage `json:"offer"`
	FromName string          `json:"fromName"`
}

// IncomingCall is what the callee receives for a CallOffer.
type IncomingCall struct {
	From     string          `json:"from"`
	Offer    json.RawMessage `json:"offer"`
	FromName string          `json:"fromName"`
}

type CallAnswer struct {
	To     string          `json:"to"`
	Answer json.RawMessage `json:"answer"`
}

type CallAccepted struct {
	Answer json.RawMessage `json:"answer"`
}

// CandidateSignal carries one ICE candidate. To is set client→relay and
// stripped on the way out.
type CandidateSignal struct {
	To        string          `json:"to,omitempty"`
	Candidate json.RawMessage `json:"candidate"`
}

type RejectCall struct {
	To string `json:"to"`
}

// TypingSignal is shared by both directions: the client fills To, the relay
// rewrites it to From for the receiver.
type TypingSignal struct {
	To     string `json:"to,omitempty"`
	From   string `json:"from,omitempty"`
	Typing bool   `json:"typing"`
}

// ReactionUpdate mirrors the messageReaction payload of the REST layer.
type ReactionUpdate struct {
	MessageID string            `json:"messageId"`
	Reactions []domain.Reaction `json:"reactions"`
}

// Encode marshals an event into a wire frame.
func Encode(event string, payload any) (Frame, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}
	return json.Marshal(env)
}
