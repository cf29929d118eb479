// Package call is the client side of a Connectify video call: a websocket
// relay client, a per-call session state machine, and a narrow abstraction
// over the peer-connection library so the state machine never touches
// ICE/SDP mechanics directly.
package call

import "encoding/json"

// PeerLink hides the peer-connection library behind the minimum surface the
// call session needs. Signals are opaque JSON blobs: an SDP description or
// an ICE candidate, relayed as-is and only interpreted by the link itself.
type PeerLink interface {
	// CreateOffer produces the local SDP offer and applies it locally.
	CreateOffer() (json.RawMessage, error)
	// CreateAnswer applies the remote offer and produces the local answer.
	CreateAnswer(offer json.RawMessage) (json.RawMessage, error)
	// ApplyRemoteSignal feeds a remote answer or ICE candidate into the link.
	ApplyRemoteSignal(sig json.RawMessage) error
	// OnLocalSignal registers the callback for locally discovered signals
	// (ICE candidates as network paths appear).
	OnLocalSignal(fn func(sig json.RawMessage))
	// OnRemoteStream fires once remote media starts flowing. The stream
	// value is library-specific; callers that care must type-assert.
	OnRemoteStream(fn func(stream any))
	Close()
}

// Signaler sends call signals to a peer through the relay.
type Signaler interface {
	SendOffer(to string, offer json.RawMessage, fromName string) error
	SendAnswer(to string, answer json.RawMessage) error
	SendCandidate(to string, candidate json.RawMessage) error
	SendReject(to string) error
}
