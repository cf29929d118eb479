package call

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type State int

const (
	StateIdle State = iota
	StateCalling
	StateRinging
	StateConnecting
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCalling:
		return "calling"
	case StateRinging:
		return "ringing"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

type Role int

const (
	RoleCaller Role = iota
	RoleCallee
)

var (
	// ErrMediaUnavailable is fatal to starting a call: no capture device,
	// no call. Surfaced to the user, no retry.
	ErrMediaUnavailable = errors.New("local media unavailable")
	ErrBusy             = errors.New("already in a call")
	ErrBadState         = errors.New("not valid in current call state")
)

// Session governs one call's lifecycle. It is created when the user
// initiates or accepts a call and never leaves Terminated once it gets
// there; a new call means a fresh Session. The PeerLink is owned
// exclusively by this session and released exactly once, on termination.
type Session struct {
	mu       sync.Mutex
	state    State
	role     Role
	peerID   string
	link     PeerLink
	signaler Signaler

	// pendingOffer holds the remote offer between Ringing and Accept.
	pendingOffer json.RawMessage
	// pendingCandidates buffers remote candidates that arrive before the
	// remote description is applied; the link cannot take them earlier.
	pendingCandidates []json.RawMessage
	remoteApplied     bool

	negotiationTimeout time.Duration
	timer              *time.Timer

	onState  func(State)
	onStream func(stream any)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Role() Role     { return s.role }
func (s *Session) PeerID() string { return s.peerID }

// newOutgoing builds a caller session, transmits the offer, and moves to
// Connecting. Failure to produce or send the offer terminates the session.
func newOutgoing(peerID, displayName string, link PeerLink, sig Signaler, timeout time.Duration, onState func(State), onStream func(any)) (*Session, error) {
	s := &Session{
		state:              StateCalling,
		role:               RoleCaller,
		peerID:             peerID,
		link:               link,
		signaler:           sig,
		negotiationTimeout: timeout,
		onState:            onState,
		onStream:           onStream,
	}
	link.OnLocalSignal(s.sendLocalCandidate)
	link.OnRemoteStream(s.remoteStreamArrived)

	offer, err := link.CreateOffer()
	if err != nil {
		s.Hangup()
		return nil, err
	}
	if err := sig.SendOffer(peerID, offer, displayName); err != nil {
		s.Hangup()
		return nil, err
	}

	s.mu.Lock()
	s.toConnectingLocked()
	s.mu.Unlock()
	return s, nil
}

// newIncoming builds a callee session ringing on the given offer.
func newIncoming(peerID string, offer json.RawMessage, link PeerLink, sig Signaler, timeout time.Duration, onState func(State), onStream func(any)) *Session {
	s := &Session{
		state:              StateRinging,
		role:               RoleCallee,
		peerID:             peerID,
		link:               link,
		signaler:           sig,
		pendingOffer:       offer,
		negotiationTimeout: timeout,
		onState:            onState,
		onStream:           onStream,
	}
	link.OnLocalSignal(s.sendLocalCandidate)
	link.OnRemoteStream(s.remoteStreamArrived)
	return s
}

// Accept answers a ringing call: the remote offer goes into the link, the
// local answer goes out, and negotiation starts.
func (s *Session) Accept() error {
	s.mu.Lock()
	if s.state != StateRinging {
		s.mu.Unlock()
		return ErrBadState
	}
	offer := s.pendingOffer
	s.mu.Unlock()

	answer, err := s.link.CreateAnswer(offer)
	if err != nil {
		s.Hangup()
		return err
	}
	if err := s.signaler.SendAnswer(s.peerID, answer); err != nil {
		s.Hangup()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRinging {
		return ErrBadState
	}
	s.remoteApplied = true
	s.flushCandidatesLocked()
	s.toConnectingLocked()
	return nil
}

// Decline rejects a ringing call and tells the caller.
func (s *Session) Decline() error {
	s.mu.Lock()
	if s.state != StateRinging {
		s.mu.Unlock()
		return ErrBadState
	}
	s.terminateLocked()
	s.mu.Unlock()

	return s.signaler.SendReject(s.peerID)
}

// Hangup ends the call from any non-terminal state: local action or
// transport loss, same path.
func (s *Session) Hangup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminated {
		return
	}
	s.terminateLocked()
}

// HandleAccepted applies the callee's answer. Valid while the caller is
// still negotiating; anything later is ignored.
func (s *Session) HandleAccepted(answer json.RawMessage) {
	s.mu.Lock()
	if s.role != RoleCaller || s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	if s.state == StateCalling {
		s.toConnectingLocked()
	}
	s.mu.Unlock()

	if err := s.link.ApplyRemoteSignal(answer); err != nil {
		log.Warn().Err(err).Str("module", "call").Msg("apply answer")
		return
	}

	s.mu.Lock()
	s.remoteApplied = true
	s.flushCandidatesLocked()
	s.mu.Unlock()
}

// HandleCandidate applies a remote ICE candidate, buffering it if the
// remote description is not in place yet. Candidates are independent;
// a failing one is logged and skipped.
func (s *Session) HandleCandidate(candidate json.RawMessage) {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	if !s.remoteApplied {
		s.pendingCandidates = append(s.pendingCandidates, candidate)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.link.ApplyRemoteSignal(candidate); err != nil {
		log.Warn().Err(err).Str("module", "call").Msg("apply candidate")
	}
}

// HandleRejected terminates the session on the peer's explicit decline.
func (s *Session) HandleRejected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminated {
		return
	}
	log.Info().Str("module", "call").Str("peer", s.peerID).Msg("call rejected by peer")
	s.terminateLocked()
}

func (s *Session) sendLocalCandidate(sig json.RawMessage) {
	s.mu.Lock()
	terminated := s.state == StateTerminated
	s.mu.Unlock()
	if terminated {
		return
	}
	if err := s.signaler.SendCandidate(s.peerID, sig); err != nil {
		log.Debug().Err(err).Str("module", "call").Msg("send candidate")
	}
}

func (s *Session) remoteStreamArrived(stream any) {
	s.mu.Lock()
	if s.state != StateConnecting && s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.stopTimerLocked()
	s.setStateLocked(StateActive)
	cb := s.onStream
	s.mu.Unlock()

	if cb != nil {
		cb(stream)
	}
}

func (s *Session) flushCandidatesLocked() {
	for _, cand := range s.pendingCandidates {
		if err := s.link.ApplyRemoteSignal(cand); err != nil {
			log.Warn().Err(err).Str("module", "call").Msg("apply buffered candidate")
		}
	}
	s.pendingCandidates = nil
}

// toConnectingLocked enters Connecting and arms the negotiation timeout.
// A call that never sees remote media is torn down when the timer fires;
// zero disables the timer.
func (s *Session) toConnectingLocked() {
	s.setStateLocked(StateConnecting)
	if s.negotiationTimeout > 0 {
		s.timer = time.AfterFunc(s.negotiationTimeout, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.state != StateConnecting {
				return
			}
			log.Warn().Str("module", "call").Str("peer", s.peerID).Msg("negotiation timed out")
			s.terminateLocked()
		})
	}
}

func (s *Session) terminateLocked() {
	s.stopTimerLocked()
	s.setStateLocked(StateTerminated)
	// Release the peer connection exactly once. Local media is shared
	// across calls and is stopped by the Manager, not here.
	s.link.Close()
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) setStateLocked(st State) {
	if s.state == st {
		return
	}
	s.state = st
	if s.onState != nil {
		s.onState(st)
	}
}
