package call

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// LinkFactory builds a fresh PeerLink for each call. Peer connections are
// single-use; a new call always gets a new one.
type LinkFactory func() (PeerLink, error)

// Manager holds at most one live call at a time and routes relay events to
// it. Offers that arrive while a call is underway are dropped: the peer's
// call simply never connects, mirroring how the relay drops signals for
// offline users.
type Manager struct {
	mu       sync.Mutex
	signaler Signaler
	newLink  LinkFactory
	media    MediaSource

	displayName string
	timeout     time.Duration
	active      *Session

	// OnIncoming announces a ringing session. The receiver decides to
	// Accept or Decline; the session rings until it does.
	OnIncoming func(from, fromName string, s *Session)
	// OnState observes every state change of the current session.
	OnState func(State)
	// OnRemoteStream observes the peer's media once it starts flowing.
	OnRemoteStream func(stream any)
}

func NewManager(displayName string, media MediaSource, newLink LinkFactory, timeout time.Duration) *Manager {
	return &Manager{
		displayName: displayName,
		media:       media,
		newLink:     newLink,
		timeout:     timeout,
	}
}

// Bind attaches the signaler once the transport is up.
func (m *Manager) Bind(sig Signaler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signaler = sig
}

// Active returns the current session, which may be terminated.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Call starts an outgoing call. Fails fast without media or while another
// call is live.
func (m *Manager) Call(to string) (*Session, error) {
	m.mu.Lock()
	if m.media == nil {
		m.mu.Unlock()
		return nil, ErrMediaUnavailable
	}
	if m.busyLocked() {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	sig := m.signaler
	m.mu.Unlock()

	link, err := m.newLink()
	if err != nil {
		return nil, err
	}

	s, err := newOutgoing(to, m.displayName, link, sig, m.timeout, m.OnState, m.OnRemoteStream)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.active = s
	m.mu.Unlock()
	return s, nil
}

// HandleIncoming rings on a remote offer, or drops it when busy.
func (m *Manager) HandleIncoming(from, fromName string, offer json.RawMessage) {
	m.mu.Lock()
	if m.busyLocked() {
		m.mu.Unlock()
		log.Info().Str("module", "call").Str("from", from).Msg("offer dropped, busy")
		return
	}
	if m.media == nil {
		m.mu.Unlock()
		log.Warn().Str("module", "call").Str("from", from).Msg("offer dropped, no media")
		return
	}
	sig := m.signaler
	m.mu.Unlock()

	link, err := m.newLink()
	if err != nil {
		log.Error().Err(err).Str("module", "call").Msg("peer link")
		return
	}

	s := newIncoming(from, offer, link, sig, m.timeout, m.OnState, m.OnRemoteStream)

	m.mu.Lock()
	m.active = s
	cb := m.OnIncoming
	m.mu.Unlock()

	if cb != nil {
		cb(from, fromName, s)
	}
}

func (m *Manager) HandleAccepted(answer json.RawMessage) {
	if s := m.Active(); s != nil {
		s.HandleAccepted(answer)
	}
}

func (m *Manager) HandleCandidate(candidate json.RawMessage) {
	if s := m.Active(); s != nil {
		s.HandleCandidate(candidate)
	}
}

func (m *Manager) HandleRejected() {
	if s := m.Active(); s != nil {
		s.HandleRejected()
	}
}

// Close tears down the live call, if any, and stops local media. This is
// client shutdown; the manager is not reusable afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	s := m.active
	media := m.media
	m.media = nil
	m.mu.Unlock()

	if s != nil {
		s.Hangup()
	}
	if media != nil {
		media.Stop()
	}
}

func (m *Manager) busyLocked() bool {
	return m.active != nil && m.active.State() != StateTerminated
}
