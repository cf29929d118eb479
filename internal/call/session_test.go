package call

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
)

type fakeLink struct {
	mu       sync.Mutex
	applied  []json.RawMessage
	onLocal  func(json.RawMessage)
	onRemote func(any)
	closes   int

	offerErr  error
	answerErr error
}

func (f *fakeLink) CreateOffer() (json.RawMessage, error) {
	if f.offerErr != nil {
		return nil, f.offerErr
	}
	return json.RawMessage(`{"type":"offer","sdp":"local"}`), nil
}

func (f *fakeLink) CreateAnswer(offer json.RawMessage) (json.RawMessage, error) {
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	f.mu.Lock()
	f.applied = append(f.applied, offer)
	f.mu.Unlock()
	return json.RawMessage(`{"type":"answer","sdp":"local"}`), nil
}

func (f *fakeLink) ApplyRemoteSignal(sig json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, sig)
	return nil
}

func (f *fakeLink) OnLocalSignal(fn func(json.RawMessage)) { f.onLocal = fn }
func (f *fakeLink) OnRemoteStream(fn func(any))            { f.onRemote = fn }

func (f *fakeLink) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
}

func (f *fakeLink) appliedSignals() []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]json.RawMessage(nil), f.applied...)
}

type sentSignal struct {
	kind string
	to   string
	body json.RawMessage
}

type fakeSignaler struct {
	mu   sync.Mutex
	sent []sentSignal
}

func (f *fakeSignaler) record(kind, to string, body json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentSignal{kind: kind, to: to, body: body})
}

func (f *fakeSignaler) SendOffer(to string, offer json.RawMessage, _ string) error {
	f.record("offer", to, offer)
	return nil
}

func (f *fakeSignaler) SendAnswer(to string, answer json.RawMessage) error {
	f.record("answer", to, answer)
	return nil
}

func (f *fakeSignaler) SendCandidate(to string, cand json.RawMessage) error {
	f.record("candidate", to, cand)
	return nil
}

func (f *fakeSignaler) SendReject(to string) error {
	f.record("reject", to, nil)
	return nil
}

func (f *fakeSignaler) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, s := range f.sent {
		out[i] = s.kind
	}
	return out
}

// newTestManager wires a manager around a single fake link so tests can
// poke the link's callbacks directly.
func newTestManager(sig *fakeSignaler, timeout time.Duration) (*Manager, *fakeLink) {
	link := &fakeLink{}
	m := NewManager("Test User", noopMedia{}, func() (PeerLink, error) {
		return link, nil
	}, timeout)
	m.Bind(sig)
	return m, link
}

type noopMedia struct{}

func (noopMedia) Tracks() []webrtc.TrackLocal { return nil }
func (noopMedia) Stop()                       {}

func TestOutgoingCallLifecycle(t *testing.T) {
	sig := &fakeSignaler{}
	m, link := newTestManager(sig, 0)

	s, err := m.Call("bob")
	if err != nil {
		t.Fatal(err)
	}
	if s.State() != StateConnecting {
		t.Fatalf("state after offer sent = %v, want connecting", s.State())
	}
	if kinds := sig.kinds(); len(kinds) != 1 || kinds[0] != "offer" {
		t.Fatalf("sent = %v, want [offer]", kinds)
	}

	answer := json.RawMessage(`{"type":"answer","sdp":"remote"}`)
	m.HandleAccepted(answer)
	applied := link.appliedSignals()
	if len(applied) != 1 || !bytes.Equal(applied[0], answer) {
		t.Fatalf("answer not applied to link: %v", applied)
	}

	link.onRemote(nil)
	if s.State() != StateActive {
		t.Errorf("state after remote stream = %v, want active", s.State())
	}
}

func TestIncomingCallAccept(t *testing.T) {
	sig := &fakeSignaler{}
	m, link := newTestManager(sig, 0)

	var ringing *Session
	m.OnIncoming = func(from, fromName string, s *Session) {
		if from != "alice" || fromName != "Alice A" {
			t.Errorf("caller identity = %q/%q", from, fromName)
		}
		ringing = s
	}

	offer := json.RawMessage(`{"type":"offer","sdp":"remote"}`)
	m.HandleIncoming("alice", "Alice A", offer)
	if ringing == nil {
		t.Fatal("incoming call not announced")
	}
	if ringing.State() != StateRinging {
		t.Fatalf("state = %v, want ringing", ringing.State())
	}

	if err := ringing.Accept(); err != nil {
		t.Fatal(err)
	}
	if ringing.State() != StateConnecting {
		t.Errorf("state after accept = %v, want connecting", ringing.State())
	}
	if kinds := sig.kinds(); len(kinds) != 1 || kinds[0] != "answer" {
		t.Errorf("sent = %v, want [answer]", kinds)
	}
	applied := link.appliedSignals()
	if len(applied) != 1 || !bytes.Equal(applied[0], offer) {
		t.Errorf("offer not applied: %v", applied)
	}

	link.onRemote(nil)
	if ringing.State() != StateActive {
		t.Errorf("state after remote stream = %v, want active", ringing.State())
	}
}

func TestIncomingCallDecline(t *testing.T) {
	sig := &fakeSignaler{}
	m, link := newTestManager(sig, 0)
	m.OnIncoming = func(_, _ string, s *Session) {
		if err := s.Decline(); err != nil {
			t.Fatal(err)
		}
	}

	m.HandleIncoming("alice", "Alice", json.RawMessage(`{"type":"offer"}`))

	s := m.Active()
	if s.State() != StateTerminated {
		t.Errorf("state = %v, want terminated", s.State())
	}
	if kinds := sig.kinds(); len(kinds) != 1 || kinds[0] != "reject" {
		t.Errorf("sent = %v, want [reject]", kinds)
	}
	if link.closes != 1 {
		t.Errorf("link closed %d times, want 1", link.closes)
	}
}

func TestPeerRejectTerminatesCaller(t *testing.T) {
	sig := &fakeSignaler{}
	m, link := newTestManager(sig, 0)

	s, err := m.Call("bob")
	if err != nil {
		t.Fatal(err)
	}
	m.HandleRejected()

	if s.State() != StateTerminated {
		t.Errorf("state = %v, want terminated", s.State())
	}
	if link.closes != 1 {
		t.Errorf("link closed %d times, want 1", link.closes)
	}
}

func TestTerminatedIsAbsorbing(t *testing.T) {
	sig := &fakeSignaler{}
	m, link := newTestManager(sig, 0)

	s, err := m.Call("bob")
	if err != nil {
		t.Fatal(err)
	}
	s.Hangup()
	s.Hangup()
	m.HandleAccepted(json.RawMessage(`{"type":"answer"}`))
	m.HandleCandidate(json.RawMessage(`{"candidate":"late"}`))
	m.HandleRejected()

	if s.State() != StateTerminated {
		t.Errorf("state = %v, want terminated", s.State())
	}
	if link.closes != 1 {
		t.Errorf("link closed %d times, want exactly 1", link.closes)
	}
	if len(link.appliedSignals()) != 0 {
		t.Error("signals applied after termination")
	}
	if err := s.Accept(); !errors.Is(err, ErrBadState) {
		t.Errorf("Accept after termination = %v, want ErrBadState", err)
	}
}

func TestOfferWhileBusyIsDropped(t *testing.T) {
	sig := &fakeSignaler{}
	m, _ := newTestManager(sig, 0)

	first, err := m.Call("bob")
	if err != nil {
		t.Fatal(err)
	}

	announced := false
	m.OnIncoming = func(_, _ string, _ *Session) { announced = true }
	m.HandleIncoming("carol", "Carol", json.RawMessage(`{"type":"offer"}`))

	if announced {
		t.Error("offer announced while another call is live")
	}
	if m.Active() != first {
		t.Error("busy offer replaced the live session")
	}
	if _, err := m.Call("carol"); !errors.Is(err, ErrBusy) {
		t.Errorf("second Call = %v, want ErrBusy", err)
	}

	// After termination the next call may proceed.
	first.Hangup()
	if _, err := m.Call("carol"); err != nil {
		t.Errorf("call after hangup = %v", err)
	}
}

func TestCallWithoutMedia(t *testing.T) {
	m := NewManager("Test User", nil, func() (PeerLink, error) {
		t.Fatal("link built without media")
		return nil, nil
	}, 0)
	m.Bind(&fakeSignaler{})

	if _, err := m.Call("bob"); !errors.Is(err, ErrMediaUnavailable) {
		t.Errorf("Call = %v, want ErrMediaUnavailable", err)
	}
	m.HandleIncoming("alice", "Alice", json.RawMessage(`{"type":"offer"}`))
	if m.Active() != nil {
		t.Error("incoming call ringing without media")
	}
}

func TestCandidatesBufferedUntilDescriptionApplied(t *testing.T) {
	sig := &fakeSignaler{}
	m, link := newTestManager(sig, 0)

	s, err := m.Call("bob")
	if err != nil {
		t.Fatal(err)
	}

	early := json.RawMessage(`{"candidate":"early"}`)
	m.HandleCandidate(early)
	if len(link.appliedSignals()) != 0 {
		t.Fatal("candidate applied before the remote description")
	}

	answer := json.RawMessage(`{"type":"answer","sdp":"remote"}`)
	m.HandleAccepted(answer)

	applied := link.appliedSignals()
	if len(applied) != 2 || !bytes.Equal(applied[0], answer) || !bytes.Equal(applied[1], early) {
		t.Fatalf("applied = %v, want answer then buffered candidate", applied)
	}

	late := json.RawMessage(`{"candidate":"late"}`)
	m.HandleCandidate(late)
	applied = link.appliedSignals()
	if len(applied) != 3 || !bytes.Equal(applied[2], late) {
		t.Errorf("late candidate not applied directly: %v", applied)
	}
	_ = s
}

func TestNegotiationTimeout(t *testing.T) {
	sig := &fakeSignaler{}
	m, link := newTestManager(sig, 20*time.Millisecond)

	s, err := m.Call("bob")
	if err != nil {
		t.Fatal(err)
	}
	if s.State() != StateConnecting {
		t.Fatalf("state = %v, want connecting", s.State())
	}

	deadline := time.Now().Add(time.Second)
	for s.State() != StateTerminated {
		if time.Now().After(deadline) {
			t.Fatal("session never timed out")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if link.closes != 1 {
		t.Errorf("link closed %d times, want 1", link.closes)
	}
}

func TestTimeoutDisarmedByRemoteStream(t *testing.T) {
	sig := &fakeSignaler{}
	m, link := newTestManager(sig, 30*time.Millisecond)

	s, err := m.Call("bob")
	if err != nil {
		t.Fatal(err)
	}
	link.onRemote(nil)
	if s.State() != StateActive {
		t.Fatalf("state = %v, want active", s.State())
	}

	time.Sleep(60 * time.Millisecond)
	if s.State() != StateActive {
		t.Errorf("timeout fired on an active call: state = %v", s.State())
	}
}

func TestLocalCandidatesForwardedToPeer(t *testing.T) {
	sig := &fakeSignaler{}
	m, link := newTestManager(sig, 0)

	if _, err := m.Call("bob"); err != nil {
		t.Fatal(err)
	}
	cand := json.RawMessage(`{"candidate":"local"}`)
	link.onLocal(cand)

	sig.mu.Lock()
	defer sig.mu.Unlock()
	lastIdx := len(sig.sent) - 1
	if lastIdx < 1 || sig.sent[lastIdx].kind != "candidate" || sig.sent[lastIdx].to != "bob" {
		t.Fatalf("candidate not forwarded: %v", sig.sent)
	}
	if !bytes.Equal(sig.sent[lastIdx].body, cand) {
		t.Errorf("candidate body altered: %s", sig.sent[lastIdx].body)
	}
}

func TestManagerCloseStopsMedia(t *testing.T) {
	sig := &fakeSignaler{}
	media := &countingMedia{}
	link := &fakeLink{}
	m := NewManager("Test User", media, func() (PeerLink, error) { return link, nil }, 0)
	m.Bind(sig)

	s, err := m.Call("bob")
	if err != nil {
		t.Fatal(err)
	}

	m.Close()
	if s.State() != StateTerminated {
		t.Errorf("state = %v, want terminated", s.State())
	}
	if media.stops != 1 {
		t.Errorf("media stopped %d times, want 1", media.stops)
	}

	m.Close()
	if media.stops != 1 {
		t.Errorf("second Close stopped media again (%d)", media.stops)
	}
}

type countingMedia struct {
	stops int
}

func (c *countingMedia) Tracks() []webrtc.TrackLocal { return nil }
func (c *countingMedia) Stop()                       { c.stops++ }
