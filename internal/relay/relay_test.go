package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/connectify/connectify/internal/core"
	"github.com/connectify/connectify/internal/domain"
)

// fakeConn records every frame; set full to simulate backpressure.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return errors.New("backpressure")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) envelopes(t *testing.T) []core.Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Envelope, 0, len(f.frames))
	for _, fr := range f.frames {
		var env core.Envelope
		if err := json.Unmarshal(fr, &env); err != nil {
			t.Fatalf("bad frame %q: %v", fr, err)
		}
		out = append(out, env)
	}
	return out
}

func (f *fakeConn) last(t *testing.T) core.Envelope {
	t.Helper()
	envs := f.envelopes(t)
	if len(envs) == 0 {
		t.Fatal("no frames received")
	}
	return envs[len(envs)-1]
}

func newFakeSession(uid string) (core.Session, *fakeConn) {
	conn := &fakeConn{}
	return core.NewSession(domain.UserID(uid), conn), conn
}

func TestRegistryLastConnectWins(t *testing.T) {
	reg := NewRegistry()
	first, _ := newFakeSession("alice")
	second, _ := newFakeSession("alice")

	reg.Register("alice", first, nil)
	reg.Register("alice", second, nil)

	got, ok := reg.Lookup("alice")
	if !ok || got != second {
		t.Fatal("expected the newer session to win")
	}

	// The superseded session's late disconnect must not evict the newer one.
	if reg.Unregister("alice", first) {
		t.Error("stale unregister reported removal")
	}
	if _, ok := reg.Lookup("alice"); !ok {
		t.Fatal("newer session was evicted by a stale disconnect")
	}

	if !reg.Unregister("alice", second) {
		t.Error("current unregister reported no removal")
	}
	if _, ok := reg.Lookup("alice"); ok {
		t.Error("session still present after unregister")
	}
}

func TestRegistryOnlineUserIDs(t *testing.T) {
	reg := NewRegistry()
	for _, uid := range []string{"carol", "alice", "bob"} {
		sess, _ := newFakeSession(uid)
		reg.Register(domain.UserID(uid), sess, nil)
	}

	got := reg.OnlineUserIDs()
	want := []string{"alice", "bob", "carol"}
	if len(got) != len(want) {
		t.Fatalf("got %d ids, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistryShutdownCancelsSessions(t *testing.T) {
	reg := NewRegistry()
	sess, _ := newFakeSession("alice")
	ctx, cancel := context.WithCancel(context.Background())
	reg.Register("alice", sess, cancel)

	reg.Shutdown()

	select {
	case <-ctx.Done():
	default:
		t.Error("session context not cancelled on shutdown")
	}
	if len(reg.OnlineUserIDs()) != 0 {
		t.Error("registry not empty after shutdown")
	}
}

func TestPresenceAnnouncesOnChange(t *testing.T) {
	reg := NewRegistry()
	p := NewPresence(reg)

	alice, aliceConn := newFakeSession("alice")
	bob, bobConn := newFakeSession("bob")

	p.Register("alice", alice, nil)
	p.Register("bob", bob, nil)

	env := bobConn.last(t)
	if env.Event != core.EventOnlineUsers {
		t.Fatalf("event = %q, want %q", env.Event, core.EventOnlineUsers)
	}
	var ids []string
	if err := json.Unmarshal(env.Data, &ids); err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "alice" || ids[1] != "bob" {
		t.Errorf("online ids = %v, want [alice bob]", ids)
	}

	p.Unregister("alice", alice)
	env = bobConn.last(t)
	if err := json.Unmarshal(env.Data, &ids); err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "bob" {
		t.Errorf("online ids after disconnect = %v, want [bob]", ids)
	}

	// A stale disconnect changes nothing, so nothing is announced.
	before := len(bobConn.envelopes(t))
	p.Unregister("alice", alice)
	if got := len(bobConn.envelopes(t)); got != before {
		t.Errorf("stale disconnect triggered %d extra announcements", got-before)
	}

	// The departed session must not receive the update it is absent from.
	env = aliceConn.last(t)
	if err := json.Unmarshal(env.Data, &ids); err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Errorf("departed session saw %v, want the pre-departure set", ids)
	}
}

func TestRouterDeliver(t *testing.T) {
	reg := NewRegistry()
	rt := NewRouter(reg)

	t.Run("offline target is a silent no-op", func(t *testing.T) {
		rt.Deliver("ghost", core.EventNewMessage, map[string]string{"text": "hi"})
	})

	t.Run("frames keep delivery order", func(t *testing.T) {
		sess, conn := newFakeSession("bob")
		reg.Register("bob", sess, nil)

		rt.Deliver("bob", core.EventNewMessage, map[string]string{"text": "X"})
		rt.Deliver("bob", core.EventNewMessage, map[string]string{"text": "Y"})

		envs := conn.envelopes(t)
		if len(envs) != 2 {
			t.Fatalf("got %d frames, want 2", len(envs))
		}
		if !bytes.Contains(envs[0].Data, []byte(`"X"`)) || !bytes.Contains(envs[1].Data, []byte(`"Y"`)) {
			t.Errorf("frames out of order: %s, %s", envs[0].Data, envs[1].Data)
		}
	})

	t.Run("backpressure drops without error", func(t *testing.T) {
		sess, conn := newFakeSession("slow")
		conn.full = true
		reg.Register("slow", sess, nil)

		rt.Deliver("slow", core.EventNewMessage, map[string]string{"text": "lost"})
		if len(conn.envelopes(t)) != 0 {
			t.Error("frame delivered despite backpressure")
		}
	})
}

func TestBrokerRelay(t *testing.T) {
	reg := NewRegistry()
	broker := NewBroker(NewRouter(reg))

	bob, bobConn := newFakeSession("bob")
	reg.Register("bob", bob, nil)

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0 caller"}`)

	t.Run("offer becomes incoming-call with verbatim body", func(t *testing.T) {
		broker.Offer("alice", core.CallOffer{To: "bob", Offer: offer, FromName: "Alice A"})

		env := bobConn.last(t)
		if env.Event != core.EventIncomingCall {
			t.Fatalf("event = %q, want %q", env.Event, core.EventIncomingCall)
		}
		var p core.IncomingCall
		if err := json.Unmarshal(env.Data, &p); err != nil {
			t.Fatal(err)
		}
		if p.From != "alice" || p.FromName != "Alice A" {
			t.Errorf("caller identity = %q/%q", p.From, p.FromName)
		}
		if !bytes.Equal(p.Offer, offer) {
			t.Errorf("offer body altered: %s", p.Offer)
		}
	})

	t.Run("answer becomes call-accepted", func(t *testing.T) {
		answer := json.RawMessage(`{"type":"answer","sdp":"v=0 callee"}`)
		broker.Answer("carol", core.CallAnswer{To: "bob", Answer: answer})

		env := bobConn.last(t)
		if env.Event != core.EventCallAccepted {
			t.Fatalf("event = %q, want %q", env.Event, core.EventCallAccepted)
		}
		var p core.CallAccepted
		if err := json.Unmarshal(env.Data, &p); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(p.Answer, answer) {
			t.Errorf("answer body altered: %s", p.Answer)
		}
	})

	t.Run("candidate passes through without the address field", func(t *testing.T) {
		cand := json.RawMessage(`{"candidate":"candidate:1 1 udp 2130706431 10.0.0.1 54321 typ host"}`)
		broker.Candidate("carol", core.CandidateSignal{To: "bob", Candidate: cand})

		env := bobConn.last(t)
		if env.Event != core.EventICECandidate {
			t.Fatalf("event = %q, want %q", env.Event, core.EventICECandidate)
		}
		var p core.CandidateSignal
		if err := json.Unmarshal(env.Data, &p); err != nil {
			t.Fatal(err)
		}
		if p.To != "" {
			t.Errorf("recipient field leaked to the wire: %q", p.To)
		}
		if !bytes.Equal(p.Candidate, cand) {
			t.Errorf("candidate body altered: %s", p.Candidate)
		}
	})

	t.Run("reject becomes call-rejected", func(t *testing.T) {
		broker.Reject("carol", core.RejectCall{To: "bob"})
		env := bobConn.last(t)
		if env.Event != core.EventCallRejected {
			t.Fatalf("event = %q, want %q", env.Event, core.EventCallRejected)
		}
	})

	t.Run("offline target swallows the signal", func(t *testing.T) {
		before := len(bobConn.envelopes(t))
		broker.Offer("alice", core.CallOffer{To: "ghost", Offer: offer})
		if got := len(bobConn.envelopes(t)); got != before {
			t.Error("signal for an offline user reached someone else")
		}
	})
}
