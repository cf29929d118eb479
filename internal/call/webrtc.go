package call

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// WebRTCLink is the production PeerLink on top of pion. Trickle ICE:
// candidates surface through OnLocalSignal as they are found, the SDP is
// never held back waiting for gathering to finish.
type WebRTCLink struct {
	pc *webrtc.PeerConnection

	mu       sync.Mutex
	onLocal  func(json.RawMessage)
	onRemote func(any)
	closed   bool
}

// NewWebRTCLink builds a peer connection with the local media attached.
// The link does not own the media; it only forwards its tracks.
func NewWebRTCLink(stunServers []string, media MediaSource) (*WebRTCLink, error) {
	if media == nil {
		return nil, ErrMediaUnavailable
	}

	cfg := webrtc.Configuration{}
	if len(stunServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: stunServers}}
	}

	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}

	l := &WebRTCLink{pc: pc}

	for _, track := range media.Tracks() {
		sender, err := pc.AddTrack(track)
		if err != nil {
			pc.Close()
			return nil, err
		}
		go drainRTCP(sender)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			log.Warn().Err(err).Str("module", "call").Msg("marshal candidate")
			return
		}
		l.mu.Lock()
		fn := l.onLocal
		l.mu.Unlock()
		if fn != nil {
			fn(raw)
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Debug().Str("module", "call").
			Str("kind", track.Kind().String()).
			Msg("remote track")
		l.mu.Lock()
		fn := l.onRemote
		l.mu.Unlock()
		if fn != nil {
			fn(track)
		}
	})

	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		log.Debug().Str("module", "call").Str("state", st.String()).Msg("peer connection")
	})

	return l, nil
}

func (l *WebRTCLink) CreateOffer() (json.RawMessage, error) {
	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return json.Marshal(offer)
}

func (l *WebRTCLink) CreateAnswer(offer json.RawMessage) (json.RawMessage, error) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(offer, &desc); err != nil {
		return nil, err
	}
	if err := l.pc.SetRemoteDescription(desc); err != nil {
		return nil, err
	}
	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return json.Marshal(answer)
}

// ApplyRemoteSignal probes the blob: a "type" field means an SDP
// description, otherwise it is an ICE candidate.
func (l *WebRTCLink) ApplyRemoteSignal(sig json.RawMessage) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(sig, &probe); err != nil {
		return err
	}

	if probe.Type != "" {
		var desc webrtc.SessionDescription
		if err := json.Unmarshal(sig, &desc); err != nil {
			return err
		}
		return l.pc.SetRemoteDescription(desc)
	}

	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(sig, &cand); err != nil {
		return err
	}
	if cand.Candidate == "" {
		return errors.New("unrecognized signal")
	}
	return l.pc.AddICECandidate(cand)
}

func (l *WebRTCLink) OnLocalSignal(fn func(json.RawMessage)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onLocal = fn
}

func (l *WebRTCLink) OnRemoteStream(fn func(any)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onRemote = fn
}

func (l *WebRTCLink) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	if err := l.pc.Close(); err != nil {
		log.Debug().Err(err).Str("module", "call").Msg("close peer connection")
	}
}

// drainRTCP keeps the sender's RTCP stream flowing; pion needs the reads
// for interceptors to run.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
