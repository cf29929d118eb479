package call

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// MediaSource is the local capture, acquired once at startup and shared
// across calls. Stop is called exactly once, at client shutdown.
type MediaSource interface {
	Tracks() []webrtc.TrackLocal
	Stop()
}

// LoopbackSource is a headless media source: it publishes an opus track
// and can mirror a remote track back into it. Used by the call bot, where
// there is no capture device to attach.
type LoopbackSource struct {
	audio *webrtc.TrackLocalStaticRTP

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

func NewLoopbackSource() (*LoopbackSource, error) {
	audio, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "loopback-"+uuid.NewString(),
	)
	if err != nil {
		return nil, err
	}
	return &LoopbackSource{audio: audio, done: make(chan struct{})}, nil
}

func (l *LoopbackSource) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{l.audio}
}

func (l *LoopbackSource) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	close(l.done)
}

// Feed mirrors a remote track into the local one until the track ends or
// the source is stopped. Run it in its own goroutine.
func (l *LoopbackSource) Feed(track *webrtc.TrackRemote) {
	for {
		select {
		case <-l.done:
			return
		default:
		}

		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		if err := l.writePacket(pkt); err != nil {
			log.Debug().Err(err).Str("module", "call").Msg("loopback write")
			return
		}
	}
}

func (l *LoopbackSource) writePacket(pkt *rtp.Packet) error {
	return l.audio.WriteRTP(pkt)
}
