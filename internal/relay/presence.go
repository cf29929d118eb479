package relay

import (
	"context"

	"github.com/connectify/connectify/internal/core"
	"github.com/connectify/connectify/internal/domain"
	"github.com/rs/zerolog/log"
)

// Presence wraps registry mutations and broadcasts the derived online-user
// set whenever it changes. Adapters register and unregister through Presence,
// never on the Registry directly, so the side effect cannot be forgotten.
type Presence struct {
	reg *Registry
}

func NewPresence(reg *Registry) *Presence {
	return &Presence{reg: reg}
}

func (p *Presence) Register(uid domain.UserID, sess core.Session, cancel context.CancelFunc) {
	p.reg.Register(uid, sess, cancel)
	p.announce()
}

func (p *Presence) Unregister(uid domain.UserID, sess core.Session) {
	if p.reg.Unregister(uid, sess) {
		p.announce()
	}
}

// announce sends the full sorted online-user sequence to every live session.
func (p *Presence) announce() {
	frame, err := core.Encode(core.EventOnlineUsers, p.reg.OnlineUserIDs())
	if err != nil {
		log.Error().Err(err).Str("module", "relay.presence").Msg("encode online users")
		return
	}
	for _, sess := range p.reg.Snapshot() {
		if err := sess.Signal().TrySend(frame); err != nil {
			// Slow consumer; its read pump will notice the dead connection.
			log.Debug().Str("module", "relay.presence").Str("user", string(sess.UserID())).Msg("presence frame dropped")
		}
	}
}
