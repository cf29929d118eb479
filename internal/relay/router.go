package relay

import (
	"github.com/connectify/connectify/internal/core"
	"github.com/connectify/connectify/internal/domain"
	"github.com/rs/zerolog/log"
)

// Router delivers a targeted event to a user's live session, if any.
// Delivery is best-effort and at-most-once: an offline target or a full
// buffer drops the event without surfacing an error to the caller. Message
// durability is the store's job, not the router's.
//
// Events to the same target go through that session's single buffered send
// channel, so their relative order is the order Deliver was invoked in.
type Router struct {
	reg *Registry
}

func NewRouter(reg *Registry) *Router {
	return &Router{reg: reg}
}

func (rt *Router) Deliver(target domain.UserID, event string, payload any) {
	sess, ok := rt.reg.Lookup(target)
	if !ok {
		log.Debug().Str("module", "relay.router").Str("user", string(target)).Str("event", event).Msg("target offline, dropped")
		return
	}
	frame, err := core.Encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "relay.router").Str("event", event).Msg("encode event")
		return
	}
	if err := sess.Signal().TrySend(frame); err != nil {
		log.Debug().Str("module", "relay.router").Str("user", string(target)).Str("event", event).Msg("send failed, dropped")
	}
}
