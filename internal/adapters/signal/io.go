package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/connectify/connectify/internal/core"
	"github.com/connectify/connectify/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, uid domain.UserID, sess core.Session, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("user", string(uid)).Msg("readPump closing")
		ctl.Presence.Unregister(uid, sess)
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("user", string(uid)).Msg("readPump read error")
				}
				return
			}
			ctl.dispatch(uid, data)
		}
	}
}

// dispatch matches the closed inbound event set. Unknown events and
// malformed payloads are dropped; a bad client must not take the relay down.
func (ctl *Controller) dispatch(uid domain.UserID, data []byte) {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("user", string(uid)).Msg("bad envelope")
		return
	}

	switch env.Event {
	case core.EventCallUser:
		ctl.handleCallUser(uid, env.Data)
	case core.EventAnswerCall:
		ctl.handleAnswerCall(uid, env.Data)
	case core.EventICECandidate:
		ctl.handleCandidate(uid, env.Data)
	case core.EventRejectCall:
		ctl.handleRejectCall(uid, env.Data)
	case core.EventTyping:
		ctl.handleTyping(uid, env.Data)
	default:
		log.Warn().Str("module", "signal").Str("event", env.Event).Msg("unknown event")
	}
}

func (ctl *Controller) handleTyping(uid domain.UserID, data []byte) {
	var p core.TypingSignal
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad typing payload")
		return
	}
	if p.To == "" {
		return
	}
	ctl.Router.Deliver(domain.UserID(p.To), core.EventTyping, core.TypingSignal{
		From:   string(uid),
		Typing: p.Typing,
	})
}
