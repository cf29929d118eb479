// Package signal is the websocket adapter of the relay layer: it upgrades
// authenticated requests, runs the read/write pumps, and dispatches the
// closed set of inbound realtime events.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/connectify/connectify/internal/config"
	"github.com/connectify/connectify/internal/core"
	"github.com/connectify/connectify/internal/domain"
	"github.com/connectify/connectify/internal/relay"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Presence *relay.Presence
	Router   *relay.Router
	Broker   *relay.Broker
	Limiter  *RateLimiter
	Cfg      *config.Config
}

func NewController(cfg *config.Config, presence *relay.Presence, router *relay.Router, broker *relay.Broker, limiter *RateLimiter) *Controller {
	return &Controller{
		Presence: presence,
		Router:   router,
		Broker:   broker,
		Limiter:  limiter,
		Cfg:      cfg,
	}
}

type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSocket upgrades the request and registers the session. The auth
// middleware has already resolved the user; a request that reaches this
// point without one is refused, not trusted.
func (ctl *Controller) HandleSocket(ctx context.Context, c *gin.Context) {
	uid := domain.UserID(c.GetString("user_id"))
	if uid == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	log.Info().Str("module", "signal").Str("user", string(uid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, ctl.Cfg.SendBuffer),
	}

	sess := core.NewSession(uid, conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Presence.Register(uid, sess, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, uid, sess, conn)
}
