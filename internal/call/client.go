package call

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/connectify/connectify/internal/core"
)

const writeTimeout = 5 * time.Second

// Client is the websocket side of a Connectify client: it keeps the relay
// connection, feeds call signals to the Manager, and surfaces everything
// else through callbacks.
type Client struct {
	conn *websocket.Conn
	mgr  *Manager

	writeMu sync.Mutex

	OnOnlineUsers func(ids []string)
	OnNewMessage  func(raw json.RawMessage)
	OnTyping      func(sig core.TypingSignal)
	OnReaction    func(upd core.ReactionUpdate)
}

// Dial connects to the relay endpoint and binds the manager to the new
// connection. The header carries the session cookie from the REST login.
func Dial(ctx context.Context, url string, header http.Header, mgr *Manager) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c := &Client{conn: conn, mgr: mgr}
	mgr.Bind(c)
	return c, nil
}

// Run reads relay frames until the connection drops or ctx is done.
func (c *Client) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var env core.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("bad frame")
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env core.Envelope) {
	switch env.Event {
	case core.EventOnlineUsers:
		var ids []string
		if err := json.Unmarshal(env.Data, &ids); err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("bad online users payload")
			return
		}
		if c.OnOnlineUsers != nil {
			c.OnOnlineUsers(ids)
		}
	case core.EventIncomingCall:
		var p core.IncomingCall
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("bad incoming call payload")
			return
		}
		c.mgr.HandleIncoming(p.From, p.FromName, p.Offer)
	case core.EventCallAccepted:
		var p core.CallAccepted
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("bad call accepted payload")
			return
		}
		c.mgr.HandleAccepted(p.Answer)
	case core.EventICECandidate:
		var p core.CandidateSignal
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("bad candidate payload")
			return
		}
		c.mgr.HandleCandidate(p.Candidate)
	case core.EventCallRejected:
		c.mgr.HandleRejected()
	case core.EventNewMessage:
		if c.OnNewMessage != nil {
			c.OnNewMessage(env.Data)
		}
	case core.EventTyping:
		var p core.TypingSignal
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("bad typing payload")
			return
		}
		if c.OnTyping != nil {
			c.OnTyping(p)
		}
	case core.EventMessageReaction:
		var p core.ReactionUpdate
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("bad reaction payload")
			return
		}
		if c.OnReaction != nil {
			c.OnReaction(p)
		}
	default:
		log.Debug().Str("module", "client").Str("event", env.Event).Msg("unhandled event")
	}
}

func (c *Client) SendOffer(to string, offer json.RawMessage, fromName string) error {
	return c.send(core.EventCallUser, core.CallOffer{To: to, Offer: offer, FromName: fromName})
}

func (c *Client) SendAnswer(to string, answer json.RawMessage) error {
	return c.send(core.EventAnswerCall, core.CallAnswer{To: to, Answer: answer})
}

func (c *Client) SendCandidate(to string, candidate json.RawMessage) error {
	return c.send(core.EventICECandidate, core.CandidateSignal{To: to, Candidate: candidate})
}

func (c *Client) SendReject(to string) error {
	return c.send(core.EventRejectCall, core.RejectCall{To: to})
}

// SendTyping forwards a typing notification to the peer.
func (c *Client) SendTyping(to string, typing bool) error {
	return c.send(core.EventTyping, core.TypingSignal{To: to, Typing: typing})
}

func (c *Client) send(event string, payload any) error {
	frame, err := core.Encode(event, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) Close() {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.conn.Close()
}
