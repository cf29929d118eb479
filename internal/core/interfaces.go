// Package core holds the transport-free types shared by the relay layer and
// its adapters.
package core

import "github.com/connectify/connectify/internal/domain"

// Frame is a raw outbound payload (an encoded Envelope).
type Frame []byte

// SignalConnection abstracts the messaging transport of one live connection.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues a frame without blocking. It returns an error when the
	// outbound buffer is full or the connection is closed; the caller decides
	// whether that matters.
	TrySend(Frame) error
	Close()
}

// Session binds an authenticated user identity to its transport endpoint.
// This is what the registry stores and the router fans out to.
type Session interface {
	UserID() domain.UserID
	Signal() SignalConnection
}

type session struct {
	uid  domain.UserID
	conn SignalConnection
}

func NewSession(uid domain.UserID, conn SignalConnection) Session {
	return &session{uid: uid, conn: conn}
}

func (s *session) UserID() domain.UserID    { return s.uid }
func (s *session) Signal() SignalConnection { return s.conn }
