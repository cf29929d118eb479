package relay

import (
	"github.com/connectify/connectify/internal/core"
	"github.com/connectify/connectify/internal/domain"
)

// Broker relays WebRTC handshake messages between exactly two parties. It is
// stateless and keyed purely on the recipient identity: offer, answer and
// candidate bodies pass through verbatim, never validated or transformed.
// If the target is offline the signal vanishes; the caller's only cue is
// the absence of an answer.
type Broker struct {
	router *Router
}

func NewBroker(router *Router) *Broker {
	return &Broker{router: router}
}

func (b *Broker) Offer(from domain.UserID, p core.CallOffer) {
	b.router.Deliver(domain.UserID(p.To), core.EventIncomingCall, core.IncomingCall{
		From:     string(from),
		Offer:    p.Offer,
		FromName: p.FromName,
	})
}

func (b *Broker) Answer(from domain.UserID, p core.CallAnswer) {
	b.router.Deliver(domain.UserID(p.To), core.EventCallAccepted, core.CallAccepted{
		Answer: p.Answer,
	})
}

func (b *Broker) Candidate(from domain.UserID, p core.CandidateSignal) {
	b.router.Deliver(domain.UserID(p.To), core.EventICECandidate, core.CandidateSignal{
		Candidate: p.Candidate,
	})
}

func (b *Broker) Reject(from domain.UserID, p core.RejectCall) {
	b.router.Deliver(domain.UserID(p.To), core.EventCallRejected, nil)
}
