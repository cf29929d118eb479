package signal

import (
	"encoding/json"

	"github.com/connectify/connectify/internal/core"
	"github.com/connectify/connectify/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) handleCallUser(uid domain.UserID, data []byte) {
	var p core.CallOffer
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad call-user payload")
		return
	}
	if p.To == "" {
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(uid) {
		log.Warn().Str("module", "signal").Str("user", string(uid)).Msg("call-user rate limited")
		return
	}
	log.Info().Str("module", "signal").Str("from", string(uid)).Str("to", p.To).Msg("call offer")
	ctl.Broker.Offer(uid, p)
}

func (ctl *Controller) handleAnswerCall(uid domain.UserID, data []byte) {
	var p core.CallAnswer
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad answer-call payload")
		return
	}
	if p.To == "" {
		return
	}
	log.Info().Str("module", "signal").Str("from", string(uid)).Str("to", p.To).Msg("call answer")
	ctl.Broker.Answer(uid, p)
}

func (ctl *Controller) handleCandidate(uid domain.UserID, data []byte) {
	var p core.CandidateSignal
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad ice-candidate payload")
		return
	}
	if p.To == "" {
		return
	}
	ctl.Broker.Candidate(uid, p)
}

func (ctl *Controller) handleRejectCall(uid domain.UserID, data []byte) {
	var p core.RejectCall
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad reject-call payload")
		return
	}
	if p.To == "" {
		return
	}
	log.Info().Str("module", "signal").Str("from", string(uid)).Str("to", p.To).Msg("call rejected")
	ctl.Broker.Reject(uid, p)
}
