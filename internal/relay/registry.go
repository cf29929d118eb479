// Package relay owns the process-wide realtime state: which users are
// connected, and how events and call signals reach them.
package relay

import (
	"context"
	"sort"
	"sync"

	"github.com/connectify/connectify/internal/core"
	"github.com/connectify/connectify/internal/domain"
	"github.com/rs/zerolog/log"
)

type entry struct {
	Session core.Session
	Cancel  context.CancelFunc
}

// Registry maps a user identity to at most one live session. Nothing here is
// persisted: a restart empties the registry and clients re-announce on
// reconnect.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.UserID]*entry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.UserID]*entry),
	}
}

// Register binds a session to a user. A second connect for the same user
// silently supersedes the previous entry (last-connect-wins); the superseded
// session is not closed here, its own disconnect will come around.
func (r *Registry) Register(uid domain.UserID, sess core.Session, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[uid]; ok {
		log.Info().Str("module", "relay.registry").Str("user", string(uid)).Msg("superseding existing session")
	}
	r.sessions[uid] = &entry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "relay.registry").Str("user", string(uid)).Msg("session registered")
}

// Unregister removes the mapping for the session's user, but only if sess is
// still the registered one. A stale disconnect (the session was superseded
// before its transport died) must not remove the newer entry. Returns
// whether an entry was actually removed.
func (r *Registry) Unregister(uid domain.UserID, sess core.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[uid]
	if !ok || e.Session != sess {
		log.Debug().Str("module", "relay.registry").Str("user", string(uid)).Msg("stale disconnect ignored")
		return false
	}
	delete(r.sessions, uid)
	log.Info().Str("module", "relay.registry").Str("user", string(uid)).Msg("session unregistered")
	return true
}

// Lookup never mutates state.
func (r *Registry) Lookup(uid domain.UserID) (core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[uid]
	if !ok {
		return nil, false
	}
	return e.Session, true
}

// OnlineUserIDs returns the key set of the registry, sorted for a stable
// wire sequence.
func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for uid := range r.sessions {
		ids = append(ids, string(uid))
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns every live session, for presence fan-out.
func (r *Registry) Snapshot() []core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.Session)
	}
	return out
}

// Shutdown cancels every session's context. The adapters close their own
// connections when their contexts die.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uid, e := range r.sessions {
		if e.Cancel != nil {
			e.Cancel()
		}
		delete(r.sessions, uid)
	}
	log.Info().Str("module", "relay.registry").Msg("registry shut down")
}
