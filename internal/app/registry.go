package app

import (
	"context"
	"sync"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*Session
	max      int
	draining bool

	Metrics *metrics.Metrics
}

// NewRegistry caps open sessions at maxSessions; zero means no cap.
func NewRegistry(maxSessions int) *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*Session),
		max:      maxSessions,
	}
}

// CreateSession registers a new session in Connecting state under a fresh id.
func (r *Registry) CreateSession(
	conn core.SignalConnection,
	peer *domain.Peer,
	room domain.RoomName,
	cancel context.CancelFunc,
) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.draining {
		return nil, domain.NewError(domain.KindEngineFatal, "media engine is gone, server is draining")
	}
	if r.max > 0 && len(r.sessions) >= r.max {
		log.Warn().Str("module", "app.registry").Int("max", r.max).Msg("session limit reached")
		return nil, domain.Errorf(domain.KindResourceExhausted, "session limit %d reached", r.max)
	}
	sid := core.SessionID(uuid.NewString())
	s := newSession(sid, peer, room, conn, cancel)
	r.sessions[sid] = s
	r.Metrics.SessionOpened()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("created session")
	return s, nil
}

func (r *Registry) GetSession(sid core.SessionID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sessions[sid]; ok {
		return s, nil
	}
	return nil, domain.Errorf(domain.KindNotFound, "session %s not found", sid)
}

// DestroySession closes everything the session owns. Unknown ids are ignored.
func (r *Registry) DestroySession(sid core.SessionID) bool {
	r.mu.Lock()
	s, ok := r.sessions[sid]
	delete(r.sessions, sid)
	r.mu.Unlock()
	if !ok {
		return false
	}

	transports, closed := s.close()
	if !closed {
		return false
	}
	for _, t := range transports {
		t.Close(domain.ReasonSessionClose)
	}
	r.Metrics.SessionClosed()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Int("transports", len(transports)).Msg("destroyed session")
	return true
}

// Drain stops accepting sessions and returns the ones still open.
func (r *Registry) Drain() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draining = true
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	log.Warn().Str("module", "app.registry").Int("sessions", len(out)).Msg("registry draining")
	return out
}

func (r *Registry) Draining() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.draining
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) MembersOfRoom(name domain.RoomName) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.room == name {
			out = append(out, s)
		}
	}
	return out
}

// Cancel stops the session's connection pumps.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	s, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
