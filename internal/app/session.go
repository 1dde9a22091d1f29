package app

import (
	"context"
	"sync"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
)

// Session is the server-side state of one signaling connection.
// It owns at most one transport per role, one producer and one consumer.
type Session struct {
	id     core.SessionID
	peer   *domain.Peer
	room   domain.RoomName
	signal core.SignalConnection
	cancel context.CancelFunc

	mu         sync.Mutex
	state      domain.SessionState
	transports map[domain.TransportRole]*Transport
	producerID string
	consumerID string
}

func newSession(id core.SessionID, peer *domain.Peer, room domain.RoomName, conn core.SignalConnection, cancel context.CancelFunc) *Session {
	return &Session{
		id:         id,
		peer:       peer,
		room:       room,
		signal:     conn,
		cancel:     cancel,
		state:      domain.SessionConnecting,
		transports: make(map[domain.TransportRole]*Transport, 2),
	}
}

func (s *Session) SID() core.SessionID           { return s.id }
func (s *Session) Peer() *domain.Peer            { return s.peer }
func (s *Session) Room() domain.RoomName         { return s.room }
func (s *Session) Signal() core.SignalConnection { return s.signal }

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Activate moves a connecting session to Active once the peer has been greeted.
func (s *Session) Activate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionConnecting {
		return false
	}
	s.state = domain.SessionActive
	return true
}

// Transport returns the latest transport of role, which may already be closed.
func (s *Session) Transport(role domain.TransportRole) (*Transport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transports[role]
	return t, ok
}

// installTransport stores t and hands back the transport it replaces.
func (s *Session) installTransport(t *Transport) (*Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.SessionClosed {
		return nil, domain.NewError(domain.KindInvalidState, "session closed")
	}
	old := s.transports[t.Role]
	s.transports[t.Role] = t
	return old, nil
}

func (s *Session) ProducerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.producerID
}

// AttachProducer records the session's single producer.
func (s *Session) AttachProducer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.SessionClosed {
		return domain.NewError(domain.KindInvalidState, "session closed")
	}
	if s.producerID != "" {
		return domain.NewError(domain.KindInvalidState, "session already produces")
	}
	s.producerID = id
	return nil
}

func (s *Session) DetachProducer(id string) {
	s.mu.Lock()
	if s.producerID == id {
		s.producerID = ""
	}
	s.mu.Unlock()
}

func (s *Session) ConsumerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumerID
}

// SwapConsumer installs id and returns the consumer it replaces, if any.
func (s *Session) SwapConsumer(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.SessionClosed {
		return "", domain.NewError(domain.KindInvalidState, "session closed")
	}
	prev := s.consumerID
	s.consumerID = id
	return prev, nil
}

func (s *Session) DetachConsumer(id string) {
	s.mu.Lock()
	if s.consumerID == id {
		s.consumerID = ""
	}
	s.mu.Unlock()
}

// close marks the session closed and returns its transports for teardown.
func (s *Session) close() ([]*Transport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.SessionClosed {
		return nil, false
	}
	s.state = domain.SessionClosed
	out := make([]*Transport, 0, len(s.transports))
	for _, t := range s.transports {
		out = append(out, t)
	}
	return out, true
}
