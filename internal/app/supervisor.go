package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/rs/zerolog/log"
)

type ServerState int32

const (
	Serving ServerState = iota
	Draining
)

func (s ServerState) String() string {
	if s == Draining {
		return "draining"
	}
	return "serving"
}

// Supervisor watches the media worker. When it dies the server drains and
// Watch returns an EngineFatal error after the grace delay.
type Supervisor struct {
	Worker core.Worker
	Grace  time.Duration
	// OnDrain tears down open sessions; it runs once, before the grace delay.
	OnDrain func(cause error)

	state atomic.Int32
}

func (s *Supervisor) State() ServerState { return ServerState(s.state.Load()) }

func (s *Supervisor) Draining() bool { return s.State() == Draining }

// Watch blocks until ctx ends (nil) or the worker dies (EngineFatal).
func (s *Supervisor) Watch(ctx context.Context) error {
	var cause error
	select {
	case <-ctx.Done():
		return nil
	case cause = <-s.Worker.Died():
	}

	log.Error().Err(cause).Str("module", "app.supervisor").Int("pid", s.Worker.PID()).Dur("grace", s.Grace).Msg("media worker died, draining")
	s.state.Store(int32(Draining))
	if s.OnDrain != nil {
		s.OnDrain(cause)
	}

	t := time.NewTimer(s.Grace)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
	return domain.WrapError(domain.KindEngineFatal, "media worker died", cause)
}
