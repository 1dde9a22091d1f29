package app

import (
	"context"
	"time"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Negotiator drives the create/connect state machine of session transports.
type Negotiator struct {
	Router             core.Router
	Options            core.WebRtcTransportOptions
	CallTimeout        time.Duration
	NegotiationTimeout time.Duration
	Metrics            *metrics.Metrics
}

// EngineCall bounds ctx with the engine call timeout.
func EngineCall(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// EngineErr keeps classified errors and marks everything else as an engine failure.
func EngineErr(op string, err error) error {
	switch domain.KindOf(err) {
	case domain.KindEngine:
		return domain.WrapError(domain.KindEngine, op+" failed", err)
	case domain.KindTimeout:
		return domain.WrapError(domain.KindTimeout, op+" timed out", err)
	}
	return err
}

// CreateTransport creates a transport of role for s. An existing transport of
// the same role is closed and replaced.
func (n *Negotiator) CreateTransport(ctx context.Context, s *Session, role domain.TransportRole) (domain.TransportDescriptor, error) {
	logger := log.With().Str("module", "app.negotiator").Str("sid", string(s.SID())).Str("role", string(role)).Logger()
	if s.State() == domain.SessionClosed {
		return domain.TransportDescriptor{}, domain.NewError(domain.KindInvalidState, "session closed")
	}

	t := newTransport(s.SID(), role)
	opts := n.Options
	opts.AppData = map[string]string{"sid": string(s.SID()), "role": string(role)}

	callCtx, cancel := EngineCall(ctx, n.CallTimeout)
	et, err := n.Router.CreateWebRtcTransport(callCtx, opts)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("create transport")
		return domain.TransportDescriptor{}, EngineErr("create transport", err)
	}
	t.created(et)

	old, err := s.installTransport(t)
	if err != nil {
		// the session went away while the engine was busy
		logger.Info().Str("transport", t.ID).Msg("session closed during create, discarding transport")
		t.Close(domain.ReasonSessionClose)
		return domain.TransportDescriptor{}, err
	}
	if old != nil && old.Close(domain.ReasonReplaced) {
		logger.Info().Str("old", old.ID).Str("transport", t.ID).Msg("replaced transport")
	}

	n.Metrics.TransportOpened(string(role))
	t.OnClose(func(reason string) {
		n.Metrics.TransportClosed(string(role), reason)
		logger.Info().Str("transport", t.ID).Str("reason", reason).Msg("transport closed")
	})
	et.OnDtlsStateChange(func(st domain.DtlsState) {
		if st == domain.DtlsClosed || st == domain.DtlsFailed {
			t.Close(domain.ReasonDtlsClose)
		}
	})
	t.armTimeout(n.NegotiationTimeout, func() {
		if t.State() != domain.TransportConnected && t.Close(domain.ReasonTimeout) {
			logger.Warn().Str("transport", t.ID).Dur("after", n.NegotiationTimeout).Msg("negotiation timed out")
		}
	})

	logger.Info().Str("transport", t.ID).Msg("transport created")
	return t.Descriptor(), nil
}

// ConnectTransport hands the peer's DTLS parameters to the engine and returns
// the transport id on success.
func (n *Negotiator) ConnectTransport(ctx context.Context, s *Session, role domain.TransportRole, dtls domain.DtlsParameters) (string, error) {
	t, ok := s.Transport(role)
	if !ok {
		return "", domain.Errorf(domain.KindInvalidState, "no %s transport", role)
	}
	if err := t.beginConnect(); err != nil {
		return "", err
	}

	callCtx, cancel := EngineCall(ctx, n.CallTimeout)
	err := t.Engine().Connect(callCtx, dtls)
	cancel()
	if err != nil {
		t.abortConnect()
		log.Error().Err(err).Str("module", "app.negotiator").Str("sid", string(s.SID())).Str("transport", t.ID).Msg("connect transport")
		return "", EngineErr("connect transport", err)
	}
	if err := t.markConnected(); err != nil {
		return "", err
	}
	log.Info().Str("module", "app.negotiator").Str("sid", string(s.SID())).Str("transport", t.ID).Msg("transport connected")
	return t.ID, nil
}
