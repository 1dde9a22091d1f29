package signal

import (
	"context"
	"encoding/json"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/rs/zerolog/log"
)

type handlerFunc func(ctx context.Context, s *app.Session, env envelope)

func (ctl *SignalWSController) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		typeGetRtpCapabilities:   ctl.handleGetRtpCapabilities,
		typeCreateTransport:      ctl.handleCreateTransport,
		typeCreateRecvTransport:  ctl.handleCreateRecvTransport,
		typeTransportConnect:     ctl.handleConnect(domain.RoleSend),
		typeTransportRecvConnect: ctl.handleConnect(domain.RoleRecv),
		typeTransportProduce:     ctl.handleProduce,
		typeConsume:              ctl.handleConsume,
		typeConsumerResume:       ctl.handleConsumerResume,
		typePing:                 ctl.handlePing,
	}
}

// Dispatch decodes one inbound frame and answers it on the session's own connection.
func (ctl *SignalWSController) Dispatch(ctx context.Context, s *app.Session, data []byte) {
	logger := log.With().Str("module", "signal").Str("sid", string(s.SID())).Logger()

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		ctl.Metrics.Message("invalid")
		logger.Warn().Err(err).Msg("bad envelope")
		ctl.replyError(s, typeError, domain.WrapError(domain.KindProtocol, "malformed envelope", err))
		return
	}
	h, ok := ctl.handlers[env.Type]
	if !ok {
		ctl.Metrics.Message("unknown")
		logger.Warn().Str("type", env.Type).Msg("unknown signal")
		return
	}
	ctl.Metrics.Message(env.Type)
	if !ctl.Limiter.Allow(s.SID()) {
		ctl.replyError(s, env.Type, domain.NewError(domain.KindResourceExhausted, "too many requests"))
		return
	}
	h(ctx, s, env)
}

func (ctl *SignalWSController) handlePing(_ context.Context, s *app.Session, _ envelope) {
	ctl.reply(s, typePong, nil)
}

func (ctl *SignalWSController) greet(s *app.Session) {
	ctl.reply(s, typeConnectionSuccess, connectionSuccess{SocketID: s.SID()})
	s.Activate()
}

func (ctl *SignalWSController) reply(s *app.Session, typ string, v any) {
	frame, err := encode(typ, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", typ).Msg("encode reply")
		return
	}
	if err := s.Signal().TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(s.SID())).Str("type", typ).Msg("reply dropped")
	}
}

func (ctl *SignalWSController) replyError(s *app.Session, typ string, err error) {
	kind := domain.KindOf(err)
	ctl.Metrics.Error(string(kind))
	log.Warn().Err(err).Str("module", "signal").Str("sid", string(s.SID())).Str("type", typ).Str("kind", string(kind)).Msg("request failed")
	if typ == typeConsume {
		ctl.reply(s, typ, consumeResponse{Params: errorResponse(err)})
		return
	}
	ctl.reply(s, typ, errorResponse(err))
}
