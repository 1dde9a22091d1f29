package signal

import (
	"context"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleGetRtpCapabilities(_ context.Context, s *app.Session, _ envelope) {
	ctl.reply(s, typeGetRtpCapabilities, capabilitiesResponse{RtpCapabilities: ctl.Orch.Capabilities()})
}

func (ctl *SignalWSController) handleCreateTransport(ctx context.Context, s *app.Session, env envelope) {
	var req createTransportRequest
	if err := env.decodeData(&req); err != nil {
		ctl.replyError(s, env.Type, err)
		return
	}
	if req.Sender == nil {
		ctl.replyError(s, env.Type, domain.NewError(domain.KindProtocol, "sender is required"))
		return
	}
	ctl.createTransport(ctx, s, env.Type, roleOf(*req.Sender))
}

// handleCreateRecvTransport treats an absent sender flag as a receive transport.
func (ctl *SignalWSController) handleCreateRecvTransport(ctx context.Context, s *app.Session, env envelope) {
	var req createTransportRequest
	if err := env.decodeData(&req); err != nil {
		ctl.replyError(s, env.Type, err)
		return
	}
	role := domain.RoleRecv
	if req.Sender != nil {
		role = roleOf(*req.Sender)
	}
	ctl.createTransport(ctx, s, env.Type, role)
}

func roleOf(sender bool) domain.TransportRole {
	if sender {
		return domain.RoleSend
	}
	return domain.RoleRecv
}

func (ctl *SignalWSController) createTransport(ctx context.Context, s *app.Session, typ string, role domain.TransportRole) {
	desc, err := ctl.Orch.CreateTransport(ctx, s, role)
	if err != nil {
		ctl.replyError(s, typ, err)
		return
	}
	ctl.reply(s, typ, desc)
}

func (ctl *SignalWSController) handleConnect(role domain.TransportRole) handlerFunc {
	return func(ctx context.Context, s *app.Session, env envelope) {
		var req connectTransportRequest
		if err := env.decodeData(&req); err != nil {
			ctl.replyError(s, env.Type, err)
			return
		}
		if req.DtlsParameters == nil || len(req.DtlsParameters.Fingerprints) == 0 {
			ctl.replyError(s, env.Type, domain.NewError(domain.KindProtocol, "dtlsParameters with fingerprints are required"))
			return
		}
		id, err := ctl.Orch.ConnectTransport(ctx, s, role, *req.DtlsParameters)
		if err != nil {
			ctl.replyError(s, env.Type, err)
			return
		}
		ctl.reply(s, env.Type, idPayload{ID: id})
	}
}

func (ctl *SignalWSController) handleProduce(ctx context.Context, s *app.Session, env envelope) {
	var req produceRequest
	if err := env.decodeData(&req); err != nil {
		ctl.replyError(s, env.Type, err)
		return
	}
	if req.RtpParameters == nil {
		ctl.replyError(s, env.Type, domain.NewError(domain.KindProtocol, "rtpParameters is required"))
		return
	}
	id, err := ctl.Orch.Produce(ctx, s, req.Kind, *req.RtpParameters)
	if err != nil {
		ctl.replyError(s, env.Type, err)
		return
	}
	ctl.reply(s, env.Type, idPayload{ID: id})
	ctl.announceProducer(s, id, req.Kind)
}

func (ctl *SignalWSController) handleConsume(ctx context.Context, s *app.Session, env envelope) {
	var req consumeRequest
	if err := env.decodeData(&req); err != nil {
		ctl.replyError(s, env.Type, err)
		return
	}
	if req.RtpCapabilities == nil {
		ctl.replyError(s, env.Type, domain.NewError(domain.KindProtocol, "rtpCapabilities is required"))
		return
	}
	params, err := ctl.Orch.Consume(ctx, s, req.ProducerID, *req.RtpCapabilities)
	if err != nil {
		ctl.replyError(s, env.Type, err)
		return
	}
	ctl.reply(s, env.Type, consumeResponse{Params: params})
}

func (ctl *SignalWSController) handleConsumerResume(ctx context.Context, s *app.Session, env envelope) {
	id, err := ctl.Orch.ResumeConsumer(ctx, s)
	if err != nil {
		ctl.replyError(s, env.Type, err)
		return
	}
	log.Debug().Str("module", "signal").Str("sid", string(s.SID())).Str("consumer", id).Msg("resume acked")
	ctl.reply(s, env.Type, idPayload{ID: id})
}
