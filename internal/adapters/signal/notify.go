package signal

import (
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app/sfu"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/rs/zerolog/log"
)

// NotifyConsumerClosed tells the subscriber its consumer is gone. It never blocks.
func (ctl *SignalWSController) NotifyConsumerClosed(ev sfu.ConsumerClosed) {
	ctl.reply(ev.Owner, typeConsumerClosed, consumerClosed{
		ID:         ev.ConsumerID,
		ProducerID: ev.ProducerID,
		Reason:     ev.Reason,
	})
}

// NotifyFatal pushes the engine failure to a session that is about to be dropped.
func (ctl *SignalWSController) NotifyFatal(s *app.Session) {
	ctl.replyError(s, typeError, domain.NewError(domain.KindEngineFatal, "media engine is gone, reconnect later"))
}

// announceProducer tells the room mates of s that a new track can be consumed.
func (ctl *SignalWSController) announceProducer(s *app.Session, id string, kind domain.MediaKind) {
	frame, err := encode(typeNewProducer, newProducer{ID: id, Kind: kind, SocketID: s.SID()})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode new-producer")
		return
	}
	res := ctl.Orch.Broadcast(s.SID(), s.Room(), frame)
	log.Debug().Str("module", "signal").Str("sid", string(s.SID())).Int("sent_to", res.SendTo).Msg("producer announced")
}
