package orch

import (
	"context"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app/sfu"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
)

func (o *Orchestrator) Capabilities() domain.RtpCapabilities {
	return o.Caps.GetCapabilities()
}

func (o *Orchestrator) CreateTransport(ctx context.Context, s *app.Session, role domain.TransportRole) (domain.TransportDescriptor, error) {
	return o.Negotiator.CreateTransport(ctx, s, role)
}

func (o *Orchestrator) ConnectTransport(ctx context.Context, s *app.Session, role domain.TransportRole, dtls domain.DtlsParameters) (string, error) {
	return o.Negotiator.ConnectTransport(ctx, s, role, dtls)
}

func (o *Orchestrator) Produce(ctx context.Context, s *app.Session, kind domain.MediaKind, params domain.RtpParameters) (string, error) {
	return o.Relays.Produce(ctx, s, kind, params)
}

func (o *Orchestrator) Consume(ctx context.Context, s *app.Session, producerID string, caps domain.RtpCapabilities) (sfu.Params, error) {
	return o.Relays.Consume(ctx, s, producerID, caps)
}

func (o *Orchestrator) ResumeConsumer(ctx context.Context, s *app.Session) (string, error) {
	return o.Relays.ResumeConsumer(ctx, s)
}

// RoomProducers lists live producers of a room for the HTTP API.
func (o *Orchestrator) RoomProducers(room domain.RoomName) []sfu.ProducerInfo {
	return o.Relays.ProducersInRoom(room)
}
