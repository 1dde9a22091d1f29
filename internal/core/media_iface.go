package core

import (
	"context"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
)

// Worker is the media engine process. Died fires once when it is gone for good.
type Worker interface {
	PID() int
	CreateRouter(ctx context.Context, codecs []domain.RtpCodecCapability) (Router, error)
	Died() <-chan error
	Close() error
}

// Router owns the codec set shared by every transport it creates.
type Router interface {
	ID() string
	RtpCapabilities() domain.RtpCapabilities
	// CanConsume reports whether a peer with caps can receive producerID.
	CanConsume(producerID string, caps domain.RtpCapabilities) bool
	CreateWebRtcTransport(ctx context.Context, opts WebRtcTransportOptions) (Transport, error)
	Close() error
}

type WebRtcTransportOptions struct {
	EnableUDP bool
	EnableTCP bool
	PreferUDP bool
	// AppData travels with the transport for logging only.
	AppData map[string]string
}

// Transport is one engine-side WebRTC transport.
type Transport interface {
	ID() string
	IceParameters() domain.IceParameters
	IceCandidates() []domain.IceCandidate
	DtlsParameters() domain.DtlsParameters
	// Connect hands the remote DTLS parameters to the engine.
	Connect(ctx context.Context, remote domain.DtlsParameters) error
	Produce(ctx context.Context, opts ProducerOptions) (Producer, error)
	Consume(ctx context.Context, opts ConsumerOptions) (Consumer, error)
	// OnDtlsStateChange replaces the DTLS state callback.
	OnDtlsStateChange(fn func(domain.DtlsState))
	// Close is idempotent and emits DtlsClosed once.
	Close() error
}

type ProducerOptions struct {
	Kind          domain.MediaKind
	RtpParameters domain.RtpParameters
}

type ConsumerOptions struct {
	ProducerID      string
	RtpCapabilities domain.RtpCapabilities
	Paused          bool
}

type Producer interface {
	ID() string
	Kind() domain.MediaKind
	RtpParameters() domain.RtpParameters
	Close() error
}

type Consumer interface {
	ID() string
	ProducerID() string
	Kind() domain.MediaKind
	RtpParameters() domain.RtpParameters
	Resume(ctx context.Context) error
	Close() error
}
