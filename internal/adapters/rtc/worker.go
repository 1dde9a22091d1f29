// Package rtc is an in-process media engine built on pion's ORTC API.
//
// It allocates real ICE credentials and host candidates inside the configured
// port range and reports DTLS fingerprints of a worker certificate, which is
// everything the signaling layer needs from an engine.
package rtc

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/config"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/randutil"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrWorkerClosed       = errors.New("worker closed")
	ErrCertificateExpired = errors.New("dtls certificate expired")
)

type Worker struct {
	api          *webrtc.API
	cert         *webrtc.Certificate
	fingerprints []domain.DtlsFingerprint
	tcpListener  net.Listener
	rng          randutil.MathRandomGenerator

	died    chan error
	dieOnce sync.Once
	closed  atomic.Bool
	expiry  *time.Timer

	mu      sync.Mutex
	routers map[string]*Router

	logger zerolog.Logger
}

func NewWorker(cfg config.MediaConfig) (*Worker, error) {
	logger := log.With().Str("module", "rtc.worker").Logger()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate dtls key: %w", err)
	}
	cert, err := webrtc.GenerateCertificate(key)
	if err != nil {
		return nil, fmt.Errorf("generate dtls certificate: %w", err)
	}
	prints, err := cert.GetFingerprints()
	if err != nil {
		return nil, fmt.Errorf("dtls fingerprints: %w", err)
	}

	factory := newLoggerFactory()
	se := webrtc.SettingEngine{LoggerFactory: factory}
	if err := applyNetworkSettings(&se, cfg); err != nil {
		return nil, err
	}

	w := &Worker{
		cert:    cert,
		rng:     randutil.NewMathRandomGenerator(),
		died:    make(chan error, 1),
		routers: make(map[string]*Router),
		logger:  logger,
	}
	for _, fp := range prints {
		w.fingerprints = append(w.fingerprints, domain.DtlsFingerprint{Algorithm: fp.Algorithm, Value: fp.Value})
	}

	if cfg.EnableTCP && cfg.TCPPort > 0 {
		l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP(cfg.ListenIP), Port: cfg.TCPPort})
		if err != nil {
			return nil, fmt.Errorf("listen ice tcp: %w", err)
		}
		w.tcpListener = l
		se.SetICETCPMux(webrtc.NewICETCPMux(factory.NewLogger("ice-tcp"), l, 8))
	}

	w.api = webrtc.NewAPI(webrtc.WithSettingEngine(se))

	// The worker cannot mint transports with a dead certificate.
	w.expiry = time.AfterFunc(time.Until(cert.Expires()), func() {
		w.fail(ErrCertificateExpired)
	})

	logger.Info().
		Int("pid", w.PID()).
		Uint16("rtc_min_port", cfg.RTCMinPort).
		Uint16("rtc_max_port", cfg.RTCMaxPort).
		Time("cert_expires", cert.Expires()).
		Msg("media worker started")
	return w, nil
}

// PID is the process id hosting the engine, which for this engine is our own.
func (w *Worker) PID() int { return os.Getpid() }

func (w *Worker) Died() <-chan error { return w.died }

func (w *Worker) fail(err error) {
	w.dieOnce.Do(func() {
		w.logger.Error().Err(err).Int("pid", w.PID()).Msg("media worker died")
		w.died <- err
		_ = w.Close()
	})
}

func (w *Worker) CreateRouter(_ context.Context, codecs []domain.RtpCodecCapability) (core.Router, error) {
	if w.closed.Load() {
		return nil, ErrWorkerClosed
	}
	caps, err := buildCapabilities(codecs)
	if err != nil {
		return nil, err
	}
	r := &Router{
		id:        uuid.NewString(),
		worker:    w,
		caps:      caps,
		producers: make(map[string]*Producer),
		logger:    log.With().Str("module", "rtc.router").Logger(),
	}
	w.mu.Lock()
	w.routers[r.id] = r
	w.mu.Unlock()
	r.logger.Info().Str("router", r.id).Int("codecs", len(caps.Codecs)).Msg("router created")
	return r, nil
}

func (w *Worker) removeRouter(id string) {
	w.mu.Lock()
	delete(w.routers, id)
	w.mu.Unlock()
}

func (w *Worker) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	if w.expiry != nil {
		w.expiry.Stop()
	}
	w.mu.Lock()
	routers := make([]*Router, 0, len(w.routers))
	for _, r := range w.routers {
		routers = append(routers, r)
	}
	w.mu.Unlock()
	for _, r := range routers {
		_ = r.Close()
	}
	if w.tcpListener != nil {
		_ = w.tcpListener.Close()
	}
	w.logger.Info().Msg("media worker closed")
	return nil
}
