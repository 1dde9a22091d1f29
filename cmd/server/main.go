package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/AkMo3/unirt-mediasoup-demo-server/internal/adapters/http"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/adapters/rtc"
	sig "github.com/AkMo3/unirt-mediasoup-demo-server/internal/adapters/signal"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app/orch"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app/sfu"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/config"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Console output until the config says otherwise.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogger(cfg)

	m := metrics.New()
	worker, err := rtc.NewWorker(cfg.Media)
	if err != nil {
		return fmt.Errorf("start media worker: %w", err)
	}
	defer func() { _ = worker.Close() }()

	codecs, err := config.Codecs(cfg.Media.Codecs)
	if err != nil {
		return err
	}
	mediaRouter, err := worker.CreateRouter(ctx, codecs)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}
	log.Info().Int("pid", worker.PID()).Str("router", mediaRouter.ID()).Msg("media worker ready")

	reg := app.NewRegistry(cfg.MaxSessions)
	reg.Metrics = m
	relays := sfu.NewRelayManager(mediaRouter, cfg.Media.EngineCallTimeout)
	relays.Metrics = m
	supervisor := &app.Supervisor{Worker: worker, Grace: cfg.Media.ExitGrace}

	o := &orch.Orchestrator{
		Registry: reg,
		Rooms:    app.NewRoomManager(),
		Caps:     app.NewCapabilityService(mediaRouter),
		Negotiator: &app.Negotiator{
			Router: mediaRouter,
			Options: core.WebRtcTransportOptions{
				EnableUDP: cfg.Media.EnableUDP,
				EnableTCP: cfg.Media.EnableTCP,
				PreferUDP: cfg.Media.PreferUDP,
			},
			CallTimeout:        cfg.Media.EngineCallTimeout,
			NegotiationTimeout: cfg.Media.NegotiationTimeout,
			Metrics:            m,
		},
		Relays:     relays,
		Policy:     app.PolicyFor(cfg.Signal.SlowPeers),
		Supervisor: supervisor,
	}

	ctl := sig.NewSignalWSController(o, m, sig.NewRateLimiter(cfg.Signal.RateLimit, cfg.Signal.RateInterval), sig.Options{
		ReadLimit:    cfg.ReadLimit,
		PingPeriod:   cfg.PingPeriod,
		WriteTimeout: cfg.Signal.WriteTimeout,
		SendBuffer:   cfg.Signal.SendBuffer,
	})
	relays.OnConsumerClosed = ctl.NotifyConsumerClosed
	supervisor.OnDrain = func(cause error) { o.Drain(cause, ctl.NotifyFatal) }

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.SetupRouter(ctx, cfg, o, ctl, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("SFU signaling server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return supervisor.Watch(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	err = g.Wait()
	if domain.KindOf(err) == domain.KindEngineFatal {
		log.Error().Err(err).Msg("media engine died, exiting for restart")
	}
	return err
}
