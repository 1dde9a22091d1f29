package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app/orch"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

type Options struct {
	ReadLimit    int64
	PingPeriod   time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32 << 10
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	return o
}

// pongWait is how long the peer may stay silent; pings go out before it elapses.
func (o Options) pongWait() time.Duration {
	return o.PingPeriod * 10 / 9
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Metrics *metrics.Metrics
	Limiter *RateLimiter

	opts     Options
	upgrader websocket.Upgrader
	handlers map[string]handlerFunc
}

func NewSignalWSController(o *orch.Orchestrator, m *metrics.Metrics, limiter *RateLimiter, opts Options) *SignalWSController {
	ctl := &SignalWSController{
		Orch:    o,
		Metrics: m,
		Limiter: limiter,
		opts:    opts.withDefaults(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	ctl.handlers = ctl.routes()
	return ctl
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

// Close stops accepting frames. The write pump flushes the queue and closes the socket.
func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// HandleSignal upgrades the request and runs the session until the socket closes.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	logger := log.With().Str("module", "signal").Str("remote", c.ClientIP()).Logger()
	if ctl.Orch.Draining() {
		c.String(http.StatusServiceUnavailable, "server is draining")
		return
	}
	peer, err := domain.NewPeer(c.GetString("client_token"), c.Query("name"), c.ClientIP())
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	room := domain.NormalizeRoomName(c.Query("room"))

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)
	ctx, cancel := context.WithCancel(ctx)
	s, err := ctl.Orch.Connect(conn, peer, room, cancel)
	if err != nil {
		cancel()
		logger.Warn().Err(err).Str("room", string(room)).Msg("session rejected")
		ctl.rejectConn(ws, err)
		return
	}

	go ctl.writePump(ctx, s.SID(), conn)
	go ctl.readPump(ctx, s, conn)
	ctl.greet(s)
}

// rejectConn answers a refused session before any pump runs.
func (ctl *SignalWSController) rejectConn(ws *websocket.Conn, err error) {
	defer func() { _ = ws.Close() }()
	frame, mErr := encode(typeError, errorResponse(err))
	if mErr != nil {
		return
	}
	ctl.Metrics.Error(string(domain.KindOf(err)))
	_ = ws.SetWriteDeadline(time.Now().Add(ctl.opts.WriteTimeout))
	_ = ws.WriteMessage(websocket.TextMessage, frame)
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, domain.MessageOf(err)))
}
