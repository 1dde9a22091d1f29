package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"slices"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/adapters/signal"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app/orch"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/config"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	greeting        = "Hello from mediasoup app!"
	clientTokenKey  = "ct"
	sessionCookie   = "SfuSessions"
	clientTokenTTL  = 3600 * 24 * 7
	clientTokenName = "client_token"
)

// AdminTokenMiddleware only lets requests carrying "Bearer <token>" through.
func AdminTokenMiddleware(token string) gin.HandlerFunc {
	want := []byte("Bearer " + token)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"kind": "Unauthorized", "message": "admin token required"}})
			return
		}
		c.Next()
	}
}

// ClientTokenMiddleware keeps a stable per-browser token in the cookie session.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			sess.Set(clientTokenKey, token)
			if err := sess.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save client token")
			}
		}
		c.Set(clientTokenName, token)
		c.Next()
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	cfg.AllowHeaders = []string{"Content-Type", "Origin", "Accept"}
	cfg.AllowMethods = []string{"GET", "HEAD", "OPTIONS"}
	return cfg
}

func SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	o *orch.Orchestrator,
	ctl *signal.SignalWSController,
	m *metrics.Metrics,
) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: clientTokenTTL, HttpOnly: true})
	r.Use(sessions.Sessions(sessionCookie, store))
	r.Use(ClientTokenMiddleware())

	signalHandler := func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client", c.GetString(clientTokenName)).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c)
	}

	r.GET("/", func(c *gin.Context) {
		if websocket.IsWebSocketUpgrade(c.Request) {
			signalHandler(c)
			return
		}
		c.String(http.StatusOK, greeting)
	})
	r.Static("/sfu", cfg.StaticPath)

	r.GET("/healthz", func(c *gin.Context) {
		if o.Draining() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "draining"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": o.Registry.Count()})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group("/api")
	api.GET("/ws/signal", signalHandler)

	rooms := api.Group("/rooms")
	rooms.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": o.Rooms.List()})
	})
	rooms.GET("/:name", func(c *gin.Context) {
		name := domain.RoomName(c.Param("name"))
		room, ok := o.Rooms.Get(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"kind": domain.KindNotFound, "message": "room not found"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"name":      name,
			"members":   room.MembersSnapshot(),
			"producers": o.RoomProducers(name),
		})
	})

	if cfg.AdminToken != "" {
		rooms.DELETE("/:name", AdminTokenMiddleware(cfg.AdminToken), func(c *gin.Context) {
			name := domain.RoomName(c.Param("name"))
			if _, ok := o.Rooms.Get(name); !ok {
				c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"kind": domain.KindNotFound, "message": "room not found"}})
				return
			}
			o.EvictRoom(name)
			log.Info().Str("module", "adapters.http").Str("room", string(name)).Msg("room evicted")
			c.Status(http.StatusNoContent)
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
