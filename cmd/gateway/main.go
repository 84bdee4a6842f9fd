package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/campusdesk/meeting-gateway/config"
	"github.com/campusdesk/meeting-gateway/internal/auth"
	"github.com/campusdesk/meeting-gateway/internal/meeting"
	"github.com/campusdesk/meeting-gateway/internal/relay"
	"github.com/campusdesk/meeting-gateway/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var sessions store.SessionStore
	if addr := cfg.Redis.Addr(); addr != "" {
		redisStore, err := store.NewRedis(addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer redisStore.Close()
		sessions = redisStore
		log.Info().Str("addr", addr).Msg("Redis connection established")
	} else {
		sessions = store.NewMemory()
		log.Warn().Msg("no Redis host configured, using in-memory session store")
	}

	meetings := meeting.NewManager(sessions, cfg.MeetingTTL)
	gateway := relay.NewGateway(meetings, cfg.JWTSecret)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(relay.OriginFilter(cfg.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/auth/login", auth.Login(cfg.JWTSecret))

		// Request-mode transport fallback: same events, same guard.
		apiGroup.POST("/events/:event", auth.Middleware(cfg.JWTSecret), gateway.HandleEventFallback)
	}

	// Persistent bidirectional channel.
	router.GET("/ws", gateway.HandleWS)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("meeting gateway started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}
