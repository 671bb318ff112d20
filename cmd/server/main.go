// Command server runs the coaching backend: REST API, SSE event stream,
// and the background chatbot retention sweep.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/yamifit/yamifit-backend/internal/assistant"
	"github.com/yamifit/yamifit-backend/internal/auth"
	"github.com/yamifit/yamifit-backend/internal/bus"
	"github.com/yamifit/yamifit-backend/internal/config"
	httpapi "github.com/yamifit/yamifit-backend/internal/http"
	"github.com/yamifit/yamifit-backend/internal/observability"
	"github.com/yamifit/yamifit-backend/internal/repo"
	"github.com/yamifit/yamifit-backend/internal/services"
	"github.com/yamifit/yamifit-backend/internal/storage"
	"github.com/yamifit/yamifit-backend/internal/sysutil"
)

const version = "1.0.0"

// shutdownGrace bounds how long in-flight requests get to finish.
const shutdownGrace = 10 * time.Second

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Logging
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().Str("version", version).Msg("starting yamifit backend")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownOTel, err := observability.SetupOTel(rootCtx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownOTel(ctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Database
	db, err := repo.Open(cfg.DatabaseURL, cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	// Event bus: local hub, optionally bridged over Redis for multi-instance
	// deployments.
	hub := bus.NewHub()
	var publisher bus.Publisher = hub
	var bridge *bus.RedisBridge
	if cfg.Redis.Addr != "" {
		bridge, err = bus.NewRedisBridge(cfg.Redis.Addr, cfg.Redis.Channel, hub)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis bridge failed")
		}
		publisher = bridge
		log.Info().Str("addr", cfg.Redis.Addr).Str("channel", cfg.Redis.Channel).Msg("redis event bridge enabled")
	}

	// Attachment store: MinIO when configured, in-memory otherwise.
	var store storage.ObjectStore
	if cfg.Minio.Endpoint != "" {
		ms, err := storage.NewMinioStore(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.Bucket, cfg.Minio.UseSSL)
		if err != nil {
			log.Fatal().Err(err).Msg("object store init failed")
		}
		store = ms
	} else {
		log.Warn().Msg("MINIO_ENDPOINT not set; attachments are stored in memory and lost on restart")
		store = storage.NewMemoryStore()
	}

	// Assistant
	if cfg.Chatbot.OpenAIAPIKey == "" {
		log.Fatal().Msg("OPENAI_API_KEY is required")
	}
	responder := assistant.NewOpenAIResponder(cfg.Chatbot.OpenAIAPIKey, cfg.Chatbot.OpenAIModel)

	// Auth
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}
	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTLeeway)

	// HTTP engine
	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, httpapi.Dependencies{
		Hub:       hub,
		Publisher: publisher,
		Store:     store,
		Responder: responder,
		Verifier:  verifier,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	botSvc := services.NewChatbotService(db, responder, cfg.Chatbot.TTL, cfg.Chatbot.AssistantTimeout, cfg.Chatbot.MaxContentChars)

	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Cross-instance event forwarding.
	if bridge != nil {
		g.Go(func() error {
			defer bridge.Close()
			if err := bridge.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		})
	}

	// Periodic chatbot retention sweep; reads also filter expired rows, so a
	// missed tick only delays reclamation.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Chatbot.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				n, err := botSvc.Sweep(ctx)
				if err != nil {
					log.Warn().Err(err).Msg("chatbot sweep failed")
					continue
				}
				if n > 0 {
					log.Info().Int64("deleted", n).Msg("chatbot sweep")
				}
			}
		}
	})

	// Shutdown on signal or first component failure.
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
	log.Info().Msg("goodbye")
}
