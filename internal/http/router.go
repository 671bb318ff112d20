// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/yamifit/yamifit-backend/internal/assistant"
	"github.com/yamifit/yamifit-backend/internal/auth"
	"github.com/yamifit/yamifit-backend/internal/bus"
	"github.com/yamifit/yamifit-backend/internal/config"
	"github.com/yamifit/yamifit-backend/internal/http/handlers"
	"github.com/yamifit/yamifit-backend/internal/http/middleware"
	"github.com/yamifit/yamifit-backend/internal/services"
	"github.com/yamifit/yamifit-backend/internal/storage"
)

// Dependencies carries the externally constructed collaborators the HTTP
// layer needs. Publisher is where services emit realtime events (the local
// hub, or a Redis bridge that feeds it); Hub is what SSE subscribers attach
// to. In a single-instance deployment both point at the same hub.
type Dependencies struct {
	Hub       *bus.Hub
	Publisher bus.Publisher
	Store     storage.ObjectStore
	Responder assistant.Responder
	Verifier  *auth.Verifier
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned API under /api/v* behind bearer authentication.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (header validation; replay detection lives in
//     the conversation service, which owns the pair-scoped records)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Dependencies, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			// Client-chosen retry keys sometimes embed user identifiers.
			middleware.HeaderIdempotencyKey,
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit; attachments may exceed the JSON cap
	r.Use(limitBody(cfg.Attachment.MaxBytes + (1 << 20)))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency-Key header validation. The lookup stays nil: POST
	// /messages carries its scope (the counterparty) in the body, so replay
	// detection happens inside ConversationService.SendMessageIdempotent.
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		nil,
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Response compression. SSE and Prometheus scrapes are excluded: gzip
	// buffering breaks event flushing, and Prometheus negotiates its own.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{
		"/metrics",
		strings.TrimSuffix(cfg.APIBasePath, "/") + "/stream",
	})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← db/bus/store/assistant
	assignSvc := services.NewAssignmentService(db, deps.Publisher, int(cfg.Coaching.Cooldown/(24*time.Hour)))
	convSvc := services.NewConversationService(db, deps.Publisher, deps.Store, cfg.Attachment.MaxBytes, cfg.Attachment.MimeAllowlist)
	convSvc.IdempotencyTTL = cfg.IdempotencyTTL
	botSvc := services.NewChatbotService(db, deps.Responder, cfg.Chatbot.TTL, cfg.Chatbot.AssistantTimeout, cfg.Chatbot.MaxContentChars)
	h := handlers.New(assignSvc, convSvc, botSvc, deps.Hub)

	// Versioned API, bearer auth required
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	api.Use(auth.Middleware(deps.Verifier))
	{
		// Coaches and assignment
		api.GET("/coaches/available", h.ListAvailableCoaches)
		api.PUT("/coaches/availability", h.SetCoachAvailability)
		api.GET("/assignment/current", h.CurrentAssignment)
		api.POST("/assignment/select", h.SelectCoach)

		// Conversation
		api.GET("/messages", h.ListMessages)
		api.POST("/messages", h.SendMessage)
		api.POST("/messages/read", h.MarkRead)
		api.GET("/messages/unread", h.UnreadCounts)
		api.GET("/messages/:id/attachment", h.AttachmentURL)
		api.POST("/attachments", h.UploadAttachment)

		// Realtime
		api.GET("/stream", h.Stream)

		// Chatbot
		api.POST("/chatbot/turn", h.ChatbotTurn)
		api.GET("/chatbot/history", h.ChatbotHistory)
		api.DELETE("/chatbot/history", h.ChatbotPurge)
		api.POST("/chatbot/cleanup", h.ChatbotCleanup)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
