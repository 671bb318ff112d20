// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, database settings, coaching rules (capacity, cooldown), chatbot
// retention, attachment limits, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "yamifit-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// CoachingConfig governs assignment rules.
type CoachingConfig struct {
	MaxClientsPerCoach int           // MAX_CLIENTS_PER_COACH (default for new profiles)
	Cooldown           time.Duration // COOLDOWN_DAYS expressed as a duration
}

// ChatbotConfig governs the ephemeral AI-coach log and the assistant call.
type ChatbotConfig struct {
	TTL              time.Duration // CHATBOT_TTL_HOURS
	SweepInterval    time.Duration // CHATBOT_SWEEP_INTERVAL
	MaxContentChars  int           // CHATBOT_MAX_CONTENT_CHARS
	OpenAIAPIKey     string        // OPENAI_API_KEY
	OpenAIModel      string        // OPENAI_MODEL
	AssistantTimeout time.Duration // ASSISTANT_TIMEOUT
}

// AttachmentConfig bounds uploads to the chat object store.
type AttachmentConfig struct {
	MaxBytes      int64    // MAX_ATTACHMENT_BYTES
	MimeAllowlist []string // ATTACHMENT_MIME_ALLOWLIST (csv)
}

// MinioConfig connects the attachment store. Attachments are disabled when
// Endpoint is empty.
type MinioConfig struct {
	Endpoint  string // MINIO_ENDPOINT
	AccessKey string // MINIO_ACCESS_KEY
	SecretKey string // MINIO_SECRET_KEY
	Bucket    string // MINIO_BUCKET
	UseSSL    bool   // MINIO_USE_SSL
}

// RedisConfig bridges presence events across instances. The bus stays
// in-process only when Addr is empty.
type RedisConfig struct {
	Addr    string // REDIS_ADDR
	Channel string // REDIS_CHANNEL
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// Storage
	DBPath      string        // SQLite path (dev/test)
	DatabaseURL string        // Postgres DSN; takes precedence over DBPath
	DBReadTO    time.Duration // per-read deadline
	DBWriteTO   time.Duration // per-write deadline

	// Auth
	JWTSecret string        // HS256 signing secret for bearer tokens
	JWTLeeway time.Duration // clock skew tolerance

	// Domain
	Coaching   CoachingConfig
	Chatbot    ChatbotConfig
	Attachment AttachmentConfig
	Minio      MinioConfig
	Redis      RedisConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// defaultMimeAllowlist covers images, PDF, common office documents, plain
// text, and zip archives.
var defaultMimeAllowlist = []string{
	"image/jpeg", "image/png", "image/gif", "image/webp",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/plain", "text/csv",
	"application/zip",
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DBPath:      getenv("DB_PATH", "app.db"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		DBReadTO:    getdur("DB_READ_TIMEOUT", 5*time.Second),
		DBWriteTO:   getdur("DB_WRITE_TIMEOUT", 10*time.Second),

		// Auth
		JWTSecret: getenv("JWT_SECRET", ""),
		JWTLeeway: getdur("JWT_LEEWAY", 30*time.Second),

		// Domain
		Coaching: CoachingConfig{
			MaxClientsPerCoach: getint("MAX_CLIENTS_PER_COACH", 10),
			Cooldown:           time.Duration(getint("COOLDOWN_DAYS", 5)) * 24 * time.Hour,
		},
		Chatbot: ChatbotConfig{
			TTL:              time.Duration(getint("CHATBOT_TTL_HOURS", 24)) * time.Hour,
			SweepInterval:    getdur("CHATBOT_SWEEP_INTERVAL", time.Hour),
			MaxContentChars:  getint("CHATBOT_MAX_CONTENT_CHARS", 8000),
			OpenAIAPIKey:     getenv("OPENAI_API_KEY", ""),
			OpenAIModel:      getenv("OPENAI_MODEL", "gpt-4o-mini"),
			AssistantTimeout: getdur("ASSISTANT_TIMEOUT", 60*time.Second),
		},
		Attachment: AttachmentConfig{
			MaxBytes:      getint64("MAX_ATTACHMENT_BYTES", 10<<20),
			MimeAllowlist: splitCSVOr(getenv("ATTACHMENT_MIME_ALLOWLIST", ""), defaultMimeAllowlist),
		},
		Minio: MinioConfig{
			Endpoint:  getenv("MINIO_ENDPOINT", ""),
			AccessKey: getenv("MINIO_ACCESS_KEY", ""),
			SecretKey: getenv("MINIO_SECRET_KEY", ""),
			Bucket:    getenv("MINIO_BUCKET", "yamifit-attachments"),
			UseSSL:    getbool("MINIO_USE_SSL", false),
		},
		Redis: RedisConfig{
			Addr:    getenv("REDIS_ADDR", ""),
			Channel: getenv("REDIS_CHANNEL", "yamifit.events"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "yamifit-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.DatabaseURL == "" && strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("one of DATABASE_URL or DB_PATH must be set")
	}
	if cfg.DBReadTO <= 0 || cfg.DBWriteTO <= 0 {
		return cfg, errors.New("DB timeouts must be positive durations")
	}
	if cfg.Coaching.MaxClientsPerCoach < 1 {
		return cfg, errors.New("MAX_CLIENTS_PER_COACH must be >= 1")
	}
	if cfg.Coaching.Cooldown <= 0 {
		return cfg, errors.New("COOLDOWN_DAYS must be >= 1")
	}
	if cfg.Chatbot.TTL <= 0 {
		return cfg, errors.New("CHATBOT_TTL_HOURS must be >= 1")
	}
	if cfg.Chatbot.SweepInterval <= 0 {
		return cfg, errors.New("CHATBOT_SWEEP_INTERVAL must be > 0")
	}
	if cfg.Chatbot.MaxContentChars <= 0 {
		return cfg, errors.New("CHATBOT_MAX_CONTENT_CHARS must be > 0")
	}
	if cfg.Attachment.MaxBytes <= 0 {
		return cfg, errors.New("MAX_ATTACHMENT_BYTES must be > 0")
	}
	if len(cfg.Attachment.MimeAllowlist) == 0 {
		return cfg, errors.New("ATTACHMENT_MIME_ALLOWLIST must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// splitCSVOr returns the parsed csv or def when the csv yields nothing.
func splitCSVOr(s string, def []string) []string {
	if out := splitCSV(s); len(out) > 0 {
		return out
	}
	return def
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
