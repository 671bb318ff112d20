package config

import (
	"strings"
	"testing"
	"time"
)

// clearDomainEnv unsets every variable Load reads so defaults apply.
func clearDomainEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "READ_TIMEOUT", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
		"MAX_HEADER_BYTES", "GIN_MODE", "LOG_LEVEL", "LOG_PRETTY", "API_BASE_PATH",
		"DB_PATH", "DATABASE_URL", "DB_READ_TIMEOUT", "DB_WRITE_TIMEOUT",
		"JWT_SECRET", "JWT_LEEWAY",
		"MAX_CLIENTS_PER_COACH", "COOLDOWN_DAYS",
		"CHATBOT_TTL_HOURS", "CHATBOT_SWEEP_INTERVAL", "CHATBOT_MAX_CONTENT_CHARS",
		"OPENAI_API_KEY", "OPENAI_MODEL", "ASSISTANT_TIMEOUT",
		"MAX_ATTACHMENT_BYTES", "ATTACHMENT_MIME_ALLOWLIST",
		"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_USE_SSL",
		"REDIS_ADDR", "REDIS_CHANNEL",
		"RATE_RPS", "RATE_BURST", "CORS_ALLOWED_ORIGINS", "ENABLE_HSTS", "HSTS_MAX_AGE",
		"IDEMPOTENCY_TTL", "OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_EXPORTER_OTLP_INSECURE", "OTEL_SERVICE_NAME", "OTEL_TRACES_SAMPLER_ARG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearDomainEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.GinMode != "release" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected server defaults: %+v", cfg)
	}
	if cfg.Coaching.MaxClientsPerCoach != 10 {
		t.Fatalf("MaxClientsPerCoach default = %d, want 10", cfg.Coaching.MaxClientsPerCoach)
	}
	if cfg.Coaching.Cooldown != 5*24*time.Hour {
		t.Fatalf("Cooldown default = %v, want 120h", cfg.Coaching.Cooldown)
	}
	if cfg.Chatbot.TTL != 24*time.Hour || cfg.Chatbot.SweepInterval != time.Hour {
		t.Fatalf("chatbot retention defaults wrong: %+v", cfg.Chatbot)
	}
	if cfg.Chatbot.MaxContentChars != 8000 {
		t.Fatalf("MaxContentChars default = %d", cfg.Chatbot.MaxContentChars)
	}
	if cfg.Attachment.MaxBytes != 10<<20 {
		t.Fatalf("MaxBytes default = %d, want 10MiB", cfg.Attachment.MaxBytes)
	}
	if len(cfg.Attachment.MimeAllowlist) == 0 {
		t.Fatalf("expected default mime allowlist")
	}
	if cfg.DBReadTO != 5*time.Second || cfg.DBWriteTO != 10*time.Second {
		t.Fatalf("db deadlines wrong: %v %v", cfg.DBReadTO, cfg.DBWriteTO)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("APIBasePath default = %q", cfg.APIBasePath)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearDomainEnv(t)
	t.Setenv("MAX_CLIENTS_PER_COACH", "3")
	t.Setenv("COOLDOWN_DAYS", "7")
	t.Setenv("CHATBOT_TTL_HOURS", "48")
	t.Setenv("CHATBOT_SWEEP_INTERVAL", "30m")
	t.Setenv("MAX_ATTACHMENT_BYTES", "1048576")
	t.Setenv("ATTACHMENT_MIME_ALLOWLIST", "image/png, application/pdf")
	t.Setenv("API_BASE_PATH", "api/v2/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Coaching.MaxClientsPerCoach != 3 || cfg.Coaching.Cooldown != 7*24*time.Hour {
		t.Fatalf("coaching overrides not applied: %+v", cfg.Coaching)
	}
	if cfg.Chatbot.TTL != 48*time.Hour || cfg.Chatbot.SweepInterval != 30*time.Minute {
		t.Fatalf("chatbot overrides not applied: %+v", cfg.Chatbot)
	}
	if cfg.Attachment.MaxBytes != 1<<20 {
		t.Fatalf("MaxBytes override = %d", cfg.Attachment.MaxBytes)
	}
	if len(cfg.Attachment.MimeAllowlist) != 2 || cfg.Attachment.MimeAllowlist[1] != "application/pdf" {
		t.Fatalf("allowlist override = %v", cfg.Attachment.MimeAllowlist)
	}
	if cfg.APIBasePath != "/api/v2" {
		t.Fatalf("base path not normalized: %q", cfg.APIBasePath)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		k, v string
		want string
	}{
		{"bad log level", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"zero capacity", "MAX_CLIENTS_PER_COACH", "0", "MAX_CLIENTS_PER_COACH"},
		{"zero cooldown", "COOLDOWN_DAYS", "0", "COOLDOWN_DAYS"},
		{"zero ttl", "CHATBOT_TTL_HOURS", "0", "CHATBOT_TTL_HOURS"},
		{"negative rps", "RATE_RPS", "-1", "RATE_RPS"},
		{"zero burst", "RATE_BURST", "0", "RATE_BURST"},
		{"bad sampler", "OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearDomainEnv(t)
			t.Setenv(tc.k, tc.v)
			if _, err := Load(); err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoad_WarningNormalizedToWarn(t *testing.T) {
	clearDomainEnv(t)
	t.Setenv("LOG_LEVEL", "warning")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}
