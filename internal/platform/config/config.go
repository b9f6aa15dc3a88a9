package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server binary needs from the environment.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	JWTSigningKey string
	JWTIssuer     string
	TokenTTL      time.Duration

	// AllowedEmailDomain restricts registration to one institution when set,
	// e.g. "@student.uat.edu.ng". Empty means any domain.
	AllowedEmailDomain string

	// BiometricThreshold is the normalized descriptor distance below which two
	// faces are treated as the same person.
	BiometricThreshold float64

	FrontendURL string

	SMTP    SMTPConfig
	Captcha CaptchaConfig

	// AuditKafkaBrokers enables Kafka fan-out of audit events when non-empty.
	AuditKafkaBrokers []string
	AuditKafkaTopic   string
}

// SMTPConfig configures the outbound verification mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// CaptchaConfig configures the reCAPTCHA challenge verifier. An empty secret
// disables verification (development mode).
type CaptchaConfig struct {
	SecretKey string
	VerifyURL string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:               envOr("BALLOTBOX_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		JWTSigningKey:      envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:          envOr("JWT_ISSUER", "ballotbox"),
		TokenTTL:           durationOr("TOKEN_TTL", time.Hour),
		AllowedEmailDomain: os.Getenv("ALLOWED_EMAIL_DOMAIN"),
		BiometricThreshold: floatOr("BIOMETRIC_THRESHOLD", 0.6),
		FrontendURL:        envOr("FRONTEND_URL", "http://localhost:3000"),
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     intOr("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     envOr("SMTP_FROM", "no-reply@ballotbox.local"),
		},
		Captcha: CaptchaConfig{
			SecretKey: os.Getenv("RECAPTCHA_SECRET_KEY"),
			VerifyURL: envOr("RECAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
		},
		AuditKafkaTopic: envOr("AUDIT_KAFKA_TOPIC", "ballotbox.audit"),
	}

	if brokers := os.Getenv("AUDIT_KAFKA_BROKERS"); brokers != "" {
		cfg.AuditKafkaBrokers = splitAndTrim(brokers)
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func floatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
