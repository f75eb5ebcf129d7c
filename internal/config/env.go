package config

import (
	"errors"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bakkerme/salewatch/internal/core"
	"github.com/joho/godotenv"
)

const (
	DefaultLeague     = "Keepers"
	DefaultConfigPath = "salewatch.yaml"

	EnvSessionID   = "POE_SESSID_COOKIE"
	EnvCFClearance = "POE_CF_CLEARANCE_COOKIE"
)

type EnvConfig struct {
	ConfigPath  string
	League      string
	RunOnce     bool
	LogLevel    slog.Level
	ServerAddr  string
	Trade       TradeEnvConfig
	Store       StoreEnvConfig
	OTel        OTelEnvConfig
	Webhook     WebhookEnvConfig
	SMTP        SMTPEnvConfig
	Kafka       KafkaEnvConfig
	FilterExpr  string
	NotifyTopic string
}

// TradeEnvConfig holds what the history fetcher needs to look like a
// logged-in browser session.
type TradeEnvConfig struct {
	SessionID   string
	CFClearance string
	BaseURL     string
	UserAgent   string
	HTTPTimeout time.Duration
}

type StoreEnvConfig struct {
	Backend  string
	DSN      string
	Table    string
	MaxConns int
}

type OTelEnvConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	Protocol    string // "grpc" or "http/protobuf"
	Headers     map[string]string
	Insecure    bool
	SampleRatio float64
}

type WebhookEnvConfig struct {
	URL         string
	Token       string
	HTTPTimeout time.Duration
}

type SMTPEnvConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	TLSMode            string
	InsecureSkipVerify bool
	From               string
	To                 string
}

type KafkaEnvConfig struct {
	Brokers []string
	Topic   string
}

// LoadDotEnv reads a .env file into the process environment if one exists.
// Variables already set are left alone.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func LoadEnv() EnvConfig {
	otlpEndpoint := strings.TrimSpace(envString("OTEL_EXPORTER_OTLP_ENDPOINT", ""))

	return EnvConfig{
		ConfigPath: envString("SALEWATCH_CONFIG", DefaultConfigPath),
		League:     envString("POE_LEAGUE", DefaultLeague),
		RunOnce:    envBool("RUN_ONCE", false),
		LogLevel:   core.ParseLogLevel(envString("LOG_LEVEL", "info")),
		ServerAddr: envString("SERVER_ADDR", ":8080"),
		Trade: TradeEnvConfig{
			// Cookies are taken verbatim; a stray space would corrupt the header.
			SessionID:   os.Getenv(EnvSessionID),
			CFClearance: os.Getenv(EnvCFClearance),
			BaseURL:     envString("POE_TRADE_BASE_URL", ""),
			UserAgent:   envString("POE_USER_AGENT", ""),
			HTTPTimeout: envDuration("POE_HTTP_TIMEOUT", 30*time.Second),
		},
		Store: StoreEnvConfig{
			Backend:  strings.ToLower(envString("SEEN_STORE_BACKEND", "")),
			DSN:      envString("SEEN_STORE_DSN", ""),
			Table:    envString("SEEN_STORE_TABLE", ""),
			MaxConns: envInt("SEEN_STORE_MAX_CONNS", 4),
		},
		OTel: OTelEnvConfig{
			Enabled:     envBool("OTEL_ENABLED", false),
			ServiceName: strings.TrimSpace(envString("OTEL_SERVICE_NAME", "salewatch")),
			Endpoint:    otlpEndpoint,
			Protocol:    strings.ToLower(strings.TrimSpace(envString("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			Headers:     parseHeaders(envString("OTEL_EXPORTER_OTLP_HEADERS", "")),
			Insecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", defaultInsecure(otlpEndpoint)),
			SampleRatio: clamp01(envFloat("OTEL_TRACES_SAMPLE_RATIO", 1.0)),
		},
		Webhook: WebhookEnvConfig{
			URL:         envString("NOTIFY_WEBHOOK_URL", ""),
			Token:       envString("NOTIFY_WEBHOOK_TOKEN", ""),
			HTTPTimeout: envDuration("NOTIFY_WEBHOOK_TIMEOUT", 10*time.Second),
		},
		SMTP: SMTPEnvConfig{
			Host:               envString("SMTP_HOST", ""),
			Port:               envInt("SMTP_PORT", 587),
			User:               envString("SMTP_USER", ""),
			Password:           envString("SMTP_PASSWORD", ""),
			TLSMode:            envString("SMTP_TLS_MODE", ""),
			InsecureSkipVerify: envBool("SMTP_INSECURE_SKIP_VERIFY", false),
			From:               envString("SMTP_FROM", ""),
			To:                 envString("SMTP_TO", ""),
		},
		Kafka: KafkaEnvConfig{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envString("KAFKA_TOPIC", ""),
		},
		FilterExpr:  envString("NOTIFY_FILTER", ""),
		NotifyTopic: envString("NOTIFY_TOPIC", ""),
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func parseHeaders(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func defaultInsecure(endpoint string) bool {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return true
	}
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return u.Scheme == "http"
	}
	return strings.HasPrefix(endpoint, "localhost:") ||
		strings.HasPrefix(endpoint, "127.0.0.1:") ||
		strings.HasPrefix(endpoint, "0.0.0.0:")
}
