package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration. It is built once at startup and
// passed to every component; nothing reads the environment afterwards.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	Debug       int
	HTTPAddr    string

	ResultURL        string
	BackURL          string
	PaysiteTitle     string
	CustomizationDir string
	SiteName         string
	WPConfigPath     string
	SessionSecret    string

	Telemetry TelemetryConfig

	Stripe   StripeConfig
	Checkout CheckoutConfig
	Ledger   LedgerConfig
	Redis    RedisConfig
	Database DatabaseConfig
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	APIBase       string
	Timeout       time.Duration
	// Tolerance bounds the age of a signed webhook timestamp. Zero disables the check.
	Tolerance time.Duration
}

// TelemetryConfig covers logging and OpenTelemetry export.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	LogFile       string
	OtelEnabled   bool
	OtelEndpoint  string
	OtelProtocol  string
	SamplingRatio float64
}

type CheckoutConfig struct {
	Currency string
}

type LedgerConfig struct {
	Backend  string
	FilePath string
	RedisTTL time.Duration
	LockTTL  time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

const (
	LedgerBackendFile   = "file"
	LedgerBackendSQL    = "sql"
	LedgerBackendRedis  = "redis"
	LedgerBackendMemory = "memory"
)

var (
	ErrMissingStripeKey     = errors.New("STRIPE_SK_KEY is not defined")
	ErrMissingWebhookSecret = errors.New("STRIPE_WH_SECRET is not defined")
	ErrUnknownLedgerBackend = errors.New("unknown LEDGER_BACKEND")
)

// Load reads .env, then .env.<APP_ENV>, then the process environment.
// Values already present in the environment are never overwritten.
func Load() Config {
	_ = godotenv.Load()
	env := getenv("APP_ENV", "dev")
	_ = godotenv.Load(".env." + env)

	return loadFrom(os.Getenv)
}

func loadFrom(lookup func(string) string) Config {
	get := func(key, def string) string {
		if v := strings.TrimSpace(lookup(key)); v != "" {
			return v
		}
		return def
	}

	customizationDir := get("CUSTOMIZATION_DIR", "customize")
	siteName := get("SITE_NAME", filepath.Base(filepath.Clean(customizationDir)))

	cfg := Config{
		AppName:          get("APP_SERVICE", "paysite"),
		AppVersion:       get("APP_VERSION", "0.1.0"),
		Environment:      get("APP_ENV", "dev"),
		Debug:            parseInt(get("APP_DEBUG", "0"), 0),
		HTTPAddr:         get("HTTP_ADDR", ":8080"),
		ResultURL:        get("RESULT_URL", ""),
		BackURL:          get("BACK_URL", ""),
		PaysiteTitle:     get("PAYSITE_TITLE", ""),
		CustomizationDir: customizationDir,
		SiteName:         siteName,
		WPConfigPath:     get("WP_CONFIGPATH", ""),
		SessionSecret:    get("SESSION_SECRET", ""),
		Stripe: StripeConfig{
			SecretKey:     get("STRIPE_SK_KEY", ""),
			WebhookSecret: get("STRIPE_WH_SECRET", ""),
			APIBase:       strings.TrimRight(get("STRIPE_API_BASE", "https://api.stripe.com"), "/"),
			Timeout:       parseDuration(get("STRIPE_TIMEOUT", ""), 12*time.Second),
			Tolerance:     parseDuration(get("STRIPE_WH_TOLERANCE", ""), 5*time.Minute),
		},
		Checkout: CheckoutConfig{
			Currency: strings.ToLower(get("CHECKOUT_CURRENCY", "huf")),
		},
		Ledger: LedgerConfig{
			Backend:  strings.ToLower(get("LEDGER_BACKEND", LedgerBackendFile)),
			FilePath: get("LEDGER_FILE", filepath.Join("logs", "webhook_ids.log")),
			RedisTTL: parseDuration(get("LEDGER_REDIS_TTL", ""), 720*time.Hour),
			LockTTL:  parseDuration(get("LEDGER_LOCK_TTL", ""), 30*time.Second),
		},
		Redis: RedisConfig{
			Addr:     get("REDIS_ADDR", ""),
			Password: get("REDIS_PASSWORD", ""),
			DB:       parseInt(get("REDIS_DB", "0"), 0),
		},
	}
	cfg.Telemetry = loadTelemetry(get, cfg.Debug > 0)
	cfg.Database = ResolveDatabase(cfg.WPConfigPath, lookup)

	return cfg
}

func loadTelemetry(get func(key, def string) string, debug bool) TelemetryConfig {
	level := "info"
	if debug {
		level = "debug"
	}
	protocol := get("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	protocol = get("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", protocol)

	return TelemetryConfig{
		LogLevel:      strings.ToLower(get("LOG_LEVEL", level)),
		LogFormat:     strings.ToLower(get("LOG_FORMAT", "json")),
		LogFile:       get("LOG_FILE", ""),
		OtelEnabled:   parseBool(get("OTEL_ENABLED", ""), false),
		OtelEndpoint:  get("OTEL_EXPORTER_OTLP_ENDPOINT", get("OTLP_ENDPOINT", "localhost:4317")),
		OtelProtocol:  strings.ToLower(protocol),
		SamplingRatio: parseFloat(get("OTEL_SAMPLING_RATIO", ""), 0.1),
	}
}

// Validate reports configuration that makes the service unusable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Stripe.SecretKey) == "" {
		return ErrMissingStripeKey
	}
	if strings.TrimSpace(c.Stripe.WebhookSecret) == "" {
		return ErrMissingWebhookSecret
	}
	switch c.Ledger.Backend {
	case LedgerBackendFile, LedgerBackendSQL, LedgerBackendRedis, LedgerBackendMemory:
	default:
		return ErrUnknownLedgerBackend
	}
	return nil
}

// IsDev reports whether the service runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseInt(value string, def int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return parsed
}

func parseBool(value string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func parseFloat(value string, def float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return def
	}
	return parsed
}

// parseDuration accepts Go durations ("90s") and bare seconds ("90").
func parseDuration(value string, def time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}
