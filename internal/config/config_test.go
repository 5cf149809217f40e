package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func lookupFrom(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadFrom(lookupFrom(map[string]string{
		"CUSTOMIZATION_DIR": "/srv/paysite/customize/apartmanszallo.hu/",
	}))

	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "apartmanszallo.hu", cfg.SiteName)
	assert.Equal(t, "huf", cfg.Checkout.Currency)
	assert.Equal(t, 5*time.Minute, cfg.Stripe.Tolerance)
	assert.Equal(t, 12*time.Second, cfg.Stripe.Timeout)
	assert.Equal(t, LedgerBackendFile, cfg.Ledger.Backend)
	assert.Equal(t, filepath.Join("logs", "webhook_ids.log"), cfg.Ledger.FilePath)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, DatabaseSourceNone, cfg.Database.Source)
}

func TestLoadOverrides(t *testing.T) {
	cfg := loadFrom(lookupFrom(map[string]string{
		"APP_ENV":             "production",
		"APP_DEBUG":           "2",
		"SITE_NAME":           "shop.example",
		"STRIPE_WH_TOLERANCE": "60",
		"STRIPE_TIMEOUT":      "3s",
		"STRIPE_API_BASE":     "http://stripe.local/",
		"LEDGER_BACKEND":      "Redis",
		"CHECKOUT_CURRENCY":   "EUR",
	}))

	assert.Equal(t, 2, cfg.Debug)
	assert.Equal(t, "shop.example", cfg.SiteName)
	assert.Equal(t, time.Minute, cfg.Stripe.Tolerance)
	assert.Equal(t, 3*time.Second, cfg.Stripe.Timeout)
	assert.Equal(t, "http://stripe.local", cfg.Stripe.APIBase)
	assert.Equal(t, LedgerBackendRedis, cfg.Ledger.Backend)
	assert.Equal(t, "eur", cfg.Checkout.Currency)
	assert.False(t, cfg.IsDev())
}

func TestValidate(t *testing.T) {
	cfg := loadFrom(lookupFrom(map[string]string{}))
	require.ErrorIs(t, cfg.Validate(), ErrMissingStripeKey)

	cfg.Stripe.SecretKey = "sk_test_1"
	require.ErrorIs(t, cfg.Validate(), ErrMissingWebhookSecret)

	cfg.Stripe.WebhookSecret = "whsec_1"
	require.NoError(t, cfg.Validate())

	cfg.Ledger.Backend = "etcd"
	require.ErrorIs(t, cfg.Validate(), ErrUnknownLedgerBackend)
}

func TestResolveDatabasePrefersWordPressConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wp-config.php")
	content := `<?php
define( 'DB_NAME', 'wp_db' );
define('DB_USER', "wp_user");
define('DB_PASSWORD', 'secret');
define('DB_HOST', 'db.internal:3307');
define('DB_CHARSET', 'utf8');
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := ResolveDatabase(path, lookupFrom(map[string]string{
		"DB_HOST": "env-host", "DB_NAME": "env", "DB_USER": "env", "DB_PASSWORD": "env",
	}))

	require.True(t, cfg.Enabled)
	assert.Equal(t, DatabaseSourceWordPress, cfg.Source)
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, "3307", cfg.Port)
	assert.Equal(t, "wp_db", cfg.Name)
	assert.Equal(t, "wp_user", cfg.User)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "utf8", cfg.Charset)
}

func TestResolveDatabaseFallsBackToEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wp-config.php")
	require.NoError(t, os.WriteFile(path, []byte(`<?php define('DB_NAME', 'only_name');`), 0o600))

	cfg := ResolveDatabase(path, lookupFrom(map[string]string{
		"DB_HOST": "localhost", "DB_NAME": "paysite", "DB_USER": "app", "DB_PASSWORD": "pw",
	}))

	require.True(t, cfg.Enabled)
	assert.Equal(t, DatabaseSourceEnv, cfg.Source)
	assert.Equal(t, "utf8mb4", cfg.Charset)
	assert.Equal(t, "3306", cfg.Port)
}

func TestResolveDatabaseDisabled(t *testing.T) {
	cfg := ResolveDatabase(filepath.Join(t.TempDir(), "missing.php"), lookupFrom(map[string]string{
		"DB_HOST": "localhost",
	}))

	assert.False(t, cfg.Enabled)
	assert.Equal(t, DatabaseSourceNone, cfg.Source)
	assert.Equal(t, []string{"DB_NAME", "DB_USER", "DB_PASSWORD"}, cfg.Missing)
	assert.Contains(t, cfg.Reason, "wp config not readable")
}

func TestSitesHolderReadsCustomizeFile(t *testing.T) {
	dir := t.TempDir()
	content := `sites:
  apartmanszallo.hu:
    hooks: booking
    paysite_title: Apartman Szallo
    back_url: https://apartmanszallo.hu
    booking:
      table: bookings
      source: apartmanszallo
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "customize.yml"), []byte(content), 0o600))

	holder, err := NewSitesHolder(Config{CustomizationDir: dir}, zap.NewNop())
	require.NoError(t, err)

	site, ok := holder.Get().Site("Apartmanszallo.hu")
	require.True(t, ok)
	assert.Equal(t, "booking", site.Hooks)
	assert.Equal(t, "Apartman Szallo", site.PaysiteTitle)
	assert.Equal(t, "bookings", site.Booking.Table)
}

func TestSitesHolderRejectsBadTableName(t *testing.T) {
	dir := t.TempDir()
	content := "sites:\n  shop:\n    booking:\n      table: \"bookings; DROP TABLE x\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "customize.yml"), []byte(content), 0o600))

	_, err := NewSitesHolder(Config{CustomizationDir: dir}, zap.NewNop())
	require.Error(t, err)
}

func TestSitesHolderMissingFile(t *testing.T) {
	holder, err := NewSitesHolder(Config{CustomizationDir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	_, ok := holder.Get().Site("anything")
	assert.False(t, ok)
}

func TestSplitHostPort(t *testing.T) {
	cases := []struct {
		in, host, port string
	}{
		{"localhost", "localhost", "3306"},
		{"db:3307", "db", "3307"},
		{"localhost:/var/run/mysqld/mysqld.sock", "localhost", "/var/run/mysqld/mysqld.sock"},
		{"[::1]:3308", "::1", "3308"},
	}
	for _, tc := range cases {
		host, port := splitHostPort(tc.in, "3306")
		assert.Equal(t, tc.host, host, tc.in)
		assert.Equal(t, tc.port, port, tc.in)
	}
}

func TestLoadTelemetry(t *testing.T) {
	cfg := loadFrom(lookupFrom(map[string]string{
		"APP_DEBUG":                          "1",
		"OTEL_ENABLED":                       "yes",
		"OTEL_EXPORTER_OTLP_PROTOCOL":        "grpc",
		"OTEL_EXPORTER_OTLP_TRACES_PROTOCOL": "HTTP",
		"OTEL_SAMPLING_RATIO":                "0.5",
	}))

	assert.Equal(t, "debug", cfg.Telemetry.LogLevel)
	assert.Equal(t, "json", cfg.Telemetry.LogFormat)
	assert.True(t, cfg.Telemetry.OtelEnabled)
	assert.Equal(t, "http", cfg.Telemetry.OtelProtocol)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OtelEndpoint)
	assert.Equal(t, 0.5, cfg.Telemetry.SamplingRatio)

	cfg = loadFrom(lookupFrom(map[string]string{}))
	assert.Equal(t, "info", cfg.Telemetry.LogLevel)
	assert.False(t, cfg.Telemetry.OtelEnabled)
}
