package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	e := cfg.Engine
	if e.TickInterval != time.Second || e.CommandExpiry != 10*time.Minute {
		t.Fatalf("engine timing defaults unexpected: %+v", e)
	}
	if e.SchemaPath != "configs/commands.yaml" || e.RosterPath != "configs/roster.yaml" || !e.WatchRoster {
		t.Fatalf("engine path defaults unexpected: %+v", e)
	}
	if cfg.ReceiptTTL != 24*time.Hour || cfg.APIBasePath != "/api/v1" || cfg.GinMode != "release" {
		t.Fatalf("defaults unexpected: %+v", cfg)
	}
}

func TestLoad_Success_Overrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("GIN_MODE", "weird")
	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("API_BASE_PATH", "bot/v2/")
	t.Setenv("DB_PATH", "db.sqlite")
	t.Setenv("RECEIPT_TTL", "1h")

	t.Setenv("TICK_INTERVAL", "250ms")
	t.Setenv("COMMAND_EXPIRY", "0")
	t.Setenv("SCHEMA_PATH", "/etc/bot/commands.yaml")
	t.Setenv("ROSTER_PATH", "")
	t.Setenv("ROSTER_USER_TTL", "1m")
	t.Setenv("WATCH_ROSTER", "off")
	t.Setenv("BOT_USER_ID", "B42")
	t.Setenv("BOT_NAME", "hal")
	t.Setenv("MAX_TEXT_RUNES", "280")

	t.Setenv("RATE_RPS", "x")
	t.Setenv("RATE_BURST", "nope")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "8088" || cfg.ReadTimeout != 2*time.Second || cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || cfg.APIBasePath != "/bot/v2" {
		t.Fatalf("logging fields unexpected: %+v", cfg)
	}
	if cfg.DBPath != "db.sqlite" || cfg.ReceiptTTL != time.Hour {
		t.Fatalf("storage fields unexpected: %+v", cfg)
	}
	want := EngineConfig{
		TickInterval:  250 * time.Millisecond,
		CommandExpiry: 0,
		SchemaPath:    "/etc/bot/commands.yaml",
		RosterPath:    "configs/roster.yaml", // empty env falls back
		RosterUserTTL: time.Minute,
		WatchRoster:   false,
		BotUserID:     "B42",
		BotName:       "hal",
		MaxTextRunes:  280,
	}
	if cfg.Engine != want {
		t.Fatalf("engine = %+v, want %+v", cfg.Engine, want)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		key, val, want string
	}{
		{"LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"READ_TIMEOUT", "-1s", "timeouts"},
		{"MAX_HEADER_BYTES", "0", "MAX_HEADER_BYTES"},
		{"RECEIPT_TTL", "-1h", "RECEIPT_TTL"},
		{"TICK_INTERVAL", "-5ms", "TICK_INTERVAL"},
		{"COMMAND_EXPIRY", "-1m", "COMMAND_EXPIRY"},
		{"ROSTER_USER_TTL", "-1m", "ROSTER_USER_TTL"},
		{"MAX_TEXT_RUNES", "0", "MAX_TEXT_RUNES"},
		{"RATE_RPS", "-1", "RATE_RPS"},
		{"RATE_BURST", "0", "RATE_BURST"},
		{"HSTS_MAX_AGE", "-1s", "HSTS_MAX_AGE"},
		{"OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("%s=%s: want error mentioning %q, got %v", tc.key, tc.val, tc.want, err)
			}
		})
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":         "/",
		"  ":       "/",
		"/":        "/",
		"api":      "/api",
		"/api/v1/": "/api/v1",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q)=%q want %q", in, got, want)
		}
	}
}

func TestSplitCSV(t *testing.T) {
	if splitCSV("") != nil {
		t.Fatalf("empty input should yield nil")
	}
	if got := splitCSV("a, b,,c "); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV=%v", got)
	}
}
