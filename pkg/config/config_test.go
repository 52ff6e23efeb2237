package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Sternrassler/listing-collector/pkg/logging"
)

// clearEnv unsets every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LISTING_URL", "PLACES_BASE_URL", "USER_AGENT", "COOKIE", "CITIES",
		"OUTPUT_PATH", "MAX_PAGES", "OFFSET_STEP", "HTTP_TIMEOUT",
		"FORBIDDEN_DELAY", "REDIS_URL", "DEDUP_TTL", "LOG_LEVEL", "LOG_PRETTY",
		"METRICS_ADDR", "DEDUPE", "EXTENDED_SCHEMA", "EXPAND_VIEWPORT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(missingEnvFile(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("CITIES", "Pune, Mumbai,,Delhi")
	t.Setenv("MAX_PAGES", "4")
	t.Setenv("OFFSET_STEP", "25")
	t.Setenv("FORBIDDEN_DELAY", "5s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEDUPE", "true")
	t.Setenv("EXTENDED_SCHEMA", "1")

	cfg, err := Load(missingEnvFile(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if diff := cmp.Diff([]string{"Pune", "Mumbai", "Delhi"}, cfg.Cities); diff != "" {
		t.Errorf("Cities mismatch (-want +got):\n%s", diff)
	}
	if cfg.MaxPages != 4 || cfg.OffsetStep != 25 {
		t.Errorf("MaxPages = %d, OffsetStep = %d", cfg.MaxPages, cfg.OffsetStep)
	}
	if cfg.ForbiddenDelay != 5*time.Second {
		t.Errorf("ForbiddenDelay = %v, want 5s", cfg.ForbiddenDelay)
	}
	if cfg.LogLevel != logging.LevelDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if !cfg.Dedupe || !cfg.ExtendedSchema {
		t.Error("Expected Dedupe and ExtendedSchema to be enabled")
	}
	if n := len(cfg.Schema().Header()); n != 13 {
		t.Errorf("extended header has %d columns, want 13", n)
	}
	if cfg.Endpoint().OffsetStep != 25 {
		t.Errorf("Endpoint().OffsetStep = %d, want 25", cfg.Endpoint().OffsetStep)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "test.env")
	content := "OUTPUT_PATH=out/pune.csv\nEXPAND_VIEWPORT=true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("OUTPUT_PATH")
		os.Unsetenv("EXPAND_VIEWPORT")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OutputPath != "out/pune.csv" || !cfg.ExpandViewport {
		t.Errorf("env file not applied: %+v", cfg)
	}
}

func TestLoad_OutOfRangeLeftToValidate(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"MAX_PAGES", "0"},
		{"OFFSET_STEP", "-1"},
		{"HTTP_TIMEOUT", "0s"},
		{"FORBIDDEN_DELAY", "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load(missingEnvFile(t))
			if err != nil {
				t.Fatalf("Load() error = %v, want nil", err)
			}
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() with %s=%s should fail", tt.key, tt.value)
			}
		})
	}
}

func TestValidate_AfterOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_PAGES", "0")

	cfg, err := Load(missingEnvFile(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.MaxPages = 5
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() after override error = %v", err)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"MAX_PAGES", "ten"},
		{"HTTP_TIMEOUT", "soon"},
		{"DEDUPE", "maybe"},
		{"LOG_LEVEL", "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(missingEnvFile(t)); err == nil {
				t.Errorf("Load() with %s=%s should fail", tt.key, tt.value)
			}
		})
	}
}
