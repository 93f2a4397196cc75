package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// unset clears keys for the duration of the test
func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

var keys = []string{
	"CITY_SOURCE", "PORT", "ALLOWED_ORIGINS", "QUERY_TIMEOUT_MS",
	"PLAN_CACHE_TTL_SECONDS", "MAX_K", "DEFAULT_TRANSFER_PENALTY",
}

func TestLoadDefaults(t *testing.T) {
	unset(t, keys...)
	cfg := Load()

	if cfg.CitySource != "data/city.yaml" {
		t.Errorf("unexpected city source %q", cfg.CitySource)
	}
	if cfg.Port != "8081" {
		t.Errorf("unexpected port %q", cfg.Port)
	}
	if cfg.QueryTimeout != 5*time.Second {
		t.Errorf("unexpected query timeout %v", cfg.QueryTimeout)
	}
	if cfg.PlanCacheTTL != 5*time.Minute {
		t.Errorf("unexpected cache ttl %v", cfg.PlanCacheTTL)
	}
	if cfg.MaxK != 10 || cfg.TransferPenalty != 1000 {
		t.Errorf("unexpected planning limits %d / %d", cfg.MaxK, cfg.TransferPenalty)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	unset(t, keys...)
	t.Setenv("CITY_SOURCE", "postgres://localhost/subway")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("QUERY_TIMEOUT_MS", "250")
	t.Setenv("MAX_K", "not-a-number")

	cfg := Load()
	if cfg.CitySource != "postgres://localhost/subway" {
		t.Errorf("unexpected city source %q", cfg.CitySource)
	}
	if want := []string{"https://a.example", "https://b.example"}; !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Errorf("expected origins %v, got %v", want, cfg.AllowedOrigins)
	}
	if cfg.QueryTimeout != 250*time.Millisecond {
		t.Errorf("unexpected query timeout %v", cfg.QueryTimeout)
	}
	if cfg.MaxK != 10 {
		t.Errorf("an unparsable MAX_K should fall back to the default, got %d", cfg.MaxK)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	unset(t, keys...)
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(".env", "CITY_SOURCE=base.yaml\nPORT=9000\n")
	write(".env.local", "CITY_SOURCE=local.db\n")

	LoadEnvFiles(dir)
	cfg := Load()
	if cfg.CitySource != "local.db" {
		t.Errorf(".env.local should override .env, got %q", cfg.CitySource)
	}
	if cfg.Port != "9000" {
		t.Errorf("expected the port from .env, got %q", cfg.Port)
	}
}
