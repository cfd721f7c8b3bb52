package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Pagination.MaxPerPage != 100 {
		t.Errorf("MaxPerPage = %d, want 100", cfg.Pagination.MaxPerPage)
	}
	if cfg.Cache.Backend != "sql" {
		t.Errorf("Cache.Backend = %q, want sql", cfg.Cache.Backend)
	}
	if cfg.Database.IsPostgres() {
		t.Error("default database should be sqlite")
	}
}

func TestValidateClampsPageCeiling(t *testing.T) {
	cfg := Default()
	cfg.Pagination.MaxPerPage = 500
	cfg.Pagination.DefaultPerPage = 250
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Pagination.MaxPerPage != HardMaxPerPage {
		t.Errorf("MaxPerPage = %d, want %d", cfg.Pagination.MaxPerPage, HardMaxPerPage)
	}
	if cfg.Pagination.DefaultPerPage != HardMaxPerPage {
		t.Errorf("DefaultPerPage = %d, want %d", cfg.Pagination.DefaultPerPage, HardMaxPerPage)
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := Default()
	cfg.Cache.Backend = "memcached"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown cache backend")
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dei-tracker.yaml")
	content := []byte("database:\n  url: postgres://dei@localhost/dei\n  query_timeout: 2s\ncache:\n  backend: redis\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DEI_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Database.IsPostgres() {
		t.Errorf("expected postgres url, got %q", cfg.Database.URL)
	}
	if cfg.Database.QueryTimeout != 2*time.Second {
		t.Errorf("QueryTimeout = %v", cfg.Database.QueryTimeout)
	}
	if cfg.Cache.Backend != "redis" {
		t.Errorf("Cache.Backend = %q", cfg.Cache.Backend)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug from env", cfg.Log.Level)
	}
	if cfg.HTTP.Addr != ":8000" {
		t.Errorf("HTTP.Addr = %q, want default", cfg.HTTP.Addr)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
