package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", true)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.DB.Path != "stockdata.db" {
		t.Fatalf("db.path = %q", cfg.DB.Path)
	}
	if cfg.DB.BusyTimeout != 5*time.Second {
		t.Fatalf("db.busy_timeout = %v", cfg.DB.BusyTimeout)
	}
	if cfg.Yahoo.BaseURL != "https://query1.finance.yahoo.com" {
		t.Fatalf("yahoo.base_url = %q", cfg.Yahoo.BaseURL)
	}
	if cfg.PriceSync.ChunkSize != 50 {
		t.Fatalf("price_sync.chunk_size = %d", cfg.PriceSync.ChunkSize)
	}
	if cfg.PriceSync.Pause != 500*time.Millisecond {
		t.Fatalf("price_sync.pause = %v", cfg.PriceSync.Pause)
	}
	if cfg.Cron.PriceSync != "0 0 22 * * MON-FRI" {
		t.Fatalf("cron.price_sync = %q", cfg.Cron.PriceSync)
	}
	if cfg.Server.HTTPAddr != ":8080" {
		t.Fatalf("server.http_addr = %q", cfg.Server.HTTPAddr)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("STOCKDATA_DB_PATH", "/tmp/override.db")
	t.Setenv("STOCKDATA_PRICE_SYNC_CHUNK_SIZE", "10")

	cfg, err := Load("", true)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.DB.Path != "/tmp/override.db" {
		t.Fatalf("db.path = %q, want env override", cfg.DB.Path)
	}
	if cfg.PriceSync.ChunkSize != 10 {
		t.Fatalf("price_sync.chunk_size = %d, want 10", cfg.PriceSync.ChunkSize)
	}
}

func TestLoadFile(t *testing.T) {
	body := `
db:
  path: /data/market.db
price_sync:
  chunk_size: 25
  pause: 1s
cron:
  enabled: false
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.DB.Path != "/data/market.db" {
		t.Fatalf("db.path = %q", cfg.DB.Path)
	}
	if cfg.PriceSync.ChunkSize != 25 || cfg.PriceSync.Pause != time.Second {
		t.Fatalf("price_sync = %+v", cfg.PriceSync)
	}
	if cfg.Cron.Enabled {
		t.Fatalf("cron.enabled should be false")
	}
	// Untouched keys keep their defaults.
	if cfg.Log.Level != "info" {
		t.Fatalf("log.level = %q", cfg.Log.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
