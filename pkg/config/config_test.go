package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Poller.Interval != 60*time.Second {
		t.Errorf("expected 60s poll interval, got %v", cfg.Poller.Interval)
	}
	if cfg.Dedup.CacheSize != 1000 || cfg.Dedup.TTL != 24*time.Hour {
		t.Errorf("unexpected dedup defaults: %+v", cfg.Dedup)
	}
	if cfg.Retrieval.FreeDelayMinutes != 15 {
		t.Errorf("expected 15 minute free delay, got %d", cfg.Retrieval.FreeDelayMinutes)
	}
	if len(cfg.Poller.Feeds) == 0 {
		t.Error("expected built-in feed list")
	}
	if len(cfg.Poller.TickerSources) != 3 {
		t.Errorf("expected 3 ticker sources, got %d", len(cfg.Poller.TickerSources))
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	doc := `
server:
  port: 9999
poller:
  interval: 5m
  feeds:
    crypto:
      - name: OnlyFeed
        url: https://example.com/rss
retrieval:
  freeDelayMinutes: 30
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Poller.Interval != 5*time.Minute {
		t.Errorf("expected 5m interval, got %v", cfg.Poller.Interval)
	}
	if len(cfg.Poller.Feeds) != 1 || len(cfg.Poller.Feeds["crypto"]) != 1 {
		t.Errorf("expected single configured feed, got %+v", cfg.Poller.Feeds)
	}
	if cfg.Retrieval.FreeDelayMinutes != 30 {
		t.Errorf("expected 30 minute delay, got %d", cfg.Retrieval.FreeDelayMinutes)
	}
	// Untouched sections keep their defaults.
	if cfg.Dedup.CacheSize != 1000 {
		t.Errorf("expected default dedup cache size, got %d", cfg.Dedup.CacheSize)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NP_POSTGRES_HOST", "db.internal")
	t.Setenv("NP_ENRICHMENT_API_KEY", "test-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("expected env override for postgres host, got %q", cfg.Postgres.Host)
	}
	if cfg.Enrichment.APIKey != "test-key" {
		t.Errorf("expected env override for api key, got %q", cfg.Enrichment.APIKey)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "localhost", Port: 5432, Database: "news",
		User: "svc", Password: "pw", SSLMode: "disable",
	}
	want := "host=localhost port=5432 user=svc password=pw dbname=news sslmode=disable"
	if got := p.DSN(); got != want {
		t.Errorf("dsn mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}
