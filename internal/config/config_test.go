package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TobiSchelling/topicmap/internal/failure"
	"github.com/TobiSchelling/topicmap/internal/period"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}

	if len(cfg.Ingest.Feeds) == 0 {
		t.Error("expected feeds to be populated")
	}
	if cfg.Search.InitialBatch != 10000 || cfg.Search.MinBatch != 100 {
		t.Errorf("unexpected search batches %+v", cfg.Search)
	}
	if cfg.Search.Backoff != time.Second || cfg.Search.MaxBackoff != 30*time.Second {
		t.Errorf("unexpected search backoff %+v", cfg.Search)
	}
	if cfg.Graph.MaxSources != 500 || cfg.Graph.ColorField != "partisan_code" {
		t.Errorf("unexpected graph config %+v", cfg.Graph)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
	if len(cfg.PeriodKinds()) != 4 {
		t.Errorf("expected 4 period kinds, got %v", cfg.PeriodKinds())
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
search:
  url: http://solr:8983
  max_retries: 2
server:
  port: 9000
snapshot:
  periods: [monthly]
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Search.URL != "http://solr:8983" || cfg.Search.MaxRetries != 2 {
		t.Errorf("unexpected search config %+v", cfg.Search)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Search.InitialBatch != 10000 {
		t.Errorf("expected default initial_batch, got %d", cfg.Search.InitialBatch)
	}
	if cfg.Graph.MaxNodeSize != 20 {
		t.Errorf("expected default max_node_size, got %v", cfg.Graph.MaxNodeSize)
	}
	kinds := cfg.PeriodKinds()
	if len(kinds) != 1 || kinds[0] != period.Monthly {
		t.Errorf("expected [monthly], got %v", kinds)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown period", "snapshot:\n  periods: [daily]\n"},
		{"zero concurrency", "snapshot:\n  concurrency: 0\n"},
		{"min batch above initial", "search:\n  initial_batch: 10\n  min_batch: 50\n"},
		{"inverted node sizes", "graph:\n  min_node_size: 30\n  max_node_size: 20\n"},
		{"negative link cap", "graph:\n  max_links_per_source: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			err = cfg.Validate()
			var ce *failure.ConfigError
			if !errors.As(err, &ce) {
				t.Errorf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Ingest.Feeds) == 0 {
		t.Error("expected feeds to be populated from file")
	}
}

func TestResolveConfigPathExplicitMissing(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()
	policy := cfg.RetryPolicy()
	if policy.MaxRetries != 5 || policy.MaxBackoff != 30*time.Second {
		t.Errorf("unexpected retry policy %+v", policy)
	}
	opts := cfg.GraphOptions()
	if opts.LayoutMaxNodes != 2000 || !opts.IncludeWeights {
		t.Errorf("unexpected graph options %+v", opts)
	}
}

func TestFeedsForTopic(t *testing.T) {
	cfg := &Config{Ingest: Ingest{Feeds: []Feed{
		{URL: "a", Topic: "election"},
		{URL: "b", Topic: "climate"},
		{URL: "c"},
	}}}
	feeds := cfg.FeedsForTopic("election")
	if len(feeds) != 2 || feeds[0].URL != "a" || feeds[1].URL != "c" {
		t.Errorf("unexpected feeds %v", feeds)
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}
