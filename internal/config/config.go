package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/topicmap/internal/failure"
	"github.com/TobiSchelling/topicmap/internal/graph"
	"github.com/TobiSchelling/topicmap/internal/period"
	"github.com/TobiSchelling/topicmap/internal/search"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Output   Output   `yaml:"output"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
	Search   Search   `yaml:"search"`
	Layout   Layout   `yaml:"layout"`
	Graph    Graph    `yaml:"graph"`
	Snapshot Snapshot `yaml:"snapshot"`
	Ingest   Ingest   `yaml:"ingest"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

type Search struct {
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	InitialBatch int           `yaml:"initial_batch"`
	MinBatch     int           `yaml:"min_batch"`
	MaxRetries   int           `yaml:"max_retries"`
	Backoff      time.Duration `yaml:"backoff"`
	MaxBackoff   time.Duration `yaml:"max_backoff"`
}

type Layout struct {
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout"`
	MaxNodes int           `yaml:"max_nodes"`
}

type Graph struct {
	MaxSources        int     `yaml:"max_sources"`
	MaxLinksPerSource int     `yaml:"max_links_per_source"`
	ColorField        string  `yaml:"color_field"`
	IncludeWeights    bool    `yaml:"include_weights"`
	MinNodeSize       float64 `yaml:"min_node_size"`
	MaxNodeSize       float64 `yaml:"max_node_size"`
}

type Snapshot struct {
	Periods     []string `yaml:"periods"`
	Concurrency int      `yaml:"concurrency"`
}

type Ingest struct {
	Feeds        []Feed        `yaml:"feeds"`
	FetchContent bool          `yaml:"fetch_content"`
	Timeout      time.Duration `yaml:"timeout"`
}

type Feed struct {
	URL   string `yaml:"url"`
	Name  string `yaml:"name"`
	Topic string `yaml:"topic"`
}

// ConfigDir returns the XDG config directory for topicmap.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "topicmap")
}

// DataDir returns the XDG data directory for topicmap.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "topicmap")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/topicmap/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'topicmap init' to create a default config",
		xdgConfig,
	)
}

// Load reads, parses and validates a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	policy := search.DefaultRetryPolicy()
	opts := graph.DefaultOptions()
	cfg := &Config{
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
		Search: Search{
			Timeout:      60 * time.Second,
			InitialBatch: policy.InitialBatch,
			MinBatch:     policy.MinBatch,
			MaxRetries:   policy.MaxRetries,
			Backoff:      policy.Backoff,
			MaxBackoff:   policy.MaxBackoff,
		},
		Layout: Layout{
			Timeout:  5 * time.Minute,
			MaxNodes: opts.LayoutMaxNodes,
		},
		Graph: Graph{
			MaxSources:     opts.MaxSources,
			ColorField:     opts.ColorField,
			IncludeWeights: opts.IncludeWeights,
			MinNodeSize:    opts.MinNodeSize,
			MaxNodeSize:    opts.MaxNodeSize,
		},
		Snapshot: Snapshot{
			Periods:     []string{"overall", "weekly", "monthly", "custom"},
			Concurrency: 4,
		},
		Ingest: Ingest{
			FetchContent: true,
			Timeout:      15 * time.Second,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	for _, p := range c.Snapshot.Periods {
		if _, err := period.ParseKind(p); err != nil {
			return err
		}
	}
	if c.Snapshot.Concurrency < 1 {
		return failure.Configf("snapshot.concurrency", "must be at least 1, got %d", c.Snapshot.Concurrency)
	}
	if c.Search.InitialBatch < 1 || c.Search.MinBatch < 1 {
		return failure.Configf("search", "batch sizes must be positive")
	}
	if c.Search.MinBatch > c.Search.InitialBatch {
		return failure.Configf("search.min_batch", "%d exceeds initial_batch %d", c.Search.MinBatch, c.Search.InitialBatch)
	}
	if c.Search.MaxRetries < 0 {
		return failure.Configf("search.max_retries", "must not be negative")
	}
	if c.Graph.MaxSources < 1 {
		return failure.Configf("graph.max_sources", "must be at least 1, got %d", c.Graph.MaxSources)
	}
	if c.Graph.MaxLinksPerSource < 0 {
		return failure.Configf("graph.max_links_per_source", "must not be negative")
	}
	if c.Graph.MinNodeSize <= 0 || c.Graph.MaxNodeSize < c.Graph.MinNodeSize {
		return failure.Configf("graph", "node sizes must satisfy 0 < min_node_size <= max_node_size")
	}
	return nil
}

// PeriodKinds returns the configured period kinds. Call Validate first.
func (c *Config) PeriodKinds() []period.Kind {
	kinds := make([]period.Kind, 0, len(c.Snapshot.Periods))
	for _, p := range c.Snapshot.Periods {
		if k, err := period.ParseKind(p); err == nil {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// RetryPolicy returns the focus search retry policy.
func (c *Config) RetryPolicy() search.RetryPolicy {
	return search.RetryPolicy{
		InitialBatch: c.Search.InitialBatch,
		MinBatch:     c.Search.MinBatch,
		MaxRetries:   c.Search.MaxRetries,
		Backoff:      c.Search.Backoff,
		MaxBackoff:   c.Search.MaxBackoff,
	}
}

// GraphOptions returns the graph export options.
func (c *Config) GraphOptions() graph.Options {
	return graph.Options{
		MaxSources:        c.Graph.MaxSources,
		ColorField:        c.Graph.ColorField,
		IncludeWeights:    c.Graph.IncludeWeights,
		MaxLinksPerSource: c.Graph.MaxLinksPerSource,
		MinNodeSize:       c.Graph.MinNodeSize,
		MaxNodeSize:       c.Graph.MaxNodeSize,
		LayoutMaxNodes:    c.Layout.MaxNodes,
	}
}

// FeedsForTopic returns the configured feeds for a topic name. Feeds without
// a topic belong to every topic.
func (c *Config) FeedsForTopic(topic string) []Feed {
	var feeds []Feed
	for _, f := range c.Ingest.Feeds {
		if f.Topic == "" || f.Topic == topic {
			feeds = append(feeds, f)
		}
	}
	return feeds
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
