package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/ctxmem/pkg/dotdir"
	"github.com/papercomputeco/ctxmem/pkg/ingest"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewConfiger resolves the config file inside the state directory. opts
// configure the dotdir.Manager used for resolution.
func NewConfiger(override string, opts ...dotdir.Option) (*Configer, error) {
	cfger := &Configer{ddm: dotdir.NewManager(opts...)}

	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfger.targetPath = path
	return cfger, nil
}

// orderedKeys is the stable listing order, matching the TOML section layout.
var orderedKeys = []string{
	"log.level",
	"log.format",
	"log.file",
	"storage.driver",
	"storage.sqlite_path",
	"ingest.poll_interval",
	"retrieval.rerank",
	"retrieval.top_k",
	"retrieval.stats_ttl",
	"worker.workers",
	"worker.queue_size",
	"vector_store.provider",
	"vector_store.target",
	"vector_store.dimensions",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"eventstream.provider",
	"eventstream.brokers",
	"eventstream.topic",
}

// ValidConfigKeys returns the list of all supported configuration key names
// in a stable order.
func ValidConfigKeys() []string {
	result := make([]string, 0, len(configKeys))
	seen := make(map[string]bool, len(configKeys))
	for _, k := range orderedKeys {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
			seen[k] = true
		}
	}

	for k := range configKeys {
		if !seen[k] {
			result = append(result, k)
		}
	}
	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads config.toml from the state directory. A missing file
// yields NewDefaultConfig(); fields set in the file override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}

	fill(&cfg.Log.Level, d.Log.Level)
	fill(&cfg.Log.Format, d.Log.Format)
	fill(&cfg.Storage.Driver, d.Storage.Driver)
	fill(&cfg.Ingest.PollInterval, d.Ingest.PollInterval)
	fill(&cfg.Retrieval.Rerank, d.Retrieval.Rerank)
	fill(&cfg.Retrieval.StatsTTL, d.Retrieval.StatsTTL)
	fill(&cfg.Embedding.Provider, d.Embedding.Provider)
	fill(&cfg.Embedding.Target, d.Embedding.Target)
	fill(&cfg.Embedding.Model, d.Embedding.Model)
	fill(&cfg.EventStream.Provider, d.EventStream.Provider)
	fill(&cfg.EventStream.Topic, d.EventStream.Topic)

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = d.Retrieval.TopK
	}
	if cfg.Worker.Workers == 0 {
		cfg.Worker.Workers = d.Worker.Workers
	}
	if cfg.Worker.QueueSize == 0 {
		cfg.Worker.QueueSize = d.Worker.QueueSize
	}
	if cfg.VectorStore.Dimensions == 0 {
		cfg.VectorStore.Dimensions = d.VectorStore.Dimensions
	}
}

// Validate checks the fields that cannot be checked key by key.
func (cfg *Config) Validate() error {
	var errs []error

	switch cfg.Storage.Driver {
	case "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("unsupported storage.driver %q (expected sqlite or memory)", cfg.Storage.Driver))
	}

	for i, src := range cfg.Ingest.Sources {
		if _, ok := ingest.ParseKind(src.Kind); !ok {
			errs = append(errs, fmt.Errorf("ingest.sources[%d]: unknown kind %q", i, src.Kind))
		}
		if strings.TrimSpace(src.Pattern) == "" {
			errs = append(errs, fmt.Errorf("ingest.sources[%d]: pattern is required", i))
		}
	}

	return errors.Join(errs...)
}

// SaveConfig persists the configuration to config.toml in the state directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// AddSource appends an [[ingest.sources]] entry and saves the config.
func (c *Configer) AddSource(src SourceConfig) error {
	if _, ok := ingest.ParseKind(src.Kind); !ok {
		return fmt.Errorf("unknown source kind: %q", src.Kind)
	}
	if strings.TrimSpace(src.Pattern) == "" {
		return errors.New("source pattern is required")
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	for _, existing := range cfg.Ingest.Sources {
		if existing.Kind == src.Kind && existing.Pattern == src.Pattern {
			return fmt.Errorf("source %s %s already configured", src.Kind, src.Pattern)
		}
	}

	cfg.Ingest.Sources = append(cfg.Ingest.Sources, src)
	return c.SaveConfig(cfg)
}

// PresetConfig returns a Config with sane defaults for the named preset.
// Supported presets: "local", "semantic", "streaming".
// Returns an error if the preset name is not recognized.
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "local":
		return cfg, nil

	case "semantic":
		cfg.VectorStore.Provider = "sqlite-vec"
		cfg.Retrieval.Rerank = "on"
		return cfg, nil

	case "streaming":
		cfg.VectorStore.Provider = "sqlite-vec"
		cfg.Retrieval.Rerank = "on"
		cfg.EventStream.Provider = "kafka"
		cfg.EventStream.Brokers = []string{"localhost:9092"}
		return cfg, nil

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"local", "semantic", "streaming"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
