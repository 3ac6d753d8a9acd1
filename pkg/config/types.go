package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent ctxmem configuration stored as config.toml
// in the .ctxmem/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Log         LogConfig         `toml:"log"`
	Storage     StorageConfig     `toml:"storage"`
	Ingest      IngestConfig      `toml:"ingest"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Worker      WorkerConfig      `toml:"worker"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// LogConfig selects log verbosity and output format.
type LogConfig struct {
	Level  string `toml:"level,omitempty"`
	Format string `toml:"format,omitempty"`

	// File additionally appends JSON logs to this path. Relative paths are
	// resolved against the state directory.
	File string `toml:"file,omitempty"`
}

// StorageConfig selects the observation store.
type StorageConfig struct {
	// Driver is "sqlite" or "memory".
	Driver     string `toml:"driver,omitempty"`
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// IngestConfig lists the sources the tailer follows.
type IngestConfig struct {
	PollInterval string         `toml:"poll_interval,omitempty"`
	Sources      []SourceConfig `toml:"sources,omitempty"`
}

// SourceConfig is one [[ingest.sources]] entry.
type SourceConfig struct {
	Kind        string `toml:"kind" mapstructure:"kind"`
	Pattern     string `toml:"pattern" mapstructure:"pattern"`
	Project     string `toml:"project,omitempty" mapstructure:"project"`
	SessionSeed string `toml:"session_seed,omitempty" mapstructure:"session_seed"`
}

// PollEvery parses PollInterval, falling back to the default.
func (c IngestConfig) PollEvery() time.Duration {
	return parseDuration(c.PollInterval, defaultPollInterval)
}

// RetrievalConfig tunes the answer pipeline.
type RetrievalConfig struct {
	// Rerank is a loose boolean ("1", "true", "yes", "on").
	Rerank   string `toml:"rerank,omitempty"`
	TopK     int    `toml:"top_k,omitempty"`
	StatsTTL string `toml:"stats_ttl,omitempty"`
}

// StatsCacheTTL parses StatsTTL, falling back to the default.
func (c RetrievalConfig) StatsCacheTTL() time.Duration {
	return parseDuration(c.StatsTTL, defaultStatsTTL)
}

// WorkerConfig sizes the background pool that indexes and publishes new
// observations.
type WorkerConfig struct {
	Workers   int `toml:"workers,omitempty"`
	QueueSize int `toml:"queue_size,omitempty"`
}

// VectorStoreConfig holds vector store settings. An empty provider disables
// the vector signal.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// EventStreamConfig selects where observation events are published.
type EventStreamConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid value for %s: %q", name, v)
			}
			*field(c) = n
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			if d < 0 {
				return fmt.Errorf("invalid value for %s: negative duration", name)
			}
			*field(c) = v
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"log.level":  stringKey(func(c *Config) *string { return &c.Log.Level }),
	"log.format": stringKey(func(c *Config) *string { return &c.Log.Format }),
	"log.file":   stringKey(func(c *Config) *string { return &c.Log.File }),

	"storage.driver":      stringKey(func(c *Config) *string { return &c.Storage.Driver }),
	"storage.sqlite_path": stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),

	"ingest.poll_interval": durationKey("ingest.poll_interval", func(c *Config) *string { return &c.Ingest.PollInterval }),

	"retrieval.rerank":    stringKey(func(c *Config) *string { return &c.Retrieval.Rerank }),
	"retrieval.top_k":     intKey("retrieval.top_k", func(c *Config) *int { return &c.Retrieval.TopK }),
	"retrieval.stats_ttl": durationKey("retrieval.stats_ttl", func(c *Config) *string { return &c.Retrieval.StatsTTL }),

	"worker.workers":    intKey("worker.workers", func(c *Config) *int { return &c.Worker.Workers }),
	"worker.queue_size": intKey("worker.queue_size", func(c *Config) *int { return &c.Worker.QueueSize }),

	"vector_store.provider": stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":   stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.dimensions": {
		get: func(c *Config) string {
			if c.VectorStore.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.VectorStore.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for vector_store.dimensions: %w", err)
			}
			c.VectorStore.Dimensions = uint(n)
			return nil
		},
	},

	"embedding.provider": stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":   stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":    stringKey(func(c *Config) *string { return &c.Embedding.Model }),

	"eventstream.provider": stringKey(func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.topic":    stringKey(func(c *Config) *string { return &c.EventStream.Topic }),
	"eventstream.brokers": {
		get: func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.EventStream.Brokers = splitList(v)
			return nil
		},
	},
}

// splitList parses a comma separated list, dropping empty entries.
func splitList(v string) []string {
	out := []string{}
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
