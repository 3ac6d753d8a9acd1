package config

import "time"

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"

	defaultStorageDriver = "sqlite"
	defaultSQLiteFile    = "ctxmem.db"

	defaultPollInterval = 2 * time.Second

	defaultRerank   = "off"
	defaultTopK     = 8
	defaultStatsTTL = 30 * time.Second

	defaultWorkers   = 2
	defaultQueueSize = 256

	defaultVectorDimensions = 768

	defaultEmbeddingProvider = "ollama"
	defaultEmbeddingTarget   = "http://localhost:11434"
	defaultEmbeddingModel    = "nomic-embed-text"

	defaultEventStreamProvider = "none"
	defaultEventStreamTopic    = "ctxmem.observations"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values. The sqlite path is
// left empty and resolved against the state directory at startup.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Log: LogConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Ingest: IngestConfig{
			PollInterval: defaultPollInterval.String(),
		},
		Retrieval: RetrievalConfig{
			Rerank:   defaultRerank,
			TopK:     defaultTopK,
			StatsTTL: defaultStatsTTL.String(),
		},
		Worker: WorkerConfig{
			Workers:   defaultWorkers,
			QueueSize: defaultQueueSize,
		},
		VectorStore: VectorStoreConfig{
			Dimensions: defaultVectorDimensions,
		},
		Embedding: EmbeddingConfig{
			Provider: defaultEmbeddingProvider,
			Target:   defaultEmbeddingTarget,
			Model:    defaultEmbeddingModel,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
	}
}

// DefaultSQLiteFile is the database file name used inside the state
// directory when storage.sqlite_path is unset.
func DefaultSQLiteFile() string {
	return defaultSQLiteFile
}
