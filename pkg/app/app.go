// Package app assembles the ctxmem runtime from a resolved config: the
// observation store, the optional vector index, the event publisher, the
// worker pool, the retrieval service and the tailer.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/papercomputeco/ctxmem/pkg/config"
	embeddingutils "github.com/papercomputeco/ctxmem/pkg/embeddings/utils"
	"github.com/papercomputeco/ctxmem/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/ctxmem/pkg/eventstream/utils"
	"github.com/papercomputeco/ctxmem/pkg/ingest"
	"github.com/papercomputeco/ctxmem/pkg/logger"
	"github.com/papercomputeco/ctxmem/pkg/rerank"
	"github.com/papercomputeco/ctxmem/pkg/retrieval"
	"github.com/papercomputeco/ctxmem/pkg/store"
	"github.com/papercomputeco/ctxmem/pkg/store/inmemory"
	"github.com/papercomputeco/ctxmem/pkg/store/sqlite"
	"github.com/papercomputeco/ctxmem/pkg/tail"
	"github.com/papercomputeco/ctxmem/pkg/vector"
	vectorutils "github.com/papercomputeco/ctxmem/pkg/vector/utils"
	"github.com/papercomputeco/ctxmem/pkg/worker"
)

const defaultVectorFile = "vectors.db"

// App is a running ctxmem instance.
type App struct {
	Config   *config.Config
	StateDir string
	Logger   *slog.Logger

	Store     store.Store
	Vectors   *store.VectorIndex
	Publisher eventstream.Publisher
	Pool      *worker.Pool
	Retrieval *retrieval.Service

	vectorDriver vector.Driver
	logFile      io.Closer
}

// NewLogger builds the process logger from the log section. debug forces
// the debug level.
func NewLogger(c config.LogConfig, debug bool, w io.Writer) *slog.Logger {
	return logger.New(
		logger.WithLevel(c.Level),
		logger.WithDebug(debug),
		logger.WithJSON(c.Format == "json"),
		logger.WithPretty(c.Format == "pretty"),
		logger.WithWriter(w),
	)
}

// Open wires every component described by cfg. stateDir anchors the
// default database and cursor locations.
func Open(cfg *config.Config, stateDir string, log *slog.Logger) (*App, error) {
	a := &App{Config: cfg, StateDir: stateDir, Logger: logger.OrNop(log)}

	if err := a.openVectors(); err != nil {
		return nil, err
	}

	if err := a.openStore(); err != nil {
		a.closeVectors()
		return nil, err
	}

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.EventStream.Provider,
		Brokers:      cfg.EventStream.Brokers,
		Topic:        cfg.EventStream.Topic,
		Logger:       a.Logger,
	})
	if err != nil {
		_ = a.Close(context.Background())
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}
	a.Publisher = publisher

	a.Pool, err = worker.NewPool(worker.Config{
		Vectors:    a.Vectors,
		Publisher:  a.Publisher,
		NumWorkers: uint(max(cfg.Worker.Workers, 0)),
		QueueSize:  uint(max(cfg.Worker.QueueSize, 0)),
		Logger:     a.Logger.With("component", "worker"),
	})
	if err != nil {
		_ = a.Close(context.Background())
		return nil, fmt.Errorf("starting worker pool: %w", err)
	}

	a.Retrieval, err = retrieval.New(retrieval.Config{
		Store:    a.Store,
		Reranker: rerank.FromFlag(cfg.Retrieval.Rerank).Reranker,
		TopK:     cfg.Retrieval.TopK,
		StatsTTL: cfg.Retrieval.StatsCacheTTL(),
		Logger:   a.Logger.With("component", "retrieval"),
	})
	if err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}

	return a, nil
}

func (a *App) openVectors() error {
	vc := a.Config.VectorStore
	if vc.Provider == "" {
		return nil
	}

	target := vc.Target
	if target == "" && vc.Provider == vectorutils.ProviderSQLiteVec {
		target = filepath.Join(a.StateDir, defaultVectorFile)
	}

	driver, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
		ProviderType: vc.Provider,
		Target:       target,
		Dimensions:   vc.Dimensions,
		Logger:       a.Logger.With("component", "vector"),
	})
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: a.Config.Embedding.Provider,
		TargetURL:    a.Config.Embedding.Target,
		Model:        a.Config.Embedding.Model,
	})
	if err == nil && embedder == nil {
		err = errors.New("vector store requires an embedding provider")
	}
	if err != nil {
		if driver != nil {
			_ = driver.Close()
		}
		return fmt.Errorf("creating embedder: %w", err)
	}

	a.vectorDriver = driver
	a.Vectors = &store.VectorIndex{Embedder: embedder, Driver: driver}
	a.Logger.Info("vector search enabled", "provider", vc.Provider, "target", target, "model", a.Config.Embedding.Model)
	return nil
}

func (a *App) openStore() error {
	storeLog := a.Logger.With("component", "store")

	switch a.Config.Storage.Driver {
	case "memory":
		a.Store = inmemory.New(inmemory.WithVectorIndex(a.Vectors), inmemory.WithLogger(storeLog))
		a.Logger.Info("using in-memory storage")
		return nil

	case "sqlite", "":
		path := a.SQLitePath()
		s, err := sqlite.New(path, sqlite.WithVectorIndex(a.Vectors), sqlite.WithLogger(storeLog))
		if err != nil {
			return fmt.Errorf("opening sqlite store: %w", err)
		}
		a.Store = s
		a.Logger.Info("using SQLite storage", "path", path)
		return nil

	default:
		return fmt.Errorf("unsupported storage driver: %q", a.Config.Storage.Driver)
	}
}

// SQLitePath is the configured database path, defaulting into the state
// directory.
func (a *App) SQLitePath() string {
	if a.Config.Storage.SQLitePath != "" {
		return a.Config.Storage.SQLitePath
	}
	return filepath.Join(a.StateDir, config.DefaultSQLiteFile())
}

// Sources converts the configured ingest sources.
func (a *App) Sources() ([]tail.Source, error) {
	sources := make([]tail.Source, 0, len(a.Config.Ingest.Sources))
	for i, sc := range a.Config.Ingest.Sources {
		kind, ok := ingest.ParseKind(sc.Kind)
		if !ok {
			return nil, fmt.Errorf("ingest.sources[%d]: unknown kind %q", i, sc.Kind)
		}
		sources = append(sources, tail.Source{
			Kind:        kind,
			Pattern:     sc.Pattern,
			Project:     sc.Project,
			SessionSeed: sc.SessionSeed,
		})
	}
	return sources, nil
}

// Tailer builds a tailer over the configured sources whose cursors live in
// the state directory.
func (a *App) Tailer() (*tail.Tailer, error) {
	sources, err := a.Sources()
	if err != nil {
		return nil, err
	}

	cursors, err := tail.OpenCursorStore(filepath.Join(a.StateDir, tail.CursorFile))
	if err != nil {
		return nil, err
	}

	return tail.New(a.Store, cursors, sources,
		tail.WithEnqueuer(a.Pool),
		tail.WithLogger(a.Logger.With("component", "tail")),
	), nil
}

// Close drains the worker pool, then releases the publisher, the store and
// the vector driver.
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Debug("worker pool drained", "stats", a.Pool.Stats())
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing publisher: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Shutdown(ctx, "closing"); err != nil && !errors.Is(err, store.ErrClosed) {
			errs = append(errs, fmt.Errorf("closing store: %w", err))
		}
	}
	if err := a.closeVectors(); err != nil {
		errs = append(errs, err)
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing log file: %w", err))
		}
		a.logFile = nil
	}

	return errors.Join(errs...)
}

func (a *App) closeVectors() error {
	if a.vectorDriver == nil {
		return nil
	}
	driver := a.vectorDriver
	a.vectorDriver = nil
	if err := driver.Close(); err != nil {
		return fmt.Errorf("closing vector store: %w", err)
	}
	return nil
}
