// Package vectorutils builds the configured vector.Driver.
package vectorutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/ctxmem/pkg/vector"
	"github.com/papercomputeco/ctxmem/pkg/vector/qdrantvec"
	"github.com/papercomputeco/ctxmem/pkg/vector/sqlitevec"
)

const (
	// ProviderSQLiteVec keeps embeddings in a local SQLite file.
	ProviderSQLiteVec = "sqlite-vec"

	// ProviderQdrant keeps embeddings in a Qdrant collection.
	ProviderQdrant = "qdrant"
)

// NewVectorDriverOpts selects and configures a backend.
type NewVectorDriverOpts struct {
	ProviderType string
	Target       string
	Dimensions   uint
	Logger       *slog.Logger
}

// NewVectorDriver returns the driver for o.ProviderType. An empty provider
// means vector search is disabled and yields a nil driver.
func NewVectorDriver(o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "":
		return nil, nil
	case ProviderSQLiteVec:
		return sqlitevec.New(sqlitevec.Config{
			DBPath:     o.Target,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case ProviderQdrant:
		return qdrantvec.New(qdrantvec.Config{
			Target:     o.Target,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %q", o.ProviderType)
	}
}
