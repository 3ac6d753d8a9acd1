// Package qdrantvec implements vector.Driver on a Qdrant collection reached
// over gRPC. Qdrant only accepts UUID or integer point ids, so each
// observation id is mapped to a name-based UUID and kept in the payload.
package qdrantvec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/ctxmem/pkg/logger"
	"github.com/papercomputeco/ctxmem/pkg/vector"
)

const (
	// DefaultCollection holds observation embeddings when none is configured.
	DefaultCollection = "ctxmem_observations"

	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	defaultTopK  = 10
	setupTimeout = 10 * time.Second

	payloadID     = "observation_id"
	payloadDigest = "digest"
)

// Client is the part of *qdrant.Client the driver uses.
type Client interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Get(ctx context.Context, request *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Close() error
}

// Config configures the driver.
type Config struct {
	// Target is host, host:port or an http(s) URL of the gRPC endpoint.
	// Empty means localhost on DefaultPort.
	Target string

	// Collection defaults to DefaultCollection.
	Collection string

	// Dimensions must match the embedder's output length.
	Dimensions uint
}

// Driver is a Qdrant backed vector.Driver.
type Driver struct {
	client     Client
	collection string
	dimensions int
	logger     *slog.Logger
}

var _ vector.Driver = (*Driver)(nil)

// New dials c.Target and creates the collection if needed.
func New(c Config, log *slog.Logger) (*Driver, error) {
	if c.Dimensions == 0 {
		return nil, errors.New("qdrant: embedding dimensions must be configured")
	}

	qc, err := clientConfig(c.Target)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(qc)
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	d, err := NewWithClient(ctx, client, c, log)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return d, nil
}

// NewWithClient wraps an existing client and creates the collection if it
// does not exist.
func NewWithClient(ctx context.Context, client Client, c Config, log *slog.Logger) (*Driver, error) {
	log = logger.OrNop(log)

	if c.Dimensions == 0 {
		return nil, errors.New("qdrant: embedding dimensions must be configured")
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}

	exists, err := client.CollectionExists(ctx, c.Collection)
	if err != nil {
		return nil, fmt.Errorf("checking qdrant collection: %w", err)
	}
	if !exists {
		err := client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: c.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("creating qdrant collection: %w", err)
		}
	}

	log.Debug("vector index ready",
		"collection", c.Collection,
		"dimensions", c.Dimensions,
		"created", !exists,
	)

	return &Driver{
		client:     client,
		collection: c.Collection,
		dimensions: int(c.Dimensions),
		logger:     log,
	}, nil
}

// Add upserts docs and waits for the write to apply.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Embedding) != d.dimensions {
			return fmt.Errorf("observation %s: %w", doc.ID, vector.DimensionError{Want: d.dimensions, Got: len(doc.Embedding)})
		}
		points = append(points, &qdrant.PointStruct{
			Id:      PointID(doc.ID),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadID:     doc.ID,
				payloadDigest: doc.Digest,
			}),
		})
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting embeddings: %w", err)
	}

	d.logger.Debug("indexed embeddings", "count", len(docs))
	return nil
}

// Query returns the nearest points by cosine similarity.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.Match, error) {
	if len(embedding) != d.dimensions {
		return nil, vector.DimensionError{Want: d.dimensions, Got: len(embedding)}
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying nearest embeddings: %w", err)
	}

	matches := make([]vector.Match, 0, len(points))
	for _, p := range points {
		id := p.GetPayload()[payloadID].GetStringValue()
		if id == "" {
			continue
		}
		matches = append(matches, vector.Match{
			ID:     id,
			Digest: p.GetPayload()[payloadDigest].GetStringValue(),
			// cosine distance is 1 - similarity
			Score: vector.Similarity(1 - float64(p.GetScore())),
		})
	}
	return matches, nil
}

// Get returns the documents for ids, embeddings included.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	points, err := d.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: d.collection,
		Ids:            pointIDs(ids),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("loading embeddings: %w", err)
	}

	docs := make([]vector.Document, 0, len(points))
	for _, p := range points {
		docs = append(docs, vector.Document{
			ID:        p.GetPayload()[payloadID].GetStringValue(),
			Digest:    p.GetPayload()[payloadDigest].GetStringValue(),
			Embedding: p.GetVectors().GetVector().GetData(),
		})
	}
	return docs, nil
}

// Delete removes ids.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs(ids)...),
	})
	if err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}

	d.logger.Debug("removed embeddings", "count", len(ids))
	return nil
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

// PointID maps an observation id to its Qdrant point id.
func PointID(observationID string) *qdrant.PointId {
	return qdrant.NewID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(observationID)).String())
}

func pointIDs(ids []string) []*qdrant.PointId {
	out := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		out = append(out, PointID(id))
	}
	return out
}

func clientConfig(target string) (*qdrant.Config, error) {
	qc := &qdrant.Config{Host: "localhost", Port: DefaultPort}
	if target == "" {
		return qc, nil
	}

	hostport := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		switch u.Scheme {
		case "https":
			qc.UseTLS = true
		case "http":
		default:
			return nil, fmt.Errorf("qdrant: unsupported target scheme %q", u.Scheme)
		}
		hostport = u.Host
	}

	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		qc.Host = hostport
		return qc, nil
	}

	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return nil, fmt.Errorf("qdrant: invalid port in target %q", target)
	}
	if host != "" {
		qc.Host = host
	}
	qc.Port = n
	return qc, nil
}
