package vectorstore

import (
	"context"

	"github.com/fyrsmithlabs/ticketdup/internal/vector"
)

// Store is a vector index with explicit lifecycle.
//
// Implementations:
//   - RedisStore: Redis with RediSearch (default)
//   - ChromemStore: embedded chromem-go, persisted on disk
//   - QdrantStore: external Qdrant over gRPC
//
// Every method returns *errkind.Error values for the failures callers branch
// on. No method creates an index implicitly: Insert and KNN against a
// missing index fail with IndexNotFound.
type Store interface {
	// CreateIndex creates the index described by d. When several callers
	// race, exactly one succeeds and the rest receive IndexExists.
	CreateIndex(ctx context.Context, d IndexDescriptor) error

	// DropIndex removes the named index and every point stored under it.
	// Returns IndexNotFound when the index does not exist.
	DropIndex(ctx context.Context, name string) error

	// Insert upserts p. The last write for an ID wins.
	// Returns MalformedVector when p.Vector does not have d.Dim components.
	Insert(ctx context.Context, d IndexDescriptor, p Point) error

	// KNN returns at most k points ordered by ascending cosine distance.
	// Returns MalformedVector when k < 1 or the query has the wrong length.
	KNN(ctx context.Context, d IndexDescriptor, query vector.Embedding, k int) ([]SearchResult, error)

	// Close releases connections held by the store.
	Close() error
}
