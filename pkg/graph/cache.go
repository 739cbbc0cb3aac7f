package graph

import (
	"context"
	"time"
)

// NodeRecord is a node as stored in the persistent cache. The cache has no
// concept of the in-memory index; the name is the cross-process identity key.
type NodeRecord struct {
	Name            string    `json:"name"`
	ExternalID      string    `json:"external_id,omitempty"`
	NeighborsCached bool      `json:"neighbors_cached"`
	CreatedAt       time.Time `json:"created_at"`
}

// EdgeRecord is an edge as stored in the persistent cache. SourceName is
// always the lexicographically smaller of the two endpoint names, so the same
// unordered pair is never stored twice.
type EdgeRecord struct {
	SourceName string  `json:"source_name"`
	TargetName string  `json:"target_name"`
	Weight     float64 `json:"weight"`
}

// Cache is the durable store the graph writes through to. Lookups return a
// nil record when nothing matches and see committed state only. All writes go
// through a Batch obtained from Begin.
type Cache interface {
	// NodeByName returns the committed node record for name, or nil.
	NodeByName(ctx context.Context, name string) (*NodeRecord, error)

	// NodeByExternalID returns the committed node record keyed by the given
	// external ID, or nil.
	NodeByExternalID(ctx context.Context, externalID string) (*NodeRecord, error)

	// EdgeByNames returns the committed edge record connecting the two names,
	// in either order, or nil.
	EdgeByNames(ctx context.Context, nameA, nameB string) (*EdgeRecord, error)

	// NeighborNames returns the names connected to name by a committed edge.
	NeighborNames(ctx context.Context, name string) ([]string, error)

	// Begin opens a fresh write batch.
	Begin(ctx context.Context) (Batch, error)
}

// Batch is one atomic write set against a Cache. Writes staged on a batch are
// invisible until its Commit, which applies all of them or none; after a
// crash mid-commit no partial write set may be observable. Batches are
// isolated from each other: committing or failing one batch never applies,
// drops or reorders another batch's writes. A batch is owned by a single
// goroutine and must not be reused after Commit.
type Batch interface {
	// UpsertNode stages a node record. An existing record keeps its
	// neighbors-cached flag and creation date.
	UpsertNode(ctx context.Context, name, externalID string) error

	// SetNeighborsCached stages the neighbors-cached flag for name.
	SetNeighborsCached(ctx context.Context, name string, cached bool) error

	// UpsertEdge stages an edge record for the unordered name pair.
	UpsertEdge(ctx context.Context, nameA, nameB string, weight float64) error

	// Commit applies the batch's staged writes atomically.
	Commit(ctx context.Context) error
}
