package graph

import "context"

// NodeRef identifies a node as reported by an external source. ExternalID may
// be empty for sources that key nodes by name alone.
type NodeRef struct {
	Name       string
	ExternalID string
}

// NeighborSource fetches a node's neighbors from outside the process. The
// graph calls it at most once per node per process; across processes the
// persisted neighbors-cached flag prevents refetching. Implementations must
// tolerate being called again for the same node after an error.
type NeighborSource interface {
	FetchNeighbors(ctx context.Context, node *Node) ([]NodeRef, error)
}

// NeighborSourceFunc adapts a function to the NeighborSource interface.
type NeighborSourceFunc func(ctx context.Context, node *Node) ([]NodeRef, error)

func (f NeighborSourceFunc) FetchNeighbors(ctx context.Context, node *Node) ([]NodeRef, error) {
	return f(ctx, node)
}

// NameResolver turns a candidate name into the authentic node name, enabling
// typo-tolerant or index-based lookup against an external source. ok is false
// when no node corresponds to the candidate; errors are reserved for source
// failures.
type NameResolver interface {
	ResolveName(ctx context.Context, name string) (authentic string, ok bool, err error)
}

// NameResolverFunc adapts a function to the NameResolver interface.
type NameResolverFunc func(ctx context.Context, name string) (string, bool, error)

func (f NameResolverFunc) ResolveName(ctx context.Context, name string) (string, bool, error) {
	return f(ctx, name)
}

// ExternalIDLookupFunc resolves the external ID for a node that is being
// created by name only. An empty result leaves the node without an ID.
type ExternalIDLookupFunc func(ctx context.Context, name string) (string, error)

// NeighborAddedFunc is invoked synchronously on the calling goroutine each
// time a node gains a neighbor. node is the node that grew; neighbor is the
// other endpoint of the new edge.
type NeighborAddedFunc func(node, neighbor *Node)
