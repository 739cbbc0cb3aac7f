// Package graph provides an in-memory, lazily-populated undirected graph.
// Nodes and edges are fetched on demand from an external neighbor source and
// written through to a durable cache, so repeated runs against the same cache
// never refetch a node's neighbor set.
package graph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Option configures a Graph at construction time.
type Option func(*Graph)

// WithNeighborSource sets the external source nodes fetch their neighbors
// from. Without a source the graph serves cached data only.
func WithNeighborSource(s NeighborSource) Option {
	return func(g *Graph) { g.source = s }
}

// WithNameResolver sets the hook that validates candidate node names against
// an external source. The default accepts only names already present in the
// graph or its cache.
func WithNameResolver(r NameResolver) Option {
	return func(g *Graph) { g.resolver = r }
}

// WithExternalIDLookup sets the hook used to obtain an external ID for nodes
// created by name alone.
func WithExternalIDLookup(f ExternalIDLookupFunc) Option {
	return func(g *Graph) { g.lookupExternalID = f }
}

// WithNeighborAddedHook registers a callback invoked synchronously whenever a
// node gains a neighbor. The callback must not mutate the graph.
func WithNeighborAddedHook(f NeighborAddedFunc) Option {
	return func(g *Graph) { g.onNeighborAdded = f }
}

// WithNeighborLimit caps how many neighbors are taken from a single external
// fetch. Zero means no limit.
func WithNeighborLimit(limit int) Option {
	return func(g *Graph) { g.neighborLimit = limit }
}

// WithLogger sets the graph's logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Graph binds a node registry, an edge registry and a persistent cache into
// one undirected graph. The cache is shared, not owned; its lifetime is
// managed by the caller.
type Graph struct {
	cache  Cache
	logger *slog.Logger

	source           NeighborSource
	resolver         NameResolver
	lookupExternalID ExternalIDLookupFunc
	onNeighborAdded  NeighborAddedFunc
	neighborLimit    int

	// resolveGroup collapses concurrent validations of the same candidate
	// name into one call against the external source.
	resolveGroup singleflight.Group

	nodes *NodeList
	edges *EdgeList
}

// New creates a graph backed by the given cache.
func New(cache Cache, opts ...Option) (*Graph, error) {
	if cache == nil {
		return nil, ErrNilCache
	}

	g := &Graph{
		cache:  cache,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.nodes = newNodeList(g)
	g.edges = newEdgeList(g)
	return g, nil
}

// Nodes returns the graph's node registry.
func (g *Graph) Nodes() *NodeList { return g.nodes }

// Edges returns the graph's edge registry.
func (g *Graph) Edges() *EdgeList { return g.edges }

// Cache returns the persistent cache the graph writes through to.
func (g *Graph) Cache() Cache { return g.cache }

// AddNode adds a node with the given name unless one exists already, in
// memory or in the cache, and returns it.
func (g *Graph) AddNode(ctx context.Context, name, externalID string) (*Node, error) {
	return g.nodes.Add(ctx, name, externalID)
}

// AddEdge connects two existing nodes and writes the edge through to the
// cache. Adding the same unordered pair again is a no-op.
func (g *Graph) AddEdge(ctx context.Context, source, target *Node, weight float64) error {
	if source == nil || target == nil {
		return ErrNilNode
	}
	return g.edges.Add(ctx, source, target, weight, true)
}

// AddEdgeByName connects the nodes with the given names. Both nodes must
// already exist in the graph or its cache.
func (g *Graph) AddEdgeByName(ctx context.Context, sourceName, targetName string, weight float64) error {
	source, err := g.nodes.ByName(ctx, sourceName)
	if err != nil {
		return err
	}
	if source == nil {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, sourceName)
	}
	target, err := g.nodes.ByName(ctx, targetName)
	if err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, targetName)
	}
	return g.edges.Add(ctx, source, target, weight, true)
}

// AddEdgeByIndex connects the nodes with the given indices. Both nodes must
// already exist in the graph.
func (g *Graph) AddEdgeByIndex(ctx context.Context, sourceIndex, targetIndex int, weight float64) error {
	source := g.nodes.Get(sourceIndex)
	if source == nil {
		return fmt.Errorf("%w: index %d", ErrNodeNotFound, sourceIndex)
	}
	target := g.nodes.Get(targetIndex)
	if target == nil {
		return fmt.Errorf("%w: index %d", ErrNodeNotFound, targetIndex)
	}
	return g.edges.Add(ctx, source, target, weight, true)
}

// AuthenticNodeName returns the authentic node name for a candidate name, if
// a node corresponding to it exists anywhere the graph can see. The base
// behavior accepts names that resolve in memory or in the cache; graph
// variants install a resolver that also queries their external source, which
// enables typo-tolerant or index-based lookup.
//
// Concurrent calls for the same candidate are collapsed into a single
// resolver invocation; the candidate is trimmed first so padded variants of
// one name share a flight.
func (g *Graph) AuthenticNodeName(ctx context.Context, name string) (string, bool, error) {
	type resolution struct {
		name string
		ok   bool
	}

	name = strings.TrimSpace(name)
	v, err, _ := g.resolveGroup.Do(name, func() (interface{}, error) {
		resolved, ok, err := g.resolveName(ctx, name)
		if err != nil {
			return nil, err
		}
		return resolution{name: resolved, ok: ok}, nil
	})
	if err != nil {
		return "", false, err
	}
	r := v.(resolution)
	return r.name, r.ok, nil
}

func (g *Graph) resolveName(ctx context.Context, name string) (string, bool, error) {
	if g.resolver != nil {
		return g.resolver.ResolveName(ctx, name)
	}
	node, err := g.nodes.ByName(ctx, name)
	if err != nil {
		return "", false, err
	}
	if node == nil {
		return "", false, nil
	}
	return node.Name(), true, nil
}

// NodeExists reports whether a node with the given name exists, as decided by
// AuthenticNodeName.
func (g *Graph) NodeExists(ctx context.Context, name string) (bool, error) {
	_, ok, err := g.AuthenticNodeName(ctx, name)
	return ok, err
}

func (g *Graph) notifyNeighborAdded(node, neighbor *Node) {
	if g.onNeighborAdded != nil {
		g.onNeighborAdded(node, neighbor)
	}
}
