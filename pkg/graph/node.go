package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Node is a named vertex and the unit of lazy loading. A node passes through
// two durable stages the first time its neighbors are read: the external
// fetch (persisted once per node, guarded by the cached-in-store flag) and
// the local hydration of the in-memory adjacency set from the cache.
type Node struct {
	graph      *Graph
	index      int
	name       string
	externalID string

	// loadMu serializes the loading state machine. Concurrent resolutions of
	// the same node queue here and observe the first caller's result, which
	// keeps the external fetch at-most-once within the process.
	loadMu        sync.Mutex
	cachedInStore bool
	loadedLocally bool

	// nbMu guards the adjacency set.
	nbMu      sync.RWMutex
	neighbors map[EdgeKey]*Edge
}

func newNode(g *Graph, index int, name, externalID string) *Node {
	return &Node{
		graph:      g,
		index:      index,
		name:       name,
		externalID: externalID,
		neighbors:  make(map[EdgeKey]*Edge),
	}
}

// Index returns the node's unique index within its graph. Indices are
// assigned in creation order starting at zero and never change.
func (n *Node) Index() int { return n.index }

// Name returns the node name, the sole cross-process identity key.
func (n *Node) Name() string { return n.name }

// ExternalID returns the opaque identifier some sources use to key lookups,
// or the empty string.
func (n *Node) ExternalID() string { return n.externalID }

// Degree returns the number of neighbors, resolving them first if needed.
func (n *Node) Degree(ctx context.Context) (int, error) {
	if err := n.ResolveNeighbors(ctx); err != nil {
		return 0, err
	}
	n.nbMu.RLock()
	defer n.nbMu.RUnlock()
	return len(n.neighbors), nil
}

// Neighbors returns the node's neighbors ordered by index, resolving them
// first if needed.
func (n *Node) Neighbors(ctx context.Context) ([]*Node, error) {
	if err := n.ResolveNeighbors(ctx); err != nil {
		return nil, err
	}

	n.nbMu.RLock()
	result := make([]*Node, 0, len(n.neighbors))
	for _, e := range n.neighbors {
		result = append(result, e.Other(n))
	}
	n.nbMu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Index() < result[j].Index() })
	return result, nil
}

// ResolveNeighbors runs the node's lazy-load sequence to completion: fetch
// from the external source and persist if the cache has never seen this
// node's neighbor set, then hydrate the in-memory adjacency set from the
// cache. Both steps run at most once per node per process; a failure leaves
// the corresponding flag unset so the next call retries.
func (n *Node) ResolveNeighbors(ctx context.Context) error {
	n.loadMu.Lock()
	defer n.loadMu.Unlock()

	if !n.cachedInStore {
		if err := n.fetchIntoCache(ctx); err != nil {
			return err
		}
		n.cachedInStore = true
	}
	if !n.loadedLocally {
		if err := n.hydrateFromCache(ctx); err != nil {
			return err
		}
		n.loadedLocally = true
	}
	return nil
}

// fetchIntoCache asks the external source for this node's neighbors,
// persists the resulting nodes and edges, and finally marks the node's
// neighbor set as cached. The flag write and commit happen last so that a
// failure anywhere before them leaves the node refetchable.
func (n *Node) fetchIntoCache(ctx context.Context) error {
	g := n.graph

	if g.source != nil {
		refs, err := g.source.FetchNeighbors(ctx, n)
		if err != nil {
			return fmt.Errorf("fetch neighbors of %q: %w", n.name, err)
		}
		if g.neighborLimit > 0 && len(refs) > g.neighborLimit {
			refs = refs[:g.neighborLimit]
		}

		for _, ref := range refs {
			nb, err := g.nodes.Resolve(ctx, ref.Name, true, ref.ExternalID)
			if err != nil {
				return fmt.Errorf("resolve neighbor %q of %q: %w", ref.Name, n.name, err)
			}
			if nb == nil {
				g.logger.Debug("skipping unresolvable neighbor",
					slog.String("node", n.name), slog.String("neighbor", ref.Name))
				continue
			}
			if err := g.edges.Add(ctx, n, nb, DefaultEdgeWeight, true); err != nil {
				return fmt.Errorf("add neighbor edge %q-%q: %w", n.name, nb.name, err)
			}
		}
	}

	batch, err := g.cache.Begin(ctx)
	if err != nil {
		return fmt.Errorf("mark neighbors cached for %q: %w", n.name, err)
	}
	if err := batch.SetNeighborsCached(ctx, n.name, true); err != nil {
		return fmt.Errorf("mark neighbors cached for %q: %w", n.name, err)
	}
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("commit neighbor cache for %q: %w", n.name, err)
	}
	return nil
}

// hydrateFromCache materializes in-memory nodes and edges for every neighbor
// the cache knows about. Hydration is bounded to one hop: the neighbor nodes
// are created but their own neighbor sets are deliberately not resolved here,
// otherwise a single resolution could cascade through the whole cached graph.
func (n *Node) hydrateFromCache(ctx context.Context) error {
	g := n.graph

	names, err := g.cache.NeighborNames(ctx, n.name)
	if err != nil {
		return fmt.Errorf("read cached neighbors of %q: %w", n.name, err)
	}

	for _, name := range names {
		nb, err := g.nodes.Resolve(ctx, name, false, "")
		if err != nil {
			return fmt.Errorf("materialize cached neighbor %q of %q: %w", name, n.name, err)
		}
		if nb == nil {
			// An edge record without a node record; the cache enforces
			// referential integrity, so treat this as a skippable anomaly.
			g.logger.Warn("cached neighbor has no node record",
				slog.String("node", n.name), slog.String("neighbor", name))
			continue
		}
		if err := g.edges.Add(ctx, n, nb, DefaultEdgeWeight, false); err != nil {
			return err
		}
	}
	return nil
}

// addNeighbor registers an edge on this node. It is called exactly twice per
// edge, once from each endpoint's perspective, ignores edges that do not
// touch the node, and suppresses duplicates in either key order.
func (n *Node) addNeighbor(e *Edge) {
	if e == nil {
		return
	}
	other := e.Other(n)
	if other == nil {
		return
	}

	key := e.Key()
	n.nbMu.Lock()
	if _, ok := n.neighbors[key]; ok {
		n.nbMu.Unlock()
		return
	}
	if _, ok := n.neighbors[key.reversed()]; ok {
		n.nbMu.Unlock()
		return
	}
	n.neighbors[key] = e
	n.nbMu.Unlock()

	n.graph.notifyNeighborAdded(n, other)
}

// NeighborsCached reports whether the node's neighbor set has been written to
// the persistent cache, by this process or a previous one.
func (n *Node) NeighborsCached() bool {
	n.loadMu.Lock()
	defer n.loadMu.Unlock()
	return n.cachedInStore
}
