package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// NodeList owns every node of one graph. It keeps two always-consistent
// registries, by index and by name; index assignment is strictly increasing
// and gapless, and nodes are never removed.
type NodeList struct {
	g *Graph

	mu      sync.RWMutex
	byIndex []*Node
	byName  map[string]*Node
}

func newNodeList(g *Graph) *NodeList {
	return &NodeList{
		g:      g,
		byName: make(map[string]*Node),
	}
}

// Len returns the number of nodes in the graph.
func (l *NodeList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byIndex)
}

// Get returns the node with the given index, or nil.
func (l *NodeList) Get(index int) *Node {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.byIndex) {
		return nil
	}
	return l.byIndex[index]
}

// All returns a snapshot of the nodes in index order.
func (l *NodeList) All() []*Node {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]*Node, len(l.byIndex))
	copy(result, l.byIndex)
	return result
}

// Add registers a node with the given name if it does not exist yet, in
// memory or in the cache, and persists fresh insertions as uncached-neighbor
// records. It returns the node either way.
func (l *NodeList) Add(ctx context.Context, name, externalID string) (*Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyNodeName
	}

	node, err := l.Resolve(ctx, name, false, externalID)
	if err != nil {
		return nil, err
	}
	if node != nil {
		return node, nil
	}
	return l.register(ctx, name, externalID, false, true)
}

// Resolve returns the node with the given name using three-tier resolution:
// the in-memory registry, then the persistent cache, then (only when
// validate is set) the graph's name-validation hook, which may map the
// candidate to a canonical name backed by an external source.
//
// A cache hit materializes a local node carrying the stored neighbors-cached
// flag but does not hydrate its neighbor edges; that happens separately on
// the node's first neighbor read. Collapsing the two steps would let a single
// lookup cascade through the cached graph.
//
// A nil node with a nil error means not found.
func (l *NodeList) Resolve(ctx context.Context, name string, validate bool, externalID string) (*Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyNodeName
	}

	l.mu.RLock()
	node := l.byName[name]
	l.mu.RUnlock()
	if node != nil {
		return node, nil
	}

	rec, err := l.g.cache.NodeByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("look up node %q in cache: %w", name, err)
	}
	if rec != nil {
		return l.register(ctx, rec.Name, rec.ExternalID, rec.NeighborsCached, false)
	}

	if !validate {
		return nil, nil
	}

	canonical, ok, err := l.g.AuthenticNodeName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	l.mu.RLock()
	node = l.byName[canonical]
	l.mu.RUnlock()
	if node != nil {
		return node, nil
	}

	rec, err = l.g.cache.NodeByName(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("look up node %q in cache: %w", canonical, err)
	}
	if rec != nil {
		return l.register(ctx, rec.Name, rec.ExternalID, rec.NeighborsCached, false)
	}
	return l.register(ctx, canonical, externalID, false, true)
}

// register creates and indexes a node, assigning it the next index. When
// persist is set the node is also written to the cache as a fresh record;
// cache-originated materializations pass persist=false and carry the cached
// flag the store reported.
func (l *NodeList) register(ctx context.Context, name, externalID string, neighborsCached, persist bool) (*Node, error) {
	externalID = strings.TrimSpace(externalID)

	if externalID == "" && l.g.lookupExternalID != nil {
		id, err := l.g.lookupExternalID(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("look up external ID for %q: %w", name, err)
		}
		externalID = strings.TrimSpace(id)
	}

	l.mu.Lock()
	if existing := l.byName[name]; existing != nil {
		// Lost a race against a concurrent resolution of the same name.
		l.mu.Unlock()
		return existing, nil
	}
	node := newNode(l.g, len(l.byIndex), name, externalID)
	node.cachedInStore = neighborsCached
	l.byIndex = append(l.byIndex, node)
	l.byName[name] = node
	l.mu.Unlock()

	if persist {
		rec, err := l.g.cache.NodeByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("look up node %q in cache: %w", name, err)
		}
		if rec == nil {
			batch, err := l.g.cache.Begin(ctx)
			if err != nil {
				return nil, fmt.Errorf("persist node %q: %w", name, err)
			}
			if err := batch.UpsertNode(ctx, name, externalID); err != nil {
				return nil, fmt.Errorf("persist node %q: %w", name, err)
			}
			if err := batch.Commit(ctx); err != nil {
				return nil, fmt.Errorf("commit node %q: %w", name, err)
			}
		}
	}
	return node, nil
}

// ByName returns the node with the given name from memory or cache, or nil.
// It never consults the validation hook.
func (l *NodeList) ByName(ctx context.Context, name string) (*Node, error) {
	return l.Resolve(ctx, name, false, "")
}
