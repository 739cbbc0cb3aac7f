package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// DefaultEdgeWeight is the weight assigned to edges created without an
// explicit one, including edges hydrated from the cache.
const DefaultEdgeWeight = 1.0

// EdgeList owns every edge of one graph, keyed by the unordered endpoint
// index pair. At most one edge exists per pair; edges are never removed.
type EdgeList struct {
	g *Graph

	mu    sync.RWMutex
	edges map[EdgeKey]*Edge
}

func newEdgeList(g *Graph) *EdgeList {
	return &EdgeList{
		g:     g,
		edges: make(map[EdgeKey]*Edge),
	}
}

// Len returns the number of edges in the graph.
func (l *EdgeList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.edges)
}

// Add connects the two nodes, constructing and registering a new edge unless
// one already exists for the pair in either order; duplicate insertion is a
// silent no-op. Self-loops and non-positive weights fail validation.
//
// When persist is set the edge is written through to the cache: inserted if
// absent, weight-updated if it changed, with a commit only when a write
// actually occurred. Hydration from the cache passes persist=false.
func (l *EdgeList) Add(ctx context.Context, source, target *Node, weight float64, persist bool) error {
	if source == nil || target == nil {
		return ErrNilNode
	}
	if source.Index() == target.Index() {
		return ErrSelfLoop
	}
	if weight <= 0 {
		return ErrBadWeight
	}

	if l.GetByIndex(source.Index(), target.Index()) != nil {
		return nil
	}

	e, err := newEdge(source, target, weight)
	if err != nil {
		return err
	}

	key := e.Key()
	l.mu.Lock()
	if _, ok := l.edges[key]; ok {
		l.mu.Unlock()
		return nil
	}
	if _, ok := l.edges[key.reversed()]; ok {
		l.mu.Unlock()
		return nil
	}
	l.edges[key] = e
	l.mu.Unlock()

	if !persist {
		return nil
	}
	return l.persistEdge(ctx, source.Name(), target.Name(), weight)
}

// persistEdge upserts the edge record for the unordered name pair, committing
// only when the record was absent or its weight changed.
func (l *EdgeList) persistEdge(ctx context.Context, sourceName, targetName string, weight float64) error {
	rec, err := l.g.cache.EdgeByNames(ctx, sourceName, targetName)
	if err != nil {
		return fmt.Errorf("look up edge %q-%q in cache: %w", sourceName, targetName, err)
	}
	if rec != nil && rec.Weight == weight {
		return nil
	}
	batch, err := l.g.cache.Begin(ctx)
	if err != nil {
		return fmt.Errorf("persist edge %q-%q: %w", sourceName, targetName, err)
	}
	if err := batch.UpsertEdge(ctx, sourceName, targetName, weight); err != nil {
		return fmt.Errorf("persist edge %q-%q: %w", sourceName, targetName, err)
	}
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("commit edge %q-%q: %w", sourceName, targetName, err)
	}
	return nil
}

// Get returns the edge connecting the two nodes, or nil.
func (l *EdgeList) Get(source, target *Node) *Edge {
	if source == nil || target == nil {
		return nil
	}
	return l.GetByIndex(source.Index(), target.Index())
}

// GetByIndex returns the edge connecting the nodes with the given indices,
// trying both orderings, or nil.
func (l *EdgeList) GetByIndex(sourceIndex, targetIndex int) *Edge {
	key := EdgeKey{Source: sourceIndex, Target: targetIndex}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if e, ok := l.edges[key]; ok {
		return e
	}
	return l.edges[key.reversed()]
}

// GetByName returns the edge connecting the nodes with the given names, or
// nil if either node or the edge does not exist. Node lookup goes through
// memory and cache but never the validation hook.
func (l *EdgeList) GetByName(ctx context.Context, sourceName, targetName string) (*Edge, error) {
	source, err := l.g.nodes.ByName(ctx, sourceName)
	if err != nil || source == nil {
		return nil, err
	}
	target, err := l.g.nodes.ByName(ctx, targetName)
	if err != nil || target == nil {
		return nil, err
	}
	return l.GetByIndex(source.Index(), target.Index()), nil
}

// List returns a snapshot of all edges sorted ascending by index-pair key,
// for deterministic enumeration.
func (l *EdgeList) List() []*Edge {
	l.mu.RLock()
	result := make([]*Edge, 0, len(l.edges))
	for _, e := range l.edges {
		result = append(result, e)
	}
	l.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Key().less(result[j].Key()) })
	return result
}
