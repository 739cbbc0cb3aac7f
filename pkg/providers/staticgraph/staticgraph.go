// Package staticgraph provides a fixed, fully known graph as an external
// neighbor source. It backs demos and tests where the lazy-loading machinery
// should run against deterministic data instead of a remote API.
package staticgraph

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/volfpeter/graphscraper/pkg/graph"
)

// Graph is an immutable undirected adjacency structure over named vertices.
// It implements graph.NeighborSource and graph.NameResolver.
type Graph struct {
	names []string
	index map[string]int
	adj   map[string][]string
}

// Builder accumulates vertices and edges for a Graph. The zero value is
// ready to use.
type Builder struct {
	names []string
	index map[string]int
	adj   map[string]map[string]struct{}
	err   error
}

// AddVertex registers a vertex. Adding the same name twice is a no-op.
func (b *Builder) AddVertex(name string) *Builder {
	if b.err != nil {
		return b
	}
	name = strings.TrimSpace(name)
	if name == "" {
		b.err = fmt.Errorf("staticgraph: empty vertex name")
		return b
	}
	if b.index == nil {
		b.index = make(map[string]int)
		b.adj = make(map[string]map[string]struct{})
	}
	if _, ok := b.index[name]; ok {
		return b
	}
	b.index[name] = len(b.names)
	b.names = append(b.names, name)
	b.adj[name] = make(map[string]struct{})
	return b
}

// AddEdge connects two vertices, registering them first if needed.
// Self-loops are rejected.
func (b *Builder) AddEdge(a, c string) *Builder {
	if b.err != nil {
		return b
	}
	b.AddVertex(a).AddVertex(c)
	if b.err != nil {
		return b
	}
	a = strings.TrimSpace(a)
	c = strings.TrimSpace(c)
	if a == c {
		b.err = fmt.Errorf("staticgraph: self-loop on %q", a)
		return b
	}
	b.adj[a][c] = struct{}{}
	b.adj[c][a] = struct{}{}
	return b
}

// Build finalizes the graph. The builder must not be reused afterwards.
func (b *Builder) Build() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}

	g := &Graph{
		names: b.names,
		index: b.index,
		adj:   make(map[string][]string, len(b.adj)),
	}
	for name, set := range b.adj {
		neighbors := make([]string, 0, len(set))
		for n := range set {
			neighbors = append(neighbors, n)
		}
		sort.Strings(neighbors)
		g.adj[name] = neighbors
	}
	return g, nil
}

// VertexCount returns the number of vertices.
func (g *Graph) VertexCount() int { return len(g.names) }

// VertexNames returns the vertex names in insertion order.
func (g *Graph) VertexNames() []string {
	result := make([]string, len(g.names))
	copy(result, g.names)
	return result
}

// FetchNeighbors returns the neighbors of the given node, in lexicographic
// order. Nodes outside the graph have no neighbors.
func (g *Graph) FetchNeighbors(_ context.Context, node *graph.Node) ([]graph.NodeRef, error) {
	neighbors := g.adj[node.Name()]
	refs := make([]graph.NodeRef, 0, len(neighbors))
	for _, name := range neighbors {
		refs = append(refs, graph.NodeRef{Name: name})
	}
	return refs, nil
}

// ResolveName accepts a vertex name verbatim, or a numeric vertex index as a
// user would type it, and returns the canonical vertex name.
func (g *Graph) ResolveName(_ context.Context, name string) (string, bool, error) {
	name = strings.TrimSpace(name)
	if _, ok := g.index[name]; ok {
		return name, true, nil
	}
	if i, err := strconv.Atoi(name); err == nil && i >= 0 && i < len(g.names) {
		return g.names[i], true, nil
	}
	return "", false, nil
}

// Options returns the graph options that wire this source into a lazy graph.
func (g *Graph) Options() []graph.Option {
	return []graph.Option{
		graph.WithNeighborSource(g),
		graph.WithNameResolver(g),
	}
}

var (
	_ graph.NeighborSource = (*Graph)(nil)
	_ graph.NameResolver   = (*Graph)(nil)
)
