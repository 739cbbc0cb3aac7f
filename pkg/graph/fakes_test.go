package graph

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// memCache is an in-memory Cache with the same staging discipline as the
// durable store: writes queue up on a per-caller batch and become visible
// only on its Commit.
type memCache struct {
	mu      sync.Mutex
	nodes   map[string]*NodeRecord
	byXID   map[string]string
	edges   map[string]*EdgeRecord
	adj     map[string]map[string]struct{}
	commits int
}

func newMemCache() *memCache {
	return &memCache{
		nodes: make(map[string]*NodeRecord),
		byXID: make(map[string]string),
		edges: make(map[string]*EdgeRecord),
		adj:   make(map[string]map[string]struct{}),
	}
}

func edgeCacheKey(a, b string) (string, string) {
	if b < a {
		a, b = b, a
	}
	return a, b
}

func (c *memCache) NodeByName(_ context.Context, name string) (*NodeRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.nodes[name]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (c *memCache) NodeByExternalID(_ context.Context, externalID string) (*NodeRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.byXID[externalID]
	if !ok {
		return nil, nil
	}
	rec, ok := c.nodes[name]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (c *memCache) Begin(_ context.Context) (Batch, error) {
	return &memBatch{c: c}, nil
}

func (c *memCache) EdgeByNames(_ context.Context, nameA, nameB string) (*EdgeRecord, error) {
	a, b := edgeCacheKey(nameA, nameB)
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.edges[a+"/"+b]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (c *memCache) NeighborNames(_ context.Context, name string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]string, 0, len(c.adj[name]))
	for n := range c.adj[name] {
		result = append(result, n)
	}
	sort.Strings(result)
	return result, nil
}

func (c *memCache) commitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commits
}

// memBatch stages writes for one caller and applies them on Commit. Each
// batch owns its queue, mirroring the durable store's isolation.
type memBatch struct {
	c       *memCache
	pending []func()
}

func (b *memBatch) UpsertNode(_ context.Context, name, externalID string) error {
	c := b.c
	b.pending = append(b.pending, func() {
		if existing, ok := c.nodes[name]; ok {
			if externalID != "" {
				existing.ExternalID = externalID
				c.byXID[externalID] = name
			}
			return
		}
		c.nodes[name] = &NodeRecord{Name: name, ExternalID: externalID, CreatedAt: time.Now()}
		if externalID != "" {
			c.byXID[externalID] = name
		}
	})
	return nil
}

func (b *memBatch) SetNeighborsCached(_ context.Context, name string, cached bool) error {
	c := b.c
	b.pending = append(b.pending, func() {
		if rec, ok := c.nodes[name]; ok {
			rec.NeighborsCached = cached
		}
	})
	return nil
}

func (b *memBatch) UpsertEdge(_ context.Context, nameA, nameB string, weight float64) error {
	a, z := edgeCacheKey(nameA, nameB)
	if weight <= 0 {
		return errors.New("memcache: edge weight must be positive")
	}
	c := b.c
	b.pending = append(b.pending, func() {
		c.edges[a+"/"+z] = &EdgeRecord{SourceName: a, TargetName: z, Weight: weight}
		if c.adj[a] == nil {
			c.adj[a] = make(map[string]struct{})
		}
		if c.adj[z] == nil {
			c.adj[z] = make(map[string]struct{})
		}
		c.adj[a][z] = struct{}{}
		c.adj[z][a] = struct{}{}
	})
	return nil
}

func (b *memBatch) Commit(_ context.Context) error {
	c := b.c
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, apply := range b.pending {
		apply()
	}
	b.pending = nil
	c.commits++
	return nil
}

// fakeSource serves canned neighbor sets and counts fetches per node. Nodes
// listed in failures error out that many times before succeeding.
type fakeSource struct {
	mu       sync.Mutex
	refs     map[string][]NodeRef
	calls    map[string]int
	failures map[string]int
}

func newFakeSource(refs map[string][]NodeRef) *fakeSource {
	return &fakeSource{
		refs:     refs,
		calls:    make(map[string]int),
		failures: make(map[string]int),
	}
}

func (s *fakeSource) FetchNeighbors(_ context.Context, node *Node) ([]NodeRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[node.Name()]++
	if s.failures[node.Name()] > 0 {
		s.failures[node.Name()]--
		return nil, errors.New("fakesource: transient failure")
	}
	return s.refs[node.Name()], nil
}

func (s *fakeSource) callCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

// acceptKnownNames is a resolver that accepts, case-insensitively, any name in
// the given universe and maps it to its canonical form.
func acceptKnownNames(names ...string) NameResolver {
	canonical := make(map[string]string, len(names))
	for _, n := range names {
		canonical[strings.ToLower(n)] = n
	}
	return NameResolverFunc(func(_ context.Context, name string) (string, bool, error) {
		c, ok := canonical[strings.ToLower(strings.TrimSpace(name))]
		return c, ok, nil
	})
}
