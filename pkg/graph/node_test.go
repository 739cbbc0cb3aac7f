package graph

import (
	"context"
	"sync"
	"testing"
)

func newSourcedGraph(t *testing.T, cache Cache, src *fakeSource, universe ...string) *Graph {
	t.Helper()
	g, err := New(cache,
		WithNeighborSource(src),
		WithNameResolver(acceptKnownNames(universe...)),
	)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestResolveNeighborsFetchesAndPersists(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	src := newFakeSource(map[string][]NodeRef{
		"X": {{Name: "Y"}, {Name: "Z"}},
	})
	g := newSourcedGraph(t, cache, src, "X", "Y", "Z")

	x, err := g.AddNode(ctx, "X", "")
	if err != nil {
		t.Fatal(err)
	}
	neighbors, err := x.Neighbors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("neighbor count %d, want 2", len(neighbors))
	}
	if neighbors[0].Name() != "Y" || neighbors[1].Name() != "Z" {
		t.Errorf("neighbors %q, %q; want Y, Z", neighbors[0].Name(), neighbors[1].Name())
	}

	for _, name := range []string{"X", "Y", "Z"} {
		rec, err := cache.NodeByName(ctx, name)
		if err != nil {
			t.Fatal(err)
		}
		if rec == nil {
			t.Errorf("node %q not persisted", name)
		}
	}
	rec, _ := cache.NodeByName(ctx, "X")
	if !rec.NeighborsCached {
		t.Error("X must be flagged neighbors-cached after resolution")
	}
	for _, pair := range [][2]string{{"X", "Y"}, {"X", "Z"}} {
		e, err := cache.EdgeByNames(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatal(err)
		}
		if e == nil {
			t.Errorf("edge %q-%q not persisted", pair[0], pair[1])
		}
	}
}

func TestResolveNeighborsFetchesAtMostOnce(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(map[string][]NodeRef{
		"X": {{Name: "Y"}},
	})
	g := newSourcedGraph(t, newMemCache(), src, "X", "Y")

	x, _ := g.AddNode(ctx, "X", "")
	for i := 0; i < 3; i++ {
		if _, err := x.Neighbors(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if got := src.callCount("X"); got != 1 {
		t.Errorf("source fetched X %d times, want 1", got)
	}
}

func TestResolveNeighborsIsOneHop(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(map[string][]NodeRef{
		"X": {{Name: "Y"}},
		"Y": {{Name: "X"}, {Name: "W"}},
	})
	g := newSourcedGraph(t, newMemCache(), src, "X", "Y", "W")

	x, _ := g.AddNode(ctx, "X", "")
	if _, err := x.Neighbors(ctx); err != nil {
		t.Fatal(err)
	}

	// Resolving X materializes Y but must not resolve Y's own neighbors.
	if got := src.callCount("Y"); got != 0 {
		t.Errorf("resolving X fetched Y %d times, want 0", got)
	}
	y, err := g.Nodes().ByName(ctx, "Y")
	if err != nil {
		t.Fatal(err)
	}
	if y == nil {
		t.Fatal("Y not materialized")
	}
}

func TestResolveNeighborsConcurrent(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(map[string][]NodeRef{
		"X": {{Name: "Y"}, {Name: "Z"}},
	})
	g := newSourcedGraph(t, newMemCache(), src, "X", "Y", "Z")

	x, _ := g.AddNode(ctx, "X", "")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := x.Neighbors(ctx); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	if got := src.callCount("X"); got != 1 {
		t.Errorf("concurrent resolution fetched X %d times, want 1", got)
	}
	deg, err := x.Degree(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deg != 2 {
		t.Errorf("degree %d, want 2", deg)
	}
}

func TestCachedNeighborsSkipSourceAcrossInstances(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()

	src1 := newFakeSource(map[string][]NodeRef{
		"X": {{Name: "Y"}, {Name: "Z"}},
	})
	g1 := newSourcedGraph(t, cache, src1, "X", "Y", "Z")
	x1, _ := g1.AddNode(ctx, "X", "")
	if _, err := x1.Neighbors(ctx); err != nil {
		t.Fatal(err)
	}

	// A fresh graph on the same cache must serve X entirely from storage.
	src2 := newFakeSource(nil)
	g2 := newSourcedGraph(t, cache, src2, "X", "Y", "Z")
	x2, err := g2.Nodes().ByName(ctx, "X")
	if err != nil {
		t.Fatal(err)
	}
	if x2 == nil {
		t.Fatal("X not found in cache-backed graph")
	}
	neighbors, err := x2.Neighbors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(neighbors) != 2 {
		t.Errorf("neighbor count %d, want 2", len(neighbors))
	}
	if got := src2.callCount("X"); got != 0 {
		t.Errorf("second run fetched X %d times, want 0", got)
	}
}

func TestResolveNeighborsRetriesAfterSourceFailure(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	src := newFakeSource(map[string][]NodeRef{
		"Q": {{Name: "R"}},
	})
	src.failures["Q"] = 1
	g := newSourcedGraph(t, cache, src, "Q", "R")

	q, _ := g.AddNode(ctx, "Q", "")
	if _, err := q.Neighbors(ctx); err == nil {
		t.Fatal("expected the first resolution to fail")
	}

	// The failure must not have marked Q as cached, in memory or in storage.
	if q.NeighborsCached() {
		t.Error("failed fetch must leave the node's cached state unset")
	}
	rec, err := cache.NodeByName(ctx, "Q")
	if err != nil {
		t.Fatal(err)
	}
	if rec.NeighborsCached {
		t.Error("failed fetch must leave the neighbors-cached flag unset")
	}

	neighbors, err := q.Neighbors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(neighbors) != 1 || neighbors[0].Name() != "R" {
		t.Errorf("neighbors after retry %v, want [R]", neighbors)
	}
	if got := src.callCount("Q"); got != 2 {
		t.Errorf("source fetched Q %d times, want 2", got)
	}
	if !q.NeighborsCached() {
		t.Error("successful retry must mark the node as cached")
	}
}

func TestNeighborLimitTruncatesFetch(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(map[string][]NodeRef{
		"hub": {{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}},
	})
	g, err := New(newMemCache(),
		WithNeighborSource(src),
		WithNameResolver(acceptKnownNames("hub", "a", "b", "c", "d")),
		WithNeighborLimit(2),
	)
	if err != nil {
		t.Fatal(err)
	}

	hub, _ := g.AddNode(ctx, "hub", "")
	deg, err := hub.Degree(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deg != 2 {
		t.Errorf("degree %d with limit 2, want 2", deg)
	}
}

func TestUnresolvableNeighborsAreSkipped(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(map[string][]NodeRef{
		"X": {{Name: "Y"}, {Name: "ghost"}},
	})
	// The resolver does not know "ghost", so that neighbor is dropped.
	g := newSourcedGraph(t, newMemCache(), src, "X", "Y")

	x, _ := g.AddNode(ctx, "X", "")
	neighbors, err := x.Neighbors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(neighbors) != 1 || neighbors[0].Name() != "Y" {
		t.Errorf("neighbors %v, want [Y]", neighbors)
	}
}

func TestDegreeWithoutSourceUsesCacheOnly(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	g, _ := New(cache)

	a, _ := g.AddNode(ctx, "a", "")
	if _, err := g.AddNode(ctx, "b", ""); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdgeByName(ctx, "a", "b", 1); err != nil {
		t.Fatal(err)
	}

	deg, err := a.Degree(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deg != 1 {
		t.Errorf("degree %d, want 1", deg)
	}

	// Sourceless resolution still flags the node, so later runs with a source
	// will not fetch it.
	rec, _ := cache.NodeByName(ctx, "a")
	if !rec.NeighborsCached {
		t.Error("sourceless resolution must still set the neighbors-cached flag")
	}
}
