package graph

// EdgeKey identifies an edge by the indices of its endpoints, in construction
// order. The relation is undirected: lookups must consider both orderings.
type EdgeKey struct {
	Source int
	Target int
}

// reversed returns the key with its endpoints swapped.
func (k EdgeKey) reversed() EdgeKey {
	return EdgeKey{Source: k.Target, Target: k.Source}
}

// less orders keys ascending by (Source, Target) for deterministic listings.
func (k EdgeKey) less(other EdgeKey) bool {
	if k.Source != other.Source {
		return k.Source < other.Source
	}
	return k.Target < other.Target
}

// Edge is an immutable undirected connection between two nodes. Constructing
// an edge registers it on both endpoints; a weight change is modeled by the
// edge list's upsert path, never by mutating an existing edge.
type Edge struct {
	source *Node
	target *Node
	weight float64
}

// newEdge validates the endpoints and weight, constructs the edge and
// registers it on both endpoint nodes.
func newEdge(source, target *Node, weight float64) (*Edge, error) {
	if source == nil || target == nil {
		return nil, ErrNilNode
	}
	if weight <= 0 {
		return nil, ErrBadWeight
	}
	if source.Index() == target.Index() {
		return nil, ErrSelfLoop
	}

	e := &Edge{source: source, target: target, weight: weight}
	source.addNeighbor(e)
	target.addNeighbor(e)
	return e, nil
}

// Key returns the endpoint index pair in construction order.
func (e *Edge) Key() EdgeKey {
	return EdgeKey{Source: e.source.Index(), Target: e.target.Index()}
}

// Source returns the endpoint the edge was constructed from.
func (e *Edge) Source() *Node { return e.source }

// Target returns the endpoint the edge was constructed towards.
func (e *Edge) Target() *Node { return e.target }

// Weight returns the edge weight.
func (e *Edge) Weight() float64 { return e.weight }

// Other returns the endpoint opposite to n, or nil if n is not an endpoint.
func (e *Edge) Other(n *Node) *Node {
	switch n {
	case e.source:
		return e.target
	case e.target:
		return e.source
	default:
		return nil
	}
}
