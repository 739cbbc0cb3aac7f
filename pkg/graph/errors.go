package graph

import "errors"

// Sentinel errors for graph construction and lookup. Not-found conditions are
// reported as nil results, not errors; these cover invalid input only.
var (
	// ErrNilCache indicates a Graph was constructed without a cache.
	ErrNilCache = errors.New("graph: cache is nil")

	// ErrNilNode indicates a nil node was passed where an endpoint is required.
	ErrNilNode = errors.New("graph: node is nil")

	// ErrEmptyNodeName indicates a node name was empty after trimming.
	ErrEmptyNodeName = errors.New("graph: node name is empty")

	// ErrSelfLoop indicates an edge with identical endpoints.
	ErrSelfLoop = errors.New("graph: self-loop not allowed")

	// ErrBadWeight indicates a non-positive edge weight.
	ErrBadWeight = errors.New("graph: edge weight must be positive")

	// ErrNodeNotFound indicates an edge operation referenced a node that does
	// not exist in the graph or its cache.
	ErrNodeNotFound = errors.New("graph: node not found")
)
