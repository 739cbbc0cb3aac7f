package spotify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/volfpeter/graphscraper/pkg/graph"
)

// DefaultNeighborCount is how many related artists are loaded per node when
// the configuration does not say otherwise.
const DefaultNeighborCount = 6

// Config holds the settings for a Spotify-backed artist graph.
type Config struct {
	// ClientID and ClientSecret are the Client Credentials Flow pair.
	ClientID     string
	ClientSecret string

	// NeighborCount caps how many related artists are loaded per node.
	// Zero means DefaultNeighborCount; negative means unlimited.
	NeighborCount int

	// Logger receives graph diagnostics. Nil keeps the graph quiet.
	Logger *slog.Logger
}

// New builds a lazily populated artist graph on the given cache. Nodes are
// artists, neighbor resolution fetches related artists, and name validation
// searches the API with the best hit winning.
func New(cache graph.Cache, cfg Config, opts ...ClientOption) (*graph.Graph, error) {
	client, err := NewClient(cfg.ClientID, cfg.ClientSecret, opts...)
	if err != nil {
		return nil, err
	}

	limit := cfg.NeighborCount
	switch {
	case limit == 0:
		limit = DefaultNeighborCount
	case limit < 0:
		limit = 0
	}

	gopts := []graph.Option{
		graph.WithNeighborSource(&neighborSource{client: client}),
		graph.WithNameResolver(graph.NameResolverFunc(client.resolveArtistName)),
		graph.WithExternalIDLookup(client.lookupArtistID),
		graph.WithNeighborLimit(limit),
	}
	if cfg.Logger != nil {
		gopts = append(gopts, graph.WithLogger(cfg.Logger))
	}
	return graph.New(cache, gopts...)
}

// neighborSource adapts the related-artists endpoint to graph.NeighborSource.
type neighborSource struct {
	client *Client
}

func (s *neighborSource) FetchNeighbors(ctx context.Context, node *graph.Node) ([]graph.NodeRef, error) {
	id := node.ExternalID()
	if id == "" {
		// Nodes created before the artist was ever searched have no ID yet.
		var err error
		id, err = s.client.lookupArtistID(ctx, node.Name())
		if err != nil {
			return nil, err
		}
		if id == "" {
			return nil, fmt.Errorf("artist %q has no Spotify ID", node.Name())
		}
	}

	artists, err := s.client.RelatedArtists(ctx, id)
	if err != nil {
		return nil, err
	}
	refs := make([]graph.NodeRef, 0, len(artists))
	for _, a := range artists {
		refs = append(refs, graph.NodeRef{Name: a.Name, ExternalID: a.ID})
	}
	return refs, nil
}

// resolveArtistName validates a candidate artist name by searching the API.
// The best search hit provides the authentic spelling, so slightly wrong
// user input still resolves.
func (c *Client) resolveArtistName(ctx context.Context, name string) (string, bool, error) {
	artists, err := c.SearchArtists(ctx, name, defaultSearchLimit)
	if err != nil {
		return "", false, err
	}
	if len(artists) == 0 {
		return "", false, nil
	}
	return artists[0].Name, true, nil
}

// lookupArtistID finds the Spotify ID for an exact artist name. Only an
// exact match counts; an empty result leaves the node without an ID.
func (c *Client) lookupArtistID(ctx context.Context, name string) (string, error) {
	artists, err := c.SearchArtists(ctx, name, defaultSearchLimit)
	if err != nil {
		return "", err
	}
	for _, a := range artists {
		if a.Name == name {
			return a.ID, nil
		}
	}
	return "", nil
}
