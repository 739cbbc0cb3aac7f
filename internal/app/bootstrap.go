// Package app wires configuration, storage, telemetry and the graph
// providers into runnable units for the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/volfpeter/graphscraper/pkg/cache/badgerstore"
	"github.com/volfpeter/graphscraper/pkg/graph"
	"github.com/volfpeter/graphscraper/pkg/providers/spotify"
	"github.com/volfpeter/graphscraper/pkg/providers/staticgraph"
	"github.com/volfpeter/graphscraper/pkg/telemetry"
	"github.com/volfpeter/graphscraper/pkg/version"
)

// Config carries every CLI-level setting.
type Config struct {
	// CacheDir is where the persistent graph cache lives. Empty means
	// ~/.graphscraper.
	CacheDir string

	// OTelEndpoint is the OTLP HTTP endpoint for traces. Empty disables
	// exporting unless OTEL_EXPORTER_OTLP_ENDPOINT is set.
	OTelEndpoint string

	// Verbose turns on debug logging.
	Verbose bool

	// Spotify credentials, required by the spotify-backed commands.
	SpotifyClientID     string
	SpotifyClientSecret string

	// NeighborCount caps loaded neighbors per artist. Zero means the
	// provider default.
	NeighborCount int

	// FixturePath is an optional YAML graph fixture for the demo command.
	FixturePath string
}

// Logger builds the process logger: debug to stderr when verbose, warnings
// only otherwise.
func (c Config) Logger() *slog.Logger {
	level := slog.LevelWarn
	if c.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// InitTelemetry sets up tracing for the process and returns the shutdown
// function.
func InitTelemetry(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	return telemetry.Init(ctx, version.AppName, version.Current, cfg.OTelEndpoint)
}

// OpenStore opens the persistent cache, creating the directory on first use.
func OpenStore(cfg Config) (*badgerstore.Store, error) {
	dir := cfg.CacheDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".graphscraper")
	}

	storeCfg := badgerstore.DefaultConfig(filepath.Join(dir, "cache"))
	if cfg.Verbose {
		storeCfg.Logger = cfg.Logger()
	}
	return badgerstore.Open(storeCfg)
}

// NewSpotifyGraph builds the artist graph on the given cache.
func NewSpotifyGraph(cache graph.Cache, cfg Config) (*graph.Graph, error) {
	return spotify.New(cache, spotify.Config{
		ClientID:      cfg.SpotifyClientID,
		ClientSecret:  cfg.SpotifyClientSecret,
		NeighborCount: cfg.NeighborCount,
		Logger:        cfg.Logger(),
	})
}

// NewStaticGraph builds a lazy graph over a fixture file, or over the
// built-in demo dataset when no fixture is configured.
func NewStaticGraph(cache graph.Cache, cfg Config) (*graph.Graph, *staticgraph.Graph, error) {
	var (
		sg  *staticgraph.Graph
		err error
	)
	if cfg.FixturePath != "" {
		sg, err = staticgraph.LoadFile(cfg.FixturePath)
		if err != nil {
			return nil, nil, err
		}
	} else {
		sg = staticgraph.Zachary()
	}

	opts := append(sg.Options(), graph.WithLogger(cfg.Logger()))
	g, err := graph.New(cache, opts...)
	if err != nil {
		return nil, nil, err
	}
	return g, sg, nil
}

// Expansion is the outcome of resolving one queried name.
type Expansion struct {
	Query     string
	Name      string
	Neighbors []string
	Err       error
}

// ExpandAll resolves every queried name and its one-hop neighborhood,
// fanning out across names. Per-name failures are reported in the result
// instead of aborting the whole batch; results come back in query order.
func ExpandAll(ctx context.Context, g *graph.Graph, queries []string, concurrency int) []Expansion {
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([]Expansion, len(queries))
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i, query := range queries {
		eg.Go(func() error {
			exp := expandOne(ctx, g, query)
			mu.Lock()
			results[i] = exp
			mu.Unlock()
			return nil
		})
	}
	// Per-name errors live in the results; the group itself never fails.
	_ = eg.Wait()
	return results
}

func expandOne(ctx context.Context, g *graph.Graph, query string) Expansion {
	exp := Expansion{Query: query}

	name, ok, err := g.AuthenticNodeName(ctx, query)
	if err != nil {
		exp.Err = fmt.Errorf("resolve %q: %w", query, err)
		return exp
	}
	if !ok {
		exp.Err = fmt.Errorf("no node found for %q", query)
		return exp
	}
	exp.Name = name

	node, err := g.Nodes().Resolve(ctx, name, true, "")
	if err != nil {
		exp.Err = fmt.Errorf("load %q: %w", name, err)
		return exp
	}
	if node == nil {
		exp.Err = fmt.Errorf("no node found for %q", query)
		return exp
	}

	neighbors, err := node.Neighbors(ctx)
	if err != nil {
		exp.Err = fmt.Errorf("load neighbors of %q: %w", name, err)
		return exp
	}
	for _, nb := range neighbors {
		exp.Neighbors = append(exp.Neighbors, nb.Name())
	}
	sort.Strings(exp.Neighbors)
	return exp
}
