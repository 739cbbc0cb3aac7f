// Package badgerstore implements the graph cache on BadgerDB, an embedded
// key-value store. One store holds one graph.
//
// Writes are staged on a per-caller Batch and applied in a single Badger
// transaction on its Commit, so a crash never leaves a partially applied
// write set behind and one caller's commit never touches another's staged
// writes.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/volfpeter/graphscraper/pkg/graph"
)

// Key layout. Segments are joined with a NUL byte so node names containing
// any printable character remain unambiguous.
//
//	node <name>          -> NodeRecord (JSON)
//	xid <externalID>     -> node name
//	edge <minName> <maxName> -> EdgeRecord (JSON)
//	adj <name> <other>   -> empty (adjacency index, both directions)
const keySep = "\x00"

// Config holds the settings for one store.
type Config struct {
	// Path is the directory for the database files. Required unless InMemory
	// is set, in which case it is ignored.
	Path string

	// InMemory keeps everything in RAM. Data is lost on Close.
	InMemory bool

	// SyncWrites makes every commit durable before returning.
	SyncWrites bool

	// Logger receives Badger's internal logging. Nil disables it.
	Logger *slog.Logger

	// GCInterval is how often value log garbage collection runs. Zero
	// disables it; it is always disabled for in-memory stores.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum garbage ratio that triggers a value log
	// rewrite.
	GCDiscardRatio float64
}

// DefaultConfig returns durable settings for persistent use.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns settings for tests: no disk, no sync, no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a BadgerDB-backed graph cache. It implements graph.Cache.
//
// Reads always see committed state only. Writes are staged on a Batch and
// applied in order inside one read-write transaction when the batch commits.
type Store struct {
	db *badger.DB

	gcStop chan struct{}
	gcDone chan struct{}
}

type op func(txn *badger.Txn) error

// Batch is one independent staged write set against a Store. A batch holds
// its own op queue, so concurrent batches never commit or drop each other's
// writes. Not safe for concurrent use; create one per logical write step.
type Batch struct {
	store *Store
	ops   []op
}

// Begin opens a fresh write batch.
func (s *Store) Begin(ctx context.Context) (graph.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Batch{store: s}, nil
}

// Open opens or creates a store with the given configuration.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
	}
	return s, nil
}

// Close stops garbage collection and closes the database. Batches that have
// not committed yet are void.
func (s *Store) Close() error {
	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
	}
	return s.db.Close()
}

func (s *Store) runGC(interval time.Duration, ratio float64, logger *slog.Logger) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && logger != nil {
				logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

func nodeKey(name string) []byte {
	return []byte("node" + keySep + name)
}

func externalIDKey(id string) []byte {
	return []byte("xid" + keySep + id)
}

func edgeKey(nameA, nameB string) []byte {
	a, b := orderNames(nameA, nameB)
	return []byte("edge" + keySep + a + keySep + b)
}

func adjacencyKey(name, other string) []byte {
	return []byte("adj" + keySep + name + keySep + other)
}

func adjacencyPrefix(name string) []byte {
	return []byte("adj" + keySep + name + keySep)
}

// orderNames returns the pair in lexicographic order, the canonical storage
// order for undirected edges.
func orderNames(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// NodeByName returns the committed node record for name, or nil.
func (s *Store) NodeByName(ctx context.Context, name string) (*graph.NodeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *graph.NodeRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = readNode(txn, name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read node %q: %w", name, err)
	}
	return rec, nil
}

// NodeByExternalID returns the committed node record keyed by external ID,
// or nil.
func (s *Store) NodeByExternalID(ctx context.Context, externalID string) (*graph.NodeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *graph.NodeRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(externalIDKey(externalID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			rec, err = readNode(txn, string(val))
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read node by external ID %q: %w", externalID, err)
	}
	return rec, nil
}

func readNode(txn *badger.Txn, name string) (*graph.NodeRecord, error) {
	item, err := txn.Get(nodeKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec graph.NodeRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, err
	}
	return &rec, nil
}

func writeNode(txn *badger.Txn, rec *graph.NodeRecord) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := txn.Set(nodeKey(rec.Name), buf); err != nil {
		return err
	}
	if rec.ExternalID != "" {
		return txn.Set(externalIDKey(rec.ExternalID), []byte(rec.Name))
	}
	return nil
}

// UpsertNode stages a node record. An existing record keeps its creation date
// and neighbors-cached flag; the external ID is filled in when it was empty.
func (b *Batch) UpsertNode(ctx context.Context, name, externalID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.stage(func(txn *badger.Txn) error {
		rec, err := readNode(txn, name)
		if err != nil {
			return err
		}
		if rec == nil {
			rec = &graph.NodeRecord{Name: name, CreatedAt: time.Now().UTC()}
		}
		if externalID != "" {
			rec.ExternalID = externalID
		}
		return writeNode(txn, rec)
	})
	return nil
}

// SetNeighborsCached stages the neighbors-cached flag for name. A missing
// record is created so the flag is never silently dropped.
func (b *Batch) SetNeighborsCached(ctx context.Context, name string, cached bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.stage(func(txn *badger.Txn) error {
		rec, err := readNode(txn, name)
		if err != nil {
			return err
		}
		if rec == nil {
			rec = &graph.NodeRecord{Name: name, CreatedAt: time.Now().UTC()}
		}
		rec.NeighborsCached = cached
		return writeNode(txn, rec)
	})
	return nil
}

// EdgeByNames returns the committed edge record for the unordered name pair,
// or nil.
func (s *Store) EdgeByNames(ctx context.Context, nameA, nameB string) (*graph.EdgeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *graph.EdgeRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(edgeKey(nameA, nameB))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		rec = &graph.EdgeRecord{}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, rec)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read edge %q-%q: %w", nameA, nameB, err)
	}
	return rec, nil
}

// UpsertEdge stages an edge record and both directions of the adjacency
// index.
func (b *Batch) UpsertEdge(ctx context.Context, nameA, nameB string, weight float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if weight <= 0 {
		return fmt.Errorf("badgerstore: edge %q-%q weight must be positive, got %v", nameA, nameB, weight)
	}

	lo, hi := orderNames(nameA, nameB)
	b.stage(func(txn *badger.Txn) error {
		buf, err := json.Marshal(graph.EdgeRecord{SourceName: lo, TargetName: hi, Weight: weight})
		if err != nil {
			return err
		}
		if err := txn.Set(edgeKey(lo, hi), buf); err != nil {
			return err
		}
		if err := txn.Set(adjacencyKey(lo, hi), nil); err != nil {
			return err
		}
		return txn.Set(adjacencyKey(hi, lo), nil)
	})
	return nil
}

// NeighborNames returns the names connected to name by a committed edge, in
// lexicographic order.
func (s *Store) NeighborNames(ctx context.Context, name string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := adjacencyPrefix(name)
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			names = append(names, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read neighbors of %q: %w", name, err)
	}
	return names, nil
}

// Nodes returns every committed node record, ordered by name.
func (s *Store) Nodes(ctx context.Context) ([]graph.NodeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte("node" + keySep)
	var records []graph.NodeRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec graph.NodeRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return records, nil
}

// Edges returns every committed edge record, ordered by canonical name pair.
func (s *Store) Edges(ctx context.Context) ([]graph.EdgeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte("edge" + keySep)
	var records []graph.EdgeRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec graph.EdgeRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	return records, nil
}

// Commit applies the batch's staged writes in order inside one transaction.
// On error nothing is applied and the batch's writes are dropped; other
// batches are unaffected either way.
func (b *Batch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ops := b.ops
	b.ops = nil
	if len(ops) == 0 {
		return nil
	}

	err := b.store.db.Update(func(txn *badger.Txn) error {
		for _, apply := range ops {
			if err := apply(txn); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit %d staged writes: %w", len(ops), err)
	}
	return nil
}

func (b *Batch) stage(o op) {
	b.ops = append(b.ops, o)
}

var (
	_ graph.Cache = (*Store)(nil)
	_ graph.Batch = (*Batch)(nil)
)
