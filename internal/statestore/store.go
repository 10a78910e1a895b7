// Package statestore persists the client-side view of synced chat state
// (session, membership, room state, account data, presence and invite
// previews) in a PebbleDB keyspace split into named regions.
//
// All mutation goes through SaveChanges, which commits a ChangeSet as one
// atomic, synced Pebble batch and keeps the joined/invited user indexes in
// step with the member records inside that same batch.
package statestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/syntrixbase/chatstore/internal/statestore/config"
)

// dirName is the engine subdirectory created under the path given to
// OpenWithPath.
const dirName = "matrix-sdk-state"

// Option customises how a Store is opened.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	cacheSize int64
	bloomBits int
	db        DB
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithBlockCacheSize sets the Pebble block cache size in bytes.
func WithBlockCacheSize(size int64) Option {
	return func(o *options) { o.cacheSize = size }
}

// WithBloomFilter enables a bloom filter with the given bits per key.
func WithBloomFilter(bitsPerKey int) Option {
	return func(o *options) { o.bloomBits = bitsPerKey }
}

// withDB replaces the engine, used to inject faults in tests.
func withDB(db DB) Option {
	return func(o *options) { o.db = db }
}

// engine is the single backing database shared by every cloned handle.
type engine struct {
	db     DB
	path   string
	logger *slog.Logger

	// refMu guards refs and closed. Once refs reaches zero it never grows
	// again and closed is set before the engine waits on inflight, so no
	// operation starts after close begins.
	refMu    sync.Mutex
	refs     int
	closed   bool
	inflight sync.WaitGroup
}

// Store is a handle on the state store. Handles are cheap to Clone; the
// engine stays open until the last handle is closed. All methods are safe
// for concurrent use.
type Store struct {
	eng    *engine
	logger *slog.Logger
	closed atomic.Bool
}

// Open opens an ephemeral store kept entirely in memory. Its contents are
// discarded when the last handle is closed.
func Open(opts ...Option) (*Store, error) {
	return open("", true, opts)
}

// OpenWithPath opens (or creates) a persistent store under path.
func OpenWithPath(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	return open(filepath.Join(path, dirName), false, opts)
}

// New opens a store as described by cfg.
func New(cfg config.Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := []Option{WithBlockCacheSize(cfg.BlockCacheSize), WithBloomFilter(cfg.BloomBitsPerKey)}
	opts = append(base, opts...)
	if cfg.Ephemeral {
		return Open(opts...)
	}
	return OpenWithPath(cfg.Path, opts...)
}

func open(dir string, ephemeral bool, opts []Option) (*Store, error) {
	o := options{cacheSize: config.DefaultConfig().BlockCacheSize}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "state-store")

	db := o.db
	if db == nil {
		pdb, err := openPebble(dir, ephemeral, o)
		if err != nil {
			return nil, storageError("open", nil, err)
		}
		db = &PebbleDB{db: pdb}
	}

	eng := &engine{db: db, path: dir, logger: logger, refs: 1}
	logger.Info("State store opened", "path", dir, "ephemeral", ephemeral)

	return &Store{eng: eng, logger: logger}, nil
}

func openPebble(dir string, ephemeral bool, o options) (*pebble.DB, error) {
	cache := pebble.NewCache(o.cacheSize)
	defer cache.Unref()

	dbOpts := &pebble.Options{Cache: cache}
	if o.bloomBits > 0 {
		dbOpts.Levels = []pebble.LevelOptions{
			{FilterPolicy: bloom.FilterPolicy(o.bloomBits)},
		}
	}
	if ephemeral {
		dbOpts.FS = vfs.NewMem()
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := pebble.Open(dir, dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database: %w", err)
	}
	return db, nil
}

// Clone returns a new handle on the same engine. Cloning a closed handle
// yields a closed handle.
func (s *Store) Clone() *Store {
	c := &Store{eng: s.eng, logger: s.logger}
	s.eng.refMu.Lock()
	if s.eng.refs == 0 || s.closed.Load() {
		c.closed.Store(true)
	} else {
		s.eng.refs++
	}
	s.eng.refMu.Unlock()
	return c
}

// Close releases this handle. The engine is closed with the last handle;
// closing a handle twice is a no-op.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.eng.release()
}

func (e *engine) release() error {
	e.refMu.Lock()
	e.refs--
	last := e.refs == 0
	if last {
		e.closed = true
	}
	e.refMu.Unlock()
	if !last {
		return nil
	}

	// Open iterators must be released before pebble closes.
	e.inflight.Wait()
	if err := e.db.Close(); err != nil {
		return storageError("close", nil, fmt.Errorf("failed to close pebble database: %w", err))
	}
	e.logger.Info("State store closed", "path", e.path)
	return nil
}

// acquire pins the engine for one operation. The returned release func
// must be called once the operation no longer touches the engine. It fails
// with ErrClosed as soon as the handle or the engine starts closing, even
// while earlier operations are still running.
func (s *Store) acquire(ctx context.Context, op string) (DB, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	e := s.eng
	e.refMu.Lock()
	defer e.refMu.Unlock()
	if s.closed.Load() || e.closed {
		return nil, nil, storageError(op, nil, ErrClosed)
	}
	e.inflight.Add(1)
	return e.db, e.inflight.Done, nil
}

// SaveFilter remembers the server-side id of a named sync filter. It is a
// single synced write outside of SaveChanges.
func (s *Store) SaveFilter(ctx context.Context, name, filterID string) error {
	const op = "save_filter"
	db, release, err := s.acquire(ctx, op)
	if err != nil {
		return err
	}
	defer release()

	key := filterKey(name)
	batch := db.NewBatch()
	defer batch.Close()
	if err := batch.Set(key, []byte(filterID), nil); err != nil {
		return storageError(op, key, err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return storageError(op, key, err)
	}
	return nil
}

// GetFilter returns the filter id saved under name, if any.
func (s *Store) GetFilter(ctx context.Context, name string) (string, bool, error) {
	raw, found, err := s.getRaw(ctx, "get_filter", filterKey(name))
	if err != nil || !found {
		return "", false, err
	}
	return string(raw), true, nil
}

// getRaw reads one key. A missing key is reported as found == false.
func (s *Store) getRaw(ctx context.Context, op string, key []byte) ([]byte, bool, error) {
	db, release, err := s.acquire(ctx, op)
	if err != nil {
		return nil, false, err
	}
	defer release()

	value, closer, err := db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		err = storageError(op, key, err)
		readFailed(op, err)
		return nil, false, err
	}
	defer closer.Close()

	return append([]byte(nil), value...), true, nil
}
