// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coldtree/corefs"
	"github.com/coldtree/corefs/alloc"
	"github.com/coldtree/corefs/bkey"
	"github.com/coldtree/corefs/btreeid"
	"github.com/coldtree/corefs/cache"
	"github.com/coldtree/corefs/codec"
	"github.com/coldtree/corefs/internal/heap"
	"github.com/coldtree/corefs/journal"
	"github.com/coldtree/corefs/kv"
	xlog "github.com/coldtree/corefs/log"
	"github.com/coldtree/corefs/metrics"
	"github.com/coldtree/corefs/snapshot"
	"github.com/coldtree/corefs/superblock"
)

// Filesystem is the process-wide handle every Transaction is constructed
// against: the nine fixed trees, the shared journal, the data-extent
// allocator, the snapshot ancestor index, and the metrics/logging sinks
// components reach into. It is passed by reference into Begin rather than
// hidden behind package-level globals, so two mounted filesystems in one
// process never share implicit state.
type Filesystem struct {
	dir string

	trees [btreeid.Count]*kv.KV[corefs.File]

	// nodes holds the resident node cache shared by every tree: one
	// lock.NodeLock per (tree, level, block) a transaction has actually
	// walked through, pinned for as long as some transaction holds
	// intent or write on it. This replaces a single NodeLock per tree —
	// two transactions touching disjoint nodes of the same tree acquire
	// disjoint locks and never restart against each other.
	nodes *cache.NodeCache

	journal     *journal.Journal
	journalFile *os.File

	dataHeap heap.Heap[corefs.File]
	dataCkpt heap.Checkpoint
	dataDev  *alloc.Device

	// extentKey, when non-nil, seals every extent payload WriteExtent
	// writes with ChaCha20-Poly1305 before it is checksummed and stored.
	// nil (the default) leaves extents in plaintext, matching a
	// filesystem that relies on the device layer for encryption at rest.
	extentKey *codec.Key

	sbFile *os.File
	// Superblock carries this device's durable identity and the
	// snapshot-epoch high-water mark; the nine tree files each persist
	// their own root pointer internally (kv.KV's block-heap commit
	// already does this), so Superblock.Roots is never populated here —
	// it exists for a future multi-device layout where a root pointer
	// genuinely needs to live apart from the tree that owns it.
	Superblock superblock.Superblock

	Snapshots *snapshot.Tree

	// keyCache holds decoded records from btreeid.Schema's Cached trees
	// (inodes, alloc): records that are expensive to decode and read far
	// more often than they're written, and whose staleness window is
	// bounded to "until the next Update against the same position"
	// because Update invalidates eagerly rather than waiting for Commit.
	keyCache *cache.Cache[cache.ID, bkey.Key]

	Metrics *metrics.Metrics
	Log     zerolog.Logger

	nextSnapshot atomic.Uint32

	restartMu sync.Mutex
	restarts  map[restartSite]int
}

// restartSite identifies one call-site's worth of restart history, used by
// the fairness warning in run.go: a transaction kind that keeps restarting
// at the same site is logged every fairnessThreshold restarts. Its priority
// is not changed; Run retries it the same way each time.
type restartSite struct {
	kind string
}

// Option configures Open: small functional options over a plain struct,
// matching how the storage heap underneath configures itself.
type Option func(*openConfig)

type openConfig struct {
	dataBucketSize int
	dataCapacity   uint64
	keyCacheSize   int
	nodeCacheSize  int
	extentKey      *codec.Key
}

// WithKeyCacheSize bounds the number of decoded records the key cache for
// Cached trees (inodes, alloc) retains; default 4096.
func WithKeyCacheSize(n int) Option {
	return func(c *openConfig) { c.keyCacheSize = n }
}

// WithNodeCacheSize bounds the number of resident btree nodes (across all
// nine trees) the node cache's evictable tier retains; default 16384. A
// node pinned by a live transaction's intent or write lock counts against
// neither this bound nor eviction — see cache.NodeCache.
func WithNodeCacheSize(n int) Option {
	return func(c *openConfig) { c.nodeCacheSize = n }
}

// WithDataBucketSize sets the allocation granularity for extent buckets
// (default 512 KiB, bcachefs's minimum).
func WithDataBucketSize(n int) Option {
	return func(c *openConfig) { c.dataBucketSize = n }
}

// WithDataCapacity bounds the number of data buckets the allocator will
// hand out before returning corefs.ErrNoSpace; 0 (the default) means
// unbounded, deferring to whatever the backing file can grow to.
func WithDataCapacity(n uint64) Option {
	return func(c *openConfig) { c.dataCapacity = n }
}

// WithExtentEncryptionKey seals every extent WriteExtent stores with
// ChaCha20-Poly1305 under key. Key management and derivation are out of
// this package's scope — callers supply the raw key material however their
// deployment wants to (a KMS, a passphrase-derived key, a sealed file).
func WithExtentEncryptionKey(key codec.Key) Option {
	return func(c *openConfig) { c.extentKey = &key }
}

type dataHeapOption struct{ blockSize int }

func (o dataHeapOption) MagicCode() [4]byte        { return [4]byte{'D', 'A', 'T', 'A'} }
func (o dataHeapOption) ReadOnly() bool            { return false }
func (o dataHeapOption) IgnoreInvalidFreelist() bool { return false }
func (o dataHeapOption) RetainCheckpoints() uint8  { return 0 }
func (o dataHeapOption) BlockSize() int             { return o.blockSize }

// Open mounts (creating if necessary) a filesystem rooted at dir: one
// backing file per fixed btree, a journal file, and a data-extent heap,
// then replays the journal and rebuilds the snapshot ancestor index.
func Open(dir string, opts ...Option) (*Filesystem, error) {
	cfg := openConfig{dataBucketSize: 1 << 19, keyCacheSize: 4096, nodeCacheSize: 16384}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("txn: mkdir %s: %w", dir, err)
	}

	keyCache, err := cache.New[cache.ID, bkey.Key](cfg.keyCacheSize)
	if err != nil {
		return nil, fmt.Errorf("txn: create key cache: %w", err)
	}

	nodes, err := cache.NewNodeCache(cfg.nodeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("txn: create node cache: %w", err)
	}

	fs := &Filesystem{
		dir:       dir,
		nodes:     nodes,
		Metrics:   metrics.New(),
		Log:       xlog.WithComponent("txn"),
		restarts:  make(map[restartSite]int),
		keyCache:  keyCache,
		extentKey: cfg.extentKey,
	}

	for _, id := range btreeid.All() {
		store, err := openTree(filepath.Join(dir, id.String()+".kv"))
		if err != nil {
			return nil, fmt.Errorf("txn: open %s tree: %w", id, err)
		}
		fs.trees[id] = store
	}

	sbf, err := os.OpenFile(filepath.Join(dir, "superblock"), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("txn: open superblock: %w", err)
	}
	fs.sbFile = sbf
	sbBytes, err := readAll(sbf)
	if err != nil {
		return nil, fmt.Errorf("txn: read superblock: %w", err)
	}
	if len(sbBytes) == 0 {
		fs.Superblock = superblock.New(uuid.New(), 0, uint32(cfg.dataBucketSize))
	} else {
		sb, err := superblock.Decode(sbBytes)
		if err != nil {
			return nil, fmt.Errorf("txn: decode superblock: %w", err)
		}
		fs.Superblock = sb
	}

	jf, err := os.OpenFile(filepath.Join(dir, "journal.log"), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("txn: open journal: %w", err)
	}
	fs.journalFile = jf
	fs.journal = journal.Open(jf)

	region, err := readAll(jf)
	if err != nil {
		return nil, fmt.Errorf("txn: read journal: %w", err)
	}
	if err := fs.journal.Replay(region, fs.applyReplay); err != nil {
		return nil, fmt.Errorf("txn: replay journal: %w", err)
	}

	df, err := os.OpenFile(filepath.Join(dir, "data.heap"), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("txn: open data heap: %w", err)
	}
	var dataFile corefs.File = df
	_, ckpt, err := fs.dataHeap.Load(dataFile, dataHeapOption{blockSize: cfg.dataBucketSize})
	if err != nil {
		return nil, fmt.Errorf("txn: load data heap: %w", err)
	}
	fs.dataCkpt = ckpt
	fs.dataDev = alloc.NewDevice(&fs.dataHeap, cfg.dataCapacity)

	snap, err := fs.loadSnapshots()
	if err != nil {
		return nil, fmt.Errorf("txn: load snapshots: %w", err)
	}
	fs.Snapshots = snap
	next := snap.MaxID() + 1
	if epoch := uint32(fs.Superblock.SnapshotEpoch); epoch > next {
		next = epoch
	}
	fs.nextSnapshot.Store(next)

	fs.Log.Info().Str("dir", dir).Msg("filesystem opened")
	return fs, nil
}

func openTree(path string) (*kv.KV[corefs.File], error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	var store kv.KV[corefs.File]
	var file corefs.File = f
	if err := store.Load(file); err != nil {
		f.Close()
		return nil, err
	}
	return &store, nil
}

// readAll reads the full contents of f via ReadAt, the only I/O contract
// corefs.File guarantees — os.File additionally supports Stat, which this
// helper uses to size the buffer once at mount.
func readAll(f *os.File) ([]byte, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, fi.Size())
	if len(buf) == 0 {
		return buf, nil
	}
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close flushes and releases every resource the filesystem holds. It does
// not sync any pending application-level transaction; callers are expected
// to have committed or rolled back before calling Close.
func (fs *Filesystem) Close() error {
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, id := range btreeid.All() {
		if fs.trees[id] != nil {
			note(fs.trees[id].Close())
		}
	}
	if fs.dataCkpt != nil {
		if _, newCkpt, err := fs.dataHeap.Commit(nil); err != nil {
			note(err)
		} else {
			fs.dataCkpt.Release()
			newCkpt.Release()
		}
	}
	note(fs.dataHeap.Close())
	note(fs.journalFile.Close())

	fs.Superblock.SnapshotEpoch = uint64(fs.nextSnapshot.Load())
	buf := superblock.Encode(fs.Superblock)
	if _, err := fs.sbFile.WriteAt(buf, 0); err != nil {
		note(fmt.Errorf("txn: write superblock: %w", err))
	} else {
		note(fs.sbFile.Sync())
	}
	note(fs.sbFile.Close())

	fs.Log.Info().Msg("filesystem closed")
	return firstErr
}
