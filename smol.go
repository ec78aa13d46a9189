// Package corefs defines the core interfaces shared by every layer of the
// transaction engine: the storage file contract, the block/checkpoint
// contracts used by the COW node stores, and the closed set of restart
// sub-kinds used by the locking and commit protocol.
package corefs

import "io"

// File provides access to a storage backend for the key-value database.
// The File interface is the minimum implementation required.
//
// The *os.File type satisfies this interface.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer

	// Truncate changes the size of the file.
	Truncate(size int64) error

	// Sync commits the current contents of the file to stable storage.
	// Typically, this means flushing the file system's in-memory copy
	// of recently written data to disk.
	Sync() error
}

// BlockID addresses one fixed-size unit of storage within a File.
type BlockID int64

// Checkpoint is a reference-counted handle on a region of committed state.
// Acquire must be paired with a Release; the region backing a Checkpoint
// stays valid for every Acquire that has not yet been Released.
type Checkpoint interface {
	Acquire()
	Release()
}

// Block is the commit/rollback contract a COW block store exposes to its
// owner. Commit publishes entry as the new durable state and returns a
// Checkpoint pinning it; Rollback discards any buffered mutation since the
// last Commit.
type Block[C Checkpoint] interface {
	Close() error
	Rollback() error
	Commit(entry []byte) (C, error)
}

// ReadOnly is the minimal surface needed to traverse an existing tree:
// read a block into a caller-owned buffer, and borrow/return that buffer
// from a pool.
type ReadOnly interface {
	AllocateBuffer() []byte
	RecycleBuffer(buffer []byte)
	ReadBlock(id BlockID, buffer []byte, reader func(block []byte)) error
}

// ReadWrite extends ReadOnly with the ability to allocate fresh blocks,
// retire old ones, and write node contents — the surface a split, merge,
// or commit needs.
type ReadWrite interface {
	ReadOnly

	PageSize() int
	LoadBlock(id BlockID) (buffer []byte, err error)
	WriteBlock(id BlockID, buffer []byte) error
	AllocateBlock() BlockID
	RecycleBlock(id BlockID)
	BufferPressured(holding int) bool
}
