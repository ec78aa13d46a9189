// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"github.com/coldtree/corefs"
	"github.com/coldtree/corefs/alloc"
	"github.com/coldtree/corefs/bkey"
	"github.com/coldtree/corefs/btreeid"
	"github.com/coldtree/corefs/cache"
	"github.com/coldtree/corefs/kv"
	"github.com/coldtree/corefs/lock"
)

// Transaction is a bounded-duration unit of work: it owns the per-tree
// kv.Tx cursors it has opened (each one a Read-Committed snapshot view plus
// a btree.StagingSet pending-write buffer), the resident node locks it is
// currently holding, and
// the keys staged for the next Commit. A Transaction is created fresh per
// logical operation by Begin and is not safe for concurrent use by more
// than one goroutine.
type Transaction struct {
	fs     *Filesystem
	target uint32 // snapshot ID reads/writes are performed against

	txs     [btreeid.Count]*kv.Tx[kv.Iter[corefs.File]]
	touched [btreeid.Count]bool
	staged  [btreeid.Count][]bkey.Key

	// heldNodes is every resident node this transaction currently holds
	// intent (pre-Commit) or write (mid-Commit) on, in acquisition order;
	// heldNodeSet dedups against it so a second Update walking through an
	// already-held node does not try to re-acquire its lock; lastNodeKey
	// is the most recently acquired node's ordering key, checked against
	// lock.InOrder as each new node is acquired.
	heldNodes   []heldNode
	heldNodeSet map[cache.NodeID]bool
	lastNodeKey *lock.Key

	paths []Path

	writepoint  *alloc.Writepoint
	reservation *alloc.Reservation

	restartCount int
	lastRestart  corefs.RestartSubKind
}

// Begin opens a fresh Transaction against fs, reading and writing as of
// targetSnapshot (pass 0 for the unsnapshotted root line).
func Begin(fs *Filesystem, targetSnapshot uint32) *Transaction {
	tx := &Transaction{fs: fs, target: targetSnapshot}
	tx.writepoint = alloc.NewWritepoint(fs.dataDev)
	return tx
}

// TargetSnapshot reports the snapshot ID this transaction's reads and
// writes are resolved against.
func (tx *Transaction) TargetSnapshot() uint32 { return tx.target }

// treeTx lazily opens the per-tree kv transaction the first time a
// Transaction touches a given btree_id.
func (tx *Transaction) treeTx(id btreeid.ID) *kv.Tx[kv.Iter[corefs.File]] {
	if tx.txs[id] == nil {
		tx.txs[id] = tx.fs.trees[id].Begin()
	}
	return tx.txs[id]
}

// begin resets a Transaction's working state for a retry: every open
// kv.Tx is rolled back, every node lock released, the staged-update list
// is cleared, and the restart counter is bumped. Paths are not preserved
// across a restart — callers must re-open any cursor they still need.
func (tx *Transaction) begin() {
	for id := range tx.txs {
		if tx.txs[id] != nil {
			tx.txs[id].Rollback()
			tx.txs[id] = nil
		}
	}
	tx.releaseIntentNodes()
	for id := range tx.staged {
		tx.staged[id] = nil
	}
	tx.touched = [btreeid.Count]bool{}
	tx.paths = tx.paths[:0]
	if tx.reservation != nil {
		tx.reservation.Cancel()
		tx.reservation = nil
	}
	tx.writepoint.Reset()
	tx.restartCount++
}

// Put releases every resource the transaction holds. Call it exactly once,
// whether or not Commit was called — a transaction that never reaches
// Commit still holds its node intents, per-tree kv transactions and
// reservation, and must give them back.
func (tx *Transaction) Put() {
	for id := range tx.txs {
		if tx.txs[id] != nil {
			tx.txs[id].Rollback()
			tx.txs[id] = nil
		}
	}
	tx.releaseIntentNodes()
	if tx.reservation != nil {
		tx.reservation.Cancel()
		tx.reservation = nil
	}
	tx.paths = nil
}

// AllocateExtent allocates one data bucket for new extent payload,
// returning the bucket's block address; when the transaction holds no
// reservation with buckets left it first reserves one bucket. size is not
// consulted: every call reserves and allocates exactly one bucket, however
// long the payload is. Callers build the bkey.Extent key's Bucket field
// from this before staging the key with Update; Commit itself performs no
// allocation.
func (tx *Transaction) AllocateExtent(size uint64) (corefs.BlockID, error) {
	if tx.reservation == nil || tx.reservation.Remaining() == 0 {
		r, err := tx.fs.dataDev.ReservationGet(extentBucketCount(size))
		if err != nil {
			return 0, err
		}
		tx.reservation = r
	}
	return tx.writepoint.Next(tx.reservation)
}

func extentBucketCount(size uint64) uint64 {
	// One bucket per call, even for a zero-byte payload — the bucket is
	// the unit of addressing, not of occupancy. Callers needing more
	// issue more calls.
	return 1
}
