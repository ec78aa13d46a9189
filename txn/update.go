// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"github.com/coldtree/corefs"
	"github.com/coldtree/corefs/bkey"
	"github.com/coldtree/corefs/btreeid"
	"github.com/coldtree/corefs/cache"
	"github.com/coldtree/corefs/snapshot"
)

// cacheID derives the key-cache slot for a (tree, position) pair.
func cacheID(id btreeid.ID, pos bkey.Position) cache.ID {
	return cache.ID{Tree: uint8(id), Inode: pos.Inode, Offset: pos.Offset, Snapshot: pos.Snapshot}
}

// Update stages an insert, overwrite, or delete (insert of a tombstone) of
// key in tree. The change becomes visible to this transaction's own reads
// immediately (via the underlying kv.Tx's pending buffer) but is not
// durable, and not visible to any other transaction, until Commit
// publishes it through the journal.
//
// Update first walks tree's current resident path for key.Pos and takes
// an intent hold on every node along that path this transaction does not
// already hold (see acquireIntentPath). Acquiring any one of them can
// fail — another transaction already holds intent or write on that node,
// or acquiring it would violate the fixed node-acquisition order — in
// which case Update returns a transaction_restart error the caller's
// retry loop (see Run) must recover by discarding all pending work and
// starting over. Two transactions whose paths share no node never
// contend here, unlike a single tree-wide lock.
func (tx *Transaction) Update(id btreeid.ID, key bkey.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := tx.acquireIntentPath(id, key.Pos); err != nil {
		return err
	}

	posBytes := key.Pos.Encode(nil)
	if key.Header.Type == bkey.TypeDeleted {
		// A deletion marker removes the record physically rather than
		// being stored; whiteouts are the stored kind of tombstone.
		tx.treeTx(id).Set(posBytes, nil)
	} else {
		tx.treeTx(id).Set(posBytes, bkey.EncodeKey(key))
	}

	if btreeid.Schema(id).Cached {
		tx.fs.keyCache.Remove(cacheID(id, key.Pos))
	}

	tx.staged[id] = append(tx.staged[id], key)
	tx.touched[id] = true
	return nil
}

// Delete stages the removal of whatever is visible at pos. On a tree
// without snapshots this is always a physical removal. On a snapshotted
// tree the choice depends on where the visible record lives: a record
// stored at exactly pos's own snapshot line is removed physically, which
// re-exposes any value an ancestor line carries (deleting an overwrite
// reverts to the inherited value); a record inherited from an ancestor is
// hidden by storing a whiteout at pos instead, since the ancestor's copy
// must survive for its own snapshot's readers.
func (tx *Transaction) Delete(id btreeid.ID, pos bkey.Position) error {
	if btreeid.Schema(id).Snapshotted {
		k, ok, err := tx.lookupAt(id, pos)
		if err != nil {
			return err
		}
		if !ok || k.IsTombstone() {
			return tx.Update(id, bkey.Whiteout(pos))
		}
	}
	return tx.Update(id, bkey.Tombstone(pos))
}

// lookupAt performs an exact-position lookup merging this transaction's own
// staged updates with the tree's durable snapshot, with no snapshot-ancestor
// walking — callers that need the ancestor-aware view call Lookup instead.
//
// On a Cached tree (inodes, alloc), the cache is read and filled only while
// this transaction has staged nothing in that tree; once it has, lookupAt
// reads through its own kv.Tx. A staged, uncommitted value therefore never
// enters the shared cache, and a cached committed value never hides this
// transaction's own change. Update also invalidates a position's cache
// slot the instant it stages a change to it (see Update).
func (tx *Transaction) lookupAt(id btreeid.ID, pos bkey.Position) (bkey.Key, bool, error) {
	cached := btreeid.Schema(id).Cached && !tx.touched[id]
	posBytes := pos.Encode(nil)

	if cached {
		if k, ok := tx.fs.keyCache.Get(cacheID(id, pos)); ok {
			tx.fs.Metrics.NodeCacheHits.Inc()
			return k, true, nil
		}
		tx.fs.Metrics.NodeCacheMisses.Inc()
	}

	val, err := tx.treeTx(id).Get(posBytes)
	if err != nil {
		return bkey.Key{}, false, err
	}
	if val == nil {
		return bkey.Key{}, false, nil
	}
	k, ok := bkey.DecodeKey(pos, val)
	if !ok {
		return bkey.Key{}, false, corefs.ErrBadEntry
	}
	if cached {
		tx.fs.keyCache.Put(cacheID(id, pos), k)
	}
	return k, true, nil
}

// keyAtAdapter satisfies snapshot.KeyAt against one transaction and tree.
type keyAtAdapter struct {
	tx *Transaction
	id btreeid.ID
}

func (a keyAtAdapter) Lookup(pos bkey.Position) (bkey.Key, bool, error) {
	return a.tx.lookupAt(a.id, pos)
}

// Lookup is the snapshot-aware point lookup operations like stat(2) and
// readdir need: on a tree flagged Snapshotted the ancestor chain is walked
// nearest-first so a more recent snapshot's overwrite or delete shadows an
// inherited value. A slot emptied by Delete reads as not found (ok ==
// false), the same as a slot never written: Lookup does not tell "absent"
// apart from "deleted".
func (tx *Transaction) Lookup(id btreeid.ID, inode, offset uint64) (bkey.Key, bool, error) {
	if !btreeid.Schema(id).Snapshotted {
		return tx.lookupAt(id, bkey.Position{Inode: inode, Offset: offset})
	}
	return snapshot.Resolve(keyAtAdapter{tx, id}, tx.fs.Snapshots, inode, offset, tx.target)
}
