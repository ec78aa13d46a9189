// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"github.com/coldtree/corefs"
	"github.com/coldtree/corefs/bkey"
	"github.com/coldtree/corefs/btreeid"
	"github.com/coldtree/corefs/kv"
)

// Iterator is one open cursor over a tree, merging a transaction's own
// staged updates with the tree's durable snapshot via the underlying
// kv.TxIter. On a
// Snapshotted tree with filtering enabled, raw (inode, offset, snapshot)
// triples are collapsed to the single record each group's target snapshot
// actually sees, using the same snapshot.Resolve walk Transaction.Lookup
// uses for point lookups.
type Iterator struct {
	tx   *Transaction
	id   btreeid.ID
	ator kv.TxIter[kv.Iter[corefs.File]]

	filterSnapshots bool
	extents         bool

	cur   bkey.Key
	valid bool
	err   error
}

// IterOption configures IterInit.
type IterOption func(*Iterator)

// WithFilterSnapshots collapses every (inode, offset) group down to the
// single record visible from the transaction's target snapshot, hiding
// sibling snapshot lines and tombstones. Meaningless (and ignored) on a
// tree whose btreeid.Schema is not Snapshotted.
func WithFilterSnapshots() IterOption {
	return func(it *Iterator) { it.filterSnapshots = true }
}

// WithExtents marks this cursor as walking an extents-shaped tree, where
// Position.Offset is a key's *end* offset: Seek lands on the smallest key
// whose end is >= the target, which callers confirm actually covers their
// target offset with bkey.Key.ContainsOffset.
func WithExtents() IterOption {
	return func(it *Iterator) { it.extents = true }
}

// IterInit opens a cursor over id. Callers must call Close when done.
func (tx *Transaction) IterInit(id btreeid.ID, opts ...IterOption) (*Iterator, error) {
	if err := checkPathCount(len(tx.paths) + 1); err != nil {
		return nil, err
	}
	it := &Iterator{tx: tx, id: id}
	for _, opt := range opts {
		opt(it)
	}
	it.ator = tx.treeTx(id).Iter()
	tx.paths = append(tx.paths, Path{Tree: uint8(id)})
	return it, nil
}

// Close releases the cursor's resources. It does not release any node
// intent the transaction holds in the tree (other cursors or pending
// Updates against the same tree may still be live).
func (it *Iterator) Close() {
	it.ator.Close()
}

// Key returns the record the cursor currently addresses. Valid must be
// true, or the result is meaningless.
func (it *Iterator) Key() bkey.Key { return it.cur }

// Valid reports whether the cursor currently addresses a record.
func (it *Iterator) Valid() bool { return it.valid }

// Err returns the first error the cursor encountered, if any.
func (it *Iterator) Err() error { return it.err }

// SeekFirst positions the cursor at the lowest key in the tree (subject to
// filtering) and reports whether a record was found.
func (it *Iterator) SeekFirst() bool {
	if !it.ator.SeekFirst() {
		return it.finish()
	}
	return it.settle(true)
}

// SeekLast positions the cursor at the highest key in the tree.
func (it *Iterator) SeekLast() bool {
	if !it.ator.SeekLast() {
		return it.finish()
	}
	return it.settle(false)
}

// Seek positions the cursor at the first record whose Position is >=
// (inode, offset, 0) in raw key order, before any snapshot filtering. On
// an extents cursor this is the record whose *end* offset is >= offset,
// which callers then check with ContainsOffset to confirm it actually
// spans offset rather than merely starting after it.
func (it *Iterator) Seek(inode, offset uint64) bool {
	pos := bkey.Position{Inode: inode, Offset: offset}
	if !it.ator.Seek(pos.Encode(nil)) {
		return it.finish()
	}
	return it.settle(true)
}

// Next advances to the next record, skipping shadowed snapshot siblings
// when filtering is enabled. Returns false once the cursor runs off the
// end of the tree.
func (it *Iterator) Next() bool {
	if !it.valid {
		return false
	}
	if !it.filterSnapshots || !btreeid.Schema(it.id).Snapshotted {
		if !it.ator.Next() {
			return it.finish()
		}
		return it.settle(true)
	}
	return it.nextGroup()
}

// Prev moves to the previous record under the same rules as Next.
func (it *Iterator) Prev() bool {
	if !it.valid {
		return false
	}
	if !it.filterSnapshots || !btreeid.Schema(it.id).Snapshotted {
		if !it.ator.Prev() {
			return it.finish()
		}
		return it.settle(false)
	}
	return it.prevGroup()
}

// nextGroup skips every remaining raw key sharing the current record's
// (inode, offset) prefix, then resolves the first record of the next
// distinct group against the transaction's target snapshot.
func (it *Iterator) nextGroup() bool {
	inode, offset := it.cur.Pos.Inode, it.cur.Pos.Offset
	for it.ator.Next() {
		raw, ok := decodeRaw(it.ator.Key(), it.ator.Val())
		if !ok {
			it.err = corefs.ErrBadEntry
			return it.finish()
		}
		if raw.Pos.Inode == inode && raw.Pos.Offset == offset {
			continue
		}
		return it.resolveGroup(raw.Pos.Inode, raw.Pos.Offset)
	}
	if err := it.ator.Error(); err != nil {
		it.err = err
	}
	return it.finish()
}

// prevGroup is nextGroup's mirror for backward scans: the nearest-ancestor
// resolution Resolve performs is direction-independent, so the same
// point-lookup call serves here once the previous distinct group is found.
func (it *Iterator) prevGroup() bool {
	inode, offset := it.cur.Pos.Inode, it.cur.Pos.Offset
	for it.ator.Prev() {
		raw, ok := decodeRaw(it.ator.Key(), it.ator.Val())
		if !ok {
			it.err = corefs.ErrBadEntry
			return it.finish()
		}
		if raw.Pos.Inode == inode && raw.Pos.Offset == offset {
			continue
		}
		return it.resolveGroupBackward(raw.Pos.Inode, raw.Pos.Offset)
	}
	if err := it.ator.Error(); err != nil {
		it.err = err
	}
	return it.finish()
}

// resolveGroup looks up (inode, offset)'s visible record under the
// transaction's target snapshot and, if every ancestor line is either
// absent or tombstoned, walks further in the current scan direction to
// find the next group that does have a visible record.
func (it *Iterator) resolveGroup(inode, offset uint64) bool {
	for {
		k, ok, err := it.tx.Lookup(it.id, inode, offset)
		if err != nil {
			it.err = err
			return it.finish()
		}
		if ok {
			it.cur = k
			it.valid = true
			return true
		}
		// No ancestor line has a live record at this slot (every line
		// tombstoned or unset for this exact group) — keep scanning.
		next, hasNext := it.skipGroup(inode, offset)
		if !hasNext {
			return it.finish()
		}
		inode, offset = next.Inode, next.Offset
	}
}

// skipGroup advances the raw cursor past every key sharing (inode, offset)
// and returns the prefix of the following group, if any remains.
func (it *Iterator) skipGroup(inode, offset uint64) (bkey.Position, bool) {
	for {
		if !it.ator.Valid() {
			return bkey.Position{}, false
		}
		raw, ok := decodeRaw(it.ator.Key(), it.ator.Val())
		if !ok {
			it.err = corefs.ErrBadEntry
			return bkey.Position{}, false
		}
		if raw.Pos.Inode != inode || raw.Pos.Offset != offset {
			return raw.Pos, true
		}
		if !it.ator.Next() {
			return bkey.Position{}, false
		}
	}
}

// resolveGroupBackward is resolveGroup's mirror for backward scans: when a
// group has no ancestor line visible to the target snapshot it continues
// searching toward lower positions instead of skipGroup's forward walk.
func (it *Iterator) resolveGroupBackward(inode, offset uint64) bool {
	for {
		k, ok, err := it.tx.Lookup(it.id, inode, offset)
		if err != nil {
			it.err = err
			return it.finish()
		}
		if ok {
			it.cur = k
			it.valid = true
			return true
		}
		next, hasNext := it.skipGroupBackward(inode, offset)
		if !hasNext {
			return it.finish()
		}
		inode, offset = next.Inode, next.Offset
	}
}

// skipGroupBackward is skipGroup's mirror, walking toward lower positions.
func (it *Iterator) skipGroupBackward(inode, offset uint64) (bkey.Position, bool) {
	for {
		if !it.ator.Valid() {
			return bkey.Position{}, false
		}
		raw, ok := decodeRaw(it.ator.Key(), it.ator.Val())
		if !ok {
			it.err = corefs.ErrBadEntry
			return bkey.Position{}, false
		}
		if raw.Pos.Inode != inode || raw.Pos.Offset != offset {
			return raw.Pos, true
		}
		if !it.ator.Prev() {
			return bkey.Position{}, false
		}
	}
}

// settle decodes the raw key the cursor currently sits on; when filtering
// is active on a snapshotted tree it replaces that raw key with the
// group's resolved, snapshot-visible record.
func (it *Iterator) settle(forward bool) bool {
	raw, ok := decodeRaw(it.ator.Key(), it.ator.Val())
	if !ok {
		it.err = corefs.ErrBadEntry
		return it.finish()
	}
	if !it.filterSnapshots || !btreeid.Schema(it.id).Snapshotted {
		it.cur = raw
		it.valid = true
		return true
	}
	var ok2 bool
	if forward {
		ok2 = it.resolveGroup(raw.Pos.Inode, raw.Pos.Offset)
	} else {
		ok2 = it.resolveGroupBackward(raw.Pos.Inode, raw.Pos.Offset)
	}
	if ok2 {
		return true
	}
	return false
}

func (it *Iterator) finish() bool {
	it.valid = false
	return false
}

func decodeRaw(key, val []byte) (bkey.Key, bool) {
	pos, _, ok := bkey.DecodePosition(key)
	if !ok {
		return bkey.Key{}, false
	}
	return bkey.DecodeKey(pos, val)
}
