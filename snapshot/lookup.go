// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package snapshot

import "github.com/coldtree/corefs/bkey"

// KeyAt is the minimal shape this package needs from whatever storage layer
// actually holds (inode, offset, snapshot) records; txn supplies the real
// implementation backed by its btree iterators.
type KeyAt interface {
	// Lookup returns the exact key stored at pos, if any.
	Lookup(pos bkey.Position) (bkey.Key, bool, error)
}

// Resolve finds the value visible at (inode, offset) from the point of view
// of snapshot target: it walks the ancestor chain nearest-first and stops
// at the first exact match it finds. A live key is returned with ok true;
// a tombstone there resolves as not found (ok false) rather than falling
// through to a further ancestor.
//
// All snapshot lines for one (inode, offset) live in the same physical tree,
// distinguished only by the snapshot component of Position, so this is a
// linear walk over a handful of exact-match lookups rather than a composed
// iterator chain over N separate trees.
func Resolve(store KeyAt, tree *Tree, inode, offset uint64, target uint32) (bkey.Key, bool, error) {
	for _, snap := range tree.AncestorChain(target) {
		pos := bkey.Position{Inode: inode, Offset: offset, Snapshot: snap}
		k, ok, err := store.Lookup(pos)
		if err != nil {
			return bkey.Key{}, false, err
		}
		if ok {
			if k.IsTombstone() {
				return bkey.Key{}, false, nil
			}
			return k, true, nil
		}
	}
	return bkey.Key{}, false, nil
}
