// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package lock

import "github.com/coldtree/corefs/btreeid"

// Key identifies one node's place in the global lock acquisition order:
// trees are ordered by btree_id, then within a tree by descending level
// (root first), then by ascending position. Any two paths that acquire
// locks in this order never deadlock against each other — a path only ever
// waits on a lock that sorts after everything it already holds, so a cycle
// would require a lock to wait on itself.
type Key struct {
	Tree     btreeid.ID
	Level    uint8 // distance from leaf; root is highest
	Position []byte
}

// Less reports whether a must be acquired before b under the global order.
func Less(a, b Key) bool {
	if a.Tree != b.Tree {
		return a.Tree < b.Tree
	}
	if a.Level != b.Level {
		return a.Level > b.Level // descending: higher level first
	}
	return compareBytes(a.Position, b.Position) < 0
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// InOrder reports whether acquiring next after already holding held (the
// most recently acquired key) respects the global order. A path that finds
// this false must restart instead of acquiring out of order.
func InOrder(held, next Key) bool {
	return !Less(next, held)
}
