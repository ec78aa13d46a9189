// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package txn implements the transaction object: the bounded set of paths a
// caller holds open across one or more trees, an arena of pending updates
// staged until commit, and the restart/retry loop that recovers a failed
// lock acquisition by discarding all of that state and trying again.
//
// Locking is per resident node, not per tree: Update calls bptree.Path
// (exposed through kv.KV.DescribePath) to discover the root-to-leaf set of
// nodes a write will touch, then takes an intent hold on each one through
// the shared cache.NodeCache (see acquireIntentPath in nodelock.go).
// Commit escalates every held node from intent to write in the same
// root-to-leaf order, checked against lock.InOrder as nodes are acquired,
// so two transactions racing to upgrade never do so out of order. Two
// transactions whose paths touch disjoint nodes of the same tree acquire
// disjoint locks and never restart against each other.
package txn

import (
	"github.com/coldtree/corefs"
	"github.com/coldtree/corefs/bkey"
)

// soft/hard path-count ceilings. A transaction that needs more than
// pathSoftLimit open cursors is already doing something unusual; hard is
// the point at which continuing risks unbounded memory growth from a
// runaway caller and the transaction is aborted outright.
const (
	pathSoftLimit = 64
	pathHardLimit = 96
)

// Path records one open cursor for the path-count limit. IterInit fills in
// only Tree; Pos and Intent are not updated by this package, and locks are
// taken per node by acquireIntentPath (nodelock.go), not per Path.
type Path struct {
	Tree   TreeID
	Pos    bkey.Position
	Intent bool
}

// TreeID is the tree a Path addresses, held as the uint8 value of its
// btreeid.ID.
type TreeID = uint8

// checkPathCount enforces the soft/hard ceilings: past soft it still
// succeeds (callers doing a wide scan are not wrong), past hard it refuses
// so a runaway caller cannot grow a transaction's memory without bound.
func checkPathCount(n int) error {
	if n > pathHardLimit {
		return corefs.ErrTooManyIters
	}
	return nil
}
