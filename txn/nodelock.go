// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"encoding/binary"
	"fmt"

	"github.com/coldtree/corefs"
	"github.com/coldtree/corefs/bkey"
	"github.com/coldtree/corefs/bptree"
	"github.com/coldtree/corefs/btreeid"
	"github.com/coldtree/corefs/cache"
	"github.com/coldtree/corefs/lock"
)

// heldNode is one resident node a Transaction currently holds intent (or,
// after escalation, write) on.
type heldNode struct {
	id     cache.NodeID
	handle *cache.NodeHandle
}

// nodePath turns a root-to-leaf Level into the NodeID sequence a crabbing
// walk acquires locks against, root first: level[1] (the shallowest
// branch below root) through level[len-1] (the deepest branch, right
// above the leaf), then level[0] (which bptree.Reader.Level overwrites to
// hold the leaf's own block id). NodeID.Level descends from len(level)-1
// at the shallowest branch down to 0 at the leaf, matching the
// acquisition order and giving lock.Key{Level: ...} a stable root-to-leaf
// sort key.
func nodePath(id btreeid.ID, level bptree.Level) []cache.NodeID {
	n := len(level)
	if n == 0 {
		return nil
	}
	ids := make([]cache.NodeID, 0, n)
	for i := 1; i < n; i++ {
		ids = append(ids, cache.NodeID{
			Tree:  uint8(id),
			Level: uint8(n - i),
			Block: uint32(level[i].BlockID),
		})
	}
	ids = append(ids, cache.NodeID{Tree: uint8(id), Level: 0, Block: uint32(level[0].BlockID)})
	return ids
}

func blockPosition(block uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], block)
	return buf[:]
}

func nodeLockKey(n cache.NodeID) lock.Key {
	return lock.Key{Tree: btreeid.ID(n.Tree), Level: n.Level, Position: blockPosition(n.Block)}
}

// acquireIntentPath walks id's current resident path for pos and takes an
// intent hold on every node along it that this transaction does not
// already hold, pinning each in the shared node cache for the duration.
// Nodes are acquired root-to-leaf and checked against lock.InOrder as they
// go, so a transaction's own acquisitions can never violate the global
// ordering that makes restart-based conflict resolution deadlock-free.
func (tx *Transaction) acquireIntentPath(id btreeid.ID, pos bkey.Position) error {
	posBytes := pos.Encode(nil)
	level, _, err := tx.fs.trees[id].DescribePath(posBytes)
	if err != nil {
		return fmt.Errorf("txn: describe path: %w", err)
	}

	for _, nodeID := range nodePath(id, level) {
		if tx.heldNodeSet[nodeID] {
			continue
		}

		key := nodeLockKey(nodeID)
		if tx.lastNodeKey != nil && !lock.InOrder(*tx.lastNodeKey, key) {
			return fmt.Errorf("%w: node acquisition order violated in %s", corefs.ErrWouldDeadlock, id)
		}
		tx.lastNodeKey = &key

		h := tx.fs.nodes.Get(nodeID)
		if _, ok := h.Lock.TryIntent(); !ok {
			return corefs.Restart(corefs.RestartRelockFail)
		}
		tx.fs.nodes.Pin(nodeID, h)

		if tx.heldNodeSet == nil {
			tx.heldNodeSet = make(map[cache.NodeID]bool)
		}
		tx.heldNodeSet[nodeID] = true
		tx.heldNodes = append(tx.heldNodes, heldNode{id: nodeID, handle: h})
	}
	return nil
}

// releaseIntentNodes drops every intent-only hold this transaction is
// still carrying (i.e. every held node that Commit did not escalate to
// write) and clears the tracking state. Escalated (write-held) nodes are
// released separately by unescalateNodes.
func (tx *Transaction) releaseIntentNodes() {
	for _, h := range tx.heldNodes {
		h.handle.Lock.UnlockIntent()
		tx.fs.nodes.Unpin(h.id)
	}
	tx.heldNodes = nil
	tx.heldNodeSet = nil
	tx.lastNodeKey = nil
}

// escalateNodes promotes every node this transaction holds intent on to
// write, in the same root-to-leaf order the intents were acquired in
// (already lock.InOrder by construction). On the first failure it demotes
// everything already escalated back to intent-only and returns the
// restart sub-kind the caller should surface.
func (tx *Transaction) escalateNodes() (corefs.RestartSubKind, bool) {
	for i, h := range tx.heldNodes {
		if sub, ok := h.handle.Lock.UpgradeToWrite(); !ok {
			for _, done := range tx.heldNodes[:i] {
				done.handle.Lock.DowngradeToIntent()
			}
			return sub, false
		}
	}
	return 0, true
}

// unescalateNodes releases the write locks escalateNodes took and unpins
// every node, used once Commit has finished applying (successfully or
// not) the staged changes those locks were protecting.
func (tx *Transaction) unescalateNodes() {
	for _, h := range tx.heldNodes {
		h.handle.Lock.UnlockWrite()
		tx.fs.nodes.Unpin(h.id)
	}
	tx.heldNodes = nil
	tx.heldNodeSet = nil
	tx.lastNodeKey = nil
}
