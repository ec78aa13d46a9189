// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"fmt"

	"github.com/coldtree/corefs/bkey"
	"github.com/coldtree/corefs/btreeid"
)

// CreateSnapshot forks a new snapshot line as a child of parent (pass 0 to
// fork off the unsnapshotted root line) and stages its bkey.Snapshot
// record for this transaction's next Commit. The in-memory snapshot.Tree
// is updated immediately, ahead of Commit, matching Update's own
// immediate-to-this-transaction visibility. Unlike a tree Update, this
// mutation is not part of begin()'s reset: a caller whose transaction
// restarts after calling CreateSnapshot and retries will fork a second,
// unreferenced snapshot line rather than reusing the first — harmless
// (an unreferenced id never appears as an ancestor of anything and is
// never persisted, since its bkey.Snapshot record was only staged, not
// committed) but callers that retry around CreateSnapshot should call it
// only once per successful commit, not unconditionally inside fn.
func (tx *Transaction) CreateSnapshot(parent uint32) (uint32, error) {
	id := tx.fs.nextSnapshot.Add(1)
	rec, err := tx.fs.Snapshots.Create(parent, id)
	if err != nil {
		return 0, fmt.Errorf("txn: create snapshot: %w", err)
	}
	key := bkey.Key{
		Pos:     bkey.Position{Inode: uint64(id)},
		Header:  bkey.Header{Type: bkey.TypeSnapshot},
		Payload: rec.Encode(),
	}
	if err := tx.Update(btreeid.Snapshots, key); err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteSnapshot removes a leaf snapshot line, staging a tombstone for its
// bkey.Snapshot record. Deleting a snapshot with live children is an error
// from snapshot.Tree.Delete — callers must reparent or delete children
// first, exactly as the in-memory index requires.
func (tx *Transaction) DeleteSnapshot(id uint32) error {
	if err := tx.fs.Snapshots.Delete(id); err != nil {
		return fmt.Errorf("txn: delete snapshot: %w", err)
	}
	return tx.Delete(btreeid.Snapshots, bkey.Position{Inode: uint64(id)})
}
