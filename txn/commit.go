// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"fmt"
	"time"

	"github.com/coldtree/corefs"
	"github.com/coldtree/corefs/bkey"
	"github.com/coldtree/corefs/btreeid"
	"github.com/coldtree/corefs/journal"
)

// CommitResult carries what a caller needs after a successful commit: the
// journal sequence the update set was written under, for callers that need
// to wait on fsync(seq) before acknowledging durability to their own
// caller.
type CommitResult struct {
	Seq uint64
}

// Commit executes the eight-step commit path against every tree this
// transaction staged an Update against:
//
//  1. validate (already done incrementally by Update/key.Validate)
//  2. acquire a journal reservation — NextSeq plus building the jset
//  3. disk reservation for new extents is the caller's responsibility via
//     AllocateExtent, performed before staging; this step only appears
//     implicitly (there is nothing left to reserve here)
//  4. escalate every resident node this transaction holds intent on to write
//  5. mutate — delegated to the underlying kv.Tx.Commit's COW batch write
//  6. write the journal entry
//  7. publish seq — kv.Tx.Commit's own atomic root swap is the publish
//  8. release node locks
//
// flush selects whether the jset forces a durability barrier (the
// semantics an fsync(2) call needs) or is merely ordered (noflush, bundled
// with a later flush).
func (tx *Transaction) Commit(flush bool) (CommitResult, error) {
	entries, err := tx.buildJournalEntries()
	if err != nil {
		return CommitResult{}, err
	}
	if len(entries) == 0 {
		tx.releaseIntentNodes()
		return CommitResult{}, nil
	}

	// Step 4: escalate intent -> write for every resident node this
	// transaction touched, in the same root-to-leaf, lock.InOrder-checked
	// sequence the intents were acquired in (see acquireIntentPath). A
	// failure here demotes every already-escalated node back to
	// intent-only and restarts the whole transaction rather than
	// resuming with partial write locks held.
	sub, ok := tx.escalateNodes()
	if !ok {
		tx.releaseIntentNodes()
		return CommitResult{}, corefs.Restart(sub)
	}

	// Steps 2 & 6: reserve a seq and write the jset. Once this call
	// returns successfully the update set is durable (if flush) or at
	// least ordered (if not); a crash after this point is recovered by
	// replay re-applying these same entries, which Set makes idempotent.
	seq := tx.fs.journal.NextSeq()
	js := journal.JSet{Seq: seq, Flush: flush, Entries: entries}
	start := time.Now()
	err = tx.fs.journal.Write(js)
	tx.fs.Metrics.JournalReserveWait.Observe(time.Since(start).Seconds())
	if err != nil {
		tx.unescalateNodes()
		return CommitResult{}, fmt.Errorf("txn: journal write: %w", err)
	}

	// Step 5 & 7: apply each touched tree's staged changes via its own
	// COW batch commit, which atomically swaps that tree's root.
	var applyErr error
	for _, id := range btreeid.All() {
		if !tx.touched[id] {
			continue
		}
		if err := tx.txs[id].Commit(); err != nil && applyErr == nil {
			applyErr = fmt.Errorf("txn: apply to %s: %w", id, err)
			continue
		}
		// A second invalidation after the durable write closes the race
		// Update's own eager invalidation leaves open: a reader could have
		// repopulated the cache from the pre-commit durable value between
		// Update's Remove and this Commit actually landing.
		if btreeid.Schema(id).Cached {
			for _, k := range tx.staged[id] {
				tx.fs.keyCache.Remove(cacheID(id, k.Pos))
			}
		}
	}

	// Step 8: release. A failure applying to a tree after the journal
	// entry is durable is not recoverable by restart (the update is
	// already committed from the journal's point of view), so it is
	// fatal corruption rather than a normal error.
	tx.unescalateNodes()
	if applyErr != nil {
		return CommitResult{Seq: seq}, fmt.Errorf("%w: %v", corefs.ErrFatalCorruption, applyErr)
	}

	if tx.reservation != nil {
		tx.reservation.Cancel()
		tx.reservation = nil
	}
	return CommitResult{Seq: seq}, nil
}

// buildJournalEntries converts every staged key across every touched tree
// into the journal sub-entries Commit writes, in fixed btree_id order so
// replay applies them in a deterministic sequence.
func (tx *Transaction) buildJournalEntries() ([]journal.Entry, error) {
	var entries []journal.Entry
	for _, id := range btreeid.All() {
		for _, k := range tx.staged[id] {
			if err := k.Validate(); err != nil {
				return nil, err
			}
			entries = append(entries, journal.Entry{
				Kind:  journal.EntryBtreeKey,
				Btree: uint8(id),
				Data:  bkey.EncodeJournalEntry(k),
			})
		}
	}
	return entries, nil
}
