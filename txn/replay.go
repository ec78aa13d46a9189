// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"fmt"

	"github.com/coldtree/corefs/bkey"
	"github.com/coldtree/corefs/btreeid"
	"github.com/coldtree/corefs/journal"
	"github.com/coldtree/corefs/snapshot"
)

// applyReplay is the journal.Journal.Replay callback: it re-applies every
// btree_key sub-entry of a non-blacklisted jset directly to the matching
// tree's store, in ascending seq order, and records any blacklist
// sub-entry so a later mount's replay honours it too.
func (fs *Filesystem) applyReplay(js journal.JSet) error {
	for _, ent := range js.Entries {
		switch ent.Kind {
		case journal.EntryBtreeKey:
			k, ok := bkey.DecodeJournalEntry(ent.Data)
			if !ok {
				return fmt.Errorf("txn: replay seq %d: corrupt btree_key entry", js.Seq)
			}
			if int(ent.Btree) >= btreeid.Count {
				return fmt.Errorf("txn: replay seq %d: unknown btree_id %d", js.Seq, ent.Btree)
			}
			posBytes := k.Pos.Encode(nil)
			var valBytes []byte
			if k.Header.Type != bkey.TypeDeleted {
				// Deletion markers remove physically on replay too,
				// mirroring Update's apply path exactly.
				valBytes = bkey.EncodeKey(k)
			}
			if err := fs.trees[ent.Btree].Set(posBytes, valBytes); err != nil {
				return fmt.Errorf("txn: replay seq %d into %s: %w", js.Seq, btreeid.ID(ent.Btree), err)
			}
		case journal.EntryBlacklist:
			if len(ent.Data) >= 8 {
				fs.journal.Blacklist(beUint64(ent.Data))
			}
		default:
			// clock / usage / data_usage / dev_usage / btree_root entries
			// are accounting and root-pointer hints the kv-backed trees
			// below don't need replayed: each tree's own CommitSortedChanges
			// already persisted its post-commit root durably.
		}
	}
	return nil
}

func beUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// loadSnapshots rebuilds the in-memory snapshot ancestor index by scanning
// the full snapshots tree, called once at mount after journal replay has
// brought every tree up to date.
func (fs *Filesystem) loadSnapshots() (*snapshot.Tree, error) {
	store := fs.trees[btreeid.Snapshots]
	it := store.Iter()
	defer it.Close()

	var records []bkey.Key
	for ok := it.SeekFirst(); ok; ok = it.Next() {
		pos, _, valid := bkey.DecodePosition(it.Key())
		if !valid {
			continue
		}
		k, valid := bkey.DecodeKey(pos, it.Val())
		if !valid {
			continue
		}
		records = append(records, k)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return snapshot.Load(records)
}
