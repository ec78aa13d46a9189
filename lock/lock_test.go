// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package lock

import (
	"testing"

	"github.com/coldtree/corefs"
	"github.com/coldtree/corefs/btreeid"
)

func TestReadExcludesWriterButNotIntent(t *testing.T) {
	var l NodeLock

	if _, ok := l.TryIntent(); !ok {
		t.Fatal("TryIntent on a fresh lock should succeed")
	}
	if _, ok := l.TryRead(); !ok {
		t.Error("a read hold should compose with an intent hold")
	}
	l.UnlockRead()
	l.UnlockIntent()
}

func TestIntentExcludesSecondIntent(t *testing.T) {
	var l NodeLock
	if _, ok := l.TryIntent(); !ok {
		t.Fatal("first TryIntent should succeed")
	}
	if _, ok := l.TryIntent(); ok {
		t.Error("a second TryIntent should fail while the first is held")
	}
}

func TestUpgradeToWriteFailsWithoutIntent(t *testing.T) {
	var l NodeLock
	if sub, ok := l.UpgradeToWrite(); ok || sub != corefs.RestartRelockFail {
		t.Errorf("UpgradeToWrite without intent = (%v,%v), want (RestartRelockFail,false)", sub, ok)
	}
}

func TestUpgradeToWriteFailsWithOutstandingReaders(t *testing.T) {
	var l NodeLock
	if _, ok := l.TryIntent(); !ok {
		t.Fatal("TryIntent: failed")
	}
	if _, ok := l.TryRead(); !ok {
		t.Fatal("TryRead: failed")
	}

	sub, ok := l.UpgradeToWrite()
	if ok || sub != corefs.RestartLockNodeReused {
		t.Errorf("UpgradeToWrite with a reader held = (%v,%v), want (RestartLockNodeReused,false)", sub, ok)
	}
}

func TestUpgradeToWriteSucceedsAndBumpsSeqOnRelease(t *testing.T) {
	var l NodeLock
	seq0 := l.Seq()

	if _, ok := l.TryIntent(); !ok {
		t.Fatal("TryIntent: failed")
	}
	if _, ok := l.UpgradeToWrite(); !ok {
		t.Fatal("UpgradeToWrite: failed")
	}
	l.UnlockWrite()

	if got := l.Seq(); got != seq0+1 {
		t.Errorf("Seq after UnlockWrite = %d, want %d", got, seq0+1)
	}
	if !l.Check(seq0 + 1) {
		t.Error("Check should confirm the new seq is current")
	}
	if l.Check(seq0) {
		t.Error("Check should reject the stale seq")
	}
}

func TestDowngradeToIntentKeepsIntentAndSeq(t *testing.T) {
	var l NodeLock
	seq0 := l.Seq()

	if _, ok := l.TryIntent(); !ok {
		t.Fatal("TryIntent: failed")
	}
	if _, ok := l.UpgradeToWrite(); !ok {
		t.Fatal("UpgradeToWrite: failed")
	}
	l.DowngradeToIntent()

	if got := l.Seq(); got != seq0 {
		t.Errorf("Seq after DowngradeToIntent = %d, want unchanged %d", got, seq0)
	}
	// Intent is still held: a second intent must fail, a read must pass.
	if _, ok := l.TryIntent(); ok {
		t.Error("second TryIntent succeeded; downgrade dropped the intent hold")
	}
	if _, ok := l.TryRead(); !ok {
		t.Error("TryRead failed; downgrade left the write hold in place")
	}
	l.UnlockRead()
	// And the surviving intent can be escalated again.
	if _, ok := l.UpgradeToWrite(); !ok {
		t.Error("re-escalation after downgrade failed")
	}
	l.UnlockWrite()
}

func TestRelockFailsOnStaleSeq(t *testing.T) {
	var l NodeLock
	seq, ok := l.TryRead()
	if !ok {
		t.Fatal("TryRead: failed")
	}
	l.UnlockRead()

	if _, ok := l.TryIntent(); !ok {
		t.Fatal("TryIntent: failed")
	}
	if _, ok := l.UpgradeToWrite(); !ok {
		t.Fatal("UpgradeToWrite: failed")
	}
	l.UnlockWrite() // bumps seq, invalidating the cached one above

	if l.Relock(seq, Read) {
		t.Error("Relock should fail once the cached seq is stale")
	}
}

func TestOrderLessAndInOrder(t *testing.T) {
	a := Key{Tree: btreeid.Inodes, Level: 2, Position: []byte{1}}
	b := Key{Tree: btreeid.Inodes, Level: 1, Position: []byte{1}}
	c := Key{Tree: btreeid.Dirents, Level: 0, Position: nil}

	if !Less(a, b) {
		t.Error("a higher level (closer to root) within the same tree should sort first")
	}
	if Less(b, a) {
		t.Error("Less should not be symmetric for distinct keys")
	}
	if !Less(a, c) {
		t.Error("btreeid.Inodes should sort before btreeid.Dirents")
	}

	if !InOrder(a, b) {
		t.Error("acquiring b after holding a should be in order (descending level)")
	}
	if InOrder(b, a) {
		t.Error("acquiring a after holding b should be out of order")
	}
}
