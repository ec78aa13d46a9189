// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package lock implements the SIX (shared/intent/exclusive) node lock every
// btree node carries: none, read, intent, and write. Intent composes with
// read (a path can hold read+intent at once while it walks down towards a
// leaf); write excludes every reader. The lock word is a seq-validated struct in the shape of
// atom.Atom — a single mutex-guarded state plus a monotonic sequence number
// bumped on every write unlock, so a reader that dropped and reacquired a
// lock can cheaply tell whether the node changed underneath it.
package lock

import (
	"sync"

	"github.com/coldtree/corefs"
)

// State is the lock state a caller holds on a node.
type State uint8

const (
	None State = iota
	Read
	Intent
	Write
)

// Seq is a lock word's generation counter. It is bumped once per successful
// write-unlock; a path that cached a Seq before releasing its lock can
// revalidate cheaply with Check instead of reacquiring.
type Seq uint32

// NodeLock is the SIX lock word attached to one in-memory btree node.
// Zero value is a valid, unlocked lock at Seq 0.
type NodeLock struct {
	mu sync.Mutex

	readers int
	intent  bool
	writer  bool
	seq     Seq
}

// Seq returns the lock's current sequence number.
func (l *NodeLock) Seq() Seq {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// TryRead attempts to add a read hold. It fails only when a writer currently
// holds the node — reads compose freely with intent.
func (l *NodeLock) TryRead() (Seq, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer {
		return 0, false
	}
	l.readers++
	return l.seq, true
}

// UnlockRead releases one read hold.
func (l *NodeLock) UnlockRead() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readers--
}

// TryIntent attempts to take the single intent slot. Intent excludes other
// intent and write holders but not readers; it signals "about to write"
// without blocking concurrent traversal.
func (l *NodeLock) TryIntent() (Seq, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.intent || l.writer {
		return 0, false
	}
	l.intent = true
	return l.seq, true
}

// UnlockIntent releases the intent slot without having upgraded to write.
func (l *NodeLock) UnlockIntent() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.intent = false
}

// UpgradeToWrite promotes a held intent lock to write, blocking on readers
// by failing (never blocking the goroutine) if any are outstanding — the
// caller is expected to restart its transaction rather than wait, which is
// what makes this lock order deadlock-free by construction instead of by
// detection.
func (l *NodeLock) UpgradeToWrite() (corefs.RestartSubKind, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.intent {
		return corefs.RestartRelockFail, false
	}
	if l.readers > 0 {
		return corefs.RestartLockNodeReused, false
	}
	l.writer = true
	return 0, true
}

// DowngradeToIntent demotes a held write lock back to intent without
// bumping Seq — used when an escalation is abandoned before anything was
// published under the write hold, so cached sequence numbers stay valid.
func (l *NodeLock) DowngradeToIntent() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = false
}

// UnlockWrite releases a write (and its underlying intent) hold and bumps
// Seq so outstanding cached sequence numbers become stale.
func (l *NodeLock) UnlockWrite() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = false
	l.intent = false
	l.seq++
}

// Check reports whether seq is still current, i.e. no write has committed
// against this node since seq was captured.
func (l *NodeLock) Check(seq Seq) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq == seq
}

// Relock attempts to reacquire want at the previously observed seq without
// blocking. On mismatch it returns false and the caller must restart rather
// than fall back to a blocking acquire — that fallback is exactly the kind
// of wait that could deadlock against another path's ordered acquisition.
func (l *NodeLock) Relock(seq Seq, want State) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seq != seq {
		return false
	}
	switch want {
	case Read:
		if l.writer {
			return false
		}
		l.readers++
	case Intent:
		if l.intent || l.writer {
			return false
		}
		l.intent = true
	case Write:
		if l.writer || l.intent || l.readers > 0 {
			return false
		}
		l.writer = true
	}
	return true
}
