// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"fmt"
	"sync"

	"github.com/coldtree/corefs"
)

// Journal is the append-only log transactions commit into before their
// mutations are applied to the long-lived btrees. It owns a single
// contiguous region of a corefs.File and never seeks backwards except
// during Replay.
type Journal struct {
	mu sync.Mutex

	file   corefs.File
	offset int64 // next write position

	blacklist map[uint64]bool
	lastSeq   uint64
}

// Open wraps file, whose existing contents (if any) are the journal region
// written by a previous run; call Replay before any Write to recover
// lastSeq and the blacklist.
func Open(file corefs.File) *Journal {
	return &Journal{file: file, blacklist: make(map[uint64]bool)}
}

// NextSeq returns the sequence number the next JSet written with Write
// should use.
func (j *Journal) NextSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lastSeq++
	return j.lastSeq
}

// Write appends js to the journal. When js.Flush is set, Write calls
// Sync before returning, so the caller's commit is durable against a crash
// the instant this call returns; noflush entries are only guaranteed
// durable once a later flush entry (or an explicit Sync) covers them.
func (j *Journal) Write(js JSet) error {
	buf := Encode(js)

	j.mu.Lock()
	off := j.offset
	j.offset += int64(len(buf))
	j.mu.Unlock()

	if _, err := j.file.WriteAt(buf, off); err != nil {
		return fmt.Errorf("journal: write: %w", err)
	}
	if js.Flush {
		if err := j.file.Sync(); err != nil {
			return fmt.Errorf("journal: sync: %w", err)
		}
	}
	return nil
}

// Blacklist marks seq as not to be replayed — used after a crash recovery
// decides a torn or partially-applied jset must be skipped rather than
// reapplied on the next mount.
func (j *Journal) Blacklist(seq uint64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.blacklist[seq] = true
}

// Replay reads every jset from the start of the journal region in order,
// calling apply for each one not on the blacklist, and stops at the first
// jset that fails to decode — which is either the clean end of a
// shorter-than-allocated region or a torn write at the tail, both of which
// mean "nothing further was durably committed."
func (j *Journal) Replay(region []byte, apply func(JSet) error) error {
	b := region
	var maxSeq uint64
	for len(b) > 0 {
		js, rest, err := Decode(b)
		if err != nil {
			break
		}
		if !j.blacklist[js.Seq] {
			if err := apply(js); err != nil {
				return fmt.Errorf("journal: replay seq %d: %w", js.Seq, err)
			}
		}
		if js.Seq > maxSeq {
			maxSeq = js.Seq
		}
		b = rest
	}

	j.mu.Lock()
	j.offset = int64(len(region) - len(b))
	if maxSeq > j.lastSeq {
		j.lastSeq = maxSeq
	}
	j.mu.Unlock()
	return nil
}
