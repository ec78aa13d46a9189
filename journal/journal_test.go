// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"testing"

	"github.com/coldtree/corefs/mem"
)

func TestJSetEncodeDecodeRoundTrip(t *testing.T) {
	js := JSet{
		Seq:   7,
		Flush: true,
		Entries: []Entry{
			{Kind: EntryBtreeKey, Btree: 3, Data: []byte("hello")},
			{Kind: EntryBtreeRoot, Btree: 1, Data: []byte{1, 2, 3, 4}},
		},
	}

	buf := Encode(js)
	got, rest, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rest) != 0 {
		t.Errorf("rest: got %d trailing bytes, want 0", len(rest))
	}
	if got.Seq != js.Seq || got.Flush != js.Flush {
		t.Errorf("seq/flush: got %+v, want %+v", got, js)
	}
	if len(got.Entries) != len(js.Entries) {
		t.Fatalf("entries: got %d, want %d", len(got.Entries), len(js.Entries))
	}
	for i, e := range js.Entries {
		g := got.Entries[i]
		if g.Kind != e.Kind || g.Btree != e.Btree || string(g.Data) != string(e.Data) {
			t.Errorf("entry %d: got %+v, want %+v", i, g, e)
		}
	}
}

func TestDecodeDetectsCorruption(t *testing.T) {
	js := JSet{Seq: 1, Entries: []Entry{{Kind: EntryBtreeKey, Btree: 0, Data: []byte("x")}}}
	buf := Encode(js)
	buf[len(buf)-1] ^= 0xFF // corrupt the trailing checksum byte

	if _, _, err := Decode(buf); err != ErrBadChecksum {
		t.Errorf("got err %v, want ErrBadChecksum", err)
	}
}

func TestJournalWriteReplayAppliesInOrder(t *testing.T) {
	var f mem.File
	j := Open(&f)

	var written []JSet
	for i := 0; i < 3; i++ {
		seq := j.NextSeq()
		js := JSet{Seq: seq, Flush: i == 2, Entries: []Entry{
			{Kind: EntryBtreeKey, Btree: uint8(i), Data: []byte{byte(i)}},
		}}
		if err := j.Write(js); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		written = append(written, js)
	}

	region := make([]byte, f.Size())
	if _, err := f.ReadAt(region, 0); err != nil {
		t.Fatalf("read region: %v", err)
	}

	reader := Open(&f)
	var applied []JSet
	err := reader.Replay(region, func(js JSet) error {
		applied = append(applied, js)
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	if len(applied) != len(written) {
		t.Fatalf("applied %d jsets, want %d", len(applied), len(written))
	}
	for i, js := range written {
		if applied[i].Seq != js.Seq {
			t.Errorf("jset %d: seq = %d, want %d", i, applied[i].Seq, js.Seq)
		}
	}

	if got := reader.NextSeq(); got != written[len(written)-1].Seq+1 {
		t.Errorf("NextSeq after replay = %d, want %d", got, written[len(written)-1].Seq+1)
	}
}

func TestJournalBlacklistSkipsReplay(t *testing.T) {
	var f mem.File
	j := Open(&f)

	seq1 := j.NextSeq()
	if err := j.Write(JSet{Seq: seq1, Entries: []Entry{{Kind: EntryBtreeKey, Data: []byte("a")}}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	seq2 := j.NextSeq()
	if err := j.Write(JSet{Seq: seq2, Entries: []Entry{{Kind: EntryBtreeKey, Data: []byte("b")}}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	j.Blacklist(seq1)

	region := make([]byte, f.Size())
	if _, err := f.ReadAt(region, 0); err != nil {
		t.Fatalf("read region: %v", err)
	}

	var appliedSeqs []uint64
	err := j.Replay(region, func(js JSet) error {
		appliedSeqs = append(appliedSeqs, js.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(appliedSeqs) != 1 || appliedSeqs[0] != seq2 {
		t.Errorf("applied seqs = %v, want only [%d]", appliedSeqs, seq2)
	}
}
