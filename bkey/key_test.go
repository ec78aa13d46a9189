// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package bkey

import (
	"bytes"
	"testing"
)

func TestPositionEncodePreservesOrder(t *testing.T) {
	// Encoded positions must sort byte-wise the same way Compare sorts
	// them, since the underlying store orders raw bytes only.
	positions := []Position{
		PosMin,
		{Inode: 1},
		{Inode: 1, Offset: 1},
		{Inode: 1, Offset: 1, Snapshot: 1},
		{Inode: 1, Offset: 2},
		{Inode: 2},
		{Inode: 1 << 40, Offset: 1 << 33, Snapshot: 7},
		PosMax,
	}
	for i := 1; i < len(positions); i++ {
		a, b := positions[i-1], positions[i]
		if a.Compare(b) >= 0 {
			t.Fatalf("fixture not ascending at %d: %+v vs %+v", i, a, b)
		}
		ea, eb := a.Encode(nil), b.Encode(nil)
		if bytes.Compare(ea, eb) >= 0 {
			t.Errorf("encoding broke order: %+v encodes >= %+v", a, b)
		}
	}
}

func TestPositionEncodeDecodeRoundTrip(t *testing.T) {
	want := Position{Inode: 42, Offset: 9000, Snapshot: 3}
	buf := want.Encode(nil)
	got, rest, ok := DecodePosition(buf)
	if !ok {
		t.Fatal("DecodePosition failed")
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if len(rest) != 0 {
		t.Errorf("trailing bytes: %d", len(rest))
	}
}

func TestKeyEncodeDecodeRoundTrip(t *testing.T) {
	pos := Position{Inode: 42, Snapshot: 1}
	want := Key{
		Pos:     pos,
		Header:  Header{Type: TypeInodeV3, Version: 5},
		Payload: InodeV3{Mode: 0o644, Size: 4096}.Encode(),
	}
	buf := EncodeKey(want)
	got, ok := DecodeKey(pos, buf)
	if !ok {
		t.Fatal("DecodeKey failed")
	}
	if got.Header != want.Header || !bytes.Equal(got.Payload, want.Payload) {
		t.Errorf("got %+v, want %+v", got, want)
	}
	// Pack(Unpack(k)) == k, byte-for-byte.
	if !bytes.Equal(EncodeKey(got), buf) {
		t.Error("re-encoding is not byte-identical")
	}
}

func TestUnknownTypeRoundTripsVerbatim(t *testing.T) {
	// A tag this code doesn't know must survive decode/encode untouched so
	// newer on-disk key types pass through older readers.
	pos := Position{Inode: 1}
	want := Key{
		Pos:     pos,
		Header:  Header{Type: Type(200)},
		Payload: []byte{0xde, 0xad, 0xbe, 0xef},
	}
	got, ok := DecodeKey(pos, EncodeKey(want))
	if !ok {
		t.Fatal("DecodeKey failed")
	}
	if got.Header.Type != Type(200) || !bytes.Equal(got.Payload, want.Payload) {
		t.Errorf("unknown type mangled: %+v", got)
	}
}

func TestJournalEntryRoundTrip(t *testing.T) {
	want := Key{
		Pos:     Position{Inode: 7, Offset: 3, Snapshot: 2},
		Header:  Header{Type: TypeDirent},
		Payload: Dirent{ChildInode: 42, Name: "b"}.Encode(),
	}
	got, ok := DecodeJournalEntry(EncodeJournalEntry(want))
	if !ok {
		t.Fatal("DecodeJournalEntry failed")
	}
	if got.Pos != want.Pos || got.Header != want.Header || !bytes.Equal(got.Payload, want.Payload) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestExtentRangeAndContainsOffset(t *testing.T) {
	// An extent keyed at end=100 with size=10 covers (90, 100].
	k := Key{
		Pos:    Position{Inode: 1, Offset: 100},
		Header: Header{Type: TypeExtent, Size: 10},
	}
	start, end := k.Range()
	if start != 90 || end != 100 {
		t.Fatalf("Range() = (%d, %d], want (90, 100]", start, end)
	}
	for off, want := range map[uint64]bool{90: false, 91: true, 100: true, 101: false} {
		if got := k.ContainsOffset(off); got != want {
			t.Errorf("ContainsOffset(%d) = %v, want %v", off, got, want)
		}
	}
}

func TestValidateRejectsMalformedKeys(t *testing.T) {
	zeroExtent := Key{Pos: Position{Inode: 1, Offset: 10}, Header: Header{Type: TypeExtent}}
	if err := zeroExtent.Validate(); err == nil {
		t.Error("zero-size extent passed Validate")
	}
	fatTombstone := Key{Pos: Position{Inode: 1}, Header: Header{Type: TypeDeleted}, Payload: []byte{1}}
	if err := fatTombstone.Validate(); err == nil {
		t.Error("tombstone with payload passed Validate")
	}
	if err := Tombstone(Position{Inode: 1}).Validate(); err != nil {
		t.Errorf("Tombstone() does not pass its own Validate: %v", err)
	}
}
