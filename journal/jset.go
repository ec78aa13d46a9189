// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package journal implements the write-ahead log every committed
// transaction first lands in: append-only jsets, each a sequence number
// plus one or more typed sub-entries, trailer-checksummed with the same
// TLV-plus-CRC32-Castagnoli convention internal/heap.Meta uses for the
// block-heap's own header. A fresh encoder/decoder pair is defined here
// (rather than reusing internal/heap's, which are unexported) but follows
// it key-for-key: varint key, varint-or-length-prefixed value, then a
// trailing 4-byte checksum entry keyed 0.
package journal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

// EntryKind tags one sub-entry within a jset.
type EntryKind uint8

const (
	EntryBtreeKey EntryKind = iota
	EntryBtreeRoot
	EntryClock
	EntryUsage
	EntryDataUsage
	EntryDevUsage
	EntryBlacklist
)

// Entry is one typed sub-entry of a jset: a mutation, a root pointer update,
// a clock tick, a usage accounting snapshot, or a blacklisted-sequence
// marker left behind by a recovery that skipped a torn write.
type Entry struct {
	Kind EntryKind
	Btree uint8 // valid for EntryBtreeKey / EntryBtreeRoot
	Data  []byte
}

// JSet is one append-unit of the journal: a strictly increasing sequence
// number and the entries committed together under it.
type JSet struct {
	Seq     uint64
	Flush   bool // durability class: flush forces a device barrier, noflush doesn't
	Entries []Entry
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Encode serializes js with a trailing CRC32-Castagnoli checksum over
// everything preceding it.
func Encode(js JSet) []byte {
	c := crc32.New(castagnoli)
	var buf []byte
	w := teeBuffer{&buf, c}

	e := tlvEncoder{w}
	_ = e.writeVal(1, js.Seq)
	if js.Flush {
		_ = e.writeVal(2, 1)
	}
	for _, ent := range js.Entries {
		// Key 3 opens every entry, so it is written even for kind 0,
		// which writeVal would elide.
		var kind [2 * binary.MaxVarintLen64]byte
		n := binary.PutVarint(kind[:], 3)
		n += binary.PutUvarint(kind[n:], uint64(ent.Kind))
		_, _ = w.Write(kind[:n])
		_ = e.writeVal(4, uint64(ent.Btree))
		_ = e.writeBytes(5, ent.Data)
		_ = e.writeVal(6, 0) // zero, so elided: key 3 is what separates entries
	}
	_, _ = w.Write([]byte{0}) // key 0 opens the checksum entry and is covered by it
	sum := c.Sum32()
	var tail [4]byte
	binary.LittleEndian.PutUint32(tail[:], sum)
	buf = append(buf, tail[:]...)
	return buf
}

// Decode parses a single jset from the front of b, returning the bytes that
// follow it (the start of the next jset, if any).
func Decode(b []byte) (js JSet, rest []byte, err error) {
	c := crc32.New(castagnoli)
	raw := newByteReader(b)
	r := io.TeeReader(raw, c)
	d := tlvDecoder{r: r, raw: raw}

	var cur Entry
	var haveCur bool
	for {
		key, kerr := d.readKey()
		if kerr != nil {
			err = fmt.Errorf("journal: truncated jset: %w", kerr)
			return
		}
		switch key {
		case 1:
			v, verr := d.readVal()
			if verr != nil {
				err = verr
				return
			}
			js.Seq = v
		case 2:
			v, verr := d.readVal()
			if verr != nil {
				err = verr
				return
			}
			js.Flush = v != 0
		case 3:
			v, verr := d.readVal()
			if verr != nil {
				err = verr
				return
			}
			if haveCur {
				js.Entries = append(js.Entries, cur)
			}
			cur = Entry{Kind: EntryKind(v)}
			haveCur = true
		case 4:
			v, verr := d.readVal()
			if verr != nil {
				err = verr
				return
			}
			cur.Btree = uint8(v)
		case -5:
			n, verr := d.readVal()
			if verr != nil {
				err = verr
				return
			}
			data, berr := d.readBytes(n)
			if berr != nil {
				err = berr
				return
			}
			cur.Data = data
		case 6:
			if _, verr := d.readVal(); verr != nil {
				err = verr
				return
			}
		case 0:
			if haveCur {
				js.Entries = append(js.Entries, cur)
			}
			var tail [4]byte
			consumed := d.consumed()
			if _, rerr := io.ReadFull(d.raw, tail[:]); rerr != nil {
				err = fmt.Errorf("journal: truncated checksum: %w", rerr)
				return
			}
			want := binary.LittleEndian.Uint32(tail[:])
			if c.Sum32() != want {
				err = ErrBadChecksum
				return
			}
			rest = b[consumed+4:]
			return js, rest, nil
		default:
			v, verr := d.readVal()
			if verr != nil {
				err = verr
				return
			}
			if key < 0 {
				if _, berr := d.readBytes(v); berr != nil {
					err = berr
					return
				}
			}
		}
	}
}

var ErrBadChecksum = fmt.Errorf("journal: checksum mismatch")
