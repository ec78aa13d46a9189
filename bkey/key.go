// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package bkey

import (
	"encoding/binary"
	"fmt"
)

// Type tags the closed set of key types a tree may carry. New variants are
// appended at the end; an unknown tag read from disk is preserved verbatim
// rather than rejected, so older code stays forward-compatible with newer
// on-disk key types it does not understand.
type Type uint8

const (
	TypeDeleted Type = iota
	TypeWhiteout
	TypeBtreePtrV2
	TypeExtent
	TypeInodeV3
	TypeDirent
	TypeXattr
	TypeAllocV4
	TypeStripe
	TypeReflinkP
	TypeReflinkV
	TypeSnapshot
	TypeSubvolume
	TypeInlineData
)

func (t Type) String() string {
	switch t {
	case TypeDeleted:
		return "deleted"
	case TypeWhiteout:
		return "whiteout"
	case TypeBtreePtrV2:
		return "btree_ptr_v2"
	case TypeExtent:
		return "extent"
	case TypeInodeV3:
		return "inode_v3"
	case TypeDirent:
		return "dirent"
	case TypeXattr:
		return "xattr"
	case TypeAllocV4:
		return "alloc_v4"
	case TypeStripe:
		return "stripe"
	case TypeReflinkP:
		return "reflink_p"
	case TypeReflinkV:
		return "reflink_v"
	case TypeSnapshot:
		return "snapshot"
	case TypeSubvolume:
		return "subvolume"
	case TypeInlineData:
		return "inline_data"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Header is the fixed-width prefix of every key's value bytes, ahead of the
// type-specific payload.
type Header struct {
	Type    Type
	Size    uint32 // extent size; 0 for point keys
	Version uint64 // bump on in-place semantic replace within one commit
}

const headerSize = 1 + 4 + 8

func (h Header) encode(buf []byte) []byte {
	var tmp [headerSize]byte
	tmp[0] = byte(h.Type)
	binary.BigEndian.PutUint32(tmp[1:5], h.Size)
	binary.BigEndian.PutUint64(tmp[5:13], h.Version)
	return append(buf, tmp[:]...)
}

func decodeHeader(b []byte) (h Header, rest []byte, ok bool) {
	if len(b) < headerSize {
		return
	}
	h.Type = Type(b[0])
	h.Size = binary.BigEndian.Uint32(b[1:5])
	h.Version = binary.BigEndian.Uint64(b[5:13])
	return h, b[headerSize:], true
}

// Key is a decoded btree record: its position, header, and opaque
// type-specific payload. Encode/Decode round-trip byte-for-byte, which is
// the "Pack(Unpack(k)) == k" property this engine is tested against.
type Key struct {
	Pos     Position
	Header  Header
	Payload []byte // raw, type-specific; unknown types keep it opaque
}

// EncodeKey lays out a full on-disk key: position, header, payload. This is
// the value half of a (position-as-bptree-key, EncodeKey-as-bptree-value)
// pair stored in the underlying byte-oriented btree node.
func EncodeKey(k Key) []byte {
	buf := make([]byte, 0, headerSize+len(k.Payload))
	buf = k.Header.encode(buf)
	buf = append(buf, k.Payload...)
	return buf
}

// DecodeKey parses a value produced by EncodeKey. pos must be supplied by
// the caller (it is the bptree key, not part of the stored value).
func DecodeKey(pos Position, b []byte) (k Key, ok bool) {
	h, rest, ok := decodeHeader(b)
	if !ok {
		return
	}
	k.Pos = pos
	k.Header = h
	k.Payload = rest
	return k, true
}

// IsTombstone reports whether k is a logical deletion marker: either an
// explicit "deleted" key or a "whiteout" (used on non-extent snapshotted
// trees to hide an inherited ancestor value without removing the slot's
// history).
func (k Key) IsTombstone() bool {
	return k.Header.Type == TypeDeleted || k.Header.Type == TypeWhiteout
}

// Tombstone builds a deletion marker at pos: the record stored at exactly
// pos is physically removed when this key is applied.
func Tombstone(pos Position) Key {
	return Key{Pos: pos, Header: Header{Type: TypeDeleted}}
}

// Whiteout builds a stored hiding record at pos: unlike a Tombstone it
// remains in the tree, so a snapshot-ancestor walk that reaches it stops
// with "deleted" instead of falling through to an inherited value.
func Whiteout(pos Position) Key {
	return Key{Pos: pos, Header: Header{Type: TypeWhiteout}}
}

// EncodeJournalEntry lays out the full self-describing record a journal
// sub-entry carries for one key: its position (fixed 20 bytes) followed by
// EncodeKey's header+payload. The journal package treats this as opaque
// []byte; only this package's own Decode side needs to understand it.
func EncodeJournalEntry(k Key) []byte {
	buf := k.Pos.Encode(nil)
	return append(buf, EncodeKey(k)...)
}

// DecodeJournalEntry parses a record produced by EncodeJournalEntry.
func DecodeJournalEntry(b []byte) (k Key, ok bool) {
	pos, rest, ok := DecodePosition(b)
	if !ok {
		return
	}
	return DecodeKey(pos, rest)
}

// Range returns the half-open (start, end] interval an extent key covers.
// For point keys (Header.Size == 0) start == end == Pos.Offset.
func (k Key) Range() (start, end uint64) {
	end = k.Pos.Offset
	start = end - uint64(k.Header.Size)
	return
}

// ContainsOffset reports whether off falls within k's extent range. Used by
// the "is_extents" iterator mode to confirm a Seek landed on the extent
// actually covering a target offset rather than merely the next one after
// it (Seek finds the smallest end >= target, which is only a containing
// extent if target also falls strictly after that extent's start).
func (k Key) ContainsOffset(off uint64) bool {
	start, end := k.Range()
	return off > start && off <= end
}

// Validate checks structural invariants that must hold for any key type:
// extents must carry a positive size and whiteouts/deletions must carry no
// payload. Per-type payload validation lives beside each concrete type
// below.
func (k Key) Validate() error {
	switch k.Header.Type {
	case TypeExtent:
		if k.Header.Size == 0 {
			return fmt.Errorf("%w: extent key with zero size", ErrInvalidKey)
		}
	case TypeDeleted, TypeWhiteout:
		if len(k.Payload) != 0 {
			return fmt.Errorf("%w: tombstone with non-empty payload", ErrInvalidKey)
		}
	}
	return nil
}
