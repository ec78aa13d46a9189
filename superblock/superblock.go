// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package superblock reads and writes the fixed block at the start of each
// device: filesystem identity, device membership, and each btree's root
// pointer. It reuses internal/heap.Meta's TLV-plus-CRC32 wire convention
// (re-implemented locally; Meta's encoder/decoder are unexported) and adds
// google/uuid for the identity fields bcachefs stores as 128-bit UUIDs.
package superblock

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/google/uuid"

	"github.com/coldtree/corefs"
)

// RootPointer is one btree's root block address and level, as stored in
// the superblock.
type RootPointer struct {
	Block corefs.BlockID
	Level uint8
}

// Superblock is the durable identity and root-pointer set for one device.
type Superblock struct {
	FilesystemUUID uuid.UUID
	DeviceUUID     uuid.UUID
	DeviceIndex    uint16
	BlockSize      uint32
	Roots          map[uint8]RootPointer // keyed by btreeid.ID
	SnapshotEpoch  uint64                // highest allocated snapshot id + 1
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// New creates a fresh Superblock for a newly formatted device, generating a
// new filesystem UUID (first device) or accepting an existing one (joining
// devices) along with a fresh device UUID.
func New(filesystemUUID uuid.UUID, deviceIndex uint16, blockSize uint32) Superblock {
	return Superblock{
		FilesystemUUID: filesystemUUID,
		DeviceUUID:     uuid.New(),
		DeviceIndex:    deviceIndex,
		BlockSize:      blockSize,
		Roots:          make(map[uint8]RootPointer),
	}
}

// Encode serializes sb with a trailing CRC32-Castagnoli checksum.
func Encode(sb Superblock) []byte {
	c := crc32.New(castagnoli)
	var buf []byte
	w := teeBuffer{&buf, c}
	e := tlvEncoder{w}

	fsBytes, _ := sb.FilesystemUUID.MarshalBinary()
	devBytes, _ := sb.DeviceUUID.MarshalBinary()
	_ = e.writeBytes(1, fsBytes)
	_ = e.writeBytes(2, devBytes)
	_ = e.writeVal(3, uint64(sb.DeviceIndex))
	_ = e.writeVal(4, uint64(sb.BlockSize))
	_ = e.writeVal(5, sb.SnapshotEpoch)
	for id, rp := range sb.Roots {
		// Key 6 opens every root pointer, so it is written even for tree
		// id 0, which writeVal would elide.
		var rid [2 * binary.MaxVarintLen64]byte
		n := binary.PutVarint(rid[:], 6)
		n += binary.PutUvarint(rid[n:], uint64(id))
		_, _ = w.Write(rid[:n])
		_ = e.writeVal(7, uint64(rp.Block))
		_ = e.writeVal(8, uint64(rp.Level))
	}

	_, _ = w.Write([]byte{0}) // key 0 opens the checksum entry and is covered by it
	var tail [4]byte
	binary.LittleEndian.PutUint32(tail[:], c.Sum32())
	buf = append(buf, tail[:]...)
	return buf
}

// Decode parses a Superblock previously produced by Encode, verifying its
// trailing checksum.
func Decode(b []byte) (sb Superblock, err error) {
	sb.Roots = make(map[uint8]RootPointer)

	c := crc32.New(castagnoli)
	raw := newByteReader(b)
	r := io.TeeReader(raw, c)
	d := tlvDecoder{r: r, raw: raw}

	var pendingID uint8
	var pendingBlock corefs.BlockID
	var pendingLevel uint8
	var havePending bool

	flush := func() {
		if havePending {
			sb.Roots[pendingID] = RootPointer{Block: pendingBlock, Level: pendingLevel}
			havePending, pendingBlock, pendingLevel = false, 0, 0
		}
	}

	for {
		key, kerr := d.readKey()
		if kerr != nil {
			err = fmt.Errorf("superblock: truncated: %w", kerr)
			return
		}
		switch key {
		case -1:
			n, verr := d.readVal()
			if verr != nil {
				err = verr
				return
			}
			raw, berr := d.readBytes(n)
			if berr != nil {
				err = berr
				return
			}
			if err = sb.FilesystemUUID.UnmarshalBinary(raw); err != nil {
				return
			}
		case -2:
			n, verr := d.readVal()
			if verr != nil {
				err = verr
				return
			}
			raw, berr := d.readBytes(n)
			if berr != nil {
				err = berr
				return
			}
			if err = sb.DeviceUUID.UnmarshalBinary(raw); err != nil {
				return
			}
		case 3:
			v, verr := d.readVal()
			if verr != nil {
				err = verr
				return
			}
			sb.DeviceIndex = uint16(v)
		case 4:
			v, verr := d.readVal()
			if verr != nil {
				err = verr
				return
			}
			sb.BlockSize = uint32(v)
		case 5:
			v, verr := d.readVal()
			if verr != nil {
				err = verr
				return
			}
			sb.SnapshotEpoch = v
		case 6:
			v, verr := d.readVal()
			if verr != nil {
				err = verr
				return
			}
			flush()
			pendingID, havePending = uint8(v), true
		case 7:
			v, verr := d.readVal()
			if verr != nil {
				err = verr
				return
			}
			pendingBlock = corefs.BlockID(v)
		case 8:
			v, verr := d.readVal()
			if verr != nil {
				err = verr
				return
			}
			pendingLevel = uint8(v)
		case 0:
			flush()
			var tail [4]byte
			if _, rerr := io.ReadFull(d.raw, tail[:]); rerr != nil {
				err = fmt.Errorf("superblock: truncated checksum: %w", rerr)
				return
			}
			if want := binary.LittleEndian.Uint32(tail[:]); c.Sum32() != want {
				err = ErrBadChecksum
				return
			}
			return sb, nil
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

var ErrBadChecksum = fmt.Errorf("superblock: checksum mismatch")
