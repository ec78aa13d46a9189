// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the stateless checksum, compression, and encryption
// functions extents and journal entries are stamped with. Each family is a
// closed, numbered enum so an on-disk record can name which variant produced
// it without carrying the algorithm's name.
package codec

import (
	"errors"
	"hash/crc32"

	"github.com/cespare/xxhash/v2"
)

// ChecksumType selects the checksum algorithm an extent or journal entry was
// stamped with.
type ChecksumType uint8

const (
	ChecksumNone ChecksumType = iota
	ChecksumCRC32C
	ChecksumXXHash64
)

var ErrChecksumMismatch = errors.New("codec: checksum mismatch")

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Checksum computes the stamped checksum of data under typ, widened to
// uint64 for a uniform on-disk field regardless of algorithm.
func Checksum(typ ChecksumType, data []byte) uint64 {
	switch typ {
	case ChecksumNone:
		return 0
	case ChecksumCRC32C:
		return uint64(crc32.Checksum(data, castagnoli))
	case ChecksumXXHash64:
		return xxhash.Sum64(data)
	default:
		return 0
	}
}

// VerifyChecksum recomputes data's checksum under typ and compares it
// against want.
func VerifyChecksum(typ ChecksumType, data []byte, want uint64) error {
	if typ == ChecksumNone {
		return nil
	}
	if got := Checksum(typ, data); got != want {
		return ErrChecksumMismatch
	}
	return nil
}
