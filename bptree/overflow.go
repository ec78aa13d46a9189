// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package bptree

import "encoding/binary"

// Overflow splits an inline entry that exceeds inlineSize into its
// head (the first inlineSize bytes, kept in the page for ordering
// comparisons), the total size of the overflow chain, and the block
// the chain starts at. The trailer layout (overflowSize as uvarint,
// overflowID as a 4-byte block id) mirrors InlineSize's accounting.
func Overflow(entry []byte, inlineSize int) (head []byte, overflowSize int, overflowID BlockID) {
	head = entry[:inlineSize]
	rest := entry[inlineSize:]
	size, n := binary.Uvarint(rest)
	overflowSize = int(size)
	overflowID = BlockID(binary.LittleEndian.Uint32(rest[n:]))
	return
}
