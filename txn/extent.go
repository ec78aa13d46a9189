// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"fmt"

	"github.com/coldtree/corefs"
	"github.com/coldtree/corefs/bkey"
	"github.com/coldtree/corefs/codec"
)

// extentChecksum is the algorithm every extent is stamped with. It is a
// package constant rather than a per-filesystem option because the
// checksum type is not recorded with the extent (bkey.Extent.Checksum holds
// only the digest), so changing it after the fact would orphan every
// extent written under the old algorithm.
const extentChecksum = codec.ChecksumCRC32C

// extentCompress is the compression algorithm WriteExtent tries before
// falling back to storing the payload verbatim.
const extentCompress = codec.CompressZstd

// WriteExtent allocates a data bucket, compresses and (if the filesystem
// was opened with WithExtentEncryptionKey) seals payload, and writes the
// result to the data heap, returning the bkey.Extent record a caller
// stages into the extents btree via Update.
//
// pos is the logical position the extent will be keyed under; it is not
// written anywhere here but is bound into the AEAD's associated data when
// encryption is enabled, so a ciphertext block can never be replayed at a
// different logical offset without Decrypt failing.
func (tx *Transaction) WriteExtent(pos bkey.Position, payload []byte) (bkey.Extent, error) {
	blockID, err := tx.AllocateExtent(uint64(len(payload)))
	if err != nil {
		return bkey.Extent{}, err
	}

	stored := codec.Compress(extentCompress, nil, payload)
	compressed := true
	if len(stored) >= len(payload) {
		stored = append(stored[:0], payload...)
		compressed = false
	}

	if tx.fs.extentKey != nil {
		sealed, err := codec.Encrypt(codec.EncryptChaCha20Poly1305, *tx.fs.extentKey, pos.Encode(nil), stored)
		if err != nil {
			return bkey.Extent{}, fmt.Errorf("txn: seal extent: %w", err)
		}
		stored = sealed
	}

	sum := codec.Checksum(extentChecksum, stored)

	if _, err := tx.fs.dataHeap.WriteAt(stored, blockID); err != nil {
		return bkey.Extent{}, fmt.Errorf("txn: write extent: %w", err)
	}

	return bkey.Extent{
		Bucket:     uint64(blockID),
		Checksum:   uint32(sum),
		Compressed: compressed,
		Length:     uint32(len(stored)),
	}, nil
}

// ReadExtent reads the bytes ext describes back off the data heap,
// verifies its checksum, opens the seal (if the filesystem holds an
// extent encryption key) and decompresses, returning the original payload
// WriteExtent was given.
func (tx *Transaction) ReadExtent(pos bkey.Position, ext bkey.Extent) ([]byte, error) {
	stored := make([]byte, ext.Length)
	if _, err := tx.fs.dataHeap.ReadAt(stored, corefs.BlockID(ext.Bucket)); err != nil {
		return nil, fmt.Errorf("txn: read extent: %w", err)
	}

	if err := codec.VerifyChecksum(extentChecksum, stored, uint64(ext.Checksum)); err != nil {
		return nil, fmt.Errorf("%w: extent at bucket %d", corefs.ErrBadChecksum, ext.Bucket)
	}

	if tx.fs.extentKey != nil {
		opened, err := codec.Decrypt(codec.EncryptChaCha20Poly1305, *tx.fs.extentKey, pos.Encode(nil), stored)
		if err != nil {
			return nil, fmt.Errorf("txn: open extent: %w", err)
		}
		stored = opened
	}

	if !ext.Compressed {
		return stored, nil
	}
	payload, err := codec.Decompress(extentCompress, nil, stored)
	if err != nil {
		return nil, fmt.Errorf("txn: decompress extent: %w", err)
	}
	return payload, nil
}
