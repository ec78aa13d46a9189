// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package bptree

import "bytes"

// Get retrieves the value for a key from the B+ tree at the given root snapshot.
// Returns nil if the key does not exist. The buf parameter can be used to reduce allocations.
func Get[B ReadOnly, R RootBlock](block B, root R, buf, key []byte) (val []byte, err error) {
	var reader Reader[B, R]
	reader.Load(block, root)
	defer reader.Close()

	if !reader.Seek(key) {
		return nil, reader.Error()
	}
	if !bytes.Equal(reader.Key(), key) {
		return nil, reader.Error()
	}

	val = reader.ValCopy(buf)
	return
}
