// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package bptree

// Path walks the B+ tree at the given root snapshot down to the leaf that
// would hold key and returns the resident path (root through leaf) as a
// Level. ok is false if the tree is empty; the tree holds no leaf for an
// empty root and there is nothing to lock or cache against.
//
// Unlike Get, Path never resolves overflow chains or copies the leaf value:
// callers use it to discover which resident nodes a later read or write
// will touch, before acquiring locks or populating the node cache.
func Path[B ReadOnly, R RootBlock](block B, root R, key []byte) (level Level, ok bool, err error) {
	var reader Reader[B, R]
	reader.Load(block, root)
	defer reader.Close()

	if !reader.Seek(key) {
		if err = reader.Error(); err != nil {
			return
		}
		// exhausted: key sorts past every resident leaf entry, but the
		// path walked to reach that leaf is still the path a write
		// would touch.
	}

	level = reader.Level()
	ok = len(level) != 0 || root.High() == 0
	return
}
