package kv

import "github.com/coldtree/corefs/bptree"

// DescribePath returns the resident path (root through leaf) that a
// lookup or write for key currently touches against this tree's live
// root. It resolves no overflow chains and copies nothing — callers use
// it to discover which nodes to lock or cache before the actual Get,
// Set, or Batch.
func (kv *KV[F]) DescribePath(key []byte) (bptree.Level, bool, error) {
	return kv.bptree.Path(key)
}
