// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package cache

import "github.com/coldtree/corefs/lock"

// NodeID identifies one resident btree node: the tree it belongs to, its
// level (0 at the leaf, counting up towards the root — the reverse of
// bptree.Level's root-first indexing, which txn's nodePath converts from),
// and the block it currently occupies. Block
// alone cannot serve as the key — a node's block id changes every time a
// copy-on-write rewrites it — so NodeID is only valid for the lifetime of
// the path that resolved it.
type NodeID struct {
	Tree  uint8
	Level uint8
	Block uint32
}

// NodeHandle is one entry of the node cache: the page bytes last read for
// this node, plus the lock word guarding concurrent access to it. The lock
// is allocated once per NodeID and reused across every path that revisits
// the same resident node, which is what lets two unrelated paths into the
// same tree take locks on disjoint nodes instead of serializing on a
// single tree-wide lock.
type NodeHandle struct {
	Lock *lock.NodeLock
	Page []byte
}

// NodeCache is the resident-node cache: get(tree, level, position) ->
// node_handle, pinned while a path holds a lock on the node and evictable
// otherwise. It is built on the same two-tier Cache as the decoded-record
// cache, so memory for both is bounded by the same LRU discipline rather
// than by an unbounded separate lock table.
type NodeCache struct {
	cache *Cache[NodeID, *NodeHandle]
}

// NewNodeCache builds a NodeCache whose evictable tier holds up to
// capacity resident nodes.
func NewNodeCache(capacity int) (*NodeCache, error) {
	c, err := New[NodeID, *NodeHandle](capacity)
	if err != nil {
		return nil, err
	}
	return &NodeCache{cache: c}, nil
}

// Get returns the handle for id, allocating and inserting a fresh one (at
// lock.None) if id is not yet resident. Lookup and insert are atomic, so
// two paths racing to their first touch of the same node always receive
// the same handle — and therefore contend on the same lock word. The
// caller is responsible for populating Page from storage when the
// returned handle's Page is nil and for driving mode acquisition through
// the returned handle's Lock.
func (nc *NodeCache) Get(id NodeID) *NodeHandle {
	return nc.cache.GetOrPut(id, &NodeHandle{Lock: new(lock.NodeLock)})
}

// Pin marks id unevictable — called once a path holds intent or write on
// the node, or when id is a btree root.
func (nc *NodeCache) Pin(id NodeID, h *NodeHandle) {
	nc.cache.Pin(id, h)
}

// Unpin returns id to the evictable tier once no path holds it locked.
func (nc *NodeCache) Unpin(id NodeID) {
	nc.cache.Unpin(id)
}

// Remove drops id from the cache — used when its block is recycled by a
// copy-on-write rewrite rather than merely aged out.
func (nc *NodeCache) Remove(id NodeID) {
	nc.cache.Remove(id)
}

// Len reports the number of resident nodes currently cached.
func (nc *NodeCache) Len() int {
	return nc.cache.Len()
}
