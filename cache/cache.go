// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package cache holds the in-memory caches used above the storage layer: a
// bounded, evictable tier backed by hashicorp/golang-lru, plus a small
// unbounded pinned tier that the LRU never evicts regardless of pressure —
// evicting an entry out from under a held lock or reference would be a
// correctness bug, not just a performance one.
//
// Two caches share this machinery: the decoded-record cache (keyed by ID,
// holding bkey.Key values for btreeid.Schema's Cached trees) and the
// resident node cache (keyed by NodeID, holding *NodeHandle values pinned
// for as long as a transaction holds intent or write on that node).
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ID identifies one decoded-record cache entry: the tree it belongs to
// plus the full position triple (inode, offset, snapshot) that
// disambiguates it, since two snapshot lines of the same inode are
// distinct cache slots even though they share a block.
type ID struct {
	Tree     uint8
	Inode    uint64
	Offset   uint64
	Snapshot uint32
}

// Cache is the two-tier cache shared by the decoded-record cache and the
// node cache. K is the entry's identity (ID for decoded records, NodeID
// for resident nodes); Node is left as `any` at this layer since the
// eviction policy doesn't need to inspect entry contents.
type Cache[K comparable, Node any] struct {
	// mu guards pinned and the lru/pinned tier moves as one unit. The LRU
	// is internally synchronized, but a Pin racing a Get must see either
	// "in the LRU" or "in pinned", never a window where the entry is in
	// neither.
	mu     sync.Mutex
	lru    *lru.Cache[K, Node]
	pinned map[K]Node
}

// New builds a Cache whose evictable tier holds up to capacity entries.
func New[K comparable, Node any](capacity int) (*Cache[K, Node], error) {
	l, err := lru.New[K, Node](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache[K, Node]{lru: l, pinned: make(map[K]Node)}, nil
}

// Get looks up id, checking the pinned tier first.
func (c *Cache[K, Node]) Get(id K) (Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.pinned[id]; ok {
		return n, true
	}
	return c.lru.Get(id)
}

// Put inserts or updates id in the evictable tier.
func (c *Cache[K, Node]) Put(id K, n Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, pinned := c.pinned[id]; pinned {
		c.pinned[id] = n
		return
	}
	c.lru.Add(id, n)
}

// GetOrPut returns the entry for id, inserting n into the evictable tier
// first if id is absent. The lookup and insert happen under one critical
// section, so two racing callers always come away holding the same entry —
// which is what makes one NodeHandle's lock word authoritative for its
// node rather than one of two.
func (c *Cache[K, Node]) GetOrPut(id K, n Node) Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	if have, ok := c.pinned[id]; ok {
		return have
	}
	if have, ok := c.lru.Get(id); ok {
		return have
	}
	c.lru.Add(id, n)
	return n
}

// Pin moves id into the unevictable tier — called when a path takes intent
// or write on the node, or when it is a btree root. Pin is idempotent.
func (c *Cache[K, Node]) Pin(id K, n Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned[id] = n
	c.lru.Remove(id)
}

// Unpin returns id to the evictable tier once no path holds it locked.
func (c *Cache[K, Node]) Unpin(id K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.pinned[id]
	if !ok {
		return
	}
	delete(c.pinned, id)
	c.lru.Add(id, n)
}

// Remove drops id from whichever tier holds it — used when a node is
// retired (its block recycled) rather than merely evicted.
func (c *Cache[K, Node]) Remove(id K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pinned, id)
	c.lru.Remove(id)
}

// Len reports the combined size of both tiers.
func (c *Cache[K, Node]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len() + len(c.pinned)
}
