// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package snapshot maintains the parent/child snapshot tree and answers
// ancestor queries for it. The tree structure and the map-of-nodes-plus-
// RWMutex shape are grounded on go-ethereum's pathdb layerTree: a small,
// fully in-memory index rebuilt from durable state at open time, guarded by
// one lock, with no per-query allocation on the hot path.
package snapshot

import (
	"fmt"
	"sync"

	"github.com/coldtree/corefs/bkey"
)

// node is one snapshot's position in the tree.
type node struct {
	id       uint32
	parent   uint32
	depth    uint32
	children []uint32
}

// Tree is the in-memory snapshot ancestor index. All lookups are served
// from memory; mutations are durable only once the corresponding
// bkey.Snapshot record has been committed to the snapshots tree by the
// caller — Tree itself does no I/O.
type Tree struct {
	mu    sync.RWMutex
	nodes map[uint32]*node
}

// New builds an empty Tree with only the root snapshot (id 0, meaning "no
// snapshot", always its own ancestor).
func New() *Tree {
	return &Tree{nodes: map[uint32]*node{
		0: {id: 0},
	}}
}

// Load rebuilds a Tree from the full contents of the snapshots btree,
// called once at mount after the journal has been replayed.
func Load(records []bkey.Key) (*Tree, error) {
	t := New()
	for _, k := range records {
		if k.Header.Type != bkey.TypeSnapshot {
			continue
		}
		rec, ok := bkey.DecodeSnapshot(k.Payload)
		if !ok {
			return nil, fmt.Errorf("snapshot: corrupt record for snapshot %d", k.Pos.Inode)
		}
		id := uint32(k.Pos.Inode)
		t.nodes[id] = &node{id: id, parent: rec.Parent, depth: rec.Depth}
	}
	for id, n := range t.nodes {
		if id == 0 || n.parent == id {
			continue
		}
		if p, ok := t.nodes[n.parent]; ok {
			p.children = append(p.children, id)
		}
	}
	return t, nil
}

// Create adds a new snapshot as a child of parent and returns its id and the
// bkey.Snapshot record the caller must commit to make it durable.
func (t *Tree) Create(parent uint32, newID uint32) (bkey.Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.nodes[parent]
	if !ok {
		return bkey.Snapshot{}, fmt.Errorf("snapshot: unknown parent %d", parent)
	}
	if _, exists := t.nodes[newID]; exists {
		return bkey.Snapshot{}, fmt.Errorf("snapshot: id %d already in use", newID)
	}
	n := &node{id: newID, parent: parent, depth: p.depth + 1}
	t.nodes[newID] = n
	p.children = append(p.children, newID)

	return bkey.Snapshot{Parent: parent, Depth: n.depth}, nil
}

// Delete removes a leaf snapshot from the tree. Non-leaf deletion is an
// equal-merge operation the caller must perform one level at a time by
// reparenting children first — this layer only tracks topology.
func (t *Tree) Delete(id uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("snapshot: unknown id %d", id)
	}
	if len(n.children) != 0 {
		return fmt.Errorf("snapshot: %d has children, cannot delete directly", id)
	}
	if p, ok := t.nodes[n.parent]; ok {
		p.children = removeID(p.children, id)
	}
	delete(t.nodes, id)
	return nil
}

func removeID(ids []uint32, target uint32) []uint32 {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// IsAncestor reports whether ancestor is on the path from target up to the
// root, inclusive of target itself (every snapshot is its own ancestor).
func (t *Tree) IsAncestor(target, ancestor uint32) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for id := target; ; {
		if id == ancestor {
			return true
		}
		n, ok := t.nodes[id]
		if !ok || id == 0 {
			return false
		}
		id = n.parent
	}
}

// AncestorChain returns target and every ancestor above it, nearest first,
// ending at the root (0). This is the walk order the overlay in this
// package's lookup.go uses: the nearest line's override wins over anything
// inherited from further up, rather than a literal position-ordering rule,
// which cannot hold simultaneously with "parent ID > children" once a
// child snapshot is created with a numerically smaller id than its
// parent's other descendants.
func (t *Tree) AncestorChain(target uint32) []uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var chain []uint32
	for id := target; ; {
		chain = append(chain, id)
		if id == 0 {
			break
		}
		n, ok := t.nodes[id]
		if !ok {
			break
		}
		id = n.parent
	}
	return chain
}

// Parent returns id's parent, or (0, false) if id is the root or unknown.
func (t *Tree) Parent(id uint32) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok || id == 0 {
		return 0, false
	}
	return n.parent, true
}

// Children returns a copy of id's direct children.
func (t *Tree) Children(id uint32) []uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := make([]uint32, len(n.children))
	copy(out, n.children)
	return out
}

// MaxID reports the highest snapshot id currently known to the tree,
// called once at mount to seed a fresh filesystem's next-snapshot-id
// allocator above every id recovered from the durable snapshots btree.
func (t *Tree) MaxID() uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var max uint32
	for id := range t.nodes {
		if id > max {
			max = id
		}
	}
	return max
}
