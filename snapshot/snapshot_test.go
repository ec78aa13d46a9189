// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"testing"

	"github.com/coldtree/corefs/bkey"
)

func TestCreateTracksParentAndDepth(t *testing.T) {
	tr := New()

	rec, err := tr.Create(0, 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Parent != 0 || rec.Depth != 1 {
		t.Errorf("got %+v, want Parent=0 Depth=1", rec)
	}

	rec2, err := tr.Create(1, 2)
	if err != nil {
		t.Fatalf("Create child: %v", err)
	}
	if rec2.Parent != 1 || rec2.Depth != 2 {
		t.Errorf("got %+v, want Parent=1 Depth=2", rec2)
	}

	if parent, ok := tr.Parent(2); !ok || parent != 1 {
		t.Errorf("Parent(2) = (%d,%v), want (1,true)", parent, ok)
	}
	children := tr.Children(0)
	if len(children) != 1 || children[0] != 1 {
		t.Errorf("Children(0) = %v, want [1]", children)
	}
}

func TestCreateRejectsUnknownParentOrDuplicateID(t *testing.T) {
	tr := New()
	if _, err := tr.Create(99, 1); err == nil {
		t.Error("expected error creating against an unknown parent")
	}
	if _, err := tr.Create(0, 0); err == nil {
		t.Error("expected error creating with an id already in use (root)")
	}
}

func TestDeleteRequiresLeaf(t *testing.T) {
	tr := New()
	if _, err := tr.Create(0, 1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := tr.Create(1, 2); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := tr.Delete(1); err == nil {
		t.Error("expected error deleting a snapshot with a live child")
	}
	if err := tr.Delete(2); err != nil {
		t.Fatalf("Delete leaf: %v", err)
	}
	if err := tr.Delete(1); err != nil {
		t.Fatalf("Delete now-childless snapshot: %v", err)
	}
	if _, ok := tr.Parent(1); ok {
		t.Error("deleted snapshot should no longer be known")
	}
}

func TestIsAncestorAndAncestorChain(t *testing.T) {
	tr := New()
	mustCreate(t, tr, 0, 1)
	mustCreate(t, tr, 1, 2)
	mustCreate(t, tr, 2, 3)

	if !tr.IsAncestor(3, 1) {
		t.Error("1 should be an ancestor of 3")
	}
	if !tr.IsAncestor(3, 3) {
		t.Error("every snapshot should be its own ancestor")
	}
	if tr.IsAncestor(1, 3) {
		t.Error("3 should not be an ancestor of 1")
	}

	chain := tr.AncestorChain(3)
	want := []uint32{3, 2, 1, 0}
	if len(chain) != len(want) {
		t.Fatalf("chain = %v, want %v", chain, want)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Errorf("chain[%d] = %d, want %d", i, chain[i], want[i])
		}
	}
}

func TestMaxID(t *testing.T) {
	tr := New()
	mustCreate(t, tr, 0, 5)
	mustCreate(t, tr, 5, 2)
	if got := tr.MaxID(); got != 5 {
		t.Errorf("MaxID = %d, want 5", got)
	}
}

func TestLoadRebuildsTopologyFromRecords(t *testing.T) {
	records := []bkey.Key{
		{Pos: bkey.Position{Inode: 1}, Header: bkey.Header{Type: bkey.TypeSnapshot},
			Payload: bkey.Snapshot{Parent: 0, Depth: 1}.Encode()},
		{Pos: bkey.Position{Inode: 2}, Header: bkey.Header{Type: bkey.TypeSnapshot},
			Payload: bkey.Snapshot{Parent: 1, Depth: 2}.Encode()},
		{Pos: bkey.Position{Inode: 99}, Header: bkey.Header{Type: bkey.TypeDirent}}, // ignored, wrong type
	}

	tr, err := Load(records)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if parent, ok := tr.Parent(2); !ok || parent != 1 {
		t.Errorf("Parent(2) = (%d,%v), want (1,true)", parent, ok)
	}
	if !tr.IsAncestor(2, 0) {
		t.Error("0 should be an ancestor of every rebuilt snapshot")
	}
}

// fakeStore is a minimal KeyAt backed by a plain map, enough to drive
// Resolve without a real txn-backed btree.
type fakeStore map[bkey.Position]bkey.Key

func (s fakeStore) Lookup(pos bkey.Position) (bkey.Key, bool, error) {
	k, ok := s[pos]
	return k, ok, nil
}

func TestResolveFindsNearestAncestorOverride(t *testing.T) {
	tr := New()
	mustCreate(t, tr, 0, 1)
	mustCreate(t, tr, 1, 2)

	store := fakeStore{
		{Inode: 10, Offset: 0, Snapshot: 0}: {
			Pos: bkey.Position{Inode: 10, Offset: 0, Snapshot: 0},
			Header: bkey.Header{Type: bkey.TypeInodeV3}, Payload: bkey.InodeV3{Mode: 1}.Encode(),
		},
		{Inode: 10, Offset: 0, Snapshot: 1}: {
			Pos: bkey.Position{Inode: 10, Offset: 0, Snapshot: 1},
			Header: bkey.Header{Type: bkey.TypeInodeV3}, Payload: bkey.InodeV3{Mode: 2}.Encode(),
		},
	}

	k, ok, err := Resolve(store, tr, 10, 0, 2)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !ok {
		t.Fatal("Resolve: expected a hit from an ancestor line")
	}
	inode, ok := bkey.DecodeInodeV3(k.Payload)
	if !ok || inode.Mode != 2 {
		t.Errorf("got mode %+v, want the snapshot-1 override (mode 2)", inode)
	}
}

func TestResolveTreatsTombstoneAsMiss(t *testing.T) {
	tr := New()
	mustCreate(t, tr, 0, 1)

	store := fakeStore{
		{Inode: 10, Offset: 0, Snapshot: 1}: bkey.Tombstone(bkey.Position{Inode: 10, Offset: 0, Snapshot: 1}),
	}

	_, ok, err := Resolve(store, tr, 10, 0, 1)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ok {
		t.Error("a tombstone at the nearest line should resolve as a miss, not fall through to an ancestor")
	}
}

func mustCreate(t *testing.T, tr *Tree, parent, id uint32) {
	t.Helper()
	if _, err := tr.Create(parent, id); err != nil {
		t.Fatalf("Create(%d,%d): %v", parent, id, err)
	}
}
