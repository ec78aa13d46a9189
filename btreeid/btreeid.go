// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package btreeid enumerates the closed set of named trees this engine
// manages and the per-tree schema flags that change how the transaction
// layer and iterator treat their keys.
package btreeid

import "fmt"

// ID names one of the fixed btree roots stored in the superblock.
type ID uint8

const (
	Extents ID = iota
	Inodes
	Dirents
	Xattrs
	Alloc
	Stripes
	Reflink
	Subvolumes
	Snapshots
	numIDs
)

func (id ID) String() string {
	switch id {
	case Extents:
		return "extents"
	case Inodes:
		return "inodes"
	case Dirents:
		return "dirents"
	case Xattrs:
		return "xattrs"
	case Alloc:
		return "alloc"
	case Stripes:
		return "stripes"
	case Reflink:
		return "reflink"
	case Subvolumes:
		return "subvolumes"
	case Snapshots:
		return "snapshots"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(id))
	}
}

// Flags describe schema properties of one tree that change how keys in it
// are iterated and how snapshot overlays apply to it.
type Flags struct {
	// Extents marks a tree whose keys represent ranges (Position.Offset is
	// the range's end, Header.Size its length) rather than single points.
	Extents bool
	// Snapshotted marks a tree whose Position.Snapshot component is
	// meaningful: lookups must walk the snapshot ancestor chain and
	// whiteouts suppress inherited values instead of being a logical
	// no-op key.
	Snapshotted bool
	// Cached marks a tree whose decoded records the transaction layer
	// keeps in its key_cache for point lookups. Mutations to it are still
	// journalled and written to the tree like those of any other tree.
	Cached bool
}

var schema = [numIDs]Flags{
	Extents:    {Extents: true, Snapshotted: true},
	Inodes:     {Snapshotted: true, Cached: true},
	Dirents:    {Snapshotted: true},
	Xattrs:     {Snapshotted: true},
	Alloc:      {Cached: true},
	Stripes:    {},
	Reflink:    {},
	Subvolumes: {},
	Snapshots:  {},
}

// Schema reports the fixed flags for id. Out-of-range ids return the zero
// value, which is the conservative (no special handling) default.
func Schema(id ID) Flags {
	if id >= numIDs {
		return Flags{}
	}
	return schema[id]
}

// All returns every tree id in a fixed, stable order.
func All() []ID {
	ids := make([]ID, numIDs)
	for i := range ids {
		ids[i] = ID(i)
	}
	return ids
}

// Count is the number of trees this engine manages.
const Count = int(numIDs)
