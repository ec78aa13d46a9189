// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package alloc

import "github.com/coldtree/corefs"

// Writepoint tracks the last bucket handed out for one write stream so a
// caller can tell (via Contiguous) whether a new bucket extends that stream.
// It does not steer allocation: buckets come in whatever order the
// underlying free list returns them.
type Writepoint struct {
	dev  *Device
	last corefs.BlockID
	have bool
}

// NewWritepoint creates a writepoint bound to dev. Each writepoint keeps its
// own "last" hint, so separate writepoints on the same device never see each
// other's allocations in Contiguous.
func NewWritepoint(dev *Device) *Writepoint {
	return &Writepoint{dev: dev}
}

// Next allocates the next bucket for this stream from an already-acquired
// reservation and records it as the stream's last bucket. It takes whatever
// the free list returns; it does not ask for last+1.
func (w *Writepoint) Next(r *Reservation) (corefs.BlockID, error) {
	id, err := r.Alloc()
	if err != nil {
		return 0, err
	}
	w.last, w.have = id, true
	return id, nil
}

// Contiguous reports whether id would extend the current stream
// contiguously, for callers deciding whether to merge an extent into the
// previous one instead of starting a new key.
func (w *Writepoint) Contiguous(id corefs.BlockID) bool {
	return w.have && id == w.last+1
}

// Reset forgets the writepoint's last-allocated hint, used when a stream is
// abandoned (e.g. a transaction restart before the allocation was
// committed).
func (w *Writepoint) Reset() {
	w.have = false
}
