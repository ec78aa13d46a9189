// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package alloc implements the allocator contract — reservation_get,
// bucket_alloc, bucket_release, and contiguity-seeking writepoints — on top
// of internal/heap.Heap's free-list machinery. Heap already tracks a
// recycled-block free list with Allocate/Recycle/RecycleN; this package
// adds the accounting layer bcachefs calls a "reservation": a count of
// buckets promised to an in-flight write so concurrent writers can't
// overcommit the device, enforced with a sync.Cond rather than blocking
// inside the heap's own mutex.
package alloc

import (
	"sync"

	"github.com/coldtree/corefs"
)

// BucketSource is the subset of internal/heap.Heap this package drives.
// Declared as an interface so alloc can be tested against a fake without
// constructing a real backing file.
type BucketSource interface {
	Allocate() (id corefs.BlockID, reuse bool)
	Recycle(id corefs.BlockID)
}

// Device is one backing store's allocator state: its bucket source plus the
// reservation accounting that guards it.
type Device struct {
	mu   sync.Mutex
	cond *sync.Cond

	src BucketSource

	total     uint64 // buckets capacity, 0 means unbounded/unknown
	used      uint64 // buckets durably allocated
	reserved  uint64 // buckets promised to in-flight reservations
	closing   bool
}

// NewDevice wraps src with reservation accounting. total is the device's
// bucket capacity; pass 0 if unknown (reservations are then never refused
// for capacity, only correctness errors from src surface).
func NewDevice(src BucketSource, total uint64) *Device {
	d := &Device{src: src, total: total}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Reservation is a promise of n buckets that must eventually be consumed by
// Alloc calls or given back with Cancel.
type Reservation struct {
	dev *Device
	n   uint64
}

// ReservationGet blocks until n buckets of headroom exist (used+reserved+n
// <= total) or the device closes, then reserves them. With total == 0 it
// never blocks on capacity.
func (d *Device) ReservationGet(n uint64) (*Reservation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.total != 0 && d.used+d.reserved+n > d.total {
		if d.closing {
			return nil, corefs.ErrNoSpace
		}
		d.cond.Wait()
	}
	if d.closing {
		return nil, corefs.ErrNoSpace
	}
	d.reserved += n
	return &Reservation{dev: d, n: n}, nil
}

// Remaining reports how many buckets of this reservation have not yet been
// consumed by Alloc.
func (r *Reservation) Remaining() uint64 {
	if r == nil {
		return 0
	}
	return r.n
}

// Cancel releases an unused reservation back to the device, waking any
// waiters blocked in ReservationGet.
func (r *Reservation) Cancel() {
	if r == nil || r.n == 0 {
		return
	}
	r.dev.mu.Lock()
	r.dev.reserved -= r.n
	r.dev.mu.Unlock()
	r.dev.cond.Broadcast()
}

// Alloc consumes one bucket from the reservation, allocating it from the
// underlying free list. Calling Alloc more times than the reservation
// covers panics — that is a caller bug, not a runtime condition.
func (r *Reservation) Alloc() (corefs.BlockID, error) {
	if r.n == 0 {
		panic("alloc: reservation exhausted")
	}
	id, _ := r.dev.src.Allocate()
	r.dev.mu.Lock()
	r.n--
	r.dev.reserved--
	r.dev.used++
	r.dev.mu.Unlock()
	return id, nil
}

// Release returns a previously allocated bucket to the free list, called
// once the last extent referencing it has been removed (i.e. its refcount,
// tracked in the alloc_v4 key, has dropped to zero).
func (d *Device) Release(id corefs.BlockID) {
	d.src.Recycle(id)
	d.mu.Lock()
	if d.used > 0 {
		d.used--
	}
	d.mu.Unlock()
	d.cond.Broadcast()
}

// Close marks the device as shutting down, waking every blocked
// ReservationGet so they return corefs.ErrNoSpace instead of hanging.
func (d *Device) Close() {
	d.mu.Lock()
	d.closing = true
	d.mu.Unlock()
	d.cond.Broadcast()
}

// Usage reports the device's current accounting snapshot.
func (d *Device) Usage() (used, reserved, total uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.used, d.reserved, d.total
}
