// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package superblock

import (
	"testing"

	"github.com/google/uuid"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := New(uuid.New(), 3, 1<<19)
	want.SnapshotEpoch = 17
	want.Roots[0] = RootPointer{Block: 9, Level: 2}
	want.Roots[8] = RootPointer{Block: 1234, Level: 0}

	got, err := Decode(Encode(want))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.FilesystemUUID != want.FilesystemUUID {
		t.Errorf("filesystem uuid: got %s, want %s", got.FilesystemUUID, want.FilesystemUUID)
	}
	if got.DeviceUUID != want.DeviceUUID {
		t.Errorf("device uuid: got %s, want %s", got.DeviceUUID, want.DeviceUUID)
	}
	if got.DeviceIndex != 3 || got.BlockSize != 1<<19 || got.SnapshotEpoch != 17 {
		t.Errorf("scalars did not round-trip: %+v", got)
	}
	if len(got.Roots) != 2 || got.Roots[0] != want.Roots[0] || got.Roots[8] != want.Roots[8] {
		t.Errorf("roots did not round-trip: %+v", got.Roots)
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	buf := Encode(New(uuid.New(), 0, 4096))
	buf[len(buf)/2] ^= 0xff
	if _, err := Decode(buf); err == nil {
		t.Error("Decode accepted a corrupted superblock")
	}
}

func TestDecodeRejectsTruncation(t *testing.T) {
	buf := Encode(New(uuid.New(), 0, 4096))
	if _, err := Decode(buf[:len(buf)-3]); err == nil {
		t.Error("Decode accepted a truncated superblock")
	}
}
