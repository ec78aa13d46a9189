// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package bkey

import "encoding/binary"

// InodeV3 is the payload of a TypeInodeV3 key.
type InodeV3 struct {
	Mode  uint16
	Size  uint64
	Nlink uint32
	MTime int64
}

func (v InodeV3) Encode() []byte {
	buf := make([]byte, 2+8+4+8)
	binary.BigEndian.PutUint16(buf[0:2], v.Mode)
	binary.BigEndian.PutUint64(buf[2:10], v.Size)
	binary.BigEndian.PutUint32(buf[10:14], v.Nlink)
	binary.BigEndian.PutUint64(buf[14:22], uint64(v.MTime))
	return buf
}

func DecodeInodeV3(b []byte) (v InodeV3, ok bool) {
	if len(b) < 22 {
		return
	}
	v.Mode = binary.BigEndian.Uint16(b[0:2])
	v.Size = binary.BigEndian.Uint64(b[2:10])
	v.Nlink = binary.BigEndian.Uint32(b[10:14])
	v.MTime = int64(binary.BigEndian.Uint64(b[14:22]))
	return v, true
}

// Dirent is the payload of a TypeDirent key; Pos.Offset is the hashed name.
type Dirent struct {
	ChildInode uint64
	Name       string
}

func (v Dirent) Encode() []byte {
	buf := make([]byte, 8, 8+len(v.Name))
	binary.BigEndian.PutUint64(buf[0:8], v.ChildInode)
	return append(buf, v.Name...)
}

func DecodeDirent(b []byte) (v Dirent, ok bool) {
	if len(b) < 8 {
		return
	}
	v.ChildInode = binary.BigEndian.Uint64(b[0:8])
	v.Name = string(b[8:])
	return v, true
}

// Xattr is the payload of a TypeXattr key; Pos.Offset is the hashed name.
type Xattr struct {
	Name  string
	Value []byte
}

func (v Xattr) Encode() []byte {
	buf := make([]byte, 2, 2+len(v.Name)+len(v.Value))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(v.Name)))
	buf = append(buf, v.Name...)
	buf = append(buf, v.Value...)
	return buf
}

func DecodeXattr(b []byte) (v Xattr, ok bool) {
	if len(b) < 2 {
		return
	}
	n := int(binary.BigEndian.Uint16(b[0:2]))
	if len(b) < 2+n {
		return
	}
	v.Name = string(b[2 : 2+n])
	v.Value = b[2+n:]
	return v, true
}

// Extent is the payload of a TypeExtent key. Header.Size carries the
// extent's length; Pos.Offset is its end, so the range it covers is
// (Pos.Offset-Header.Size, Pos.Offset].
type Extent struct {
	Dev        uint32
	Bucket     uint64
	Checksum   uint32
	Compressed bool
	// Length is the number of on-disk bytes actually stored at Bucket —
	// the compressed (and, if sealed, encrypted) size, which is smaller
	// than the bucket's fixed capacity whenever compression helped.
	Length uint32
}

func (v Extent) Encode() []byte {
	buf := make([]byte, 4+8+4+1+4)
	binary.BigEndian.PutUint32(buf[0:4], v.Dev)
	binary.BigEndian.PutUint64(buf[4:12], v.Bucket)
	binary.BigEndian.PutUint32(buf[12:16], v.Checksum)
	if v.Compressed {
		buf[16] = 1
	}
	binary.BigEndian.PutUint32(buf[17:21], v.Length)
	return buf
}

func DecodeExtent(b []byte) (v Extent, ok bool) {
	if len(b) < 21 {
		return
	}
	v.Dev = binary.BigEndian.Uint32(b[0:4])
	v.Bucket = binary.BigEndian.Uint64(b[4:12])
	v.Checksum = binary.BigEndian.Uint32(b[12:16])
	v.Compressed = b[16] != 0
	v.Length = binary.BigEndian.Uint32(b[17:21])
	return v, true
}

// AllocV4 is the payload of a TypeAllocV4 key: per-bucket allocator state.
// Pos identifies the (device-as-inode, bucket-as-offset) pair.
type AllocV4 struct {
	DataType  uint8
	Dirty     bool
	Cached    uint32
	GenNumber uint8
}

func (v AllocV4) Encode() []byte {
	buf := make([]byte, 1+1+4+1)
	buf[0] = v.DataType
	if v.Dirty {
		buf[1] = 1
	}
	binary.BigEndian.PutUint32(buf[2:6], v.Cached)
	buf[6] = v.GenNumber
	return buf
}

func DecodeAllocV4(b []byte) (v AllocV4, ok bool) {
	if len(b) < 7 {
		return
	}
	v.DataType = b[0]
	v.Dirty = b[1] != 0
	v.Cached = binary.BigEndian.Uint32(b[2:6])
	v.GenNumber = b[6]
	return v, true
}

// ReflinkP points at a shared reflink_v record by its indirection key.
type ReflinkP struct{ IndirectInode uint64 }

func (v ReflinkP) Encode() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v.IndirectInode)
	return buf
}

func DecodeReflinkP(b []byte) (v ReflinkP, ok bool) {
	if len(b) < 8 {
		return
	}
	v.IndirectInode = binary.BigEndian.Uint64(b)
	return v, true
}

// ReflinkV is the shared backing extent a ReflinkP refers to, carrying a
// refcount of how many ReflinkP keys point at it.
type ReflinkV struct {
	Extent   Extent
	RefCount uint32
}

func (v ReflinkV) Encode() []byte {
	buf := v.Extent.Encode()
	tail := make([]byte, 4)
	binary.BigEndian.PutUint32(tail, v.RefCount)
	return append(buf, tail...)
}

func DecodeReflinkV(b []byte) (v ReflinkV, ok bool) {
	e, ok := DecodeExtent(b)
	if !ok || len(b) < 21+4 {
		return ReflinkV{}, false
	}
	v.Extent = e
	v.RefCount = binary.BigEndian.Uint32(b[21:25])
	return v, true
}

// Snapshot is the payload of a TypeSnapshot key; Pos.Inode carries the
// snapshot's own ID so the snapshot tree can be rebuilt by a full scan.
type Snapshot struct {
	Parent   uint32 // 0 for a root snapshot
	Children [2]uint32
	Depth    uint32
}

func (v Snapshot) Encode() []byte {
	buf := make([]byte, 4+4+4+4)
	binary.BigEndian.PutUint32(buf[0:4], v.Parent)
	binary.BigEndian.PutUint32(buf[4:8], v.Children[0])
	binary.BigEndian.PutUint32(buf[8:12], v.Children[1])
	binary.BigEndian.PutUint32(buf[12:16], v.Depth)
	return buf
}

func DecodeSnapshot(b []byte) (v Snapshot, ok bool) {
	if len(b) < 16 {
		return
	}
	v.Parent = binary.BigEndian.Uint32(b[0:4])
	v.Children[0] = binary.BigEndian.Uint32(b[4:8])
	v.Children[1] = binary.BigEndian.Uint32(b[8:12])
	v.Depth = binary.BigEndian.Uint32(b[12:16])
	return v, true
}

// Subvolume names a mountable root and the snapshot it currently points at.
type Subvolume struct {
	RootInode uint64
	Snapshot  uint32
}

func (v Subvolume) Encode() []byte {
	buf := make([]byte, 8+4)
	binary.BigEndian.PutUint64(buf[0:8], v.RootInode)
	binary.BigEndian.PutUint32(buf[8:12], v.Snapshot)
	return buf
}

func DecodeSubvolume(b []byte) (v Subvolume, ok bool) {
	if len(b) < 12 {
		return
	}
	v.RootInode = binary.BigEndian.Uint64(b[0:8])
	v.Snapshot = binary.BigEndian.Uint32(b[8:12])
	return v, true
}

// InlineData stores small values directly, bypassing the extent/allocator
// path entirely.
type InlineData struct{ Data []byte }

func (v InlineData) Encode() []byte { return v.Data }

func DecodeInlineData(b []byte) (v InlineData, ok bool) {
	return InlineData{Data: b}, true
}
