// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"encoding/binary"
	"fmt"
	"io"
)

// teeBuffer appends every byte written to it both into *buf and into h, so
// an encoder can build the on-wire bytes and its checksum in one pass.
type teeBuffer struct {
	buf *[]byte
	h   io.Writer
}

func (w teeBuffer) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return w.h.Write(p)
}

// tlvEncoder writes the same varint-key / varint-or-length-prefixed-value
// shape internal/heap.Meta uses: a value of 0 is elided entirely, and a
// byte-slice field is written under the negated key so a decoder can tell
// the two value kinds apart without a separate type tag.
type tlvEncoder struct {
	io.Writer
}

func (e tlvEncoder) writeVal(key int64, val uint64) error {
	if val == 0 {
		return nil
	}
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutVarint(buf[:], key)
	if _, err := e.Write(buf[:n]); err != nil {
		return err
	}
	n = binary.PutUvarint(buf[:], val)
	_, err := e.Write(buf[:n])
	return err
}

func (e tlvEncoder) writeBytes(key int64, val []byte) error {
	if val == nil {
		return nil
	}
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutVarint(buf[:], -key)
	if _, err := e.Write(buf[:n]); err != nil {
		return err
	}
	n = binary.PutUvarint(buf[:], uint64(len(val)))
	if _, err := e.Write(buf[:n]); err != nil {
		return err
	}
	_, err := e.Write(val)
	return err
}

// countingReader reads from a fixed byte slice and tracks how many bytes
// have been consumed, so a decoder can report where the next record starts.
type countingReader struct {
	b   []byte
	pos int
}

func newByteReader(b []byte) *countingReader { return &countingReader{b: b} }

func (r *countingReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}

// tlvDecoder reads the shape tlvEncoder writes. r is the checksummed stream
// (the TLV body); raw is the same underlying bytes without the tee, used
// only to read the trailing checksum itself once key 0 is seen.
type tlvDecoder struct {
	r   io.Reader
	raw *countingReader
}

func (d tlvDecoder) ReadByte() (byte, error) {
	var buf [1]byte
	_, err := io.ReadFull(d.r, buf[:])
	return buf[0], err
}

func (d tlvDecoder) readVal() (uint64, error) {
	return binary.ReadUvarint(d)
}

func (d tlvDecoder) readKey() (int64, error) {
	return binary.ReadVarint(d)
}

func (d tlvDecoder) readBytes(length uint64) ([]byte, error) {
	if length >= 1<<24 {
		return nil, fmt.Errorf("journal: implausible entry length %d", length)
	}
	buf := make([]byte, length)
	_, err := io.ReadFull(d.r, buf)
	return buf, err
}

func (d tlvDecoder) consumed() int { return d.raw.pos }
