// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package superblock

import (
	"encoding/binary"
	"fmt"
	"io"
)

type teeBuffer struct {
	buf *[]byte
	h   io.Writer
}

func (w teeBuffer) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return w.h.Write(p)
}

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
	if length >= 1<<20 {
		return nil, fmt.Errorf("superblock: implausible field length %d", length)
	}
	buf := make([]byte, length)
	_, err := io.ReadFull(d.r, buf)
	return buf, err
}
