// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// CompressType selects the compression algorithm applied to an extent's
// on-disk bytes before the checksum is taken.
type CompressType uint8

const (
	CompressNone CompressType = iota
	CompressZstd
)

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder

	decoderOnce sync.Once
	decoder     *zstd.Decoder
)

func zstdEncoder() *zstd.Encoder {
	encoderOnce.Do(func() {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(err)
		}
		encoder = enc
	})
	return encoder
}

func zstdDecoder() *zstd.Decoder {
	decoderOnce.Do(func() {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			panic(err)
		}
		decoder = dec
	})
	return decoder
}

// Compress encodes src under typ, appending to dst and returning the result.
func Compress(typ CompressType, dst, src []byte) []byte {
	switch typ {
	case CompressNone:
		return append(dst, src...)
	case CompressZstd:
		return zstdEncoder().EncodeAll(src, dst)
	default:
		return append(dst, src...)
	}
}

// Decompress decodes src (encoded with Compress under the same typ),
// appending to dst and returning the result.
func Decompress(typ CompressType, dst, src []byte) ([]byte, error) {
	switch typ {
	case CompressNone:
		return append(dst, src...), nil
	case CompressZstd:
		return zstdDecoder().DecodeAll(src, dst)
	default:
		return append(dst, src...), nil
	}
}
