// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package heap

import (
	"github.com/coldtree/corefs"
)

var (
	ErrOpened           = corefs.ErrOpened
	ErrClosed           = corefs.ErrClosed
	ErrFileEmpty        = corefs.ErrFileEmpty
	ErrFileTruncated    = corefs.ErrFileTruncated
	ErrUnknownMagicCode = corefs.ErrUnknownMagicCode
	ErrUnsupported      = corefs.ErrUnsupported
	ErrInvalidBlockSize = corefs.ErrInvalidBlockSize
	ErrInvalidMeta      = corefs.ErrInvalidMeta
	ErrInvalidFreelist  = corefs.ErrInvalidFreelist
	ErrReadOnly         = corefs.ErrReadOnly
	ErrOutOfRange       = corefs.ErrOutOfRange
	ErrOutOfSpace       = corefs.ErrOutOfSpace
)
