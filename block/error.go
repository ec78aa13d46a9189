// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package block

import "errors"

var ErrInvalidChecksum = errors.New("invalid checksum")
