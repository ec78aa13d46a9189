// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package bkey

import "errors"

var ErrInvalidKey = errors.New("invalid bkey")
