// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// EncryptType selects the cipher an extent's compressed bytes are sealed
// under before being written to a device.
type EncryptType uint8

const (
	EncryptNone EncryptType = iota
	EncryptChaCha20Poly1305
)

var ErrInvalidKeySize = errors.New("codec: invalid key size")

// Key holds the raw symmetric key material for EncryptChaCha20Poly1305.
// Zero value is only valid for EncryptNone.
type Key [chacha20poly1305.KeySize]byte

// Encrypt seals src under typ using key, returning a nonce-prefixed
// ciphertext. additional is authenticated but not encrypted (the extent's
// Position, typically).
func Encrypt(typ EncryptType, key Key, additional, src []byte) ([]byte, error) {
	switch typ {
	case EncryptNone:
		return append([]byte(nil), src...), nil
	case EncryptChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key[:])
		if err != nil {
			return nil, fmt.Errorf("codec: new aead: %w", err)
		}
		nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(src)+aead.Overhead())
		if _, err := rand.Read(nonce); err != nil {
			return nil, fmt.Errorf("codec: nonce: %w", err)
		}
		return aead.Seal(nonce, nonce, src, additional), nil
	default:
		return nil, fmt.Errorf("codec: unknown encrypt type %d", typ)
	}
}

// Decrypt opens a ciphertext produced by Encrypt under the same typ and key.
func Decrypt(typ EncryptType, key Key, additional, src []byte) ([]byte, error) {
	switch typ {
	case EncryptNone:
		return append([]byte(nil), src...), nil
	case EncryptChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key[:])
		if err != nil {
			return nil, fmt.Errorf("codec: new aead: %w", err)
		}
		if len(src) < aead.NonceSize() {
			return nil, fmt.Errorf("codec: ciphertext shorter than nonce")
		}
		nonce, ct := src[:aead.NonceSize()], src[aead.NonceSize():]
		return aead.Open(nil, nonce, ct, additional)
	default:
		return nil, fmt.Errorf("codec: unknown encrypt type %d", typ)
	}
}
