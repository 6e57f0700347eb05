// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package artifact

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	sealingSalt = "creditline-artifact-store"
	sealingInfo = "artifact-sealing-v1"

	// aesKeySize is the size of the AES key in bytes (256 bits).
	aesKeySize = 32
)

// ErrUnsealFailed is returned when stored bytes fail authentication.
var ErrUnsealFailed = errors.New("artifact: unseal failed")

// sealer encrypts artifact bytes with AES-256-GCM. The artifact ID is bound
// as additional data so a value cannot be replayed under another key.
type sealer struct {
	aead cipher.AEAD
}

// newSealer derives the key from secret with HKDF-SHA256. An empty secret
// is replaced by 32 random bytes.
func newSealer(secret string) (*sealer, error) {
	ikm := []byte(secret)
	if len(ikm) == 0 {
		ikm = make([]byte, aesKeySize)
		if _, err := io.ReadFull(rand.Reader, ikm); err != nil {
			return nil, fmt.Errorf("generate sealing secret: %w", err)
		}
	}

	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, []byte(sealingSalt), []byte(sealingInfo)), key); err != nil {
		return nil, fmt.Errorf("derive sealing key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &sealer{aead: gcm}, nil
}

// seal returns nonce || ciphertext || tag.
func (s *sealer) seal(id string, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, []byte(id)), nil
}

func (s *sealer) open(id string, sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n+s.aead.Overhead() {
		return nil, ErrUnsealFailed
	}
	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], []byte(id))
	if err != nil {
		return nil, ErrUnsealFailed
	}
	return plaintext, nil
}
