package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// MaxSealedSize bounds a single mailbox body.
const MaxSealedSize = 1024 * 1024

var (
	ErrDecrypt        = errors.New("message authentication failed")
	ErrMessageTooLong = errors.New("message too large")
)

// Seal encrypts plaintext with secretbox under key. The random nonce is
// prepended to the result.
func Seal(key *[KeySize]byte, plaintext []byte) ([]byte, error) {
	if len(plaintext) > MaxSealedSize {
		return nil, ErrMessageTooLong
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, key), nil
}

// Open reverses Seal. Any tampering or a wrong key yields ErrDecrypt.
func Open(key *[KeySize]byte, sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, key)
	if !ok {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
