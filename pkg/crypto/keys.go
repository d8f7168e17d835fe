package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	KeySize = 32

	masterInfo  = "codedrop/v1/master"
	channelInfo = "transit-channel"
	pskInfo     = "transit-psk"
	verifyInfo  = "verifier"
)

var ErrEmptyCode = errors.New("pairing code is empty")

// KeySchedule derives every secret of one session from the pairing code.
// Both sides holding the same code and app id derive identical keys.
type KeySchedule struct {
	master [KeySize]byte
}

// NewKeySchedule runs HKDF-SHA256 over the code with the app id as salt.
func NewKeySchedule(appID, code string) (*KeySchedule, error) {
	if code == "" {
		return nil, ErrEmptyCode
	}
	ks := &KeySchedule{}
	r := hkdf.New(sha256.New, []byte(code), []byte(appID), []byte(masterInfo))
	if _, err := io.ReadFull(r, ks.master[:]); err != nil {
		return nil, fmt.Errorf("failed to derive master key: %w", err)
	}
	return ks, nil
}

// Derive expands the master key into size bytes bound to purpose.
func (k *KeySchedule) Derive(purpose string, size int) []byte {
	out := make([]byte, size)
	r := hkdf.Expand(sha256.New, k.master[:], []byte(purpose))
	_, _ = io.ReadFull(r, out)
	return out
}

// PhaseKey is the secretbox key for messages of phase written by side.
func (k *KeySchedule) PhaseKey(side, phase string) *[KeySize]byte {
	var key [KeySize]byte
	copy(key[:], k.Derive("phase/"+side+"/"+phase, KeySize))
	return &key
}

// TransitChannel is the token both sides present to the transit relay.
func (k *KeySchedule) TransitChannel() string {
	return hex.EncodeToString(k.Derive(channelInfo, 16))
}

// TransitPSK is the pre-shared key mixed into the transit handshake.
func (k *KeySchedule) TransitPSK() []byte {
	return k.Derive(pskInfo, KeySize)
}

// Verifier is a short string the two users can compare out of band.
func (k *KeySchedule) Verifier() string {
	return hex.EncodeToString(k.Derive(verifyInfo, 8))
}

// SecureCompareBytes compares two byte slices in constant time.
func SecureCompareBytes(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
