package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/flynn/noise"
)

// MaxRecordSize is the largest plaintext a single transit record may carry.
const MaxRecordSize = noise.MaxMsgLen - 16

var ErrRecordTooLarge = errors.New("record exceeds maximum size")

// Role selects which side of the handshake this process plays.
type Role int

const (
	Initiator Role = iota
	Responder
)

// MessageConn is a message oriented transport, such as a websocket.
type MessageConn interface {
	WriteMessage(msg []byte) error
	ReadMessage() ([]byte, error)
}

// SecureConn carries encrypted records after a completed handshake.
type SecureConn struct {
	conn MessageConn
	send *noise.CipherState
	recv *noise.CipherState
}

// Handshake runs Noise NNpsk0 over conn. Both sides must hold the same psk;
// otherwise the responder fails to read the first message.
func Handshake(conn MessageConn, role Role, psk []byte) (*SecureConn, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:           noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256),
		Random:                rand.Reader,
		Pattern:               noise.HandshakeNN,
		Initiator:             role == Initiator,
		PresharedKey:          psk,
		PresharedKeyPlacement: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create handshake state: %w", err)
	}

	// -> psk, e
	// <- e, ee
	// cs1 always encrypts initiator to responder traffic.
	if role == Initiator {
		msg, _, _, err := hs.WriteMessage(nil, nil)
		if err != nil {
			return nil, fmt.Errorf("initiator write failed: %w", err)
		}
		if err := conn.WriteMessage(msg); err != nil {
			return nil, err
		}
		reply, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		_, cs1, cs2, err := hs.ReadMessage(nil, reply)
		if err != nil {
			return nil, fmt.Errorf("initiator read failed: %w", err)
		}
		return &SecureConn{conn: conn, send: cs1, recv: cs2}, nil
	}

	first, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if _, _, _, err := hs.ReadMessage(nil, first); err != nil {
		return nil, fmt.Errorf("responder read failed: %w", err)
	}
	msg, cs1, cs2, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("responder write failed: %w", err)
	}
	if err := conn.WriteMessage(msg); err != nil {
		return nil, err
	}
	return &SecureConn{conn: conn, send: cs2, recv: cs1}, nil
}

// WriteRecord encrypts and sends one record.
func (c *SecureConn) WriteRecord(plaintext []byte) error {
	if len(plaintext) > MaxRecordSize {
		return ErrRecordTooLarge
	}
	ct, err := c.send.Encrypt(nil, nil, plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt record: %w", err)
	}
	return c.conn.WriteMessage(ct)
}

// ReadRecord receives and decrypts one record.
func (c *SecureConn) ReadRecord() ([]byte, error) {
	ct, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	pt, err := c.recv.Decrypt(nil, nil, ct)
	if err != nil {
		return nil, ErrDecrypt
	}
	return pt, nil
}
