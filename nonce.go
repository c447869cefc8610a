package gorough

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	// NonceLength is the exact size of a client nonce.
	NonceLength = 32
	// PublicKeyLength is the size of an Ed25519 root public key.
	PublicKeyLength = 32
)

type (
	Nonce     [NonceLength]byte
	PublicKey [PublicKeyLength]byte
)

var (
	ErrRandomUnavailable = errors.New("nonce: system random source unavailable")
	ErrNonceLength       = fmt.Errorf("nonce: must be exactly %d bytes", NonceLength)
	ErrPublicKeyLength   = fmt.Errorf("key: must be exactly %d bytes", PublicKeyLength)
)

// NewNonce draws a fresh nonce from the OS CSPRNG. A failing random
// source is an error, never a fallback to anything weaker.
func NewNonce() (n Nonce, err error) {
	if _, err = rand.Read(n[:]); err != nil {
		err = fmt.Errorf("%w: %v", ErrRandomUnavailable, err)
	}
	return
}

// NonceFromBase64 decodes a caller supplied nonce, e.g. from a CLI
// flag. Any decoded length other than NonceLength is rejected.
func NonceFromBase64(s string) (n Nonce, err error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return n, fmt.Errorf("nonce: bad base64: %v", err)
	}
	if len(b) != NonceLength {
		return n, ErrNonceLength
	}
	copy(n[:], b)
	return n, nil
}

// PublicKeyFromBase64 decodes a base64 root public key, enforcing the
// exact Ed25519 key size.
func PublicKeyFromBase64(s string) (k PublicKey, err error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("key: bad base64: %v", err)
	}
	if len(b) != PublicKeyLength {
		return k, ErrPublicKeyLength
	}
	copy(k[:], b)
	return k, nil
}
