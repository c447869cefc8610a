package gorough

import (
	"encoding/binary"
	"fmt"
)

const (
	// MinRequestSize is the smallest request a server will accept.
	// Requests are padded up to it so the protocol cannot be used as a
	// DDoS reflection amplifier.
	MinRequestSize = 1024

	requestVersion = 1
)

// BuildRequest encodes a request message carrying the nonce, padded to
// exactly MinRequestSize bytes. Deterministic given the nonce.
func BuildRequest(nonce Nonce) ([]byte, error) {
	padLen := MinRequestSize - headerLen(3) - 4 - NonceLength

	ver := make([]byte, 4)
	binary.LittleEndian.PutUint32(ver, requestVersion)

	b := NewMessageBuilder()
	if err := b.Add(TagPAD, make([]byte, padLen)); err != nil {
		return nil, err
	}
	if err := b.Add(TagVER, ver); err != nil {
		return nil, err
	}
	if err := b.Add(TagNONC, nonce[:]); err != nil {
		return nil, err
	}
	req := b.Finish()
	if len(req) != MinRequestSize {
		return nil, fmt.Errorf("request: encoded %d bytes, want %d", len(req), MinRequestSize)
	}
	return req, nil
}
