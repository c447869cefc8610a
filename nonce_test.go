package gorough

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func TestNewNonce(t *testing.T) {
	a, err := NewNonce()
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewNonce()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two generated nonces are identical")
	}
	if a == (Nonce{}) {
		t.Error("generated nonce is all zero")
	}
}

func TestNonceFromBase64Length(t *testing.T) {
	gold := []struct {
		n  int
		ok bool
	}{
		{31, false},
		{32, true},
		{33, false},
		{0, false},
	}
	for _, g := range gold {
		raw := bytes.Repeat([]byte{0x42}, g.n)
		_, err := NonceFromBase64(base64.StdEncoding.EncodeToString(raw))
		if g.ok && err != nil {
			t.Errorf("len %d: %v", g.n, err)
		}
		if !g.ok && !errors.Is(err, ErrNonceLength) {
			t.Errorf("len %d: got %v want ErrNonceLength", g.n, err)
		}
	}

	if _, err := NonceFromBase64("***not base64***"); err == nil {
		t.Error("bad base64 accepted")
	}
}

func TestPublicKeyFromBase64Length(t *testing.T) {
	if _, err := PublicKeyFromBase64(base64.StdEncoding.EncodeToString(make([]byte, 33))); !errors.Is(err, ErrPublicKeyLength) {
		t.Errorf("got %v want ErrPublicKeyLength", err)
	}
	k, err := PublicKeyFromBase64(base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32)))
	if err != nil {
		t.Fatal(err)
	}
	if k[0] != 7 || k[31] != 7 {
		t.Error(k)
	}
}
