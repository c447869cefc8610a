package gorough

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"testing"
)

// testServer holds a root/delegated keypair chain and fabricates
// responses the way a batching Roughtime server would.
type testServer struct {
	rootKey  PublicKey
	rootPriv ed25519.PrivateKey
	delePub  ed25519.PublicKey
	delePriv ed25519.PrivateKey
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	rootPub, rootPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	delePub, delePriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	s := &testServer{
		rootPriv: rootPriv,
		delePub:  delePub,
		delePriv: delePriv,
	}
	copy(s.rootKey[:], rootPub)
	return s
}

func signContext(priv ed25519.PrivateKey, context string, msg []byte) []byte {
	signed := append([]byte(context), msg...)
	return ed25519.Sign(priv, signed)
}

func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func mustBuild(t *testing.T, tags []Tag, vals [][]byte) []byte {
	t.Helper()
	b := NewMessageBuilder()
	for i := range tags {
		if err := b.Add(tags[i], vals[i]); err != nil {
			t.Fatal(err)
		}
	}
	return b.Finish()
}

func (s *testServer) encodeDELE(t *testing.T, minT, maxT uint64) []byte {
	return mustBuild(t,
		[]Tag{TagPUBK, TagMINT, TagMAXT},
		[][]byte{s.delePub, encodeUint64(minT), encodeUint64(maxT)})
}

func (s *testServer) encodeCERT(t *testing.T, dele []byte, context string) []byte {
	sig := signContext(s.rootPriv, context, dele)
	return mustBuild(t, []Tag{TagSIG, TagDELE}, [][]byte{sig, dele})
}

// respond builds a full response for the batch of nonces, answering the
// one at index. The delegation window brackets the midpoint unless
// minT/maxT are set.
type responseOpts struct {
	midpoint   uint64
	radius     uint32
	minT, maxT uint64
	certCtx    string
	respCtx    string
}

func (s *testServer) respond(t *testing.T, nonces []Nonce, index int, opts responseOpts) []byte {
	t.Helper()
	if opts.certCtx == "" {
		opts.certCtx = contextCert
	}
	if opts.respCtx == "" {
		opts.respCtx = contextResponse
	}
	if opts.minT == 0 {
		opts.minT = opts.midpoint - 1000000
	}
	if opts.maxT == 0 {
		opts.maxT = opts.midpoint + 1000000
	}

	level := make([][hashLength]byte, len(nonces))
	for i, n := range nonces {
		level[i] = hashLeaf(n)
	}
	idx := index
	var path []byte
	for len(level) > 1 {
		sib := level[idx^1]
		path = append(path, sib[:]...)
		next := make([][hashLength]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, hashNode(level[i][:], level[i+1][:]))
		}
		level = next
		idx >>= 1
	}
	root := level[0]

	srep := mustBuild(t,
		[]Tag{TagRADI, TagMIDP, TagROOT},
		[][]byte{encodeUint32(opts.radius), encodeUint64(opts.midpoint), root[:]})
	cert := s.encodeCERT(t, s.encodeDELE(t, opts.minT, opts.maxT), opts.certCtx)
	sig := signContext(s.delePriv, opts.respCtx, srep)

	return mustBuild(t,
		[]Tag{TagSIG, TagPATH, TagSREP, TagCERT, TagINDX},
		[][]byte{sig, path, srep, cert, encodeUint32(uint32(index))})
}

const testMidpoint = uint64(65312145749359830)

func TestVerifySingleLeaf(t *testing.T) {
	s := newTestServer(t)
	nonce := Nonce{0xAA, 1, 2, 3}

	resp := s.respond(t, []Nonce{nonce}, 0, responseOpts{midpoint: testMidpoint, radius: 10000})

	mid, radius, err := VerifyResponse(resp, nonce, s.rootKey)
	if err != nil {
		t.Fatal(err)
	}
	if mid != testMidpoint || radius != 10000 {
		t.Error(mid, radius)
	}

	other := nonce
	other[0] ^= 1
	mid, radius, err = VerifyResponse(resp, other, s.rootKey)
	if !errors.Is(err, ErrMerkleMismatch) {
		t.Errorf("got %v want ErrMerkleMismatch", err)
	}
	if mid != 0 || radius != 0 {
		t.Error("timestamp leaked on verification failure:", mid, radius)
	}
}

func TestVerifyBatched(t *testing.T) {
	s := newTestServer(t)
	nonces := []Nonce{{1}, {2}, {3}, {4}}

	for i, n := range nonces {
		resp := s.respond(t, nonces, i, responseOpts{midpoint: testMidpoint, radius: 3})
		mid, _, err := VerifyResponse(resp, n, s.rootKey)
		if err != nil {
			t.Errorf("leaf %d: %v", i, err)
		}
		if mid != testMidpoint {
			t.Errorf("leaf %d: midpoint %d", i, mid)
		}
		// Neighbouring nonce must not verify at this index.
		if _, _, err := VerifyResponse(resp, nonces[(i+1)%len(nonces)], s.rootKey); !errors.Is(err, ErrMerkleMismatch) {
			t.Errorf("leaf %d: wrong nonce gave %v", i, err)
		}
	}
}

// Flipping any single bit of a valid response must make verification
// fail: every byte is either covered by a signature, part of the
// Merkle proof, or load-bearing framing.
func TestVerifyBitFlips(t *testing.T) {
	s := newTestServer(t)
	nonces := []Nonce{{9}, {8}}
	resp := s.respond(t, nonces, 1, responseOpts{midpoint: testMidpoint, radius: 1})

	if _, _, err := VerifyResponse(resp, nonces[1], s.rootKey); err != nil {
		t.Fatal(err)
	}

	mut := make([]byte, len(resp))
	for i := range resp {
		for bit := uint(0); bit < 8; bit++ {
			copy(mut, resp)
			mut[i] ^= 1 << bit
			if mid, _, err := VerifyResponse(mut, nonces[1], s.rootKey); err == nil {
				t.Fatalf("flip byte %d bit %d accepted (midpoint %d)", i, bit, mid)
			}
		}
	}
}

func TestVerifyContextSeparation(t *testing.T) {
	s := newTestServer(t)
	nonce := Nonce{5}

	// Certificate signed in the response context.
	resp := s.respond(t, []Nonce{nonce}, 0, responseOpts{
		midpoint: testMidpoint, radius: 1, certCtx: contextResponse,
	})
	if _, _, err := VerifyResponse(resp, nonce, s.rootKey); !errors.Is(err, ErrCertSignature) {
		t.Errorf("got %v want ErrCertSignature", err)
	}

	// Response signed in the certificate context.
	resp = s.respond(t, []Nonce{nonce}, 0, responseOpts{
		midpoint: testMidpoint, radius: 1, respCtx: contextCert,
	})
	if _, _, err := VerifyResponse(resp, nonce, s.rootKey); !errors.Is(err, ErrResponseSignature) {
		t.Errorf("got %v want ErrResponseSignature", err)
	}
}

func TestVerifyWrongRootKey(t *testing.T) {
	s := newTestServer(t)
	nonce := Nonce{6}
	resp := s.respond(t, []Nonce{nonce}, 0, responseOpts{midpoint: testMidpoint, radius: 1})

	bad := s.rootKey
	bad[7] ^= 0x80
	if _, _, err := VerifyResponse(resp, nonce, bad); !errors.Is(err, ErrCertSignature) {
		t.Errorf("got %v want ErrCertSignature", err)
	}
}

func TestVerifyDelegationBounds(t *testing.T) {
	s := newTestServer(t)
	nonce := Nonce{7}

	gold := []struct {
		minT, maxT uint64
	}{
		{testMidpoint + 1, testMidpoint + 2}, // midpoint before window
		{testMidpoint - 2, testMidpoint - 1}, // midpoint after window
	}
	for _, g := range gold {
		resp := s.respond(t, []Nonce{nonce}, 0, responseOpts{
			midpoint: testMidpoint, radius: 1, minT: g.minT, maxT: g.maxT,
		})
		if _, _, err := VerifyResponse(resp, nonce, s.rootKey); !errors.Is(err, ErrDelegationBounds) {
			t.Errorf("window [%d,%d]: got %v want ErrDelegationBounds", g.minT, g.maxT, err)
		}
	}
}

func TestVerifyMalformed(t *testing.T) {
	s := newTestServer(t)
	nonce := Nonce{3}

	for _, buf := range [][]byte{
		nil,
		{1, 2, 3},
		mustBuild(t, []Tag{TagSREP}, [][]byte{{0, 0, 0, 0}}), // no CERT
	} {
		if _, _, err := VerifyResponse(buf, nonce, s.rootKey); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("%x: got %v want ErrMalformedResponse", buf, err)
		}
	}

	// PATH not a whole number of hashes.
	resp := s.respond(t, []Nonce{nonce, {4}}, 0, responseOpts{midpoint: testMidpoint, radius: 1})
	m, err := ParseMessage(resp)
	if err != nil {
		t.Fatal(err)
	}
	var tags []Tag
	var vals [][]byte
	for _, tag := range []Tag{TagSIG, TagPATH, TagSREP, TagCERT, TagINDX} {
		v, _ := m.Value(tag)
		if tag == TagPATH {
			v = v[:hashLength-4]
		}
		tags = append(tags, tag)
		vals = append(vals, v)
	}
	if _, _, err := VerifyResponse(mustBuild(t, tags, vals), nonce, s.rootKey); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("ragged PATH: got %v want ErrMalformedResponse", err)
	}
}
