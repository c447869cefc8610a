package gorough

import (
	"crypto/ed25519"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// hashLength is the size of Merkle tree nodes: SHA-512 truncated
	// to its first 32 bytes.
	hashLength = 32

	signatureLength = ed25519.SignatureSize
)

// Signing contexts. Certificate and response signatures are domain
// separated so a signature made in one context can never be replayed in
// the other. The NUL is part of the signed prefix.
const (
	contextCert     = "RoughTime v1 delegation signature--\x00"
	contextResponse = "RoughTime v1 response signature\x00"
)

var (
	ErrMalformedResponse = errors.New("verify: malformed response")
	ErrCertSignature     = errors.New("verify: invalid certificate signature")
	ErrResponseSignature = errors.New("verify: invalid response signature")
	ErrMerkleMismatch    = errors.New("verify: merkle path does not reach root")
	ErrDelegationBounds  = errors.New("verify: midpoint outside delegation validity")
)

// truncHash is SHA-512 truncated to hashLength bytes.
func truncHash(parts ...[]byte) (out [hashLength]byte) {
	h := sha512.New()
	for _, p := range parts {
		h.Write(p)
	}
	copy(out[:], h.Sum(nil))
	return
}

// hashLeaf hashes a client nonce into its Merkle leaf. The 0x00 prefix
// keeps leaves distinct from interior nodes.
func hashLeaf(nonce Nonce) [hashLength]byte {
	return truncHash([]byte{0x00}, nonce[:])
}

// hashNode combines two child hashes into their parent, 0x01 prefixed.
func hashNode(left, right []byte) [hashLength]byte {
	return truncHash([]byte{0x01}, left, right)
}

// verifyWithContext checks an Ed25519 signature over context||msg.
func verifyWithContext(pub, context, msg, sig []byte) bool {
	signed := make([]byte, 0, len(context)+len(msg))
	signed = append(signed, context...)
	signed = append(signed, msg...)
	return ed25519.Verify(ed25519.PublicKey(pub), signed, sig)
}

// VerifyResponse authenticates a raw server response against the nonce
// the request carried and the server's long-term root public key, and
// on success returns the raw midpoint timestamp and the error radius in
// microseconds.
//
//  1. Parse the response and the nested CERT, DELE and SREP maps.
//  2. Check the root key's signature over DELE (certificate context).
//  3. Check the delegated key's signature over SREP (response context).
//  4. Recompute the nonce leaf and walk PATH, steered by INDX, up to
//     SREP.ROOT.
//  5. Check SREP.MIDP against the DELE validity window.
//
// Nothing is returned until every check has passed; any failure is
// terminal for the exchange.
func VerifyResponse(response []byte, nonce Nonce, rootKey PublicKey) (midpoint uint64, radius uint32, err error) {
	msg, err := ParseMessage(response)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	certBytes, ok := msg.Value(TagCERT)
	if !ok {
		return 0, 0, fmt.Errorf("%w: missing CERT", ErrMalformedResponse)
	}
	cert, err := ParseMessage(certBytes)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: CERT: %v", ErrMalformedResponse, err)
	}
	deleBytes, ok := cert.Value(TagDELE)
	if !ok {
		return 0, 0, fmt.Errorf("%w: missing DELE", ErrMalformedResponse)
	}
	dele, err := ParseMessage(deleBytes)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: DELE: %v", ErrMalformedResponse, err)
	}
	srepBytes, ok := msg.Value(TagSREP)
	if !ok {
		return 0, 0, fmt.Errorf("%w: missing SREP", ErrMalformedResponse)
	}
	srep, err := ParseMessage(srepBytes)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: SREP: %v", ErrMalformedResponse, err)
	}

	certSig, err := cert.Fixed(TagSIG, signatureLength)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: CERT.SIG", ErrMalformedResponse)
	}
	if !verifyWithContext(rootKey[:], []byte(contextCert), dele.Bytes(), certSig) {
		return 0, 0, ErrCertSignature
	}

	delegatedKey, err := dele.Fixed(TagPUBK, PublicKeyLength)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: DELE.PUBK", ErrMalformedResponse)
	}
	respSig, err := msg.Fixed(TagSIG, signatureLength)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: SIG", ErrMalformedResponse)
	}
	if !verifyWithContext(delegatedKey, []byte(contextResponse), srep.Bytes(), respSig) {
		return 0, 0, ErrResponseSignature
	}

	root, err := srep.Fixed(TagROOT, hashLength)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: SREP.ROOT", ErrMalformedResponse)
	}
	index, err := msg.Uint32(TagINDX)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: INDX", ErrMalformedResponse)
	}
	path, ok := msg.Value(TagPATH)
	if !ok || len(path)%hashLength != 0 {
		return 0, 0, fmt.Errorf("%w: PATH", ErrMalformedResponse)
	}

	// The leaf is recomputed from our own nonce, never taken from the
	// response, so the server cannot prove membership of anything else.
	hash := hashLeaf(nonce)
	for len(path) > 0 {
		sibling := path[:hashLength]
		if index&1 == 0 {
			hash = hashNode(hash[:], sibling)
		} else {
			hash = hashNode(sibling, hash[:])
		}
		index >>= 1
		path = path[hashLength:]
	}
	// Index bits beyond the path depth would claim a position the
	// proof never covers.
	if index != 0 {
		return 0, 0, ErrMerkleMismatch
	}
	if subtle.ConstantTimeCompare(hash[:], root) != 1 {
		return 0, 0, ErrMerkleMismatch
	}

	midpoint, err = srep.Uint64(TagMIDP)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: SREP.MIDP", ErrMalformedResponse)
	}
	minT, err := dele.Uint64(TagMINT)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: DELE.MINT", ErrMalformedResponse)
	}
	maxT, err := dele.Uint64(TagMAXT)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: DELE.MAXT", ErrMalformedResponse)
	}
	if midpoint < minT || midpoint > maxT {
		return 0, 0, ErrDelegationBounds
	}

	radi, err := srep.Fixed(TagRADI, 4)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: SREP.RADI", ErrMalformedResponse)
	}
	radius = binary.LittleEndian.Uint32(radi)
	return midpoint, radius, nil
}
