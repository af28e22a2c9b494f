// Package sign implements ML-DSA-87 header signing and verification, and
// the signer_id derivation used to look a signer up in a trust store.
package sign

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
)

// PublicKeySize, PrivateKeySize and SignatureSize are the packed ML-DSA-87
// encodings this package reads and writes.
const (
	PublicKeySize  = mldsa87.PublicKeySize
	PrivateKeySize = mldsa87.PrivateKeySize
	SignatureSize  = mldsa87.SignatureSize
)

// GenerateKey creates a fresh ML-DSA-87 keypair, packed to raw bytes. Key
// file layout on disk is out of scope; callers decide how to persist these.
func GenerateKey() (pub, priv []byte, err error) {
	p, s, err := mldsa87.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	pub = make([]byte, PublicKeySize)
	p.Pack(pub)
	priv = make([]byte, PrivateKeySize)
	s.Pack(priv)
	return pub, priv, nil
}

// SignerID is SHA-256 of the signer's packed ML-DSA-87 public key,
// used as the lookup key into a trust store.
func SignerID(pub []byte) [32]byte {
	return sha256.Sum256(pub)
}

// Sign signs msg (the header's canonical placeholder form) under priv.
func Sign(priv []byte, msg []byte) ([]byte, error) {
	sk := new(mldsa87.PrivateKey)
	if err := sk.Unpack(priv); err != nil {
		return nil, fmt.Errorf("sign: invalid ML-DSA-87 private key: %w", err)
	}
	sig := make([]byte, SignatureSize)
	mldsa87.SignTo(sk, msg, nil, false, sig)
	return sig, nil
}

// Verify reports whether sig is a valid ML-DSA-87 signature over msg under
// pub. It never returns an error: a malformed key or signature is simply a
// verification failure.
func Verify(pub []byte, msg, sig []byte) bool {
	pk := new(mldsa87.PublicKey)
	if err := pk.Unpack(pub); err != nil {
		return false
	}
	return mldsa87.Verify(pk, msg, nil, sig)
}
