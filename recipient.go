package qsfs

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"golang.org/x/crypto/curve25519"
)

// MLKEMPublicKeySize and MLKEMSecretKeySize are the packed ML-KEM-1024 key
// sizes every Recipient and Identity carries. Key-file on-disk layout is out
// of scope; callers decide how these bytes are stored and loaded.
const (
	MLKEMPublicKeySize = mlkem1024.PublicKeySize
	MLKEMSecretKeySize = mlkem1024.PrivateKeySize
)

// X25519KeySize is the size of the optional hybrid-mode key material.
const X25519KeySize = 32

// Recipient is a sealing target: an ML-KEM-1024 public key, plus an
// optional X25519 public key that opts the recipient into hybrid mode.
type Recipient struct {
	Label           string
	MLKEMPublicKey  []byte
	X25519PublicKey []byte // nil for non-hybrid
}

// Hybrid reports whether r carries an X25519 public key.
func (r *Recipient) Hybrid() bool { return len(r.X25519PublicKey) > 0 }

// NewRecipient builds a non-hybrid recipient from a packed ML-KEM-1024
// public key.
func NewRecipient(label string, mlkemPublicKey []byte) (*Recipient, error) {
	if len(mlkemPublicKey) != MLKEMPublicKeySize {
		return nil, fmt.Errorf("qsfs: ML-KEM-1024 public key must be %d bytes, got %d", MLKEMPublicKeySize, len(mlkemPublicKey))
	}
	return &Recipient{Label: label, MLKEMPublicKey: mlkemPublicKey}, nil
}

// NewHybridRecipient builds a recipient that additionally binds an X25519
// public key, opting the container into the hybrid combiner.
func NewHybridRecipient(label string, mlkemPublicKey, x25519PublicKey []byte) (*Recipient, error) {
	r, err := NewRecipient(label, mlkemPublicKey)
	if err != nil {
		return nil, err
	}
	if len(x25519PublicKey) != X25519KeySize {
		return nil, fmt.Errorf("qsfs: X25519 public key must be %d bytes, got %d", X25519KeySize, len(x25519PublicKey))
	}
	r.X25519PublicKey = x25519PublicKey
	return r, nil
}

// Identity is the unsealing counterpart of a Recipient: the ML-KEM-1024
// secret key, plus the X25519 secret key if the recipient was hybrid.
type Identity struct {
	Label           string
	MLKEMSecretKey  []byte
	X25519SecretKey *[32]byte // nil for non-hybrid
}

// Hybrid reports whether id carries an X25519 secret key.
func (id *Identity) Hybrid() bool { return id.X25519SecretKey != nil }

// NewIdentity builds a non-hybrid identity from a packed ML-KEM-1024 secret
// key.
func NewIdentity(label string, mlkemSecretKey []byte) (*Identity, error) {
	if len(mlkemSecretKey) != MLKEMSecretKeySize {
		return nil, fmt.Errorf("qsfs: ML-KEM-1024 secret key must be %d bytes, got %d", MLKEMSecretKeySize, len(mlkemSecretKey))
	}
	return &Identity{Label: label, MLKEMSecretKey: mlkemSecretKey}, nil
}

// NewHybridIdentity builds a hybrid identity from a packed ML-KEM-1024
// secret key and a 32-byte X25519 scalar.
func NewHybridIdentity(label string, mlkemSecretKey, x25519SecretKey []byte) (*Identity, error) {
	id, err := NewIdentity(label, mlkemSecretKey)
	if err != nil {
		return nil, err
	}
	if len(x25519SecretKey) != X25519KeySize {
		return nil, fmt.Errorf("qsfs: X25519 secret key must be %d bytes, got %d", X25519KeySize, len(x25519SecretKey))
	}
	var sk [32]byte
	copy(sk[:], x25519SecretKey)
	id.X25519SecretKey = &sk
	return id, nil
}

// GenerateRecipientPair creates a fresh ML-KEM-1024 keypair, and if hybrid
// is true, a fresh X25519 keypair, returning the matching Recipient and
// Identity.
func GenerateRecipientPair(label string, hybrid bool) (*Recipient, *Identity, error) {
	pk, sk, err := mlkem1024.GenerateKeyPair(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	mlkemPub := make([]byte, MLKEMPublicKeySize)
	pk.Pack(mlkemPub)
	mlkemSec := make([]byte, MLKEMSecretKeySize)
	sk.Pack(mlkemSec)

	if !hybrid {
		r, _ := NewRecipient(label, mlkemPub)
		id, _ := NewIdentity(label, mlkemSec)
		return r, id, nil
	}

	var x25519Sec [32]byte
	if _, err := io.ReadFull(rand.Reader, x25519Sec[:]); err != nil {
		return nil, nil, err
	}
	var x25519Pub [32]byte
	curve25519.ScalarBaseMult(&x25519Pub, &x25519Sec)

	r, _ := NewHybridRecipient(label, mlkemPub, x25519Pub[:])
	id, _ := NewHybridIdentity(label, mlkemSec, x25519Sec[:])
	return r, id, nil
}
