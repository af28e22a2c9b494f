// Package keyschedule implements the per-recipient key agreement: ML-KEM-1024
// encapsulation/decapsulation, the optional X25519 hybrid combiner, and the
// AES-256-GCM wrap/unwrap of the content encryption key under the derived
// key-encryption key.
package keyschedule

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/curve25519"

	"go.qsfs.dev/qsfs/internal/header"
	"go.qsfs.dev/qsfs/internal/kdf"
	"go.qsfs.dev/qsfs/internal/secret"
)

// ErrNoMatch is returned by Unwrap when the recipient entry does not belong
// to the supplied secret keys. AEAD failures are folded into this error
// rather than propagated, so that probing recipient entries cannot be used
// as a decryption oracle.
var ErrNoMatch = errors.New("keyschedule: recipient entry does not match supplied keys")

// EphemeralKeyPair is the single X25519 keypair generated once per seal
// call and reused across every hybrid recipient in the container. Callers
// must zero Secret once every recipient has been wrapped.
type EphemeralKeyPair struct {
	Public [32]byte
	Secret [32]byte
}

// GenerateEphemeralKeyPair creates a fresh X25519 keypair.
func GenerateEphemeralKeyPair() (*EphemeralKeyPair, error) {
	var kp EphemeralKeyPair
	if _, err := io.ReadFull(rand.Reader, kp.Secret[:]); err != nil {
		return nil, err
	}
	curve25519.ScalarBaseMult(&kp.Public, &kp.Secret)
	return &kp, nil
}

// Zero clears the ephemeral secret scalar.
func (kp *EphemeralKeyPair) Zero() {
	if kp == nil {
		return
	}
	for i := range kp.Secret {
		kp.Secret[i] = 0
	}
}

// Fingerprint returns the first 8 bytes of BLAKE3(x25519Pub), used to pick
// a recipient's entry during hybrid unwrap.
func Fingerprint(x25519Pub []byte) [8]byte {
	sum := blake3.Sum256(x25519Pub)
	var fp [8]byte
	copy(fp[:], sum[:8])
	return fp
}

// Wrap performs the per-recipient seal steps: encapsulate to mlkemPub,
// optionally Diffie-Hellman with the recipient's static X25519 key using
// the container's shared ephemeral secret, derive the KEK, and AEAD-wrap
// cek under it.
func Wrap(label string, mlkemPub, x25519Pub []byte, eph *EphemeralKeyPair, kdfSalt []byte, cek *secret.Bytes) (*header.RecipientEntry, error) {
	pk := new(mlkem1024.PublicKey)
	if err := pk.Unpack(mlkemPub); err != nil {
		return nil, fmt.Errorf("keyschedule: invalid ML-KEM-1024 public key: %w", err)
	}

	mlkemSS := secret.New(mlkem1024.SharedKeySize)
	defer mlkemSS.Zero()
	ct := make([]byte, mlkem1024.CiphertextSize)
	seed := make([]byte, mlkem1024.EncapsulationSeedSize)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, err
	}
	pk.EncapsulateTo(ct, mlkemSS.Bytes(), seed)

	entry := &header.RecipientEntry{Label: label}
	copy(entry.MLKEMCiphertext[:], ct)

	combined := mlkemSS
	if x25519Pub != nil {
		if len(x25519Pub) != 32 {
			return nil, errors.New("keyschedule: invalid X25519 public key")
		}
		if eph == nil {
			return nil, errors.New("keyschedule: hybrid recipient requires an ephemeral keypair")
		}
		var theirPub, dh [32]byte
		copy(theirPub[:], x25519Pub)
		curve25519.ScalarMult(&dh, &eph.Secret, &theirPub)
		if isAllZero(dh[:]) {
			return nil, errors.New("keyschedule: non-contributory X25519 shared secret")
		}
		defer zero(dh[:])

		combined = secret.New(mlkem1024.SharedKeySize + 32)
		defer combined.Zero()
		copy(combined.Bytes(), mlkemSS.Bytes())
		copy(combined.Bytes()[mlkem1024.SharedKeySize:], dh[:])

		entry.X25519PublicKey = append([]byte(nil), x25519Pub...)
		entry.X25519Fingerprint = Fingerprint(x25519Pub)
	}

	kek, err := kdf.KEK(kdfSalt, combined)
	if err != nil {
		return nil, fmt.Errorf("keyschedule: KEK derivation: %w", err)
	}
	defer kek.Zero()

	aead, err := wrapAEAD(kek.Bytes())
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(rand.Reader, entry.WrapNonce[:]); err != nil {
		return nil, err
	}
	wrapped := aead.Seal(nil, entry.WrapNonce[:], cek.Bytes(), nil)
	if len(wrapped) != header.WrappedCEKSize {
		return nil, fmt.Errorf("keyschedule: internal error: wrapped CEK is %d bytes", len(wrapped))
	}
	copy(entry.WrappedCEK[:], wrapped)

	return entry, nil
}

// Unwrap inverts Wrap for one recipient entry. It returns ErrNoMatch,
// rather than a distinguishing error, for every failure mode: a mismatched
// ML-KEM key produces a pseudorandom shared secret via implicit rejection,
// so the only observable difference between "wrong key" and "right key,
// corrupt entry" is the final AEAD tag check, which this function also
// folds into ErrNoMatch.
func Unwrap(entry *header.RecipientEntry, mlkemSK []byte, x25519SK *[32]byte, ephPub [32]byte, kdfSalt []byte) (*secret.Bytes, error) {
	sk := new(mlkem1024.PrivateKey)
	if err := sk.Unpack(mlkemSK); err != nil {
		return nil, ErrNoMatch
	}

	mlkemSS := secret.New(mlkem1024.SharedKeySize)
	defer mlkemSS.Zero()
	sk.DecapsulateTo(mlkemSS.Bytes(), entry.MLKEMCiphertext[:])

	combined := mlkemSS
	if entry.Hybrid() {
		if x25519SK == nil {
			return nil, ErrNoMatch
		}
		var ourPub [32]byte
		curve25519.ScalarBaseMult(&ourPub, x25519SK)
		if Fingerprint(ourPub[:]) != entry.X25519Fingerprint {
			return nil, ErrNoMatch
		}
		var dh [32]byte
		curve25519.ScalarMult(&dh, x25519SK, &ephPub)
		if isAllZero(dh[:]) {
			return nil, ErrNoMatch
		}
		defer zero(dh[:])

		combined = secret.New(mlkem1024.SharedKeySize + 32)
		defer combined.Zero()
		copy(combined.Bytes(), mlkemSS.Bytes())
		copy(combined.Bytes()[mlkem1024.SharedKeySize:], dh[:])
	} else if x25519SK != nil {
		return nil, ErrNoMatch
	}

	kek, err := kdf.KEK(kdfSalt, combined)
	if err != nil {
		return nil, ErrNoMatch
	}
	defer kek.Zero()

	aead, err := wrapAEAD(kek.Bytes())
	if err != nil {
		return nil, ErrNoMatch
	}
	cek, err := aead.Open(nil, entry.WrapNonce[:], entry.WrappedCEK[:], nil)
	if err != nil {
		return nil, ErrNoMatch
	}
	return secret.NewFromBytes(cek), nil
}

func wrapAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func isAllZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
