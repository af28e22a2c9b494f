// Package kdf implements the fixed HKDF-SHA3-384 label set QSFS uses to
// derive every key and the per-file nonce prefix from a content encryption
// key or a recipient shared secret.
package kdf

import (
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"go.qsfs.dev/qsfs/internal/secret"
)

// V2ConstantSalt is the literal salt used for every derivation in a v2.0
// container, where no per-file kdf_salt field exists.
var V2ConstantSalt = []byte("qsfs/kdf/v2")

// Info labels, one per derived output.
var (
	LabelKEK         = []byte("qsfs/kek/v2")
	LabelK1          = []byte("qsfs/v2/stream/k1")
	LabelK2          = []byte("qsfs/v2/stream/k2")
	LabelFileID      = []byte("qsfs/v2/nonce-prefix")
)

// Salt returns the HKDF salt to use for a container, given its per-file
// kdf_salt (nil for v2.0). The choice is a pure function of whether the
// field is present; implementations must never try to infer it from data.
func Salt(kdfSalt []byte) []byte {
	if kdfSalt == nil {
		return V2ConstantSalt
	}
	return kdfSalt
}

// Derive runs HKDF-Extract-then-Expand with SHA3-384 over ikm, salt and
// info, writing outputLen bytes into a freshly allocated secret buffer.
func Derive(salt, ikm, info []byte, outputLen int) (*secret.Bytes, error) {
	r := hkdf.New(sha3.New384, ikm, salt, info)
	out := secret.New(outputLen)
	if _, err := io.ReadFull(r, out.Bytes()); err != nil {
		out.Zero()
		return nil, err
	}
	return out, nil
}

// KEK derives the 32-byte key-encryption key for one recipient.
func KEK(kdfSalt []byte, sharedSecret *secret.Bytes) (*secret.Bytes, error) {
	return Derive(Salt(kdfSalt), sharedSecret.Bytes(), LabelKEK, 32)
}

// StreamKeys derives K1 (AEAD primary), K2 (reserved/cascade) and the 8-byte
// file_id from the content encryption key.
func StreamKeys(kdfSalt []byte, cek *secret.Bytes) (k1, k2 *secret.Bytes, fileID []byte, err error) {
	salt := Salt(kdfSalt)
	k1, err = Derive(salt, cek.Bytes(), LabelK1, 32)
	if err != nil {
		return nil, nil, nil, err
	}
	k2, err = Derive(salt, cek.Bytes(), LabelK2, 32)
	if err != nil {
		k1.Zero()
		return nil, nil, nil, err
	}
	id, err := Derive(salt, cek.Bytes(), LabelFileID, 8)
	if err != nil {
		k1.Zero()
		k2.Zero()
		return nil, nil, nil, err
	}
	fileID = id.Bytes()
	return k1, k2, fileID, nil
}
