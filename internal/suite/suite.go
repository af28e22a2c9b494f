// Package suite maps a QSFS suite id to a concrete cipher.AEAD
// implementation. The suite id is carried in the header and bound into
// every chunk's AAD via internal/pae, so once a container is sealed its
// suite can never be silently reinterpreted.
package suite

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	siv "github.com/secure-io/siv-go"
	"golang.org/x/crypto/chacha20poly1305"
)

// ID identifies an AEAD suite by its on-wire ASCII tag.
type ID string

const (
	AES256GCM        ID = "aes256-gcm"
	AES256GCMSIV     ID = "aes256-gcm-siv"
	ChaCha20Poly1305 ID = "chacha20-poly1305"
)

// KeySize is 32 for every suite QSFS supports; all are 256-bit ciphers.
const KeySize = 32

// NonceSize is 12 for every suite QSFS supports.
const NonceSize = 12

// TagSize is 16 for every suite QSFS supports.
const TagSize = 16

// Valid reports whether id is one of the suites this build recognizes.
// ChaCha20Poly1305 is a v2.1-only addition: Seal refuses it for v2.0
// (Legacy) output. header.Parse does not apply that restriction.
func Valid(id ID) bool {
	switch id {
	case AES256GCM, AES256GCMSIV, ChaCha20Poly1305:
		return true
	default:
		return false
	}
}

// New constructs the cipher.AEAD for id with the given 32-byte key.
func New(id ID, key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("suite: invalid key size %d", len(key))
	}
	switch id {
	case AES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("suite: %w", err)
		}
		return cipher.NewGCM(block)
	case AES256GCMSIV:
		return siv.NewGCM(key)
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("suite: unsupported suite id %q", id)
	}
}
