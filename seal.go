package qsfs

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"

	"go.qsfs.dev/qsfs/internal/header"
	"go.qsfs.dev/qsfs/internal/kdf"
	"go.qsfs.dev/qsfs/internal/keyschedule"
	"go.qsfs.dev/qsfs/internal/pae"
	"go.qsfs.dev/qsfs/internal/secret"
	"go.qsfs.dev/qsfs/internal/sign"
	"go.qsfs.dev/qsfs/internal/stream"
	"go.qsfs.dev/qsfs/internal/suite"
)

// DefaultChunkSize is used when SealOptions.ChunkSize is zero.
const DefaultChunkSize = 128 * 1024

// DefaultSuite is used when SealOptions.Suite is empty.
const DefaultSuite = suite.ID(suite.AES256GCMSIV)

// Signer bundles an ML-DSA-87 keypair used to sign a header during seal.
type Signer struct {
	PublicKey  []byte
	PrivateKey []byte
}

// SignerID returns SHA-256 of the signer's public key.
func (s *Signer) SignerID() [32]byte { return sign.SignerID(s.PublicKey) }

// SealOptions configures a single seal operation.
type SealOptions struct {
	Recipients []*Recipient

	// ChunkSize is the plaintext chunk size; zero selects DefaultChunkSize.
	ChunkSize uint32
	// Suite selects the AEAD suite; empty selects DefaultSuite.
	Suite suite.ID

	// Signer signs the header whenever it is non-nil. A nil Signer is
	// accepted only when AllowUnsigned is true.
	Signer        *Signer
	AllowUnsigned bool

	// Legacy forces v2.0 output (no kdf_salt), for interop testing. New
	// containers should leave this false to get v2.1's per-file salt.
	Legacy bool
}

// Seal reads all of src, encrypts it for opts.Recipients, and writes a
// complete QSFS container to dst.
func Seal(dst io.Writer, src io.Reader, opts SealOptions) error {
	const op = "Seal"

	if len(opts.Recipients) == 0 {
		return wrapErr(op, KindPolicyError, errors.New("at least one recipient is required"))
	}
	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize < header.MinChunkSize || chunkSize > header.MaxChunkSize {
		return wrapErr(op, KindFormatInvalid, errors.New("chunk_size out of range"))
	}
	suiteID := opts.Suite
	if suiteID == "" {
		suiteID = DefaultSuite
	}
	if !suite.Valid(suiteID) {
		return wrapErr(op, KindUnsupportedVersion, errors.New("unsupported suite"))
	}
	if opts.Legacy && suiteID == suite.ChaCha20Poly1305 {
		return wrapErr(op, KindPolicyError, errors.New("chacha20-poly1305 requires a v2.1 container"))
	}
	if opts.Signer == nil && !opts.AllowUnsigned {
		return wrapErr(op, KindPolicyError, errors.New("a signer is required unless AllowUnsigned is set"))
	}

	cek := secret.New(32)
	defer cek.Zero()
	if _, err := io.ReadFull(rand.Reader, cek.Bytes()); err != nil {
		return wrapErr(op, KindIO, err)
	}

	var kdfSalt []byte
	if !opts.Legacy {
		kdfSalt = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, kdfSalt); err != nil {
			return wrapErr(op, KindIO, err)
		}
	}

	k1, k2, fileIDBytes, err := kdf.StreamKeys(kdfSalt, cek)
	if err != nil {
		return wrapErr(op, KindFormatInvalid, err)
	}
	defer k1.Zero()
	defer k2.Zero()

	hybrid := false
	for _, r := range opts.Recipients {
		if r.Hybrid() {
			hybrid = true
			break
		}
	}
	var eph *keyschedule.EphemeralKeyPair
	if hybrid {
		eph, err = keyschedule.GenerateEphemeralKeyPair()
		if err != nil {
			return wrapErr(op, KindIO, err)
		}
		defer eph.Zero()
	}

	entries := make([]header.RecipientEntry, 0, len(opts.Recipients))
	for _, r := range opts.Recipients {
		if r.Hybrid() != hybrid {
			return wrapErr(op, KindPolicyError, errors.New("recipients must be either all hybrid or all non-hybrid"))
		}
		entry, err := keyschedule.Wrap(r.Label, r.MLKEMPublicKey, r.X25519PublicKey, eph, kdfSalt, cek)
		if err != nil {
			return wrapErr(op, KindFormatInvalid, err)
		}
		entries = append(entries, *entry)
	}

	h := &header.Header{
		SuiteID:    suiteID,
		ChunkSize:  chunkSize,
		KDFSalt:    kdfSalt,
		Recipients: entries,
	}
	copy(h.FileID[:], fileIDBytes)
	if eph != nil {
		h.EphX25519PK = eph.Public
	}

	if opts.Signer != nil {
		signerID := opts.Signer.SignerID()
		h.SigMeta = &header.SignatureMetadata{
			SignerID:        signerID,
			Algorithm:       header.AlgorithmMLDSA87,
			SignerPublicKey: opts.Signer.PublicKey,
		}
		sig, err := sign.Sign(opts.Signer.PrivateKey, h.CanonicalPlaceholder())
		if err != nil {
			return wrapErr(op, KindFormatInvalid, err)
		}
		h.MLDSASig = sig
	}

	final := h.Marshal()
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(final)))
	if _, err := dst.Write(lenPrefix[:]); err != nil {
		return wrapErr(op, KindIO, err)
	}
	if _, err := dst.Write(final); err != nil {
		return wrapErr(op, KindIO, err)
	}

	aad := chunkAAD(h, fileIDBytes)
	aead, err := suite.New(suiteID, k1.Bytes())
	if err != nil {
		return wrapErr(op, KindUnsupportedVersion, err)
	}
	w := stream.NewWriter(aead, h.FileID, aad, chunkSize, dst)
	if _, err := io.Copy(w, src); err != nil {
		return wrapErr(op, KindIO, err)
	}
	if err := w.Close(); err != nil {
		return wrapErr(op, KindIO, err)
	}
	return nil
}

func chunkAAD(h *header.Header, fileID []byte) []byte {
	if h.V2_1() {
		return pae.ChunkAADV2(string(h.SuiteID), h.ChunkSize, fileID, h.KDFSalt)
	}
	return pae.ChunkAADV1(string(h.SuiteID), h.ChunkSize, fileID)
}
