// Package header implements the deterministic QSFS container header: its
// field layout, its canonical byte encoding, and the placeholder-canonical
// variant that ML-DSA signs.
//
// There is a single schema and a single encoder, parameterized by whether
// the real signature bytes or a zero-length placeholder are emitted; the
// wire format, the signed message, and the verifier's reconstruction all go
// through the same canonicalBytes method.
package header

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go.qsfs.dev/qsfs/internal/pae"
	"go.qsfs.dev/qsfs/internal/suite"
)

// Magic is the 6-byte literal "QSFS2\0" that opens every header.
var Magic = [6]byte{0x51, 0x53, 0x46, 0x53, 0x32, 0x00}

const (
	// MaxHeaderLen is the size cap enforced at parse time.
	MaxHeaderLen = 1 << 20
	// MaxRecipients is the recipient-count cap.
	MaxRecipients = 65535

	MLKEMCiphertextSize   = 1568
	WrappedCEKSize        = 48
	WrapNonceSize         = 12
	X25519FingerprintSize = 8
	X25519PublicKeySize   = 32

	// MinChunkSize and MaxChunkSize bound chunk_size.
	MinChunkSize = 1024
	MaxChunkSize = 4 * 1024 * 1024
)

// AlgorithmMLDSA87 is the only signature algorithm tag QSFS v2 defines.
const AlgorithmMLDSA87 byte = 1

// RecipientEntry is one recipient's key-wrapping material.
type RecipientEntry struct {
	Label             string
	MLKEMCiphertext   [MLKEMCiphertextSize]byte
	WrappedCEK        [WrappedCEKSize]byte
	WrapNonce         [WrapNonceSize]byte
	X25519Fingerprint [X25519FingerprintSize]byte // zero if not hybrid
	X25519PublicKey   []byte                      // nil if not hybrid, else 32 bytes
}

// Hybrid reports whether this entry carries an X25519 public key.
func (r *RecipientEntry) Hybrid() bool { return len(r.X25519PublicKey) > 0 }

// SignatureMetadata identifies the signer of a header.
type SignatureMetadata struct {
	SignerID        [32]byte // SHA-256 of the signer's ML-DSA-87 public key
	Algorithm       byte
	SignerPublicKey []byte
}

// Header is the deterministic, field-ordered record every QSFS container
// opens with.
type Header struct {
	SuiteID      suite.ID
	ChunkSize    uint32
	FileID       [8]byte
	KDFSalt      []byte // nil for v2.0, exactly 32 bytes for v2.1
	ReservedHash [32]byte
	Recipients   []RecipientEntry
	EphX25519PK  [32]byte // all-zero unless any recipient is hybrid

	MLDSASig  []byte // empty if the container is declared unsigned
	SigMeta   *SignatureMetadata
}

// V2_1 reports whether this header carries the v2.1 per-file salt. The PAE
// version tag used for both AAD and header signing is selected purely by
// this field's presence, never by any other heuristic.
func (h *Header) V2_1() bool { return h.KDFSalt != nil }

func (h *Header) paeVersion() byte {
	if h.V2_1() {
		return pae.VersionV2
	}
	return pae.VersionV1
}

// Hybrid reports whether the container uses hybrid (ML-KEM + X25519) mode.
func (h *Header) Hybrid() bool {
	for _, b := range h.EphX25519PK {
		if b != 0 {
			return true
		}
	}
	return false
}

// Validate checks the header's structural invariants, independent of
// signature or trust status.
func (h *Header) Validate() error {
	if !suite.Valid(h.SuiteID) {
		return fmt.Errorf("header: unsupported suite id %q", h.SuiteID)
	}
	if h.ChunkSize < MinChunkSize || h.ChunkSize > MaxChunkSize {
		return fmt.Errorf("header: chunk_size %d out of range", h.ChunkSize)
	}
	if h.KDFSalt != nil && len(h.KDFSalt) != 32 {
		return fmt.Errorf("header: kdf_salt must be 32 bytes, got %d", len(h.KDFSalt))
	}
	if len(h.Recipients) == 0 {
		return errors.New("header: at least one recipient is required")
	}
	if len(h.Recipients) > MaxRecipients {
		return fmt.Errorf("header: too many recipients (%d)", len(h.Recipients))
	}
	hybrid := h.Hybrid()
	for i := range h.Recipients {
		r := &h.Recipients[i]
		if hybrid != r.Hybrid() {
			return fmt.Errorf("header: recipient %d hybrid mode mismatches container", i)
		}
		if r.Hybrid() && len(r.X25519PublicKey) != X25519PublicKeySize {
			return fmt.Errorf("header: recipient %d has malformed X25519 public key", i)
		}
	}
	return nil
}

// canonicalBytes is the single encoder behind both the on-wire form and the
// placeholder form signed by ML-DSA. When placeholder is true, the
// signature bytes are emitted as a zero-length field even if h.MLDSASig is
// populated; signer metadata (when present) is always emitted in full,
// since the verifier must be able to reconstruct the same placeholder from
// a signed header even though the signature bytes themselves are absent
// from it.
func (h *Header) canonicalBytes(placeholder bool) []byte {
	var chunkSize [4]byte
	binary.BigEndian.PutUint32(chunkSize[:], h.ChunkSize)

	fields := make([][]byte, 0, 8+len(h.Recipients))
	fields = append(fields, Magic[:], []byte(h.SuiteID), chunkSize[:], h.FileID[:])
	if h.V2_1() {
		fields = append(fields, h.KDFSalt)
	}
	fields = append(fields, h.ReservedHash[:])

	var count [2]byte
	binary.BigEndian.PutUint16(count[:], uint16(len(h.Recipients)))
	fields = append(fields, count[:])
	for i := range h.Recipients {
		fields = append(fields, encodeRecipient(&h.Recipients[i]))
	}

	fields = append(fields, h.EphX25519PK[:])

	sig := h.MLDSASig
	if placeholder {
		sig = nil
	}
	fields = append(fields, sig)

	signerID, alg, signerPub := [32]byte{}, byte(0), []byte(nil)
	if h.SigMeta != nil {
		signerID, alg, signerPub = h.SigMeta.SignerID, h.SigMeta.Algorithm, h.SigMeta.SignerPublicKey
	}
	fields = append(fields, signerID[:], []byte{alg}, signerPub, []byte{1}) // fin

	return pae.Encode(h.paeVersion(), fields...)
}

// CanonicalPlaceholder returns the bytes ML-DSA signs: the header with the
// signature field zeroed out but signer metadata populated.
func (h *Header) CanonicalPlaceholder() []byte { return h.canonicalBytes(true) }

// Marshal returns the final on-wire canonical form, including the installed
// signature.
func (h *Header) Marshal() []byte { return h.canonicalBytes(false) }

func encodeRecipient(r *RecipientEntry) []byte {
	x25519pub := r.X25519PublicKey
	return pae.EncodeFields(
		[]byte(r.Label),
		r.MLKEMCiphertext[:],
		r.WrappedCEK[:],
		r.WrapNonce[:],
		r.X25519Fingerprint[:],
		x25519pub,
	)
}

// Parse decodes header bytes produced by Marshal, enforcing every size
// bound this package defines. It does not check the signature; that is the
// caller's job once it has located the matching signer.
func Parse(data []byte) (*Header, error) {
	if len(data) > MaxHeaderLen {
		return nil, fmt.Errorf("header: %d bytes exceeds %d byte limit", len(data), MaxHeaderLen)
	}
	version, fields, err := pae.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if version != pae.VersionV1 && version != pae.VersionV2 {
		return nil, fmt.Errorf("header: unsupported format version tag %x", version)
	}
	isV21 := version == pae.VersionV2

	idx := 0
	next := func(name string) ([]byte, error) {
		if idx >= len(fields) {
			return nil, fmt.Errorf("header: missing field %q", name)
		}
		f := fields[idx]
		idx++
		return f, nil
	}

	magic, err := next("magic")
	if err != nil {
		return nil, err
	}
	if len(magic) != len(Magic) || [6]byte(magic) != Magic {
		return nil, errors.New("header: magic mismatch")
	}

	suiteField, err := next("suite_id")
	if err != nil {
		return nil, err
	}
	chunkSizeField, err := next("chunk_size")
	if err != nil {
		return nil, err
	}
	if len(chunkSizeField) != 4 {
		return nil, errors.New("header: malformed chunk_size")
	}
	fileIDField, err := next("file_id")
	if err != nil {
		return nil, err
	}
	if len(fileIDField) != 8 {
		return nil, errors.New("header: malformed file_id")
	}

	h := &Header{SuiteID: suite.ID(suiteField)}
	h.ChunkSize = binary.BigEndian.Uint32(chunkSizeField)
	copy(h.FileID[:], fileIDField)

	if isV21 {
		saltField, err := next("kdf_salt")
		if err != nil {
			return nil, err
		}
		if len(saltField) != 32 {
			return nil, errors.New("header: malformed kdf_salt")
		}
		h.KDFSalt = append([]byte(nil), saltField...)
	}

	reservedField, err := next("reserved_hash")
	if err != nil {
		return nil, err
	}
	if len(reservedField) != 32 {
		return nil, errors.New("header: malformed reserved_hash")
	}
	copy(h.ReservedHash[:], reservedField) // value is never trusted for authentication

	countField, err := next("recipient_count")
	if err != nil {
		return nil, err
	}
	if len(countField) != 2 {
		return nil, errors.New("header: malformed recipient_count")
	}
	count := binary.BigEndian.Uint16(countField)
	if count == 0 {
		return nil, errors.New("header: zero recipients")
	}

	h.Recipients = make([]RecipientEntry, count)
	for i := 0; i < int(count); i++ {
		blob, err := next(fmt.Sprintf("recipient[%d]", i))
		if err != nil {
			return nil, err
		}
		if err := decodeRecipient(blob, &h.Recipients[i]); err != nil {
			return nil, fmt.Errorf("header: recipient %d: %w", i, err)
		}
	}

	ephField, err := next("eph_x25519_pk")
	if err != nil {
		return nil, err
	}
	if len(ephField) != 32 {
		return nil, errors.New("header: malformed eph_x25519_pk")
	}
	copy(h.EphX25519PK[:], ephField)

	sigField, err := next("mldsa_sig")
	if err != nil {
		return nil, err
	}
	h.MLDSASig = append([]byte(nil), sigField...)

	signerIDField, err := next("signer_id")
	if err != nil {
		return nil, err
	}
	if len(signerIDField) != 32 {
		return nil, errors.New("header: malformed signer_id")
	}
	algField, err := next("algorithm")
	if err != nil {
		return nil, err
	}
	if len(algField) != 1 {
		return nil, errors.New("header: malformed algorithm tag")
	}
	signerPubField, err := next("signer_pubkey")
	if err != nil {
		return nil, err
	}
	finField, err := next("fin")
	if err != nil {
		return nil, err
	}
	if len(finField) != 1 || finField[0] != 1 {
		return nil, errors.New("header: malformed fin sentinel")
	}
	if idx != len(fields) {
		return nil, errors.New("header: trailing fields after fin")
	}

	if algField[0] != 0 || len(signerPubField) != 0 {
		var signerID [32]byte
		copy(signerID[:], signerIDField)
		h.SigMeta = &SignatureMetadata{
			SignerID:        signerID,
			Algorithm:       algField[0],
			SignerPublicKey: append([]byte(nil), signerPubField...),
		}
	}

	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

func decodeRecipient(data []byte, out *RecipientEntry) error {
	fields, err := pae.DecodeFields(data)
	if err != nil {
		return err
	}
	if len(fields) != 6 {
		return fmt.Errorf("expected 6 fields, got %d", len(fields))
	}
	out.Label = string(fields[0])
	if len(fields[1]) != MLKEMCiphertextSize {
		return fmt.Errorf("mlkem_ct must be %d bytes, got %d", MLKEMCiphertextSize, len(fields[1]))
	}
	copy(out.MLKEMCiphertext[:], fields[1])
	if len(fields[2]) != WrappedCEKSize {
		return fmt.Errorf("wrapped_cek must be %d bytes, got %d", WrappedCEKSize, len(fields[2]))
	}
	copy(out.WrappedCEK[:], fields[2])
	if len(fields[3]) != WrapNonceSize {
		return fmt.Errorf("wrap_nonce must be %d bytes, got %d", WrapNonceSize, len(fields[3]))
	}
	copy(out.WrapNonce[:], fields[3])
	if len(fields[4]) != X25519FingerprintSize {
		return fmt.Errorf("x25519_pk_fpr must be %d bytes, got %d", X25519FingerprintSize, len(fields[4]))
	}
	copy(out.X25519Fingerprint[:], fields[4])
	switch len(fields[5]) {
	case 0:
		out.X25519PublicKey = nil
	case X25519PublicKeySize:
		out.X25519PublicKey = append([]byte(nil), fields[5]...)
	default:
		return fmt.Errorf("x25519_pub must be 0 or %d bytes, got %d", X25519PublicKeySize, len(fields[5]))
	}
	return nil
}
