package qsfs

import (
	"encoding/binary"
	"errors"
	"io"

	"go.qsfs.dev/qsfs/internal/header"
	"go.qsfs.dev/qsfs/internal/kdf"
	"go.qsfs.dev/qsfs/internal/keyschedule"
	"go.qsfs.dev/qsfs/internal/secret"
	"go.qsfs.dev/qsfs/internal/sign"
	"go.qsfs.dev/qsfs/internal/stream"
	"go.qsfs.dev/qsfs/internal/suite"
)

// UnsealOptions configures a single unseal operation.
type UnsealOptions struct {
	Identities []*Identity

	// TrustStore is consulted for signer acceptance unless TrustAnySigner
	// is set. Signature verification against a trust database is
	// mandatory by default.
	TrustStore     SignerLookup
	TrustAnySigner bool

	// AllowUnsigned permits a container with no signature at all. It does
	// not affect trust checks on a container that is signed.
	AllowUnsigned bool
}

// Unseal parses and verifies the header read from src, recovers the content
// encryption key using opts.Identities, and writes the decrypted plaintext
// to dst.
func Unseal(dst io.Writer, src io.Reader, opts UnsealOptions) error {
	const op = "Unseal"

	if len(opts.Identities) == 0 {
		return wrapErr(op, KindPolicyError, errors.New("at least one identity is required"))
	}

	var lenPrefix [4]byte
	if _, err := io.ReadFull(src, lenPrefix[:]); err != nil {
		return wrapErr(op, KindIO, err)
	}
	headerLen := binary.BigEndian.Uint32(lenPrefix[:])
	if headerLen > header.MaxHeaderLen {
		return wrapErr(op, KindFormatInvalid, errors.New("declared header length exceeds limit"))
	}
	buf := make([]byte, headerLen)
	if _, err := io.ReadFull(src, buf); err != nil {
		return wrapErr(op, KindIO, err)
	}
	h, err := header.Parse(buf)
	if err != nil {
		return wrapErr(op, KindFormatInvalid, err)
	}

	if err := verifySignature(h, opts); err != nil {
		return err
	}

	cek, err := findRecipient(h, opts.Identities)
	if err != nil {
		return err
	}

	k1, k2, fileIDBytes, err := kdf.StreamKeys(h.KDFSalt, cek)
	cek.Zero()
	if err != nil {
		return wrapErr(op, KindFormatInvalid, err)
	}
	defer k1.Zero()
	defer k2.Zero()

	aad := chunkAAD(h, fileIDBytes)
	aead, err := suite.New(h.SuiteID, k1.Bytes())
	if err != nil {
		return wrapErr(op, KindUnsupportedVersion, err)
	}

	r := stream.NewReader(aead, h.FileID, aad, h.ChunkSize, src)
	if _, err := io.Copy(dst, r); err != nil {
		if errors.Is(err, stream.ErrTruncated) {
			return wrapErr(op, KindCiphertextCorrupt, err)
		}
		return wrapErr(op, KindAuthenticationFailed, err)
	}
	return nil
}

func verifySignature(h *header.Header, opts UnsealOptions) error {
	const op = "Unseal"
	unsigned := len(h.MLDSASig) == 0 && h.SigMeta == nil
	if unsigned {
		if !opts.AllowUnsigned {
			return wrapErr(op, KindUnsignedRejected, errors.New("container is unsigned and AllowUnsigned is false"))
		}
		return nil
	}
	if h.SigMeta == nil {
		return wrapErr(op, KindSignatureMissing, errors.New("signature present without signer metadata"))
	}

	// Never trust SignerID as parsed from the header: it is attacker
	// controlled independently of SignerPublicKey. Recompute it from the
	// embedded public key, the same way seal.Signer.SignerID does, and
	// reject outright if the header's claimed value disagrees.
	computedID := sign.SignerID(h.SigMeta.SignerPublicKey)
	if computedID != h.SigMeta.SignerID {
		return wrapErr(op, KindSignatureMissing, errors.New("signer_id does not match signer_public_key"))
	}

	if !opts.TrustAnySigner {
		if opts.TrustStore == nil {
			return wrapErr(op, KindSignerUntrusted, errors.New("no trust store configured and TrustAnySigner is false"))
		}
		trusted, err := opts.TrustStore.IsTrusted(computedID)
		if err != nil {
			return wrapErr(op, KindIO, err)
		}
		if !trusted {
			return wrapErr(op, KindSignerUntrusted, errors.New("signer is not in the trust store"))
		}
	}
	if !sign.Verify(h.SigMeta.SignerPublicKey, h.CanonicalPlaceholder(), h.MLDSASig) {
		return wrapErr(op, KindSignatureInvalid, errors.New("ML-DSA-87 verification failed"))
	}
	return nil
}

// findRecipient tries every recipient entry in header order, and for each,
// every supplied identity, stopping at the first successful unwrap.
func findRecipient(h *header.Header, identities []*Identity) (*secret.Bytes, error) {
	for i := range h.Recipients {
		entry := &h.Recipients[i]
		for _, id := range identities {
			if id.Hybrid() != entry.Hybrid() {
				continue
			}
			recovered, err := keyschedule.Unwrap(entry, id.MLKEMSecretKey, id.X25519SecretKey, h.EphX25519PK, h.KDFSalt)
			if err != nil {
				continue
			}
			return recovered, nil
		}
	}
	return nil, wrapErr("Unseal", KindNoRecipientMatch, errors.New("no identity matched a recipient entry"))
}
