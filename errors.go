package qsfs

import "fmt"

// Kind classifies a qsfs Error for callers that want to branch on failure
// category without string-matching.
type Kind int

const (
	// KindUnknown is the zero value; it should never appear in an error
	// actually returned by this package.
	KindUnknown Kind = iota
	// KindFormatInvalid marks a structurally malformed or out-of-bounds
	// header: magic mismatch, field bounds, a size cap exceeded, or
	// reserved-byte misuse.
	KindFormatInvalid
	// KindUnsupportedVersion marks an unknown version tag or suite id.
	KindUnsupportedVersion
	// KindSignatureMissing marks a header that carries a signature in one
	// field but not the other (e.g. a signature with no signer metadata),
	// rather than a cleanly unsigned container. It also marks signer
	// metadata whose signer_id does not match its embedded public key.
	KindSignatureMissing
	// KindUnsignedRejected marks a cleanly unsigned container rejected
	// because the caller did not set AllowUnsigned.
	KindUnsignedRejected
	// KindSignerUntrusted marks a signed header whose signer_id, recomputed
	// from the embedded public key, is not present in the trust store.
	KindSignerUntrusted
	// KindSignatureInvalid marks a header whose ML-DSA-87 signature does
	// not verify against the embedded public key.
	KindSignatureInvalid
	// KindNoRecipientMatch marks a header where no supplied identity
	// unwrapped any recipient entry.
	KindNoRecipientMatch
	// KindAuthenticationFailed marks an AEAD tag mismatch on any chunk.
	KindAuthenticationFailed
	// KindCiphertextCorrupt marks a framing violation: bad length,
	// out-of-order index, or a missing terminator.
	KindCiphertextCorrupt
	// KindIO marks an underlying stream read/write error. Callers decide
	// whether a given IO error is transient or fatal.
	KindIO
	// KindPolicyError marks a configuration the core refuses independent of
	// any header content, such as zero recipients or zero identities.
	KindPolicyError
)

func (k Kind) String() string {
	switch k {
	case KindFormatInvalid:
		return "FormatInvalid"
	case KindUnsupportedVersion:
		return "UnsupportedVersion"
	case KindSignatureMissing:
		return "SignatureMissing"
	case KindUnsignedRejected:
		return "UnsignedRejected"
	case KindSignerUntrusted:
		return "SignerUntrusted"
	case KindSignatureInvalid:
		return "SignatureInvalid"
	case KindNoRecipientMatch:
		return "NoRecipientMatch"
	case KindAuthenticationFailed:
		return "AuthenticationFailed"
	case KindCiphertextCorrupt:
		return "CiphertextCorrupt"
	case KindIO:
		return "IoError"
	case KindPolicyError:
		return "PolicyError"
	default:
		return "Unknown"
	}
}

// Error is the error type every exported qsfs operation returns on failure.
// Error messages never reveal which recipient entry matched, and name no
// position of a failed AEAD tag beyond its chunk index, which the framing
// already exposes.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("qsfs: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("qsfs: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
