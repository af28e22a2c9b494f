// Package pae implements the Pre-Authenticated Encoding used as AEAD
// associated data and as the canonical message fed to ML-DSA signing.
//
// Encode produces
//
//	"QSFS-PAE" || version_tag || Σ (u64_be(len(field_i)) || field_i)
//
// Length-prefixing every field makes the encoding injective over any list of
// byte fields: no suffix of one field can be mistaken for the start of the
// next, regardless of field contents.
package pae

import (
	"encoding/binary"
	"fmt"
)

const magic = "QSFS-PAE"

// Version tags for the two PAE variants the format defines.
const (
	VersionV1 byte = 0x01 // v2.0 header/AAD encoding
	VersionV2 byte = 0x02 // v2.1 header/AAD encoding
)

// Encode concatenates magic, version, and each length-prefixed field in
// order. It never fails; callers are responsible for not passing fields
// whose combined encoding would be unreasonably large.
func Encode(version byte, fields ...[]byte) []byte {
	out := make([]byte, 0, len(magic)+1+fieldsSize(fields))
	out = append(out, magic...)
	out = append(out, version)
	return EncodeFieldsInto(out, fields...)
}

// EncodeFields concatenates each length-prefixed field in order, without the
// "QSFS-PAE" domain-separation prefix or a version tag. It is used to encode
// nested structures (such as a single recipient entry) that are themselves
// embedded as one field of an outer Encode call; the outer call's own
// length-prefixing keeps the whole construction injective.
func EncodeFields(fields ...[]byte) []byte {
	return EncodeFieldsInto(make([]byte, 0, fieldsSize(fields)), fields...)
}

// EncodeFieldsInto appends the length-prefixed fields to out and returns it.
func EncodeFieldsInto(out []byte, fields ...[]byte) []byte {
	var lenBuf [8]byte
	for _, f := range fields {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(f)))
		out = append(out, lenBuf[:]...)
		out = append(out, f...)
	}
	return out
}

func fieldsSize(fields [][]byte) int {
	size := 0
	for _, f := range fields {
		size += 8 + len(f)
	}
	return size
}

// Decode parses bytes produced by Encode, returning the version tag and the
// ordered list of fields. It fails closed on any malformed or truncated
// input, including a length prefix that claims more data than remains.
func Decode(data []byte) (version byte, fields [][]byte, err error) {
	if len(data) < len(magic)+1 {
		return 0, nil, fmt.Errorf("pae: truncated input")
	}
	if string(data[:len(magic)]) != magic {
		return 0, nil, fmt.Errorf("pae: bad magic")
	}
	version = data[len(magic)]
	fields, err = DecodeFields(data[len(magic)+1:])
	return version, fields, err
}

// DecodeFields parses a sequence of length-prefixed fields with no magic or
// version prefix, as produced by EncodeFields.
func DecodeFields(data []byte) ([][]byte, error) {
	var fields [][]byte
	for len(data) > 0 {
		if len(data) < 8 {
			return nil, fmt.Errorf("pae: truncated length prefix")
		}
		n := binary.BigEndian.Uint64(data[:8])
		data = data[8:]
		if n > uint64(len(data)) {
			return nil, fmt.Errorf("pae: field length exceeds remaining input")
		}
		fields = append(fields, data[:n])
		data = data[n:]
	}
	return fields, nil
}

// ChunkAADV1 computes the AAD bound to every chunk of a v2.0 container:
// PAE_v1("qsfs/v2", suite_ascii, u32_be(chunk_size), file_id).
func ChunkAADV1(suiteASCII string, chunkSize uint32, fileID []byte) []byte {
	var cs [4]byte
	binary.BigEndian.PutUint32(cs[:], chunkSize)
	return Encode(VersionV1, []byte("qsfs/v2"), []byte(suiteASCII), cs[:], fileID)
}

// ChunkAADV2 computes the AAD bound to every chunk of a v2.1 container:
// PAE_v2("qsfs/v2", suite_ascii, u32_be(chunk_size), file_id, kdf_salt).
func ChunkAADV2(suiteASCII string, chunkSize uint32, fileID, kdfSalt []byte) []byte {
	var cs [4]byte
	binary.BigEndian.PutUint32(cs[:], chunkSize)
	return Encode(VersionV2, []byte("qsfs/v2"), []byte(suiteASCII), cs[:], fileID, kdfSalt)
}
