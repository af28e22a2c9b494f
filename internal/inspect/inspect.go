// Package inspect reports container metadata without unsealing the payload.
package inspect

import (
	"encoding/binary"
	"fmt"
	"io"

	"go.qsfs.dev/qsfs/internal/header"
)

// Metadata describes a QSFS container's header without decrypting anything.
type Metadata struct {
	Version        string `json:"version"`
	Hybrid         bool   `json:"hybrid"`
	Signed         bool   `json:"signed"`
	SignerID       string `json:"signer_id,omitempty"`
	Suite          string `json:"suite"`
	ChunkSize      uint32 `json:"chunk_size"`
	RecipientCount int    `json:"recipient_count"`
	Sizes          struct {
		Header   int64 `json:"header"`
		Overhead int64 `json:"overhead"`
	} `json:"sizes"`
}

// Inspect reads a container's header from r and reports its metadata. fileSize
// is the container's size if known, -1 otherwise. When it is known,
// Sizes.Overhead is set to the header size (length prefix included); the
// per-frame overhead of the stream is not counted. When it is -1,
// Sizes.Overhead is left at zero.
func Inspect(r io.Reader, fileSize int64) (*Metadata, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("reading header length: %w", err)
	}
	headerLen := binary.BigEndian.Uint32(lenBuf[:])
	if headerLen == 0 || headerLen > header.MaxHeaderLen {
		return nil, fmt.Errorf("header length %d out of bounds", headerLen)
	}

	buf := make([]byte, headerLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	h, err := header.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}

	data := &Metadata{
		Hybrid:         h.Hybrid(),
		Suite:          string(h.SuiteID),
		ChunkSize:      h.ChunkSize,
		RecipientCount: len(h.Recipients),
	}
	if h.V2_1() {
		data.Version = "qsfs.dev/v2.1"
	} else {
		data.Version = "qsfs.dev/v2.0"
	}
	if h.SigMeta != nil {
		data.Signed = true
		data.SignerID = fmt.Sprintf("%x", h.SigMeta.SignerID)
	}
	data.Sizes.Header = int64(4) + int64(headerLen)

	if fileSize >= 0 {
		data.Sizes.Overhead = data.Sizes.Header
	}
	return data, nil
}
