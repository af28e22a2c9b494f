// Package stream implements the chunked AEAD framing: a sequence of
// `u32_be(index) ‖ u32_be(ct_len) ‖ ct_bytes` frames followed by a distinct
// zero-length terminator frame whose index carries the high-bit terminator
// flag. Every frame, including the terminator, is authenticated under a
// nonce of `file_id (8 bytes) ‖ u32_be(index)` and the same PAE-derived AAD.
//
// The terminator is always its own frame, never a flag folded onto the last
// data chunk: this keeps the encrypt loop from needing to buffer one chunk
// ahead to learn whether it is final, and matches the empty-input case,
// which produces zero data frames and exactly one terminator.
package stream

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// terminatorFlag is ORed into the wire index field of the terminator frame.
// The nonce index for that frame is the plain sequential count with the
// flag masked off: nonce derivation never sees the flag bit.
const terminatorFlag uint32 = 1 << 31

const frameHeaderSize = 4 + 4 // index + ct_len

// ErrTruncated is returned by Reader when the input ends before a
// terminator frame is seen.
var ErrTruncated = errors.New("stream: input truncated before terminator frame")

// ErrChunkOverflow is returned when a stream would require a chunk index
// beyond 2^31-1: the high bit of the wire index is reserved for
// terminatorFlag.
var ErrChunkOverflow = errors.New("stream: chunk index overflow, input too large for this chunk_size")

func nonceFor(fileID [8]byte, index uint32) []byte {
	nonce := make([]byte, 12)
	copy(nonce[:8], fileID[:])
	binary.BigEndian.PutUint32(nonce[8:], index)
	return nonce
}

// Writer encrypts a plaintext stream into chunk frames.
type Writer struct {
	aead      cipher.AEAD
	dst       io.Writer
	fileID    [8]byte
	aad       []byte
	chunkSize int

	pending []byte
	index   uint32
	closed  bool
	err     error
}

// NewWriter creates a Writer. aad is the PAE-derived chunk AAD, identical
// for every frame in the container; chunkSize is the header's chunk_size.
func NewWriter(aead cipher.AEAD, fileID [8]byte, aad []byte, chunkSize uint32, dst io.Writer) *Writer {
	return &Writer{
		aead:      aead,
		dst:       dst,
		fileID:    fileID,
		aad:       aad,
		chunkSize: int(chunkSize),
		pending:   make([]byte, 0, chunkSize),
	}
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if w.closed {
		return 0, errors.New("stream: write after close")
	}
	total := len(p)
	for len(p) > 0 {
		free := w.chunkSize - len(w.pending)
		n := min(free, len(p))
		w.pending = append(w.pending, p[:n]...)
		p = p[n:]
		if len(w.pending) == w.chunkSize {
			if err := w.flush(w.pending, false); err != nil {
				w.err = err
				return 0, err
			}
			w.pending = w.pending[:0]
		}
	}
	return total, nil
}

// Close flushes any buffered partial chunk and writes the terminator frame.
// It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	if w.closed {
		return errors.New("stream: already closed")
	}
	w.closed = true
	if len(w.pending) > 0 {
		if err := w.flush(w.pending, false); err != nil {
			w.err = err
			return err
		}
		w.pending = w.pending[:0]
	}
	if err := w.flush(nil, true); err != nil {
		w.err = err
		return err
	}
	return nil
}

func (w *Writer) flush(plaintext []byte, terminator bool) error {
	if w.index&terminatorFlag != 0 {
		return ErrChunkOverflow
	}
	nonce := nonceFor(w.fileID, w.index)
	ct := w.aead.Seal(nil, nonce, plaintext, w.aad)

	wireIndex := w.index
	if terminator {
		wireIndex |= terminatorFlag
	}
	var hdr [frameHeaderSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], wireIndex)
	binary.BigEndian.PutUint32(hdr[4:8], uint32(len(ct)))
	if _, err := w.dst.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.dst.Write(ct); err != nil {
		return err
	}
	if w.index == 0xFFFFFFFF {
		return ErrChunkOverflow
	}
	w.index++
	return nil
}

// Reader decrypts a frame stream produced by Writer.
type Reader struct {
	aead      cipher.AEAD
	src       io.Reader
	fileID    [8]byte
	aad       []byte
	chunkSize int

	unread     []byte
	nextIndex  uint32
	terminated bool
	err        error
}

// NewReader creates a Reader. aad and chunkSize must match the values used
// to seal the stream; a mismatch surfaces as AEAD authentication failure on
// the first frame.
func NewReader(aead cipher.AEAD, fileID [8]byte, aad []byte, chunkSize uint32, src io.Reader) *Reader {
	return &Reader{aead: aead, src: src, fileID: fileID, aad: aad, chunkSize: int(chunkSize)}
}

func (r *Reader) Read(p []byte) (int, error) {
	if len(r.unread) > 0 {
		n := copy(p, r.unread)
		r.unread = r.unread[n:]
		return n, nil
	}
	if r.err != nil {
		return 0, r.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if r.terminated {
		r.err = io.EOF
		return 0, io.EOF
	}

	plaintext, terminator, err := r.readFrame()
	if err != nil {
		r.err = err
		return 0, err
	}
	if terminator {
		r.terminated = true
	}
	n := copy(p, plaintext)
	r.unread = plaintext[n:]
	if r.terminated && len(r.unread) == 0 {
		r.err = io.EOF
	}
	return n, nil
}

// readFrame reads and authenticates exactly one frame.
func (r *Reader) readFrame() (plaintext []byte, terminator bool, err error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r.src, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, false, ErrTruncated
		}
		return nil, false, err
	}
	wireIndex := binary.BigEndian.Uint32(hdr[0:4])
	ctLen := binary.BigEndian.Uint32(hdr[4:8])

	terminator = wireIndex&terminatorFlag != 0
	index := wireIndex &^ terminatorFlag
	if index != r.nextIndex {
		return nil, false, fmt.Errorf("stream: out-of-order chunk index %d, expected %d", index, r.nextIndex)
	}
	maxCtLen := uint32(r.chunkSize) + uint32(r.aead.Overhead())
	if ctLen > maxCtLen {
		return nil, false, fmt.Errorf("stream: chunk %d ciphertext length %d exceeds bound %d", index, ctLen, maxCtLen)
	}

	ct := make([]byte, ctLen)
	if _, err := io.ReadFull(r.src, ct); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, false, ErrTruncated
		}
		return nil, false, err
	}

	nonce := nonceFor(r.fileID, index)
	pt, err := r.aead.Open(ct[:0], nonce, ct, r.aad)
	if err != nil {
		return nil, false, fmt.Errorf("stream: chunk %d: %w", index, errAuthFailed)
	}
	if terminator && len(pt) != 0 {
		return nil, false, fmt.Errorf("stream: terminator frame %d carries %d bytes of plaintext", index, len(pt))
	}
	r.nextIndex++
	return pt, terminator, nil
}

var errAuthFailed = errors.New("authentication failed, container may be corrupted or tampered with")
