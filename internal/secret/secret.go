// Package secret holds fixed-size byte buffers that carry key material
// through the container engine and guarantees they are wiped on every exit
// path of their owning scope.
package secret

// Bytes is a secret-bearing buffer. The zero value is not useful; create one
// with New or NewFromBytes. Callers must defer Zero() immediately after
// construction, before the buffer can be observed by any error path.
type Bytes struct {
	b []byte
}

// New allocates a zeroed secret buffer of the given length.
func New(n int) *Bytes {
	return &Bytes{b: make([]byte, n)}
}

// NewFromBytes takes ownership of b. The caller must not retain its own
// reference to b after this call.
func NewFromBytes(b []byte) *Bytes {
	return &Bytes{b: b}
}

// Bytes returns the underlying buffer. The slice is only valid until Zero is
// called; it must not be retained beyond the owning scope.
func (s *Bytes) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.b
}

// Len returns the buffer length, or 0 for a nil receiver.
func (s *Bytes) Len() int {
	if s == nil {
		return 0
	}
	return len(s.b)
}

// Zero overwrites the buffer with zeros. It is safe to call multiple times
// and on a nil receiver.
func (s *Bytes) Zero() {
	if s == nil {
		return
	}
	for i := range s.b {
		s.b[i] = 0
	}
}

// Clone returns a new secret buffer holding a copy of s's bytes.
func (s *Bytes) Clone() *Bytes {
	c := New(s.Len())
	copy(c.b, s.b)
	return c
}
