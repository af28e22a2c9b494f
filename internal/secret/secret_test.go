package secret_test

import (
	"bytes"
	"testing"

	"go.qsfs.dev/qsfs/internal/secret"
)

func TestZeroOnExit(t *testing.T) {
	s := secret.New(32)
	b := s.Bytes()
	for i := range b {
		b[i] = byte(i + 1)
	}
	s.Zero()
	if !bytes.Equal(s.Bytes(), make([]byte, 32)) {
		t.Fatal("buffer not zeroed")
	}
}

func TestZeroNil(t *testing.T) {
	var s *secret.Bytes
	s.Zero() // must not panic
	if s.Len() != 0 || s.Bytes() != nil {
		t.Fatal("nil receiver should behave as empty")
	}
}

func TestClone(t *testing.T) {
	s := secret.NewFromBytes([]byte{1, 2, 3, 4})
	defer s.Zero()
	c := s.Clone()
	defer c.Zero()
	if !bytes.Equal(s.Bytes(), c.Bytes()) {
		t.Fatal("clone mismatch")
	}
	c.Bytes()[0] = 0xff
	if s.Bytes()[0] == 0xff {
		t.Fatal("clone shares backing array")
	}
}
