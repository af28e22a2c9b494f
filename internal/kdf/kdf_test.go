package kdf_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"go.qsfs.dev/qsfs/internal/kdf"
	"go.qsfs.dev/qsfs/internal/secret"
)

// TestKAT_S1 derives K1 and file_id from the known-answer test's literal CEK
// through the real key schedule and checks the result byte-for-byte against
// the published S1 vector: CEK = 000102...1f, suite = aes256-gcm-siv,
// chunk_size = 131072 (v2.0, no kdf_salt).
func TestKAT_S1(t *testing.T) {
	cekBytes := make([]byte, 32)
	for i := range cekBytes {
		cekBytes[i] = byte(i)
	}
	cek := secret.NewFromBytes(cekBytes)
	defer cek.Zero()

	k1, k2, fileID, err := kdf.StreamKeys(nil, cek)
	if err != nil {
		t.Fatal(err)
	}
	defer k1.Zero()
	defer k2.Zero()

	wantK1, err := hex.DecodeString("43a364585e3dd38530f880a1286aa437cb9d22e3cfa636fafdf416fbbc434342")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(k1.Bytes(), wantK1) {
		t.Fatalf("K1 = %x, want %x", k1.Bytes(), wantK1)
	}

	wantFileID, err := hex.DecodeString("8eaf015d9b2c1528")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(fileID, wantFileID) {
		t.Fatalf("file_id = %x, want %x", fileID, wantFileID)
	}
}

func TestSaltSelectionIsPureFunctionOfPresence(t *testing.T) {
	if !bytes.Equal(kdf.Salt(nil), kdf.V2ConstantSalt) {
		t.Fatal("nil kdf_salt must select the v2.0 constant salt")
	}
	salt32 := bytes.Repeat([]byte{0x11}, 32)
	if !bytes.Equal(kdf.Salt(salt32), salt32) {
		t.Fatal("non-nil kdf_salt must be used verbatim")
	}
}

func TestStreamKeysDeterministic(t *testing.T) {
	cek := secret.NewFromBytes(bytes.Repeat([]byte{0xAB}, 32))
	defer cek.Zero()

	k1a, k2a, fileIDa, err := kdf.StreamKeys(nil, cek)
	if err != nil {
		t.Fatal(err)
	}
	defer k1a.Zero()
	defer k2a.Zero()

	cek2 := secret.NewFromBytes(bytes.Repeat([]byte{0xAB}, 32))
	defer cek2.Zero()
	k1b, k2b, fileIDb, err := kdf.StreamKeys(nil, cek2)
	if err != nil {
		t.Fatal(err)
	}
	defer k1b.Zero()
	defer k2b.Zero()

	if !bytes.Equal(k1a.Bytes(), k1b.Bytes()) {
		t.Fatal("K1 not deterministic")
	}
	if !bytes.Equal(k2a.Bytes(), k2b.Bytes()) {
		t.Fatal("K2 not deterministic")
	}
	if !bytes.Equal(fileIDa, fileIDb) {
		t.Fatal("file_id not deterministic")
	}
	if bytes.Equal(k1a.Bytes(), k2a.Bytes()) {
		t.Fatal("K1 and K2 must differ")
	}
}

func TestFileIDDistinctness(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 256; i++ {
		cek := secret.New(32)
		cek.Bytes()[0] = byte(i)
		cek.Bytes()[1] = byte(i >> 8)
		_, _, fileID, err := kdf.StreamKeys(nil, cek)
		cek.Zero()
		if err != nil {
			t.Fatal(err)
		}
		key := string(fileID)
		if seen[key] {
			t.Fatalf("file_id collision at iteration %d", i)
		}
		seen[key] = true
	}
}

func TestV1V2SaltProduceDifferentKeys(t *testing.T) {
	cek := secret.NewFromBytes(bytes.Repeat([]byte{0x01}, 32))
	defer cek.Zero()
	salt := bytes.Repeat([]byte{0x02}, 32)

	k1v1, k2v1, _, err := kdf.StreamKeys(nil, cek)
	if err != nil {
		t.Fatal(err)
	}
	defer k1v1.Zero()
	defer k2v1.Zero()

	cek2 := secret.NewFromBytes(bytes.Repeat([]byte{0x01}, 32))
	defer cek2.Zero()
	k1v2, k2v2, _, err := kdf.StreamKeys(salt, cek2)
	if err != nil {
		t.Fatal(err)
	}
	defer k1v2.Zero()
	defer k2v2.Zero()

	if bytes.Equal(k1v1.Bytes(), k1v2.Bytes()) {
		t.Fatal("v2.0 and v2.1 salts must yield different K1")
	}
}
