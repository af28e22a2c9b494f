package trustdb_test

import (
	"path/filepath"
	"testing"

	"go.qsfs.dev/qsfs/internal/trustdb"
)

func openTemp(t *testing.T) *trustdb.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trust.db")
	store, err := trustdb.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAddIsTrustedRemove(t *testing.T) {
	store := openTemp(t)
	var id [32]byte
	id[0] = 0xaa

	trusted, err := store.IsTrusted(id)
	if err != nil {
		t.Fatal(err)
	}
	if trusted {
		t.Fatal("expected untrusted before Add")
	}

	if err := store.Add(id, "test signer"); err != nil {
		t.Fatal(err)
	}
	trusted, err = store.IsTrusted(id)
	if err != nil {
		t.Fatal(err)
	}
	if !trusted {
		t.Fatal("expected trusted after Add")
	}

	if err := store.Remove(id); err != nil {
		t.Fatal(err)
	}
	trusted, err = store.IsTrusted(id)
	if err != nil {
		t.Fatal(err)
	}
	if trusted {
		t.Fatal("expected untrusted after Remove")
	}
}

func TestListReturnsAllSigners(t *testing.T) {
	store := openTemp(t)
	var id1, id2 [32]byte
	id1[0], id2[0] = 1, 2
	if err := store.Add(id1, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := store.Add(id2, "bob"); err != nil {
		t.Fatal(err)
	}

	signers, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(signers) != 2 {
		t.Fatalf("got %d signers, want 2", len(signers))
	}
}
