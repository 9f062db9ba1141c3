package directory

import (
	"os"
	"testing"

	"github.com/vcsms/vcsms/internal/errors"
)

func TestFileDirectoryLoginPersistsAndGet(t *testing.T) {
	dir := t.TempDir()
	fd, err := NewFileDirectory(dir)
	if err != nil {
		t.Fatalf("NewFileDirectory: %v", err)
	}
	kp := genKeyPair(t)

	if err := fd.Login(kp.ID, kp.Public); err != nil {
		t.Fatalf("Login: %v", err)
	}
	pub, ok := fd.Get(kp.ID)
	if !ok || pub.N.Cmp(kp.Public.N) != 0 {
		t.Error("Get after Login returned wrong or missing key")
	}
}

func TestFileDirectoryReloadsPersistedKeys(t *testing.T) {
	dir := t.TempDir()
	kp := genKeyPair(t)

	fd1, err := NewFileDirectory(dir)
	if err != nil {
		t.Fatalf("NewFileDirectory: %v", err)
	}
	if err := fd1.Login(kp.ID, kp.Public); err != nil {
		t.Fatalf("Login: %v", err)
	}

	fd2, err := NewFileDirectory(dir)
	if err != nil {
		t.Fatalf("second NewFileDirectory: %v", err)
	}
	if !fd2.Known(kp.ID) {
		t.Fatal("reopened FileDirectory should know a previously persisted id")
	}
	pub, ok := fd2.Get(kp.ID)
	if !ok || pub.N.Cmp(kp.Public.N) != 0 {
		t.Error("reopened FileDirectory returned wrong or missing key")
	}
}

func TestFileDirectoryLoginCollision(t *testing.T) {
	dir := t.TempDir()
	fd, err := NewFileDirectory(dir)
	if err != nil {
		t.Fatalf("NewFileDirectory: %v", err)
	}
	a := genKeyPair(t)
	b := genKeyPair(t)

	if err := fd.Login(a.ID, a.Public); err != nil {
		t.Fatalf("Login a: %v", err)
	}
	err = fd.Login(a.ID, b.Public)
	if !errors.Is(err, errors.ErrIDCollision) {
		t.Errorf("Login(existing id, different key) = %v, want ErrIDCollision", err)
	}
}

func TestFileDirectorySkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	// Seed a malformed key file before opening.
	badPath := keyFilePath(dir, "garbage")
	if err := os.WriteFile(badPath, []byte("not-a-valid-key-file"), 0600); err != nil {
		t.Fatalf("seed malformed file: %v", err)
	}
	fd, err := NewFileDirectory(dir)
	if err != nil {
		t.Fatalf("NewFileDirectory: %v", err)
	}
	if fd.Known("garbage") {
		t.Error("a malformed key file should not be indexed as known")
	}
}
