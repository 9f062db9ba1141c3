package directory

import (
	"crypto/rsa"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vcsms/vcsms/internal/errors"
	"github.com/vcsms/vcsms/pkg/identity"
)

// FileDirectory persists each client's public key as its own file under
// Root, named by Client ID, matching spec.md §6's "directory of public-key
// files" description more literally than a binary KV store would. An
// in-memory index mirrors disk state for fast Known/Get lookups.
type FileDirectory struct {
	Root string

	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
}

// NewFileDirectory opens (creating if absent) a FileDirectory rooted at dir,
// loading any already-persisted keys into its in-memory index.
func NewFileDirectory(dir string) (*FileDirectory, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("directory: mkdir %s: %w", dir, err)
	}
	fd := &FileDirectory{Root: dir, keys: make(map[string]*rsa.PublicKey)}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("directory: read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id := entry.Name()
		pub, err := loadKeyFile(filepath.Join(dir, id))
		if err != nil {
			continue
		}
		fd.keys[id] = pub
	}
	return fd, nil
}

func keyFilePath(root, id string) string { return filepath.Join(root, id) }

func loadKeyFile(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expHex, modHex, ok := cutColon(string(data))
	if !ok {
		return nil, fmt.Errorf("directory: malformed key file %s", path)
	}
	return identity.ParsePublicKey(expHex, modHex)
}

func cutColon(s string) (string, string, bool) {
	for i := range s {
		if s[i] == ':' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

func (d *FileDirectory) Login(id string, pub *rsa.PublicKey) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.keys[id]; ok {
		if identity.Fingerprint(existing) != identity.Fingerprint(pub) {
			return errors.ErrIDCollision
		}
		return nil
	}
	data := []byte(identity.CanonicalSerialization(pub))
	if err := os.WriteFile(keyFilePath(d.Root, id), data, 0600); err != nil {
		return fmt.Errorf("directory: write key file: %w", err)
	}
	d.keys[id] = pub
	return nil
}

func (d *FileDirectory) Logout(id string) { _ = id }

func (d *FileDirectory) Known(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.keys[id]
	return ok
}

func (d *FileDirectory) Get(id string) (*rsa.PublicKey, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pub, ok := d.keys[id]
	return pub, ok
}

var _ Directory = (*FileDirectory)(nil)
