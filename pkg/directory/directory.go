// Package directory implements the VCSMS public-key directory: the
// external-collaborator contract the handshake and router bind a Client ID
// to its authenticated public key through (spec.md §6).
package directory

import (
	"crypto/rsa"
	"sync"

	"github.com/vcsms/vcsms/internal/errors"
	"github.com/vcsms/vcsms/pkg/identity"
)

// Directory is the contract the handshake/router consume: login a
// fingerprinted key, log it out on disconnect, and query it.
type Directory interface {
	// Login associates id with pub. If id is already associated with a
	// different key, it returns errors.ErrIDCollision and leaves the
	// existing association untouched.
	Login(id string, pub *rsa.PublicKey) error
	// Logout marks id as not currently connected; it does not forget pub.
	Logout(id string)
	// Known reports whether id has ever logged in.
	Known(id string) bool
	// Get returns the public key known for id, if any.
	Get(id string) (*rsa.PublicKey, bool)
}

// MemoryDirectory is a process-lifetime Directory backed by an in-memory map.
type MemoryDirectory struct {
	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
}

// NewMemoryDirectory returns an empty MemoryDirectory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{keys: make(map[string]*rsa.PublicKey)}
}

func (d *MemoryDirectory) Login(id string, pub *rsa.PublicKey) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.keys[id]; ok {
		if identity.Fingerprint(existing) != identity.Fingerprint(pub) {
			return errors.ErrIDCollision
		}
		return nil
	}
	d.keys[id] = pub
	return nil
}

func (d *MemoryDirectory) Logout(id string) {
	// Outboxes and keys outlive logout; nothing to do at this layer beyond
	// what router.Registry itself tracks for live sockets.
	_ = id
}

func (d *MemoryDirectory) Known(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.keys[id]
	return ok
}

func (d *MemoryDirectory) Get(id string) (*rsa.PublicKey, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pub, ok := d.keys[id]
	return pub, ok
}
