package handshake

import "crypto/rsa"

// Result holds the outcome of a successful handshake: the peer's
// authenticated Client ID and the derived 256-bit session key.
type Result struct {
	PeerID     string
	SessionKey []byte
}

// LoginFunc binds a Client ID to its authenticated public key in the
// server's directory (pkg/directory.Directory.Login matches this exactly).
// Returning a non-nil error aborts the handshake with TokenIDCollision
// before any routing state is created (spec.md §4.4 step 6, §8 invariant 6).
type LoginFunc func(clientID string, pub *rsa.PublicKey) error
