// Package identity implements VCSMS client identity: RSA keypairs, their
// canonical serialization, and Client ID fingerprinting.
package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"fmt"
	"math/big"

	vcrypto "github.com/vcsms/vcsms/pkg/crypto"
)

// ServerID is the reserved Client ID denoting the server itself.
const ServerID = "0"

// KeyPair holds an RSA keypair along with its derived Client ID.
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
	ID      string
}

// GenerateKeyPair creates a fresh RSA keypair of the given modulus size (in
// bits; 2048 is the VCSMS default) and computes its Client ID.
func GenerateKeyPair(bits int) (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}
	return keyPairFrom(priv), nil
}

func keyPairFrom(priv *rsa.PrivateKey) *KeyPair {
	pub := &priv.PublicKey
	return &KeyPair{
		Private: priv,
		Public:  pub,
		ID:      Fingerprint(pub),
	}
}

// CanonicalSerialization returns hex(exp):hex(mod) for a public key, the
// exact byte string that is hashed for the fingerprint and announced in the
// handshake's key and identity phases (spec.md §3). The DH exchange signs
// hex(dh_pub), not this string.
func CanonicalSerialization(pub *rsa.PublicKey) string {
	expHex := hex.EncodeToString(big.NewInt(int64(pub.E)).Bytes())
	modHex := hex.EncodeToString(pub.N.Bytes())
	return expHex + ":" + modHex
}

// Fingerprint computes the Client ID for a public key: the hex-encoded
// SHA-256 digest of its canonical serialization.
func Fingerprint(pub *rsa.PublicKey) string {
	digest := vcrypto.Hash([]byte(CanonicalSerialization(pub)))
	return hex.EncodeToString(digest[:])
}

// ParsePublicKey reconstructs a public key from its wire form
// "hex(exp):hex(mod)" as used in handshake phases 1 and 2.
func ParsePublicKey(expHex, modHex string) (*rsa.PublicKey, error) {
	expBytes, err := hex.DecodeString(expHex)
	if err != nil {
		return nil, fmt.Errorf("identity: decode exponent: %w", err)
	}
	modBytes, err := hex.DecodeString(modHex)
	if err != nil {
		return nil, fmt.Errorf("identity: decode modulus: %w", err)
	}
	e := new(big.Int).SetBytes(expBytes)
	if !e.IsInt64() || e.Int64() <= 0 {
		return nil, fmt.Errorf("identity: exponent out of range")
	}
	n := new(big.Int).SetBytes(modBytes)
	return &rsa.PublicKey{E: int(e.Int64()), N: n}, nil
}
