package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"

	vcrypto "github.com/vcsms/vcsms/pkg/crypto"
)

const (
	pbkdf2Iterations = 200_000
	pbkdf2SaltSize   = 16
)

// SavePrivateKey writes an unencrypted PKCS#1 PEM-encoded private key to
// path, matching the original's plain hex(exp):hex(mod) persistence style
// but in PEM form for standard tooling compatibility.
func SavePrivateKey(priv *rsa.PrivateKey, path string) error {
	der := x509.MarshalPKCS1PrivateKey(priv)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0600)
}

// LoadPrivateKey reads a PEM-encoded private key from path and rebuilds its
// KeyPair (including the derived Client ID).
func LoadPrivateKey(path string) (*KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read key file: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("identity: no PEM block in %s", path)
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("identity: parse private key: %w", err)
	}
	return keyPairFrom(priv), nil
}

// SaveEncryptedPrivateKey passphrase-protects the private key file using a
// PBKDF2-derived key, wrapping the PEM bytes with the same AES-256-CBC+HMAC
// façade used for session traffic (pkg/crypto.Encrypt). Layout on disk:
// salt(16) || iv(16) || ciphertext.
func SaveEncryptedPrivateKey(priv *rsa.PrivateKey, path string, passphrase []byte) error {
	der := x509.MarshalPKCS1PrivateKey(priv)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}
	plaintext := pem.EncodeToMemory(block)

	salt := make([]byte, pbkdf2SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("identity: generate salt: %w", err)
	}
	key := pbkdf2.Key(passphrase, salt, pbkdf2Iterations, 32, sha256.New)

	iv := make([]byte, 16)
	if _, err := rand.Read(iv); err != nil {
		return fmt.Errorf("identity: generate iv: %w", err)
	}
	ciphertext, err := vcrypto.Encrypt(plaintext, key, iv)
	if err != nil {
		return fmt.Errorf("identity: encrypt key file: %w", err)
	}

	out := append(append(append([]byte{}, salt...), iv...), ciphertext...)
	return os.WriteFile(path, out, 0600)
}

// LoadEncryptedPrivateKey reverses SaveEncryptedPrivateKey.
func LoadEncryptedPrivateKey(path string, passphrase []byte) (*KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read key file: %w", err)
	}
	if len(data) < pbkdf2SaltSize+16 {
		return nil, fmt.Errorf("identity: key file too short")
	}
	salt, rest := data[:pbkdf2SaltSize], data[pbkdf2SaltSize:]
	iv, ciphertext := rest[:16], rest[16:]
	key := pbkdf2.Key(passphrase, salt, pbkdf2Iterations, 32, sha256.New)

	plaintext, err := vcrypto.Decrypt(ciphertext, key, iv)
	if err != nil {
		return nil, fmt.Errorf("identity: decrypt key file: %w", err)
	}
	block, _ := pem.Decode(plaintext)
	if block == nil {
		return nil, fmt.Errorf("identity: no PEM block after decryption")
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("identity: parse private key: %w", err)
	}
	return keyPairFrom(priv), nil
}

// ServerRecord is the server identity file clients load to locate and
// authenticate the relay (spec.md §6).
type ServerRecord struct {
	IP          string `json:"ip"`
	Port        int    `json:"port"`
	Fingerprint string `json:"fingerprint"`
}

// SaveServerRecord writes the server identity JSON file.
func SaveServerRecord(rec ServerRecord, path string) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("identity: marshal server record: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadServerRecord reads and validates the server identity JSON file.
func LoadServerRecord(path string) (ServerRecord, error) {
	var rec ServerRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, fmt.Errorf("identity: read server record: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("identity: parse server record: %w", err)
	}
	if _, err := hex.DecodeString(rec.Fingerprint); err != nil || len(rec.Fingerprint) != 64 {
		return rec, fmt.Errorf("identity: server record fingerprint malformed")
	}
	return rec, nil
}
