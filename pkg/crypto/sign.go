package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"

	qerrors "github.com/vcsms/vcsms/internal/errors"
)

// Sign produces an RSA-PSS signature over SHA-256(data).
func Sign(data []byte, priv *rsa.PrivateKey) ([]byte, error) {
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], nil)
	if err != nil {
		return nil, qerrors.NewCryptoError("Sign", err)
	}
	return sig, nil
}

// Verify reports whether sig is a valid RSA-PSS signature over SHA-256(data)
// under pub.
func Verify(data, sig []byte, pub *rsa.PublicKey) bool {
	digest := sha256.Sum256(data)
	return rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, nil) == nil
}
