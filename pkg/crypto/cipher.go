package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"

	qerrors "github.com/vcsms/vcsms/internal/errors"
)

const (
	blockSize = aes.BlockSize // 16
	macSize   = sha256.Size   // 32

	// minPad/maxPad bound the random front/back padding added inside the
	// encrypted portion, per spec.md §4.3.
	minPad = 8
	maxPad = 32
)

// Hash returns the SHA-256 digest of data.
func Hash(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// Encrypt produces AES-256-CBC(frontLen || backLen || front_pad ||
// plaintext || back_pad, PKCS#7-padded) || HMAC-SHA256(iv || ciphertext).
//
// key must be 32 bytes, iv must be 16 bytes.
func Encrypt(plaintext, key, iv []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, qerrors.NewCryptoError("Encrypt", qerrors.ErrInvalidKeySize)
	}
	if len(iv) != blockSize {
		return nil, qerrors.NewCryptoError("Encrypt", qerrors.ErrInvalidNonce)
	}

	frontLen, err := randPadLen()
	if err != nil {
		return nil, qerrors.NewCryptoError("Encrypt", err)
	}
	backLen, err := randPadLen()
	if err != nil {
		return nil, qerrors.NewCryptoError("Encrypt", err)
	}
	front, err := SecureRandomBytes(frontLen)
	if err != nil {
		return nil, qerrors.NewCryptoError("Encrypt", err)
	}
	back, err := SecureRandomBytes(backLen)
	if err != nil {
		return nil, qerrors.NewCryptoError("Encrypt", err)
	}

	padded := make([]byte, 0, 2+frontLen+len(plaintext)+backLen+blockSize)
	padded = append(padded, byte(frontLen), byte(backLen))
	padded = append(padded, front...)
	padded = append(padded, plaintext...)
	padded = append(padded, back...)
	padded = addPKCS7(padded, blockSize)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, qerrors.NewCryptoError("Encrypt", err)
	}
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	mac := macOver(key, iv, ciphertext)
	return append(ciphertext, mac...), nil
}

// Decrypt verifies the MAC (constant-time) before touching padding, so a
// tampered ciphertext always fails at the MAC check regardless of what the
// padding looks like underneath. On success it returns the original
// plaintext with front/back random padding and PKCS#7 padding stripped.
func Decrypt(ciphertext, key, iv []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, qerrors.NewCryptoError("Decrypt", qerrors.ErrInvalidKeySize)
	}
	if len(iv) != blockSize {
		return nil, qerrors.NewCryptoError("Decrypt", qerrors.ErrInvalidNonce)
	}
	if len(ciphertext) < macSize+blockSize || (len(ciphertext)-macSize)%blockSize != 0 {
		return nil, qerrors.NewCryptoError("Decrypt", qerrors.ErrCiphertextTooShort)
	}

	body := ciphertext[:len(ciphertext)-macSize]
	gotMAC := ciphertext[len(ciphertext)-macSize:]
	wantMAC := macOver(key, iv, body)
	if !hmac.Equal(gotMAC, wantMAC) {
		return nil, qerrors.NewCryptoError("Decrypt", qerrors.ErrAuthenticationFailed)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, qerrors.NewCryptoError("Decrypt", err)
	}
	padded := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, body)

	unpadded, err := removePKCS7(padded, blockSize)
	if err != nil {
		return nil, qerrors.NewCryptoError("Decrypt", err)
	}
	if len(unpadded) < 2 {
		return nil, qerrors.NewCryptoError("Decrypt", qerrors.ErrInvalidCiphertext)
	}
	frontLen, backLen := int(unpadded[0]), int(unpadded[1])
	body2 := unpadded[2:]
	if frontLen+backLen > len(body2) {
		return nil, qerrors.NewCryptoError("Decrypt", qerrors.ErrInvalidCiphertext)
	}
	return body2[frontLen : len(body2)-backLen], nil
}

func randPadLen() (int, error) {
	b := make([]byte, 1)
	if err := SecureRandom(b); err != nil {
		return 0, err
	}
	return minPad + int(b[0])%(maxPad-minPad+1), nil
}

func macOver(key, iv, body []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(iv)
	h.Write(body)
	return h.Sum(nil)
}

func addPKCS7(data []byte, blockLen int) []byte {
	pad := blockLen - len(data)%blockLen
	out := make([]byte, len(data)+pad)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(pad)
	}
	return out
}

func removePKCS7(data []byte, blockLen int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockLen != 0 {
		return nil, qerrors.ErrInvalidCiphertext
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockLen || pad > len(data) {
		return nil, qerrors.ErrInvalidCiphertext
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, qerrors.ErrInvalidCiphertext
		}
	}
	return data[:len(data)-pad], nil
}
