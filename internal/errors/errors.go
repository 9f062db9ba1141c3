// Package errors defines the error taxonomy shared across the VCSMS
// packages. These errors provide detailed information for debugging while
// maintaining security by not leaking sensitive information (key material,
// plaintext) in error messages.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the symmetric cipher façade (pkg/crypto).
var (
	// ErrInvalidKeySize indicates that a key has an incorrect size
	ErrInvalidKeySize = errors.New("crypto: invalid key size")

	// ErrInvalidCiphertext indicates that ciphertext is malformed or invalid
	ErrInvalidCiphertext = errors.New("crypto: invalid ciphertext")

	// ErrAuthenticationFailed indicates HMAC verification failed
	ErrAuthenticationFailed = errors.New("crypto: authentication failed")

	// ErrInvalidNonce indicates the IV size is incorrect
	ErrInvalidNonce = errors.New("crypto: invalid IV size")

	// ErrCiphertextTooShort indicates ciphertext is too short to be valid
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")
)

// Sentinel errors for message encoding and routing.
var (
	// ErrInvalidMessage indicates a message is malformed in some way not
	// covered by the more specific sentinels below.
	ErrInvalidMessage = errors.New("message: invalid message")

	// ErrUnknownMessageType indicates a type_name absent from the schema
	// that parsed or constructed the message.
	ErrUnknownMessageType = errors.New("message: unknown type")

	// ErrMessageArity indicates a type_name recognized by the schema but
	// supplied with the wrong number of parameters.
	ErrMessageArity = errors.New("message: arity mismatch")

	// ErrMessageEncode indicates a field failed to encode under its
	// declared SemanticType/Encoding while constructing a message.
	ErrMessageEncode = errors.New("message: encode failure")

	// ErrMessageDecode indicates a field failed to decode under its
	// declared SemanticType/Encoding while parsing a message.
	ErrMessageDecode = errors.New("message: decode failure")

	// ErrIDCollision indicates the directory already holds a different key
	// for this client ID.
	ErrIDCollision = errors.New("directory: client ID collision")
)

// CryptoError wraps a cryptographic error with additional context
type CryptoError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// NewCryptoError creates a new CryptoError
func NewCryptoError(op string, err error) *CryptoError {
	return &CryptoError{Op: op, Err: err}
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
