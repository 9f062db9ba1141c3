// Package handshake implements the VCSMS four-phase authenticated
// Diffie-Hellman handshake (spec.md §4.4) as a pair of symmetric state
// machines, Responder (server side, or the callee in a pairwise
// client-to-client handshake) and Initiator (client side / caller).
package handshake

// Token is a literal ASCII abort or completion signal sent in the clear
// before the session key is confirmed. Forbidden on the wire after the
// handshake completes (all post-handshake bytes are ciphertext frames).
type Token string

const (
	TokenMalformedIdentity       Token = "MalformedIdentity"
	TokenPubKeyIDMismatch        Token = "PubKeyIdMismatch"
	TokenPubKeyFingerprintMismatch Token = "PubKeyFpMismatch"
	TokenMalformedDiffieHellman  Token = "MalformedDiffieHellman"
	TokenBadSignature            Token = "BadSignature"
	TokenIDCollision             Token = "IDCollision"
	TokenMalformedChallenge      Token = "MalformedChallenge"
	TokenCouldNotDecrypt         Token = "CouldNotDecrypt"
	TokenMalformedResponse       Token = "MalformedResponse"
	TokenIncorrect               Token = "Incorrect"
	TokenOK                      Token = "OK"
)

// AbortError is returned when a handshake phase fails; Token is the literal
// value that was (or should be) sent to the peer before closing.
type AbortError struct {
	Phase string
	Token Token
	Err   error
}

func (e *AbortError) Error() string {
	return string(e.Token) + " (" + e.Phase + "): " + e.Err.Error()
}

func (e *AbortError) Unwrap() error { return e.Err }

func abort(phase string, token Token, err error) *AbortError {
	return &AbortError{Phase: phase, Token: token, Err: err}
}
