package handshake

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/vcsms/vcsms/pkg/crypto"
	"github.com/vcsms/vcsms/pkg/identity"
)

// Initiator runs the client side (or the caller side of a pairwise
// client-to-client handshake) of the four-phase authenticated DH handshake.
type Initiator struct {
	Self  *identity.KeyPair
	Group *crypto.DHGroup

	// ExpectedFingerprint, if non-empty, is the peer's Client ID the caller
	// already trusts (e.g. from a loaded ServerRecord); a mismatch aborts
	// locally with TokenPubKeyFingerprintMismatch before any further phase
	// runs, matching the original's "PubKeyFpMismatch" abort path on the
	// side that already knows who it expects to talk to.
	ExpectedFingerprint string
}

// Run drives the handshake to completion or returns an *AbortError.
func (in *Initiator) Run(ctx context.Context, t transport) (*Result, error) {
	group := in.Group
	if group == nil {
		group = crypto.Group2048
	}

	// Phase 1: receive the peer's announced public key.
	line, err := recvLine(ctx, t, "announce")
	if err != nil {
		return nil, err
	}
	parts := splitN3(line, 2)
	if len(parts) != 2 {
		return nil, abort("announce", TokenMalformedIdentity, fmt.Errorf("expected exp:mod"))
	}
	peerExpHex, peerModHex := parts[0], parts[1]
	peerPub, err := identity.ParsePublicKey(peerExpHex, peerModHex)
	if err != nil {
		return nil, abort("announce", TokenMalformedIdentity, err)
	}
	if in.ExpectedFingerprint != "" && identity.Fingerprint(peerPub) != in.ExpectedFingerprint {
		return nil, abort("announce", TokenPubKeyFingerprintMismatch, fmt.Errorf("unexpected peer fingerprint"))
	}

	// Phase 2: send our identity.
	identityLine := in.Self.ID + ":" + identity.CanonicalSerialization(in.Self.Public)
	if err := t.Send([]byte(identityLine)); err != nil {
		return nil, abort("identity", TokenMalformedIdentity, err)
	}

	// Phase 3: await the peer's signed DH public.
	line, err = recvLine(ctx, t, "dh-recv")
	if err != nil {
		return nil, err
	}
	dhParts := splitN3(line, 2)
	if len(dhParts) != 2 {
		return nil, abort("dh-recv", TokenMalformedDiffieHellman, fmt.Errorf("expected dh_pub:sig"))
	}
	peerDHPubHex, peerSigHex := dhParts[0], dhParts[1]
	peerDHPub, ok := new(big.Int).SetString(peerDHPubHex, 16)
	if !ok {
		return nil, abort("dh-recv", TokenMalformedDiffieHellman, fmt.Errorf("bad dh public"))
	}
	peerSig, err := hex.DecodeString(peerSigHex)
	if err != nil {
		return nil, abort("dh-recv", TokenMalformedDiffieHellman, err)
	}
	if !crypto.Verify([]byte(peerDHPubHex), peerSig, peerPub) {
		return nil, abort("dh-recv", TokenBadSignature, fmt.Errorf("signature verification failed"))
	}

	// Phase 4: send our signed DH public.
	dhPriv, err := group.GeneratePrivate()
	if err != nil {
		return nil, abort("dh-send", TokenMalformedDiffieHellman, err)
	}
	dhPub := crypto.DHPublic(dhPriv, group)
	dhPubHex := dhPub.Text(16)
	sig, err := crypto.Sign([]byte(dhPubHex), in.Self.Private)
	if err != nil {
		return nil, abort("dh-send", TokenMalformedDiffieHellman, err)
	}
	if err := t.Send([]byte(dhPubHex + ":" + hex.EncodeToString(sig))); err != nil {
		return nil, abort("dh-send", TokenMalformedDiffieHellman, err)
	}

	// Phase 5: derive the session key.
	shared := crypto.DHShared(dhPriv, peerDHPub, group)
	digest := crypto.Hash(shared.Bytes())
	sessionKey := digest[:]

	// Phase 7: key confirmation challenge.
	line, err = recvLine(ctx, t, "challenge")
	if err != nil {
		return nil, err
	}
	chParts := splitN3(line, 2)
	if len(chParts) != 2 {
		return nil, abort("challenge", TokenMalformedChallenge, fmt.Errorf("expected iv:ciphertext"))
	}
	iv, err := hex.DecodeString(chParts[0])
	if err != nil {
		return nil, abort("challenge", TokenMalformedChallenge, err)
	}
	ct, err := hex.DecodeString(chParts[1])
	if err != nil {
		return nil, abort("challenge", TokenMalformedChallenge, err)
	}
	plaintext, err := crypto.Decrypt(ct, sessionKey, iv)
	if err != nil {
		return nil, abort("challenge", TokenCouldNotDecrypt, err)
	}
	if err := t.Send([]byte(hex.EncodeToString(plaintext))); err != nil {
		return nil, abort("challenge-response", TokenMalformedResponse, err)
	}

	finalTok, err := recvLine(ctx, t, "confirm")
	if err != nil {
		return nil, err
	}
	if Token(finalTok) != TokenOK {
		return nil, abort("confirm", Token(finalTok), fmt.Errorf("handshake rejected: %s", finalTok))
	}

	return &Result{PeerID: identity.Fingerprint(peerPub), SessionKey: sessionKey}, nil
}
