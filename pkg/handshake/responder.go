package handshake

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"go.opentelemetry.io/otel"

	"github.com/vcsms/vcsms/pkg/crypto"
	"github.com/vcsms/vcsms/pkg/identity"
)

var tracer = otel.Tracer("vcsms/handshake")

// Responder runs the server side (or the callee side of a pairwise
// client-to-client handshake) of the four-phase authenticated DH handshake.
type Responder struct {
	Self  *identity.KeyPair
	Group *crypto.DHGroup
	Login LoginFunc // nil for a pairwise client-to-client responder
}

// Run drives the handshake to completion or returns an *AbortError naming
// the token that was sent to the peer.
func (r *Responder) Run(ctx context.Context, t transport) (*Result, error) {
	ctx, span := tracer.Start(ctx, "vcsms.handshake.responder")
	defer span.End()

	group := r.Group
	if group == nil {
		group = crypto.Group2048
	}

	// Phase 1: announce our public key.
	if err := t.Send([]byte(identity.CanonicalSerialization(r.Self.Public))); err != nil {
		return nil, abort("announce", TokenMalformedIdentity, err)
	}

	// Phase 2: await the peer's identity.
	line, err := recvLine(ctx, t, "identity")
	if err != nil {
		return nil, err
	}
	parts := splitN3(line, 3)
	if len(parts) != 3 {
		sendToken(t, TokenMalformedIdentity)
		return nil, abort("identity", TokenMalformedIdentity, fmt.Errorf("expected client_id:exp:mod"))
	}
	claimedID, expHex, modHex := parts[0], parts[1], parts[2]
	peerPub, err := identity.ParsePublicKey(expHex, modHex)
	if err != nil {
		sendToken(t, TokenMalformedIdentity)
		return nil, abort("identity", TokenMalformedIdentity, err)
	}
	if identity.Fingerprint(peerPub) != claimedID {
		sendToken(t, TokenPubKeyIDMismatch)
		return nil, abort("identity", TokenPubKeyIDMismatch, fmt.Errorf("fingerprint mismatch"))
	}

	// Phase 3: send our signed DH public.
	dhPriv, err := group.GeneratePrivate()
	if err != nil {
		return nil, abort("dh-send", TokenMalformedDiffieHellman, err)
	}
	dhPub := crypto.DHPublic(dhPriv, group)
	dhPubHex := dhPub.Text(16)
	sig, err := crypto.Sign([]byte(dhPubHex), r.Self.Private)
	if err != nil {
		return nil, abort("dh-send", TokenMalformedDiffieHellman, err)
	}
	if err := t.Send([]byte(dhPubHex + ":" + hex.EncodeToString(sig))); err != nil {
		return nil, abort("dh-send", TokenMalformedDiffieHellman, err)
	}

	// Phase 4: await the peer's signed DH public.
	line, err = recvLine(ctx, t, "dh-recv")
	if err != nil {
		return nil, err
	}
	dhParts := splitN3(line, 2)
	if len(dhParts) != 2 {
		sendToken(t, TokenMalformedDiffieHellman)
		return nil, abort("dh-recv", TokenMalformedDiffieHellman, fmt.Errorf("expected dh_pub:sig"))
	}
	peerDHPubHex, peerSigHex := dhParts[0], dhParts[1]
	peerDHPub, ok := new(big.Int).SetString(peerDHPubHex, 16)
	if !ok {
		sendToken(t, TokenMalformedDiffieHellman)
		return nil, abort("dh-recv", TokenMalformedDiffieHellman, fmt.Errorf("bad dh public"))
	}
	peerSig, err := hex.DecodeString(peerSigHex)
	if err != nil {
		sendToken(t, TokenMalformedDiffieHellman)
		return nil, abort("dh-recv", TokenMalformedDiffieHellman, err)
	}
	if !crypto.Verify([]byte(peerDHPubHex), peerSig, peerPub) {
		sendToken(t, TokenBadSignature)
		return nil, abort("dh-recv", TokenBadSignature, fmt.Errorf("signature verification failed"))
	}

	// Phase 5: derive the session key.
	shared := crypto.DHShared(dhPriv, peerDHPub, group)
	digest := crypto.Hash(shared.Bytes())
	sessionKey := digest[:]

	// Phase 6: bind the registry (server-side only).
	if r.Login != nil {
		if err := r.Login(claimedID, peerPub); err != nil {
			sendToken(t, TokenIDCollision)
			return nil, abort("registry", TokenIDCollision, err)
		}
	}

	// Phase 7: key confirmation challenge.
	iv := make([]byte, 16)
	if _, err := rand.Read(iv); err != nil {
		return nil, abort("challenge", TokenMalformedChallenge, err)
	}
	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		return nil, abort("challenge", TokenMalformedChallenge, err)
	}
	ct, err := crypto.Encrypt(challenge, sessionKey, iv)
	if err != nil {
		return nil, abort("challenge", TokenMalformedChallenge, err)
	}
	if err := t.Send([]byte(hex.EncodeToString(iv) + ":" + hex.EncodeToString(ct))); err != nil {
		return nil, abort("challenge", TokenMalformedChallenge, err)
	}

	respLine, err := recvLine(ctx, t, "challenge-response")
	if err != nil {
		return nil, err
	}
	respBytes, err := hex.DecodeString(respLine)
	if err != nil {
		sendToken(t, TokenMalformedResponse)
		return nil, abort("challenge-response", TokenMalformedResponse, err)
	}
	if !crypto.ConstantTimeCompare(respBytes, challenge) {
		sendToken(t, TokenIncorrect)
		return nil, abort("challenge-response", TokenIncorrect, fmt.Errorf("challenge mismatch"))
	}

	if err := sendToken(t, TokenOK); err != nil {
		return nil, abort("confirm", TokenOK, err)
	}

	return &Result{PeerID: claimedID, SessionKey: sessionKey}, nil
}
