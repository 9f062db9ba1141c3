package clientconn

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/vcsms/vcsms/pkg/crypto"
	"github.com/vcsms/vcsms/pkg/handshake"
	"github.com/vcsms/vcsms/pkg/identity"
	"github.com/vcsms/vcsms/pkg/message"
)

// PeerSession is a pairwise forward-secret session key negotiated directly
// with another client via EstablishPeerSession (spec.md §1, §4.4's
// client-to-client handshake). Payloads sealed under it are opaque to the
// relay: the server only ever sees the outer client↔server frame.
type PeerSession struct {
	PeerID string
	key    []byte
}

// Seal encrypts plaintext under the pairwise session key, returning the
// lowercase-hex iv and ciphertext in the same shape as pkg/wire's frames
// (spec.md §6), ready to carry as the params of an application-level
// message type such as "SecureText".
func (p *PeerSession) Seal(plaintext []byte) (ivHex, ctHex string, err error) {
	iv := make([]byte, 16)
	if _, err := rand.Read(iv); err != nil {
		return "", "", fmt.Errorf("clientconn: peer session iv: %w", err)
	}
	ct, err := crypto.Encrypt(plaintext, p.key, iv)
	if err != nil {
		return "", "", fmt.Errorf("clientconn: peer session encrypt: %w", err)
	}
	return hex.EncodeToString(iv), hex.EncodeToString(ct), nil
}

// Open decrypts a Seal-produced iv/ciphertext pair under the pairwise
// session key.
func (p *PeerSession) Open(ivHex, ctHex string) ([]byte, error) {
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, fmt.Errorf("clientconn: peer session iv decode: %w", err)
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil {
		return nil, fmt.Errorf("clientconn: peer session ciphertext decode: %w", err)
	}
	return crypto.Decrypt(ct, p.key, iv)
}

// peerTransport satisfies pkg/handshake's unexported transport interface by
// tunnelling each handshake message as a PeerHandshake envelope addressed to
// the correspondent, relayed opaquely by the server like any other
// client-to-client message (spec.md §4.5's "no plaintext routing"
// invariant is not special-cased for this type).
type peerTransport struct {
	conn          *Conn
	correspondent string
	inbox         chan []byte
}

func (pt *peerTransport) Send(msg []byte) error {
	envelope, err := message.Construct(peerHandshakeSchema, pt.correspondent, "PeerHandshake",
		message.StrValue(hex.EncodeToString(msg)))
	if err != nil {
		return fmt.Errorf("clientconn: construct peer handshake envelope: %w", err)
	}
	return pt.conn.Send(envelope)
}

func (pt *peerTransport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case b, ok := <-pt.inbox:
		if !ok {
			return nil, fmt.Errorf("clientconn: peer handshake channel closed")
		}
		return b, nil
	case <-pt.conn.ctx.Done():
		return nil, fmt.Errorf("clientconn: connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// EstablishPeerSession negotiates a pairwise forward-secret session with
// correspondent, reusing pkg/handshake's Initiator/Responder over
// crypto.Group4096 and tunnelling every handshake message as an opaque
// PeerHandshake envelope (spec.md §4.4). Role is chosen deterministically
// by comparing the two Client IDs so either side can call this without an
// out-of-band signal: the lexicographically smaller ID runs Initiator (and
// so blocks first on Recv), the other runs Responder (whose first action is
// to Send its announce).
func (c *Conn) EstablishPeerSession(ctx context.Context, self *identity.KeyPair, correspondent string) (*PeerSession, error) {
	pt := &peerTransport{conn: c, correspondent: correspondent, inbox: c.peerInbox(correspondent)}

	var result *handshake.Result
	var err error
	if self.ID < correspondent {
		result, err = (&handshake.Initiator{
			Self:                self,
			Group:               crypto.Group4096,
			ExpectedFingerprint: correspondent,
		}).Run(ctx, pt)
	} else {
		result, err = (&handshake.Responder{
			Self:  self,
			Group: crypto.Group4096,
		}).Run(ctx, pt)
	}
	if err != nil {
		return nil, err
	}
	return &PeerSession{PeerID: result.PeerID, key: result.SessionKey}, nil
}
