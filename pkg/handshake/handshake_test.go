package handshake

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vcsms/vcsms/pkg/identity"
)

// pipeTransport is an in-memory transport double driving the handshake state
// machines over a pair of channels, without a real net.Conn.
type pipeTransport struct {
	out chan []byte
	in  chan []byte
}

func newPipePair() (client, server *pipeTransport) {
	a := make(chan []byte, 16)
	b := make(chan []byte, 16)
	return &pipeTransport{out: a, in: b}, &pipeTransport{out: b, in: a}
}

func (p *pipeTransport) Send(msg []byte) error {
	cp := make([]byte, len(msg))
	copy(cp, msg)
	p.out <- cp
	return nil
}

func (p *pipeTransport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case m := <-p.in:
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func genKeyPair(t *testing.T) *identity.KeyPair {
	t.Helper()
	kp, err := identity.GenerateKeyPair(1024) // small for fast tests
	if err != nil {
		t.Fatalf("identity.GenerateKeyPair: %v", err)
	}
	return kp
}

func TestHandshakeRoundTrip(t *testing.T) {
	server := genKeyPair(t)
	client := genKeyPair(t)

	clientTransport, serverTransport := newPipePair()

	var loggedID string
	var loggedPub *rsa.PublicKey
	responder := &Responder{
		Self: server,
		Login: func(clientID string, pub *rsa.PublicKey) error {
			loggedID, loggedPub = clientID, pub
			return nil
		},
	}
	initiator := &Initiator{Self: client, ExpectedFingerprint: server.ID}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type outcome struct {
		res *Result
		err error
	}
	serverCh := make(chan outcome, 1)
	clientCh := make(chan outcome, 1)

	go func() {
		res, err := responder.Run(ctx, serverTransport)
		serverCh <- outcome{res, err}
	}()
	go func() {
		res, err := initiator.Run(ctx, clientTransport)
		clientCh <- outcome{res, err}
	}()

	sOut := <-serverCh
	cOut := <-clientCh

	if sOut.err != nil {
		t.Fatalf("Responder.Run: %v", sOut.err)
	}
	if cOut.err != nil {
		t.Fatalf("Initiator.Run: %v", cOut.err)
	}

	if sOut.res.PeerID != client.ID {
		t.Errorf("server saw PeerID %q, want %q", sOut.res.PeerID, client.ID)
	}
	if cOut.res.PeerID != server.ID {
		t.Errorf("client saw PeerID %q, want %q", cOut.res.PeerID, server.ID)
	}
	if string(sOut.res.SessionKey) != string(cOut.res.SessionKey) {
		t.Error("client and server derived different session keys")
	}
	if len(sOut.res.SessionKey) != 32 {
		t.Errorf("session key length = %d, want 32", len(sOut.res.SessionKey))
	}
	if loggedID != client.ID {
		t.Errorf("Login called with ID %q, want %q", loggedID, client.ID)
	}
	if loggedPub.N.Cmp(client.Public.N) != 0 {
		t.Error("Login called with wrong public key")
	}
}

func TestHandshakeFingerprintMismatchAborted(t *testing.T) {
	server := genKeyPair(t)
	client := genKeyPair(t)

	clientTransport, serverTransport := newPipePair()

	responder := &Responder{Self: server}
	initiator := &Initiator{Self: client, ExpectedFingerprint: "0000not-the-real-fingerprint"}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go responder.Run(ctx, serverTransport)

	_, err := initiator.Run(ctx, clientTransport)
	var abortErr *AbortError
	if !errors.As(err, &abortErr) {
		t.Fatalf("Initiator.Run error = %v, want *AbortError", err)
	}
	if abortErr.Token != TokenPubKeyFingerprintMismatch {
		t.Errorf("Token = %v, want %v", abortErr.Token, TokenPubKeyFingerprintMismatch)
	}
}

func TestHandshakeLoginRejectionAbortsWithIDCollision(t *testing.T) {
	server := genKeyPair(t)
	client := genKeyPair(t)

	clientTransport, serverTransport := newPipePair()

	responder := &Responder{
		Self: server,
		Login: func(clientID string, pub *rsa.PublicKey) error {
			return fmt.Errorf("already registered")
		},
	}
	initiator := &Initiator{Self: client}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go initiator.Run(ctx, clientTransport)

	_, err := responder.Run(ctx, serverTransport)
	var abortErr *AbortError
	if !errors.As(err, &abortErr) {
		t.Fatalf("Responder.Run error = %v, want *AbortError", err)
	}
	if abortErr.Token != TokenIDCollision {
		t.Errorf("Token = %v, want %v", abortErr.Token, TokenIDCollision)
	}
}

func TestHandshakeRejectsWrongClaimedID(t *testing.T) {
	server := genKeyPair(t)
	client := genKeyPair(t)
	impostor := genKeyPair(t)

	clientTransport, serverTransport := newPipePair()
	responder := &Responder{Self: server}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Drive the client side manually, claiming impostor's ID with client's key.
	go func() {
		recvLine(ctx, clientTransport, "announce")
		line := impostor.ID + ":" + identity.CanonicalSerialization(client.Public)
		clientTransport.Send([]byte(line))
	}()

	_, err := responder.Run(ctx, serverTransport)
	var abortErr *AbortError
	if !errors.As(err, &abortErr) {
		t.Fatalf("Responder.Run error = %v, want *AbortError", err)
	}
	if abortErr.Token != TokenPubKeyIDMismatch {
		t.Errorf("Token = %v, want %v", abortErr.Token, TokenPubKeyIDMismatch)
	}
}

func TestAbortErrorFormatting(t *testing.T) {
	err := abort("dh-recv", TokenBadSignature, errors.New("boom"))
	if err.Unwrap() == nil || err.Unwrap().Error() != "boom" {
		t.Errorf("Unwrap() = %v, want boom", err.Unwrap())
	}
	want := "BadSignature (dh-recv): boom"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
