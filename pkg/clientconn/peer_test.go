package clientconn

import (
	"context"
	"encoding/hex"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vcsms/vcsms/pkg/crypto"
	"github.com/vcsms/vcsms/pkg/handshake"
	"github.com/vcsms/vcsms/pkg/identity"
	"github.com/vcsms/vcsms/pkg/message"
	"github.com/vcsms/vcsms/pkg/wire"
)

// relayedTestServer is a minimal stand-in for pkg/router: it completes the
// client↔server handshake for each connection, then relays non-"0"
// envelopes by re-addressing with the authenticated sender (spec.md §4.5),
// exactly enough to drive EstablishPeerSession end-to-end without pulling
// in pkg/router itself.
type relayedTestServer struct {
	selfKP *identity.KeyPair

	mu       sync.Mutex
	outboxes map[string]chan []byte
}

func newRelayedTestServer(t *testing.T) (*relayedTestServer, string) {
	t.Helper()
	kp, err := identity.GenerateKeyPair(1024)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	rs := &relayedTestServer{selfKP: kp, outboxes: make(map[string]chan []byte)}
	go rs.serve(t, ln)
	return rs, ln.Addr().String()
}

func (rs *relayedTestServer) outboxFor(id string) chan []byte {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	ch, ok := rs.outboxes[id]
	if !ok {
		ch = make(chan []byte, 16)
		rs.outboxes[id] = ch
	}
	return ch
}

func (rs *relayedTestServer) serve(t *testing.T, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go rs.handle(t, conn)
	}
}

func (rs *relayedTestServer) handle(t *testing.T, conn net.Conn) {
	socket := wire.New(conn)
	responder := &handshake.Responder{Self: rs.selfKP}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	result, err := responder.Run(ctx, socket)
	cancel()
	if err != nil {
		return
	}
	clientID := result.PeerID
	key := result.SessionKey
	outbox := rs.outboxFor(clientID)

	go func() {
		for {
			msg, ok := <-outbox
			if !ok {
				return
			}
			iv, err := crypto.SecureRandomBytes(16)
			if err != nil {
				return
			}
			ct, err := crypto.Encrypt(msg, key, iv)
			if err != nil {
				return
			}
			frame := hex.EncodeToString(iv) + ":" + hex.EncodeToString(ct)
			if err := socket.Send([]byte(frame)); err != nil {
				return
			}
		}
	}()

	for {
		frame, err := socket.Recv(context.Background())
		if err != nil {
			return
		}
		ivHex, ctHex, ok := strings.Cut(string(frame), ":")
		if !ok {
			continue
		}
		iv, err := hex.DecodeString(ivHex)
		if err != nil {
			continue
		}
		ct, err := hex.DecodeString(ctHex)
		if err != nil {
			continue
		}
		plaintext, err := crypto.Decrypt(ct, key, iv)
		if err != nil {
			continue
		}
		recipient, rest, ok := message.SplitRecipient(plaintext)
		if !ok {
			continue
		}
		rs.outboxFor(recipient) <- []byte(clientID + ":" + rest)
	}
}

func TestEstablishPeerSessionDerivesMatchingKeys(t *testing.T) {
	rs, addr := newRelayedTestServer(t)

	aliceKP, err := identity.GenerateKeyPair(1024)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	bobKP, err := identity.GenerateKeyPair(1024)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice, err := Dial(ctx, addr, rs.selfKP.ID, aliceKP, nil, nil)
	if err != nil {
		t.Fatalf("Dial alice: %v", err)
	}
	defer alice.Close()
	bob, err := Dial(ctx, addr, rs.selfKP.ID, bobKP, nil, nil)
	if err != nil {
		t.Fatalf("Dial bob: %v", err)
	}
	defer bob.Close()

	var aliceSession, bobSession *PeerSession
	var aliceErr, bobErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		aliceSession, aliceErr = alice.EstablishPeerSession(ctx, aliceKP, bobKP.ID)
	}()
	go func() {
		defer wg.Done()
		bobSession, bobErr = bob.EstablishPeerSession(ctx, bobKP, aliceKP.ID)
	}()
	wg.Wait()

	if aliceErr != nil {
		t.Fatalf("alice EstablishPeerSession: %v", aliceErr)
	}
	if bobErr != nil {
		t.Fatalf("bob EstablishPeerSession: %v", bobErr)
	}
	if aliceSession.PeerID != bobKP.ID {
		t.Errorf("alice session PeerID = %q, want %q", aliceSession.PeerID, bobKP.ID)
	}
	if bobSession.PeerID != aliceKP.ID {
		t.Errorf("bob session PeerID = %q, want %q", bobSession.PeerID, aliceKP.ID)
	}

	ivHex, ctHex, err := aliceSession.Seal([]byte("hello bob"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	plaintext, err := bobSession.Open(ivHex, ctHex)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(plaintext) != "hello bob" {
		t.Errorf("plaintext = %q, want %q", plaintext, "hello bob")
	}
}

func TestPeerSessionOpenRejectsWrongKey(t *testing.T) {
	keyA, err := crypto.SecureRandomBytes(32)
	if err != nil {
		t.Fatalf("SecureRandomBytes: %v", err)
	}
	keyB, err := crypto.SecureRandomBytes(32)
	if err != nil {
		t.Fatalf("SecureRandomBytes: %v", err)
	}
	sessionA := &PeerSession{PeerID: "a", key: keyA}
	sessionB := &PeerSession{PeerID: "b", key: keyB}

	ivHex, ctHex, err := sessionA.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := sessionB.Open(ivHex, ctHex); err == nil {
		t.Error("Open with the wrong pairwise key should fail")
	}
}
