// Package clientconn implements the client side of a VCSMS connection: the
// mirror image of pkg/router's in-worker/out-worker pair, running over a
// dialed pkg/wire.Socket once pkg/handshake.Initiator has established a
// session key (spec.md §4.6, grounded on original_source's
// vcsms/server_connection.py).
package clientconn

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/vcsms/vcsms/pkg/crypto"
	"github.com/vcsms/vcsms/pkg/handshake"
	"github.com/vcsms/vcsms/pkg/identity"
	"github.com/vcsms/vcsms/pkg/message"
	"github.com/vcsms/vcsms/pkg/wire"
)

var tracer = otel.Tracer("vcsms/clientconn")

// Logger is the minimal structured-logging surface Conn needs.
type Logger interface {
	Warn(event string, fields map[string]any)
	Error(event string, fields map[string]any)
	Info(event string, fields map[string]any)
}

type nopLogger struct{}

func (nopLogger) Warn(string, map[string]any)  {}
func (nopLogger) Error(string, map[string]any) {}
func (nopLogger) Info(string, map[string]any)  {}

// defaultQueueCapacity bounds the in/out queue backlog before Send blocks
// or Recv catches up.
const defaultQueueCapacity = 256

// Conn is an authenticated, encrypted connection to the VCSMS server.
// Pairwise sessions with peers reached through it are PeerSession values.
type Conn struct {
	socket *wire.Socket
	key    []byte
	peerID string // "0" for the server itself

	inQueue  chan []byte
	outQueue chan []byte
	sendMu   sync.Mutex

	peerMu    sync.Mutex
	peerChans map[string]chan []byte // keyed by correspondent Client ID, fed by inWorker's PeerHandshake demux

	log Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// Dial opens a TCP connection to addr, verifies the server's fingerprint
// matches expectedFingerprint, and runs the client-initiator handshake
// (spec.md §4.4). The returned Conn's worker goroutines are already
// running.
func Dial(ctx context.Context, addr string, expectedFingerprint string, self *identity.KeyPair, group *crypto.DHGroup, log Logger) (*Conn, error) {
	if log == nil {
		log = nopLogger{}
	}
	rawConn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("clientconn: dial %s: %w", addr, err)
	}
	socket := wire.New(rawConn)

	initiator := &handshake.Initiator{
		Self:                self,
		Group:               group,
		ExpectedFingerprint: expectedFingerprint,
	}
	result, err := initiator.Run(ctx, socket)
	if err != nil {
		socket.Close()
		return nil, err
	}

	connCtx, cancel := context.WithCancel(ctx)
	c := &Conn{
		socket:   socket,
		key:      result.SessionKey,
		peerID:   result.PeerID,
		inQueue:  make(chan []byte, defaultQueueCapacity),
		outQueue: make(chan []byte, defaultQueueCapacity),
		log:      log,
		ctx:      connCtx,
		cancel:   cancel,
	}
	c.wg.Add(2)
	go c.inWorker()
	go c.outWorker()
	log.Info("connected", map[string]any{"peer_id": result.PeerID})
	return c, nil
}

// PeerID returns the Client ID authenticated at the far end of this
// connection (identity.ServerID for a connection to the server itself).
func (c *Conn) PeerID() string { return c.peerID }

// Send queues a fully-formed plaintext envelope ("recipient:type:params…",
// see pkg/message.Construct) to be encrypted and sent to the server.
func (c *Conn) Send(envelope []byte) error {
	select {
	case c.outQueue <- envelope:
		return nil
	case <-c.ctx.Done():
		return fmt.Errorf("clientconn: connection closed")
	}
}

// Recv blocks until a decrypted plaintext envelope arrives from the server,
// ctx is cancelled, or the connection closes.
func (c *Conn) Recv(ctx context.Context) ([]byte, error) {
	select {
	case msg, ok := <-c.inQueue:
		if !ok {
			return nil, fmt.Errorf("clientconn: connection closed")
		}
		return msg, nil
	case <-c.ctx.Done():
		return nil, fmt.Errorf("clientconn: connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close drains any queued outgoing sends, then closes the socket. It
// mirrors server_connection.py's close(): acquire the send lock only once
// the out-queue is empty, so a send racing with Close either completes or
// is cleanly rejected, never half-written.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for len(c.outQueue) > 0 {
			time.Sleep(time.Millisecond)
		}
		c.sendMu.Lock()
		c.cancel()
		err = c.socket.Close()
		c.sendMu.Unlock()
		c.wg.Wait()
	})
	return err
}

func (c *Conn) inWorker() {
	defer c.wg.Done()
	defer close(c.inQueue)
	for {
		frame, err := c.socket.Recv(c.ctx)
		if err != nil {
			return
		}
		_, span := tracer.Start(c.ctx, "vcsms.clientconn.recv")

		ivHex, ctHex, ok := strings.Cut(string(frame), ":")
		if !ok {
			c.log.Warn("malformed_frame", nil)
			span.End()
			continue
		}
		iv, err := hex.DecodeString(ivHex)
		if err != nil {
			c.log.Warn("invalid_iv", nil)
			span.End()
			continue
		}
		ct, err := hex.DecodeString(ctHex)
		if err != nil {
			c.log.Warn("invalid_ciphertext", nil)
			span.End()
			continue
		}
		plaintext, err := crypto.Decrypt(ct, c.key, iv)
		if err != nil {
			c.log.Warn("decryption_failed", nil)
			span.End()
			continue
		}
		span.End()

		if sender, payload, ok := parsePeerHandshakeEnvelope(plaintext); ok {
			c.deliverPeerHandshake(sender, payload)
			continue
		}

		select {
		case c.inQueue <- plaintext:
		case <-c.ctx.Done():
			return
		}
	}
}

// peerHandshakeSchema is the client-only vocabulary EstablishPeerSession
// speaks to a correspondent; the server never parses it (relayed envelopes
// are re-addressed by raw string splitting, spec.md §4.5), so it never
// needs to be registered anywhere but here and in peerTransport.
var peerHandshakeSchema = message.Schema{
	"PeerHandshake": {message.Str()},
}

// parsePeerHandshakeEnvelope reports whether plaintext is a PeerHandshake
// envelope relayed to us, returning the sender's Client ID (carried in
// Envelope.Recipient per the relay's sender-substitution convention, spec.md
// §4.5) and the decoded handshake payload.
func parsePeerHandshakeEnvelope(plaintext []byte) (sender string, payload []byte, ok bool) {
	env, err := message.Parse(peerHandshakeSchema, plaintext)
	if err != nil || env.Type != "PeerHandshake" {
		return "", nil, false
	}
	payload, err = hex.DecodeString(env.Params[0].Str)
	if err != nil {
		return "", nil, false
	}
	return env.Recipient, payload, true
}

func (c *Conn) peerInbox(correspondent string) chan []byte {
	c.peerMu.Lock()
	defer c.peerMu.Unlock()
	if c.peerChans == nil {
		c.peerChans = make(map[string]chan []byte)
	}
	ch, ok := c.peerChans[correspondent]
	if !ok {
		ch = make(chan []byte, 4)
		c.peerChans[correspondent] = ch
	}
	return ch
}

func (c *Conn) deliverPeerHandshake(sender string, payload []byte) {
	ch := c.peerInbox(sender)
	select {
	case ch <- payload:
	default:
		c.log.Warn("peer_handshake_inbox_full", map[string]any{"peer_id": sender})
	}
}

func (c *Conn) outWorker() {
	defer c.wg.Done()
	for {
		select {
		case msg := <-c.outQueue:
			c.sendMu.Lock()
			iv := make([]byte, 16)
			if _, err := rand.Read(iv); err != nil {
				c.log.Error("iv_generation_failed", map[string]any{"err": err.Error()})
				c.sendMu.Unlock()
				continue
			}
			ct, err := crypto.Encrypt(msg, c.key, iv)
			if err != nil {
				c.log.Error("encrypt_failed", map[string]any{"err": err.Error()})
				c.sendMu.Unlock()
				continue
			}
			frame := hex.EncodeToString(iv) + ":" + hex.EncodeToString(ct)
			err = c.socket.Send([]byte(frame))
			c.sendMu.Unlock()
			if err != nil {
				c.log.Warn("send_failed", map[string]any{"err": err.Error()})
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
