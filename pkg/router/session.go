package router

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"

	"github.com/vcsms/vcsms/pkg/crypto"
	"github.com/vcsms/vcsms/pkg/directory"
	"github.com/vcsms/vcsms/pkg/message"
	"github.com/vcsms/vcsms/pkg/metrics"
	"github.com/vcsms/vcsms/pkg/wire"
)

var tracer = otel.Tracer("vcsms/router")

// Logger is the minimal structured-logging surface Session needs; satisfied
// by pkg/metrics.Logger.
type Logger interface {
	Warn(event string, fields map[string]any)
	Error(event string, fields map[string]any)
	Info(event string, fields map[string]any)
}

type nopLogger struct{}

func (nopLogger) Warn(string, map[string]any)  {}
func (nopLogger) Error(string, map[string]any) {}
func (nopLogger) Info(string, map[string]any)  {}

// Session is one authenticated connection: an in-worker (decrypt -> parse ->
// dispatch or relay) and an out-worker (drain outbox -> encrypt -> frame),
// sharing the socket and session key derived at handshake time (spec.md
// §4.5, §5).
type Session struct {
	ID        string
	socket    *wire.Socket
	key       []byte
	outbox    *Outbox
	registry  *Registry
	directory directory.Directory
	handlers  message.Handlers
	log       Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession wires a freshly handshaken connection into the registry and
// returns the Session ready for Start.
func NewSession(parent context.Context, id string, socket *wire.Socket, sessionKey []byte,
	registry *Registry, dir directory.Directory, handlers message.Handlers, log Logger) *Session {
	if log == nil {
		log = nopLogger{}
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		ID:        id,
		socket:    socket,
		key:       sessionKey,
		outbox:    registry.OutboxFor(id),
		registry:  registry,
		directory: dir,
		handlers:  handlers,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
	if displaced := registry.Bind(id, s); displaced != nil {
		displaced.Close()
	}
	return s
}

// Start spawns the in-worker and out-worker goroutines.
func (s *Session) Start() {
	s.wg.Add(2)
	go s.inWorker()
	go s.outWorker()
}

// Wait blocks until both workers have exited.
func (s *Session) Wait() { s.wg.Wait() }

// Close tears the session down: cancels both workers, closes the socket,
// unbinds from the registry, and logs the client out of the directory. The
// outbox itself is left untouched so buffered traffic survives (spec.md §8
// invariant 5).
func (s *Session) Close() {
	s.cancel()
	s.socket.Close()
	s.registry.Unbind(s.ID, s)
	if s.directory != nil {
		s.directory.Logout(s.ID)
	}
}

func (s *Session) inWorker() {
	defer s.wg.Done()
	for {
		frame, err := s.socket.Recv(s.ctx)
		if err != nil {
			// SocketException: tear the session down (which also stops the
			// out-worker); after cancellation Close has already run or the
			// process is shutting down. The outbox is retained either way.
			if s.ctx.Err() == nil {
				s.Close()
			}
			return
		}
		s.handleFrame(frame)
	}
}

func (s *Session) handleFrame(frame []byte) {
	_, span := tracer.Start(s.ctx, "vcsms.route")
	defer span.End()

	ivHex, ctHex, ok := strings.Cut(string(frame), ":")
	if !ok {
		metrics.Global().RecordRelayError("ciphertext_malformed")
		s.replyToken("CiphertextMalformed")
		return
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		metrics.Global().RecordRelayError("invalid_iv")
		s.replyToken("InvalidIV")
		return
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil {
		metrics.Global().RecordRelayError("message_decryption_failure")
		s.replyToken("MessageDecryptionFailure")
		return
	}
	plaintext, err := crypto.Decrypt(ct, s.key, iv)
	if err != nil {
		metrics.Global().RecordRelayError("message_decryption_failure")
		s.replyToken("MessageDecryptionFailure")
		return
	}

	recipient, rest, ok := message.SplitRecipient(plaintext)
	if !ok {
		metrics.Global().RecordRelayError("message_malformed")
		s.replyToken("MessageMalformed")
		return
	}

	if recipient == "0" {
		s.handleServerDirected(rest)
		return
	}

	relayed := s.ID + ":" + rest
	outbox := s.registry.OutboxFor(recipient)
	outbox.Push([]byte(relayed))
	metrics.Global().SetOutboxDepth(recipient, outbox.Len())
}

func (s *Session) handleServerDirected(rest string) {
	env, err := message.Parse(IncomingSchema, []byte("0:"+rest))
	if err != nil {
		if errors.Is(err, message.ErrUnknownType) {
			reply, _ := message.DispatchUnknown(s.handlers, s.ID, typeNameOf(rest))
			s.queueReply(reply)
			return
		}
		// Recognized type_name, bad arity or field encoding: spec.md §7's
		// "decrypted payload fails schema" case.
		metrics.Global().RecordRelayError("message_malformed")
		s.replyToken("MessageMalformed")
		return
	}
	reply, err := message.Dispatch(s.handlers, s.ID, env)
	if err != nil {
		s.log.Error("dispatch_error", map[string]any{"client_id": s.ID, "type": env.Type, "err": err.Error()})
		return
	}
	s.queueReply(reply)
}

// typeNameOf recovers the attempted type_name from a server-directed
// envelope's remainder ("type_name[:params…]") when message.Parse itself
// failed before it could produce an Envelope.
func typeNameOf(rest string) string {
	typeName, _, _ := strings.Cut(rest, ":")
	return typeName
}

func (s *Session) queueReply(reply *message.Reply) {
	if reply == nil {
		return
	}
	msg, err := message.Construct(ReplySchema, "0", reply.Type, reply.Params...)
	if err != nil {
		s.log.Error("reply_construct_error", map[string]any{"client_id": s.ID, "type": reply.Type, "err": err.Error()})
		return
	}
	s.outbox.Push(msg)
}

func (s *Session) replyToken(tokenType string) {
	msg, err := message.Construct(ReplySchema, "0", tokenType)
	if err != nil {
		return
	}
	s.outbox.Push(msg)
}

func (s *Session) outWorker() {
	defer s.wg.Done()
	for {
		msg, ok := s.outbox.Pop(s.ctx.Done())
		if !ok {
			return
		}
		iv := make([]byte, 16)
		if err := crypto.SecureRandom(iv); err != nil {
			s.log.Error("iv_generation_failed", map[string]any{"client_id": s.ID, "err": err.Error()})
			continue
		}
		ct, err := crypto.Encrypt(msg, s.key, iv)
		if err != nil {
			s.log.Error("encrypt_failed", map[string]any{"client_id": s.ID, "err": err.Error()})
			continue
		}
		frame := hex.EncodeToString(iv) + ":" + hex.EncodeToString(ct)
		if err := s.socket.Send([]byte(frame)); err != nil {
			s.log.Warn("send_failed", map[string]any{"client_id": s.ID, "err": err.Error()})
			return
		}
	}
}
