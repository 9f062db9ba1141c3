package router

import (
	"context"
	"crypto/rsa"
	"net"
	"strings"
	"sync"

	"github.com/vcsms/vcsms/pkg/crypto"
	"github.com/vcsms/vcsms/pkg/directory"
	"github.com/vcsms/vcsms/pkg/handshake"
	"github.com/vcsms/vcsms/pkg/identity"
	"github.com/vcsms/vcsms/pkg/message"
	"github.com/vcsms/vcsms/pkg/metrics"
	"github.com/vcsms/vcsms/pkg/wire"
)

// Listener runs the server accept loop: one handshake goroutine per inbound
// connection, gated by a connection-rate limiter so an unauthenticated flood
// cannot exhaust goroutines before any client has proven a key (spec.md §5,
// ambient hardening distinct from the application-level rate limiting the
// spec's Non-goals exclude).
type Listener struct {
	Self     *identity.KeyPair
	Group    *crypto.DHGroup
	Registry *Registry
	Dir      directory.Directory
	Handlers message.Handlers
	Log      Logger

	IPLimit        *IPRateLimiter
	HandshakeLimit *HandshakeLimiter
	Metrics        *metrics.Collector

	wg sync.WaitGroup
}

// Serve accepts connections on ln until ctx is cancelled or Accept fails.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	if l.Log == nil {
		l.Log = nopLogger{}
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				l.wg.Wait()
				return nil
			default:
				return err
			}
		}

		remoteIP, _, _ := strings.Cut(conn.RemoteAddr().String(), ":")
		if l.IPLimit != nil && !l.IPLimit.AllowConnection(remoteIP) {
			l.Log.Warn("connection_rejected_ip_limit", map[string]any{"ip": remoteIP})
			conn.Close()
			continue
		}
		if l.HandshakeLimit != nil && !l.HandshakeLimit.Allow() {
			l.Log.Warn("connection_rejected_rate_limit", map[string]any{"ip": remoteIP})
			if l.IPLimit != nil {
				l.IPLimit.ReleaseConnection(remoteIP)
			}
			conn.Close()
			continue
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			if l.IPLimit != nil {
				defer l.IPLimit.ReleaseConnection(remoteIP)
			}
			l.handleConn(ctx, conn)
		}()
	}
}

// Shutdown waits for every in-flight handshake/session goroutine spawned by
// Serve to exit.
func (l *Listener) Shutdown() { l.wg.Wait() }

func (l *Listener) handleConn(ctx context.Context, conn net.Conn) {
	socket := wire.New(conn)

	responder := &handshake.Responder{
		Self:  l.Self,
		Group: l.Group,
		Login: func(clientID string, pub *rsa.PublicKey) error {
			return l.Dir.Login(clientID, pub)
		},
	}

	result, err := responder.Run(ctx, socket)
	if err != nil {
		l.Log.Warn("handshake_failed", map[string]any{"err": err.Error()})
		if l.Metrics != nil {
			l.Metrics.RecordHandshake("failure")
		}
		socket.Close()
		return
	}
	if l.Metrics != nil {
		l.Metrics.RecordHandshake("success")
		l.Metrics.SessionStarted()
		defer l.Metrics.SessionEnded()
	}

	session := NewSession(ctx, result.PeerID, socket, result.SessionKey, l.Registry, l.Dir, l.Handlers, l.Log)
	l.Log.Info("session_established", map[string]any{"client_id": result.PeerID})
	session.Start()
	session.Wait()
}
