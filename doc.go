// Package vcsms provides a secure end-to-end encrypted messaging relay:
// a server that authenticates clients by RSA public-key fingerprint,
// establishes a per-connection symmetric session via signed Diffie-Hellman,
// and routes encrypted messages between authenticated clients. The server
// decrypts only the client-to-server session layer to read each envelope's
// recipient; it never parses relayed message bodies, and bodies sealed under
// a pairwise clientconn.PeerSession stay opaque to it.
//
// # Quick Start
//
// Embedding the client connection:
//
//	import "github.com/vcsms/vcsms/pkg/clientconn"
//
//	conn, err := clientconn.Dial(ctx, "relay.example.com:7777", serverFingerprint, self, nil, logger)
//	conn.Send(envelope)
//	reply, err := conn.Recv(ctx)
//
// Running the server's routing fabric:
//
//	import "github.com/vcsms/vcsms/pkg/router"
//
//	registry := router.NewRegistry(0)
//	listener := &router.Listener{Self: serverKeys, Registry: registry, Dir: directory, Handlers: handlers}
//	listener.Serve(ctx, tcpListener)
//
// # Package Structure
//
//   - pkg/identity: RSA keypairs, Client ID derivation, key persistence
//   - pkg/crypto: AES-256-CBC+HMAC symmetric cipher, RSA-PSS signatures, DH groups
//   - pkg/message: typed message schema, codec, and dispatch table
//   - pkg/wire: newline-framed encrypted socket transport
//   - pkg/handshake: the four-phase authenticated Diffie-Hellman handshake
//   - pkg/directory: the server's client-ID-to-public-key directory
//   - pkg/router: the server-side routing fabric (sessions, outboxes, registry)
//   - pkg/clientconn: the client-side mirror of the router
//   - pkg/metrics: structured logging, Prometheus metrics, tracing, health
//   - internal/errors: the error taxonomy shared across packages
//
// # Security Properties
//
//   - Mutual authentication by RSA public-key fingerprint
//   - Forward-secret session keys via finite-field Diffie-Hellman
//   - Encrypt-then-MAC symmetric transport (AES-256-CBC + HMAC-SHA256)
//   - A server that routes by envelope recipient alone, never parsing
//     relayed message bodies; pairwise-sealed bodies are never decrypted
package vcsms
