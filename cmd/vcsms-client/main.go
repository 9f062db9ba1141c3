// Command vcsms-client is a minimal interactive VCSMS client: it dials a
// relay server, authenticates by RSA fingerprint, and exchanges line-based
// text messages with other clients through it (spec.md §4.2, §4.6).
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vcsms/vcsms/pkg/clientconn"
	"github.com/vcsms/vcsms/pkg/identity"
	"github.com/vcsms/vcsms/pkg/message"
	"github.com/vcsms/vcsms/pkg/metrics"
	"github.com/vcsms/vcsms/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "vcsms-client",
	Short: "VCSMS client: authenticate to a relay and exchange encrypted messages",
}

var (
	flagKeyFile      string
	flagServerRecord string
	flagLogFormat    string
	flagLogLevel     string
)

func init() {
	runCmd.Flags().StringVar(&flagKeyFile, "key", "client.pem", "path to this client's PEM-encoded RSA private key")
	runCmd.Flags().StringVar(&flagServerRecord, "server", "server.json", "path to the relay's identity record")
	runCmd.Flags().StringVar(&flagLogFormat, "log-format", "text", "log format: json or text")
	runCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")

	keygenCmd.Flags().StringVar(&flagKeyFile, "key", "client.pem", "path to write the generated PEM-encoded RSA private key")

	rootCmd.AddCommand(runCmd, keygenCmd, versionCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to a relay and exchange messages interactively",
	RunE:  runRun,
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a client identity",
	RunE:  runKeygen,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the vcsms-client version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Full())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runKeygen(cmd *cobra.Command, args []string) error {
	self, err := identity.GenerateKeyPair(2048)
	if err != nil {
		return fmt.Errorf("generate client key: %w", err)
	}
	if err := identity.SavePrivateKey(self.Private, flagKeyFile); err != nil {
		return fmt.Errorf("save client key: %w", err)
	}
	fmt.Printf("client identity: %s\nprivate key: %s\n", self.ID, flagKeyFile)
	return nil
}

// textSchema is this client's own message vocabulary. The server never
// parses it (relayed messages are re-addressed by raw string splitting,
// spec.md §4.5), so any two clients just need to agree on it between
// themselves; this is the vocabulary vcsms-client speaks to itself.
//
// SecureText carries a Text body already sealed under a pairwise
// PeerSession (spec.md §4.4's client-to-client handshake): the iv and
// ciphertext hex pair, identical in shape to a pkg/wire frame.
var textSchema = message.Schema{
	"Text":       {message.Str()},
	"SecureText": {message.Str(), message.Str()},
}

// peerSessions tracks established pairwise sessions by correspondent
// Client ID, guarded for concurrent access between sendLoop and the
// /peer command.
type peerSessions struct {
	mu   sync.Mutex
	byID map[string]*clientconn.PeerSession
}

func newPeerSessions() *peerSessions {
	return &peerSessions{byID: make(map[string]*clientconn.PeerSession)}
}

func (p *peerSessions) get(id string) (*clientconn.PeerSession, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.byID[id]
	return s, ok
}

func (p *peerSessions) put(s *clientconn.PeerSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID[s.PeerID] = s
}

func runKeygenOrLoad(path string) (*identity.KeyPair, error) {
	if _, err := os.Stat(path); err == nil {
		return identity.LoadPrivateKey(path)
	}
	self, err := identity.GenerateKeyPair(2048)
	if err != nil {
		return nil, fmt.Errorf("generate client key: %w", err)
	}
	if err := identity.SavePrivateKey(self.Private, path); err != nil {
		return nil, fmt.Errorf("save client key: %w", err)
	}
	return self, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := metrics.NewLogger(
		metrics.WithFormat(logFormat()),
		metrics.WithLevel(metrics.ParseLevel(flagLogLevel)),
		metrics.WithName("vcsms-client"),
	)

	self, err := runKeygenOrLoad(flagKeyFile)
	if err != nil {
		return err
	}
	logger.Info("client_identity", map[string]any{"client_id": self.ID})

	rec, err := identity.LoadServerRecord(flagServerRecord)
	if err != nil {
		return fmt.Errorf("load server record: %w", err)
	}
	addr := fmt.Sprintf("%s:%d", rec.IP, rec.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := clientconn.Dial(ctx, addr, rec.Fingerprint, self, nil, logger)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer conn.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	peers := newPeerSessions()

	go receiveLoop(ctx, conn, peers, logger)
	return sendLoop(ctx, conn, self, peers)
}

func receiveLoop(ctx context.Context, conn *clientconn.Conn, peers *peerSessions, logger *metrics.Logger) {
	for {
		raw, err := conn.Recv(ctx)
		if err != nil {
			return
		}
		env, err := message.Parse(textSchema, raw)
		if err != nil {
			logger.Warn("unparseable_message", map[string]any{"err": err.Error()})
			continue
		}
		// The router relays by prepending the sender's Client ID in place of
		// a recipient (spec.md §4.5), so Envelope.Recipient here is the peer
		// who sent this message, not an address of our own.
		sender := env.Recipient
		switch {
		case env.Type == "Text" && len(env.Params) == 1:
			fmt.Printf("%s: %s\n", sender, env.Params[0].Str)
		case env.Type == "SecureText" && len(env.Params) == 2:
			session, ok := peers.get(sender)
			if !ok {
				logger.Warn("secure_text_without_peer_session", map[string]any{"peer_id": sender})
				continue
			}
			plaintext, err := session.Open(env.Params[0].Str, env.Params[1].Str)
			if err != nil {
				logger.Warn("secure_text_open_failed", map[string]any{"peer_id": sender, "err": err.Error()})
				continue
			}
			fmt.Printf("%s (sealed): %s\n", sender, plaintext)
		}
	}
}

// sendLoop reads lines from stdin until EOF or ctx is cancelled. A line of
// the form "/peer <client_id>" negotiates a pairwise PeerSession with that
// correspondent (spec.md §4.4); any other line is "<recipient_client_id>
// <message text>", sealed under an established PeerSession when one exists
// for that recipient, sent as plain Text otherwise.
func sendLoop(ctx context.Context, conn *clientconn.Conn, self *identity.KeyPair, peers *peerSessions) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()

		if target, ok := strings.CutPrefix(line, "/peer "); ok {
			target = strings.TrimSpace(target)
			session, err := conn.EstablishPeerSession(ctx, self, target)
			if err != nil {
				fmt.Println("peer handshake failed:", err)
				continue
			}
			peers.put(session)
			fmt.Printf("pairwise session established with %s\n", session.PeerID)
			continue
		}

		recipient, body, ok := strings.Cut(line, " ")
		if !ok || recipient == "" || body == "" {
			fmt.Println("usage: <recipient_client_id> <message text>  or  /peer <client_id>")
			continue
		}

		var envelope []byte
		var err error
		if session, ok := peers.get(recipient); ok {
			ivHex, ctHex, sealErr := session.Seal([]byte(body))
			if sealErr != nil {
				fmt.Println("error:", sealErr)
				continue
			}
			envelope, err = message.Construct(textSchema, recipient, "SecureText", message.StrValue(ivHex), message.StrValue(ctHex))
		} else {
			envelope, err = message.Construct(textSchema, recipient, "Text", message.StrValue(body))
		}
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		if err := conn.Send(envelope); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
	return scanner.Err()
}

func logFormat() metrics.Format {
	if flagLogFormat == "json" {
		return metrics.FormatJSON
	}
	return metrics.FormatText
}
