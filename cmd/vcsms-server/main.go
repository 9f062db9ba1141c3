// Command vcsms-server runs the VCSMS routing relay: it accepts client
// connections, authenticates them by RSA public-key fingerprint, and routes
// encrypted messages between them, decrypting only the client-to-server
// session layer to read each recipient and never parsing relayed bodies
// (spec.md §3, §5).
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vcsms/vcsms/pkg/crypto"
	"github.com/vcsms/vcsms/pkg/directory"
	"github.com/vcsms/vcsms/pkg/identity"
	"github.com/vcsms/vcsms/pkg/metrics"
	"github.com/vcsms/vcsms/pkg/router"
	"github.com/vcsms/vcsms/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "vcsms-server",
	Short: "VCSMS relay server: authenticated, end-to-end encrypted message routing",
}

var (
	flagListen         string
	flagKeyFile        string
	flagDirRoot        string
	flagMetricsAddr    string
	flagLogFormat      string
	flagLogLevel       string
	flagMaxPerIP       int
	flagHandshakeQPS   float64
	flagHandshakeBurst int
)

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", ":7777", "TCP address to accept client connections on")
	serveCmd.Flags().StringVar(&flagKeyFile, "key", "server.pem", "path to the server's PEM-encoded RSA private key")
	serveCmd.Flags().StringVar(&flagDirRoot, "directory", "", "directory root for persisted client public keys (empty selects an in-memory directory)")
	serveCmd.Flags().StringVar(&flagMetricsAddr, "metrics-listen", ":9090", "address to serve /metrics, /health, /healthz, /readyz on")
	serveCmd.Flags().StringVar(&flagLogFormat, "log-format", "json", "log format: json or text")
	serveCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	serveCmd.Flags().IntVar(&flagMaxPerIP, "max-connections-per-ip", 8, "maximum concurrent connections accepted from one remote IP")
	serveCmd.Flags().Float64Var(&flagHandshakeQPS, "handshake-rate", 20, "sustained handshake attempts accepted per second")
	serveCmd.Flags().IntVar(&flagHandshakeBurst, "handshake-burst", 40, "handshake token-bucket burst size")

	keygenCmd.Flags().StringVar(&flagKeyFile, "key", "server.pem", "path to write the generated PEM-encoded RSA private key")
	keygenCmd.Flags().StringVar(&flagRecordOut, "record", "server.json", "path to write the server's identity record (for client distribution)")
	keygenCmd.Flags().StringVar(&flagRecordIP, "ip", "127.0.0.1", "IP address to publish in the server identity record")
	keygenCmd.Flags().IntVar(&flagRecordPort, "port", 7777, "port to publish in the server identity record")

	rootCmd.AddCommand(serveCmd, keygenCmd, versionCmd)
}

var (
	flagRecordOut  string
	flagRecordIP   string
	flagRecordPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept client connections and route messages between them",
	RunE:  runServe,
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a server identity: an RSA keypair and its published record",
	RunE:  runKeygen,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the vcsms-server version",
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
		return fmt.Errorf("generate server key: %w", err)
	}
	if err := identity.SavePrivateKey(self.Private, flagKeyFile); err != nil {
		return fmt.Errorf("save server key: %w", err)
	}
	rec := identity.ServerRecord{IP: flagRecordIP, Port: flagRecordPort, Fingerprint: self.ID}
	if err := identity.SaveServerRecord(rec, flagRecordOut); err != nil {
		return fmt.Errorf("save server record: %w", err)
	}
	fmt.Printf("server identity: %s\nprivate key: %s\nrecord: %s\n", self.ID, flagKeyFile, flagRecordOut)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := metrics.NewLogger(
		metrics.WithFormat(logFormat()),
		metrics.WithLevel(metrics.ParseLevel(flagLogLevel)),
		metrics.WithName("vcsms-server"),
	)
	metrics.SetLogger(logger)

	self, err := loadOrGenerateServerKey(flagKeyFile, logger)
	if err != nil {
		return err
	}
	logger.Info("server_identity", map[string]any{"client_id": self.ID})

	var dir directory.Directory
	if flagDirRoot != "" {
		fileDir, err := directory.NewFileDirectory(flagDirRoot)
		if err != nil {
			return fmt.Errorf("open key directory: %w", err)
		}
		dir = fileDir
	} else {
		dir = directory.NewMemoryDirectory()
	}

	registry := router.NewRegistry(router.DefaultOutboxCapacity)
	handlers := router.BuiltinHandlers(dir, func(clientID string) {
		if s, ok := registry.Live(clientID); ok {
			s.Close()
		}
	})

	collector := metrics.Global()
	listener := &router.Listener{
		Self:           self,
		Group:          crypto.Group2048,
		Registry:       registry,
		Dir:            dir,
		Handlers:       handlers,
		Log:            logger,
		IPLimit:        router.NewIPRateLimiter(flagMaxPerIP),
		HandshakeLimit: router.NewHandshakeLimiter(flagHandshakeQPS, flagHandshakeBurst),
		Metrics:        collector,
	}

	ln, err := net.Listen("tcp", flagListen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", flagListen, err)
	}
	logger.Info("listening", map[string]any{"addr": flagListen})

	obsServer := metrics.NewServer(metrics.ServerConfig{Collector: collector, Version: version.String()})
	obsServer.AddHealthCheck("registry", metrics.RegistryCheck(collector.Registry))
	go func() {
		logger.Info("metrics_listening", map[string]any{"addr": flagMetricsAddr})
		if err := obsServer.ListenAndServe(flagMetricsAddr); err != nil {
			logger.Error("metrics_server_failed", map[string]any{"err": err.Error()})
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutting_down", nil)
		cancel()
	}()

	if err := listener.Serve(ctx, ln); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func loadOrGenerateServerKey(path string, logger *metrics.Logger) (*identity.KeyPair, error) {
	if _, err := os.Stat(path); err == nil {
		return identity.LoadPrivateKey(path)
	}
	logger.Info("generating_server_key", map[string]any{"path": path})
	self, err := identity.GenerateKeyPair(2048)
	if err != nil {
		return nil, fmt.Errorf("generate server key: %w", err)
	}
	if err := identity.SavePrivateKey(self.Private, path); err != nil {
		return nil, fmt.Errorf("save server key: %w", err)
	}
	return self, nil
}

func logFormat() metrics.Format {
	if flagLogFormat == "text" {
		return metrics.FormatText
	}
	return metrics.FormatJSON
}
