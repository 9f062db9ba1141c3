package handshake

import (
	"context"
	"fmt"
	"strings"

	"github.com/vcsms/vcsms/pkg/wire"
)

// transport is the minimal surface the handshake needs from pkg/wire.Socket;
// kept as an interface so tests can drive the state machine over an in-
// memory double without a real net.Conn.
type transport interface {
	Send(msg []byte) error
	Recv(ctx context.Context) ([]byte, error)
}

var _ transport = (*wire.Socket)(nil)

func sendToken(t transport, tok Token) error {
	return t.Send([]byte(tok))
}

func recvLine(ctx context.Context, t transport, phase string) (string, error) {
	b, err := t.Recv(ctx)
	if err != nil {
		return "", abort(phase, TokenMalformedIdentity, fmt.Errorf("recv: %w", err))
	}
	return string(b), nil
}

// splitN3 splits s into at most n colon-separated fields, the last
// absorbing any remaining colons (mirrors pkg/message's framing rule);
// callers check the field count.
func splitN3(s string, n int) []string {
	return strings.SplitN(s, ":", n)
}
