package manager

import (
	"errors"
	"fmt"

	"github.com/matst80/wslink/internal/endpoint"
	"github.com/matst80/wslink/internal/handshake"
	"github.com/matst80/wslink/internal/transport"
)

var (
	ErrServerNotFound = errors.New("server not found")
	// ErrInvalidEndpoint aliases endpoint.ErrInvalidEndpoint.
	ErrInvalidEndpoint = endpoint.ErrInvalidEndpoint
	// ErrHandshakeEncoding aliases handshake.ErrEncoding.
	ErrHandshakeEncoding = handshake.ErrEncoding
	ErrRegistry          = errors.New("registry lookup failed")
	// ErrSuperseded is returned by Connect when Disconnect ran while the
	// handshake was in flight; the fresh stream is closed, not installed.
	ErrSuperseded = errors.New("connect superseded by disconnect")
)

// HandshakeError is a failed upgrade, classified by transport.Classify.
type HandshakeError struct {
	Kind transport.Kind
	Err  error
}

func (e *HandshakeError) Error() string {
	switch e.Kind {
	case transport.KindClosed:
		return fmt.Sprintf("websocket connection was closed: %v", e.Err)
	case transport.KindProtocol:
		return fmt.Sprintf("protocol error: %v", e.Err)
	case transport.KindMalformedText:
		return fmt.Sprintf("malformed text in websocket data: %v", e.Err)
	default:
		return fmt.Sprintf("unknown error: %v", e.Err)
	}
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// kindOf labels an error returned by Connect for metrics.
func kindOf(err error) string {
	var he *HandshakeError
	switch {
	case errors.As(err, &he):
		return string(he.Kind)
	case errors.Is(err, ErrServerNotFound):
		return "server-not-found"
	case errors.Is(err, ErrInvalidEndpoint):
		return "invalid-endpoint"
	case errors.Is(err, ErrHandshakeEncoding):
		return "encoding"
	case errors.Is(err, ErrRegistry):
		return "registry"
	case errors.Is(err, ErrSuperseded):
		return "superseded"
	default:
		return "other"
	}
}
