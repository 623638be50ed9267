// Package handshake assembles the HTTP upgrade request sent to open a
// WebSocket session.
package handshake

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/matst80/wslink/internal/httpx"
)

// DefaultTokenHeader carries the server access token.
const DefaultTokenHeader = "X-API-TOKEN"

// ErrEncoding is wrapped by every error caused by a value that cannot be sent.
var ErrEncoding = errors.New("handshake encoding")

// ProtocolHeaders are negotiated by the upgrade itself; everything else on a
// Request is application supplied.
var ProtocolHeaders = []string{"Connection", "Upgrade", "Sec-WebSocket-Version", "Sec-WebSocket-Key"}

// Request is a fully built upgrade request.
type Request struct {
	URL    string
	Header http.Header
}

// Key returns the Sec-WebSocket-Key nonce. It only reaches the wire through
// transports that send the built protocol headers as is; transport.Gorilla
// strips them and lets gorilla generate its own key.
func (r *Request) Key() string { return r.Header.Get("Sec-WebSocket-Key") }

// Builder creates upgrade requests. The zero value uses DefaultTokenHeader and crypto/rand.
type Builder struct {
	TokenHeader string
	UserAgent   string
	// Rand is the nonce source. Nil means crypto/rand.
	Rand io.Reader
}

// Build is shorthand for a zero Builder.
func Build(wsURL string, token *string) (*Request, error) {
	return (&Builder{}).Build(wsURL, token)
}

// Build returns the upgrade request for wsURL. A nil token omits the auth header.
func (b *Builder) Build(wsURL string, token *string) (*Request, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrEncoding, u.Scheme)
	}
	key, err := b.newKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	h := http.Header{}
	h.Set("Connection", "Upgrade")
	h.Set("Upgrade", "websocket")
	h.Set("Sec-WebSocket-Version", "13")
	h.Set("Sec-WebSocket-Key", key)
	if b.UserAgent != "" {
		h.Set("User-Agent", b.UserAgent)
	}
	if token != nil {
		h.Set(b.tokenHeader(), *token)
	}
	if err := httpx.Validate(h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return &Request{URL: u.String(), Header: h}, nil
}

// TokenHeaderName is the header the token is sent in.
func (b *Builder) TokenHeaderName() string { return b.tokenHeader() }

func (b *Builder) tokenHeader() string {
	if b.TokenHeader == "" {
		return DefaultTokenHeader
	}
	return b.TokenHeader
}

func (b *Builder) newKey() (string, error) {
	src := b.Rand
	if src == nil {
		src = rand.Reader
	}
	p := make([]byte, 16)
	if _, err := io.ReadFull(src, p); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(p), nil
}
