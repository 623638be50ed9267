package handshake

import (
	"encoding/base64"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestBuildProtocolHeaders(t *testing.T) {
	req, err := Build("wss://coco.example.com/ws", nil)
	require.NoError(t, err)
	assert.Equal(t, "wss://coco.example.com/ws", req.URL)
	assert.Equal(t, "Upgrade", req.Header.Get("Connection"))
	assert.Equal(t, "websocket", req.Header.Get("Upgrade"))
	assert.Equal(t, "13", req.Header.Get("Sec-WebSocket-Version"))

	raw, err := base64.StdEncoding.DecodeString(req.Key())
	require.NoError(t, err)
	assert.Len(t, raw, 16)
}

func TestBuildWithoutCredentialOmitsToken(t *testing.T) {
	req, err := Build("ws://localhost:9200/ws", nil)
	require.NoError(t, err)
	_, ok := req.Header[http.CanonicalHeaderKey(DefaultTokenHeader)]
	assert.False(t, ok)
}

func TestBuildWithCredentialAddsOneHeader(t *testing.T) {
	req, err := Build("ws://localhost:9200/ws", strp("tok-123"))
	require.NoError(t, err)
	vals := req.Header.Values(DefaultTokenHeader)
	assert.Equal(t, []string{"tok-123"}, vals)
}

func TestBuildCustomTokenHeader(t *testing.T) {
	b := &Builder{TokenHeader: "Authorization", UserAgent: "wslink/test"}
	req, err := b.Build("ws://localhost/ws", strp("Bearer abc"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", req.Header.Get("Authorization"))
	assert.Equal(t, "wslink/test", req.Header.Get("User-Agent"))
	assert.Empty(t, req.Header.Get(DefaultTokenHeader))
}

func TestBuildKeysAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		req, err := Build("ws://localhost/ws", nil)
		require.NoError(t, err)
		require.False(t, seen[req.Key()], "key reused: %s", req.Key())
		seen[req.Key()] = true
	}
}

func TestBuildRejectsBadToken(t *testing.T) {
	for _, tok := range []string{"abc\ndef", "abc\x00", "tab\x7f"} {
		_, err := Build("ws://localhost/ws", strp(tok))
		require.Error(t, err, "token %q", tok)
		assert.True(t, errors.Is(err, ErrEncoding))
	}
}

func TestBuildRejectsBadURL(t *testing.T) {
	_, err := Build("http://localhost/ws", nil)
	assert.True(t, errors.Is(err, ErrEncoding))
	_, err = Build("://nope", nil)
	assert.True(t, errors.Is(err, ErrEncoding))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestBuildSurfacesKeyFailure(t *testing.T) {
	b := &Builder{Rand: failingReader{}}
	_, err := b.Build("ws://localhost/ws", nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEncoding))
}
