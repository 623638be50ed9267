package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matst80/wslink/internal/handshake"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTransport struct {
	calls int
	err   error
}

func (c *countingTransport) Handshake(context.Context, *handshake.Request) (Stream, error) {
	c.calls++
	return nil, c.err
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	inner := &countingTransport{err: &Error{Kind: KindProtocol, Err: errors.New("bad")}}
	b := NewBreaker(inner, 2, time.Minute)
	req := &handshake.Request{URL: "ws://a/ws"}

	for i := 0; i < 2; i++ {
		_, err := b.Handshake(context.Background(), req)
		assert.Equal(t, KindProtocol, Classify(err))
	}
	assert.Equal(t, "open", b.State(req.URL))

	_, err := b.Handshake(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, KindOther, Classify(err))
	assert.Equal(t, 2, inner.calls)

	// other endpoints keep their own circuit
	assert.Equal(t, "closed", b.State("ws://b/ws"))
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	inner := &countingTransport{err: context.Canceled}
	b := NewBreaker(inner, 1, time.Minute)
	req := &handshake.Request{URL: "ws://a/ws"}
	for i := 0; i < 3; i++ {
		_, _ = b.Handshake(context.Background(), req)
	}
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, "closed", b.State(req.URL))
}
