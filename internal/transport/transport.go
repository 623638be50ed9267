// Package transport performs the WebSocket upgrade and exposes the resulting
// message stream. Framing, compression and ping/pong are left to
// gorilla/websocket.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/matst80/wslink/internal/handshake"
)

// FrameType classifies inbound frames.
type FrameType int

const (
	FrameText FrameType = iota
	FrameBinary
	FrameOther
)

func (t FrameType) String() string {
	switch t {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	default:
		return "other"
	}
}

// Frame is one inbound message.
type Frame struct {
	Type FrameType
	Data []byte
}

// Stream is an open session. Next blocks until a frame arrives, the stream
// fails or ctx is done. Close is idempotent and may race with Next.
type Stream interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// Transport opens streams.
type Transport interface {
	Handshake(ctx context.Context, req *handshake.Request) (Stream, error)
}

// Kind is the closed set of handshake failure categories.
type Kind string

const (
	KindClosed        Kind = "closed-before-complete"
	KindProtocol      Kind = "protocol"
	KindMalformedText Kind = "malformed-text"
	KindOther         Kind = "other"
)

// Error is a classified transport failure.
type Error struct {
	Kind   Kind
	Status int // HTTP status of a rejected upgrade, 0 when none was read
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %v (status %d)", e.Kind, e.Err, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify maps an error from a handshake into a Kind.
func Classify(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	var ce *websocket.CloseError
	var pe textproto.ProtocolError
	switch {
	case errors.As(err, &ce),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return KindClosed
	case errors.Is(err, websocket.ErrBadHandshake):
		return KindProtocol
	case errors.As(err, &pe):
		return KindMalformedText
	default:
		return KindOther
	}
}
