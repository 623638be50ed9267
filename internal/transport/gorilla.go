package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matst80/wslink/internal/handshake"
	"github.com/matst80/wslink/internal/httpx"
	"github.com/matst80/wslink/internal/obs"
)

// Gorilla dials with gorilla/websocket. The protocol headers on a
// handshake.Request are validated by the builder but negotiated by the
// dialer itself, which refuses caller supplied duplicates; every other
// header is forwarded unchanged.
type Gorilla struct {
	Dialer *websocket.Dialer
	// CloseTimeout bounds the close frame write during Close.
	CloseTimeout time.Duration
	// ReadLimit caps inbound message size in bytes; 0 means unlimited.
	ReadLimit int64
}

var _ Transport = (*Gorilla)(nil)

func NewGorilla(handshakeTimeout time.Duration) *Gorilla {
	d := *websocket.DefaultDialer
	d.HandshakeTimeout = handshakeTimeout
	return &Gorilla{Dialer: &d, CloseTimeout: time.Second}
}

func (g *Gorilla) Handshake(ctx context.Context, req *handshake.Request) (Stream, error) {
	d := g.Dialer
	if d == nil {
		d = websocket.DefaultDialer
	}
	// gorilla writes the protocol headers itself, including its own key
	hdr := httpx.Without(req.Header, handshake.ProtocolHeaders...)
	conn, resp, err := d.DialContext(ctx, req.URL, hdr)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
			if resp.Body != nil {
				_ = resp.Body.Close()
			}
		}
		return nil, &Error{Kind: Classify(err), Status: status, Err: err}
	}
	if g.ReadLimit > 0 {
		conn.SetReadLimit(g.ReadLimit)
	}
	obs.Debug("transport.handshake.ok", obs.Fields{"url": req.URL, "subprotocol": conn.Subprotocol()})
	return &gorillaStream{conn: conn, closeTimeout: g.CloseTimeout}, nil
}

type gorillaStream struct {
	conn         *websocket.Conn
	closeTimeout time.Duration
	once         sync.Once
	closeErr     error
}

func (s *gorillaStream) Next(ctx context.Context) (Frame, error) {
	// A past read deadline unblocks ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = s.conn.SetReadDeadline(time.Unix(1, 0)) })
	defer stop()
	mt, data, err := s.conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Frame{}, ctxErr
		}
		return Frame{}, err
	}
	switch mt {
	case websocket.TextMessage:
		return Frame{Type: FrameText, Data: data}, nil
	case websocket.BinaryMessage:
		return Frame{Type: FrameBinary, Data: data}, nil
	default:
		return Frame{Type: FrameOther, Data: data}, nil
	}
}

// Close sends a normal-closure frame then drops the connection. A
// connection that is already gone is not an error.
func (s *gorillaStream) Close() error {
	s.once.Do(func() {
		timeout := s.closeTimeout
		if timeout <= 0 {
			timeout = time.Second
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeout)); err != nil {
			obs.Debug("transport.close.frame", obs.Fields{"err": err.Error()})
		}
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.closeErr = err
		}
	})
	return s.closeErr
}
