// Package sink delivers relayed messages to whoever subscribes to them.
// Publishing is fire-and-forget: sinks log and count failures instead of
// returning them.
package sink

import (
	"bufio"
	"io"
	"sync"

	"github.com/matst80/wslink/internal/obs"
)

// MessageEvent is the event name used for inbound text frames.
const MessageEvent = "ws-message"

// Publisher receives named events.
type Publisher interface {
	Publish(event, payload string)
}

// Func adapts a function to Publisher.
type Func func(event, payload string)

func (f Func) Publish(event, payload string) { f(event, payload) }

// Fanout publishes to every member in order.
type Fanout []Publisher

func (f Fanout) Publish(event, payload string) {
	for _, p := range f {
		p.Publish(event, payload)
	}
}

// Log writes every event to the structured log.
type Log struct{}

func (Log) Publish(event, payload string) {
	obs.Info("sink.event", obs.Fields{"event": event, "bytes": len(payload), "payload": payload})
}

// Writer writes each payload as one line.
type Writer struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: bufio.NewWriter(w)} }

func (s *Writer) Publish(_ string, payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.WriteString(payload + "\n"); err != nil {
		obs.SinkErrorsTotal.WithLabelValues("writer").Inc()
		obs.Error("sink.writer", obs.Fields{"err": err.Error()})
		return
	}
	if err := s.w.Flush(); err != nil {
		obs.SinkErrorsTotal.WithLabelValues("writer").Inc()
		obs.Error("sink.writer.flush", obs.Fields{"err": err.Error()})
	}
}
