package manager

import (
	"context"

	"github.com/matst80/wslink/internal/obs"
	"github.com/matst80/wslink/internal/sink"
	"github.com/matst80/wslink/internal/transport"
)

const (
	reasonCancelled = "cancelled"
	reasonClosed    = "closed"
	reasonError     = "error"
)

// relay owns s.stream until it returns. Frames are read by a pump goroutine
// so that cancellation is observed even when nothing arrives.
func (m *Manager) relay(s *session) {
	defer close(s.done)
	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan transport.Frame)
	errs := make(chan error, 1)
	go pump(ctx, s.stream, frames, errs)

	reason, err := m.drain(s, frames, errs)
	cancel()
	_ = s.stream.Close()

	obs.RelayTerminationsTotal.WithLabelValues(reason).Inc()
	f := obs.Fields{"server": s.serverID, "session": s.id, "reason": reason, "relayed": s.relayed.Load()}
	if err != nil {
		f["err"] = err.Error()
	}
	obs.Info("relay.stopped", f)
}

func (m *Manager) drain(s *session, frames <-chan transport.Frame, errs <-chan error) (string, error) {
	for {
		select {
		case <-s.cancel:
			return reasonCancelled, nil
		case err := <-errs:
			if cancelled(s) {
				return reasonCancelled, nil
			}
			if transport.Classify(err) == transport.KindClosed {
				return reasonClosed, err
			}
			return reasonError, err
		case f := <-frames:
			// A frame handed over after cancel belongs to a dead session.
			if cancelled(s) {
				return reasonCancelled, nil
			}
			if f.Type != transport.FrameText {
				obs.FramesIgnoredTotal.Inc()
				obs.Debug("relay.frame.ignored", obs.Fields{"session": s.id, "type": f.Type.String(), "bytes": len(f.Data)})
				continue
			}
			m.publish(s, string(f.Data))
		}
	}
}

func cancelled(s *session) bool {
	select {
	case <-s.cancel:
		return true
	default:
		return false
	}
}

func pump(ctx context.Context, st transport.Stream, frames chan<- transport.Frame, errs chan<- error) {
	for {
		f, err := st.Next(ctx)
		if err != nil {
			errs <- err
			return
		}
		select {
		case frames <- f:
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) publish(s *session, payload string) {
	defer func() {
		if r := recover(); r != nil {
			obs.SinkErrorsTotal.WithLabelValues("panic").Inc()
			obs.Error("relay.publish.panic", obs.Fields{"session": s.id, "panic": r})
		}
	}()
	m.pub.Publish(sink.MessageEvent, payload)
	s.relayed.Add(1)
	obs.MessagesRelayedTotal.Inc()
}
