package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matst80/wslink/internal/handshake"
	"github.com/matst80/wslink/internal/obs"
	"github.com/sony/gobreaker"
)

// Breaker fails handshakes fast while an endpoint keeps refusing them. One
// circuit is kept per URL.
type Breaker struct {
	next     Transport
	failures uint32
	cooldown time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

var _ Transport = (*Breaker)(nil)

// NewBreaker opens a circuit after failures consecutive handshake failures and
// keeps it open for cooldown.
func NewBreaker(next Transport, failures uint32, cooldown time.Duration) *Breaker {
	return &Breaker{next: next, failures: failures, cooldown: cooldown, breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

func (b *Breaker) Handshake(ctx context.Context, req *handshake.Request) (Stream, error) {
	v, err := b.breaker(req.URL).Execute(func() (interface{}, error) {
		return b.next.Handshake(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &Error{Kind: KindOther, Err: err}
		}
		return nil, err
	}
	return v.(Stream), nil
}

// State reports the circuit state for url ("closed" if never used).
func (b *Breaker) State(url string) string {
	b.mu.Lock()
	cb, ok := b.breakers[url]
	b.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return cb.State().String()
}

func (b *Breaker) breaker(url string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[url]; ok {
		return cb
	}
	failures := b.failures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        url,
		MaxRequests: 1,
		Timeout:     b.cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			obs.Info("transport.breaker", obs.Fields{"url": name, "from": from.String(), "to": to.String()})
		},
	})
	b.breakers[url] = cb
	return cb
}
