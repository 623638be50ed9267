package registry

import (
	"context"
	"time"

	"github.com/matst80/wslink/internal/obs"
)

// Entry is a server plus its optional token as written in configuration.
type Entry struct {
	ID       string `koanf:"id"`
	Endpoint string `koanf:"endpoint"`
	Token    string `koanf:"token"`
}

// New returns a Redis-backed registry when redisAddr is set, otherwise an
// in-memory one. Entries seed whichever backend is chosen. The returned closer releases backend
// connections and is never nil.
func New(redisAddr, redisPassword string, redisDB int, entries []Entry) (Registry, func() error, error) {
	if redisAddr == "" {
		obs.Info("registry.backend", obs.Fields{"type": "in-memory", "servers": len(entries)})
		m := NewMemory()
		for _, e := range entries {
			m.Put(Server{ID: e.ID, Endpoint: e.Endpoint}, e.Token)
		}
		return m, func() error { return nil }, nil
	}
	obs.Info("registry.backend", obs.Fields{"type": "redis", "addr": redisAddr})
	r, client, err := DialRedis(redisAddr, redisPassword, redisDB, 15*time.Second)
	if err != nil {
		return nil, nil, err
	}
	if len(entries) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, e := range entries {
			if err := r.Put(ctx, Server{ID: e.ID, Endpoint: e.Endpoint}, e.Token); err != nil {
				_ = client.Close()
				return nil, nil, err
			}
		}
		obs.Info("registry.seeded", obs.Fields{"servers": len(entries)})
	}
	return r, client.Close, nil
}
