package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matst80/wslink/internal/obs"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces server hashes: wslink:server:<id> {endpoint, token}.
const KeyPrefix = "wslink:server:"

type cachedEntry struct {
	server  Server
	cred    *Credential
	fetched time.Time
}

// Redis reads server descriptors from Redis hashes so several wslink
// instances can share one registry. Recent lookups are cached locally.
type Redis struct {
	client   redis.Cmdable
	mu       sync.Mutex
	cache    map[string]cachedEntry
	cacheTTL time.Duration
	now      func() time.Time
}

var _ Registry = (*Redis)(nil)

// NewRedis wraps an existing client. cacheTTL <= 0 disables the local cache.
func NewRedis(client redis.Cmdable, cacheTTL time.Duration) *Redis {
	return &Redis{client: client, cache: make(map[string]cachedEntry), cacheTTL: cacheTTL, now: time.Now}
}

// DialRedis connects and pings before returning.
func DialRedis(addr, password string, db int, cacheTTL time.Duration) (*Redis, *redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedis(rdb, cacheTTL), rdb, nil
}

func (r *Redis) Lookup(ctx context.Context, id string) (Server, bool, error) {
	e, ok, err := r.get(ctx, id)
	if err != nil || !ok {
		return Server{}, ok, err
	}
	return e.server, true, nil
}

func (r *Redis) LookupCredential(ctx context.Context, id string) (Credential, bool, error) {
	e, ok, err := r.get(ctx, id)
	if err != nil || !ok || e.cred == nil {
		return Credential{}, false, err
	}
	return *e.cred, true, nil
}

// Put stores a server and its token (empty token clears it).
func (r *Redis) Put(ctx context.Context, s Server, token string) error {
	key := KeyPrefix + s.ID
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, "endpoint", s.Endpoint)
	if token == "" {
		pipe.HDel(ctx, key, "token")
	} else {
		pipe.HSet(ctx, key, "token", token)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put %s: %w", s.ID, err)
	}
	r.forget(s.ID)
	return nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, KeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", id, err)
	}
	r.forget(id)
	return nil
}

func (r *Redis) get(ctx context.Context, id string) (cachedEntry, bool, error) {
	if r.cacheTTL > 0 {
		r.mu.Lock()
		e, ok := r.cache[id]
		r.mu.Unlock()
		if ok && r.now().Sub(e.fetched) < r.cacheTTL {
			return e, true, nil
		}
	}
	vals, err := r.client.HGetAll(ctx, KeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return cachedEntry{}, false, nil
		}
		obs.Error("registry.redis.get", obs.Fields{"err": err.Error(), "server": id})
		return cachedEntry{}, false, fmt.Errorf("redis lookup %s: %w", id, err)
	}
	endpoint, ok := vals["endpoint"]
	if !ok {
		r.forget(id)
		return cachedEntry{}, false, nil
	}
	e := cachedEntry{server: Server{ID: id, Endpoint: endpoint}, fetched: r.now()}
	if tok, ok := vals["token"]; ok {
		e.cred = &Credential{AccessToken: tok}
	}
	if r.cacheTTL > 0 {
		r.mu.Lock()
		r.cache[id] = e
		r.mu.Unlock()
	}
	return e, true, nil
}

func (r *Redis) forget(id string) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}
