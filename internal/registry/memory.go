package registry

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process registry, typically filled from configuration.
type Memory struct {
	mu      sync.RWMutex
	servers map[string]Server
	creds   map[string]Credential
}

var _ Registry = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{servers: make(map[string]Server), creds: make(map[string]Credential)}
}

// Put adds or replaces a server. An empty token removes any stored credential.
func (m *Memory) Put(s Server, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers[s.ID] = s
	if token == "" {
		delete(m.creds, s.ID)
		return
	}
	m.creds[s.ID] = Credential{AccessToken: token}
}

func (m *Memory) Delete(id string) {
	m.mu.Lock()
	delete(m.servers, id)
	delete(m.creds, id)
	m.mu.Unlock()
}

func (m *Memory) Lookup(_ context.Context, id string) (Server, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.servers[id]
	return s, ok, nil
}

func (m *Memory) LookupCredential(_ context.Context, id string) (Credential, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.creds[id]
	return c, ok, nil
}

// IDs lists registered server ids in sorted order.
func (m *Memory) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.servers))
	for id := range m.servers {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
