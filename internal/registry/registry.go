// Package registry looks up server descriptors and their optional access
// credentials by id.
package registry

import "context"

// Server is a configured remote server.
type Server struct {
	ID       string `json:"id" koanf:"id"`
	Endpoint string `json:"endpoint" koanf:"endpoint"`
}

// Credential is the optional access token for a server.
type Credential struct {
	AccessToken string `json:"access_token"`
}

// Registry resolves servers by id. A missing entry is reported with ok=false
// and a nil error; errors are reserved for backend failures.
type Registry interface {
	Lookup(ctx context.Context, id string) (Server, bool, error)
	LookupCredential(ctx context.Context, id string) (Credential, bool, error)
}
