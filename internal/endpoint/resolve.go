// Package endpoint turns HTTP(S) server addresses into the WebSocket URL the
// client dials.
package endpoint

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// Path is appended to every resolved endpoint; any path on the input is discarded.
const Path = "/ws"

// ErrInvalidEndpoint is returned for inputs that are not parseable URLs or lack a host.
var ErrInvalidEndpoint = errors.New("invalid endpoint")

// Resolve maps https to wss and everything else to ws. The port is compared
// numerically: 80 and 443 are elided, any other port is kept in canonical form.
func Resolve(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: no host in %q", ErrInvalidEndpoint, raw)
	}
	scheme := "ws"
	port := 80
	if u.Scheme == "https" {
		scheme = "wss"
		port = 443
	}
	if p := u.Port(); p != "" {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return "", fmt.Errorf("%w: bad port %q", ErrInvalidEndpoint, p)
		}
		port = int(n)
	}
	hostport := host
	if port != 80 && port != 443 {
		hostport = net.JoinHostPort(host, strconv.Itoa(port))
	} else if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		hostport = "[" + host + "]"
	}
	return scheme + "://" + hostport + Path, nil
}
