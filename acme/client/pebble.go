package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cpu/acmekit/acme"
	"github.com/cpu/acmekit/acme/resources"
	acmenet "github.com/cpu/acmekit/net"
)

// Pebble alias defaults. Pebble is the Let's Encrypt test ACME server;
// its default configuration listens on port 14000 and serves the
// directory at /dir.
const (
	pebbleHost = "localhost"
	pebblePort = 14000
)

// pebbleProvider resolves "acme://pebble" alias identifiers to a local
// Pebble server. An optional single path segment overrides the host and
// port: "acme://pebble/host" or "acme://pebble/host:port".
type pebbleProvider struct {
	netConfig acmenet.Config
}

func (p *pebbleProvider) Accepts(serverURL *url.URL) bool {
	return serverURL.Scheme == "acme" && serverURL.Host == "pebble"
}

func (p *pebbleProvider) Resolve(serverURL *url.URL) (*url.URL, error) {
	host := pebbleHost
	port := pebblePort

	// A single optional "host" or "host:port" path segment. A trailing
	// slash is tolerated; anything beyond one segment is a caller error.
	path := strings.TrimPrefix(serverURL.Path, "/")
	path = strings.TrimSuffix(path, "/")
	if strings.Contains(path, "/") {
		return nil, acme.NewInputError("invalid pebble path %q: at most one host:port segment is allowed", serverURL.Path)
	}

	if path != "" {
		host = path
		if colon := strings.LastIndex(path, ":"); colon >= 0 {
			host = path[:colon]
			parsedPort, err := strconv.Atoi(path[colon+1:])
			if err != nil {
				return nil, acme.NewInputError("invalid pebble port %q", path[colon+1:])
			}
			port = parsedPort
		}
	}

	resolved, err := url.Parse(fmt.Sprintf("https://%s:%d/dir", host, port))
	if err != nil {
		return nil, acme.NewInputError("cannot resolve pebble URL for host %q port %d", host, port)
	}
	return resolved, nil
}

func (p *pebbleProvider) Connect() (*Connection, error) {
	return connect(p.netConfig)
}

func (p *pebbleProvider) Directory(ctx context.Context, session *Session) (*resources.Directory, time.Time, error) {
	return fetchDirectory(ctx, p, session)
}
