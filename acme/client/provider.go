package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cpu/acmekit/acme"
	"github.com/cpu/acmekit/acme/resources"
	acmenet "github.com/cpu/acmekit/net"
)

// Directory cache lifetime bounds. The server's Cache-Control max-age
// wins when present; the floor avoids hot-looping on servers that send
// tiny values.
const (
	defaultDirectoryTTL = 1 * time.Hour
	minDirectoryTTL     = 10 * time.Second
)

// Provider resolves a server identifier to a concrete ACME endpoint and
// supplies directory bootstrapping plus transport-configured
// Connections. The provider set is a fixed, ordered registry: alias
// providers first, the generic URL provider last.
type Provider interface {
	// Accepts reports whether this provider serves the given server
	// identifier.
	Accepts(serverURL *url.URL) bool
	// Resolve maps the server identifier to the HTTPS directory URL.
	Resolve(serverURL *url.URL) (*url.URL, error)
	// Connect returns a fresh Connection bound to this provider's
	// transport configuration.
	Connect() (*Connection, error)
	// Directory fetches and parses the server's directory resource,
	// storing any returned nonce into the session. It returns the parsed
	// directory and the instant the cached copy expires.
	Directory(ctx context.Context, session *Session) (*resources.Directory, time.Time, error)
}

// findProvider returns the first registered provider accepting the
// server identifier.
func findProvider(serverURL *url.URL, netConfig acmenet.Config) (Provider, error) {
	providers := []Provider{
		&pebbleProvider{netConfig: netConfig},
		&urlProvider{netConfig: netConfig},
	}
	for _, p := range providers {
		if p.Accepts(serverURL) {
			return p, nil
		}
	}
	return nil, acme.NewInputError("no ACME provider accepts server identifier %q", serverURL)
}

// urlProvider is the default provider: it accepts http/https directory
// URLs as-is.
type urlProvider struct {
	netConfig acmenet.Config
}

func (p *urlProvider) Accepts(serverURL *url.URL) bool {
	switch serverURL.Scheme {
	case "http", "https":
		return true
	}
	return false
}

func (p *urlProvider) Resolve(serverURL *url.URL) (*url.URL, error) {
	return serverURL, nil
}

func (p *urlProvider) Connect() (*Connection, error) {
	return connect(p.netConfig)
}

func (p *urlProvider) Directory(ctx context.Context, session *Session) (*resources.Directory, time.Time, error) {
	return fetchDirectory(ctx, p, session)
}

func connect(netConfig acmenet.Config) (*Connection, error) {
	transport, err := acmenet.New(netConfig)
	if err != nil {
		return nil, err
	}
	return NewConnection(transport), nil
}

// fetchDirectory is the shared directory bootstrap: resolve the server
// identifier, GET the directory URL over a fresh Connection, harvest the
// nonce and parse the body into a Directory.
func fetchDirectory(ctx context.Context, p Provider, session *Session) (*resources.Directory, time.Time, error) {
	directoryURL, err := p.Resolve(session.ServerURL())
	if err != nil {
		return nil, time.Time{}, err
	}

	conn, err := p.Connect()
	if err != nil {
		return nil, time.Time{}, err
	}
	defer conn.Close()

	resp, err := conn.Get(ctx, directoryURL, session)
	if err != nil {
		return nil, time.Time{}, err
	}

	body, err := resp.JSON()
	if err != nil {
		return nil, time.Time{}, err
	}

	directory, err := resources.ParseDirectory(body)
	if err != nil {
		return nil, time.Time{}, err
	}
	return directory, time.Now().Add(directoryTTL(resp.Header)), nil
}

// directoryTTL derives the cache lifetime from the response headers.
func directoryTTL(header http.Header) time.Duration {
	ttl := defaultDirectoryTTL
	for _, directive := range strings.Split(header.Get("Cache-Control"), ",") {
		directive = strings.TrimSpace(directive)
		value, found := strings.CutPrefix(directive, "max-age=")
		if !found {
			continue
		}
		seconds, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		ttl = time.Duration(seconds) * time.Second
	}
	if ttl < minDirectoryTTL {
		ttl = minDirectoryTTL
	}
	return ttl
}
