// Package client provides the ACME protocol engine: Sessions bound to
// one ACME server, Logins binding an account key to a Session, and the
// signed request Connection used to exchange payloads with the server.
package client

import (
	"context"
	"crypto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cpu/acmekit/acme"
	"github.com/cpu/acmekit/acme/resources"
	acmenet "github.com/cpu/acmekit/net"
)

// SessionConfig contains configuration options provided to NewSession.
//
// The Server field is mandatory. It is either a directory URL with an
// HTTP/HTTPS protocol prefix, or a provider alias URI such as
// "acme://pebble" or "acme://pebble/host:port" for a local Pebble
// server.
//
// The CABundle field is an optional file path to one or more PEM encoded
// CA certificates to be used as trust roots for HTTPS requests to the
// ACME server. If empty the system roots are used. If you are using
// Pebble as the ACME server it should be the file path to the
// "test/certs/pebble.minica.pem" file from the Pebble source directory.
//
// The Timeout field bounds each network exchange. Zero means the net
// package default.
type SessionConfig struct {
	// The ACME server identifier: a directory URL or provider alias URI.
	Server string
	// An optional file path to one or more PEM encoded CA certificates.
	CABundle string
	// An optional timeout applied to each network exchange.
	Timeout time.Duration
}

// normalize validates a SessionConfig.
func (conf *SessionConfig) normalize() error {
	conf.Server = strings.TrimSpace(conf.Server)
	conf.CABundle = strings.TrimSpace(conf.CABundle)

	if conf.Server == "" {
		return acme.NewInputError("Server must not be empty")
	}
	return nil
}

// Session is the context for one target ACME server. It holds the
// resolved provider, the cached server directory and the single current
// anti-replay nonce. ACME nonces are consumed on use and replaced from
// the server's response, so a Session never holds more than one
// outstanding nonce.
//
// A Session is safe for concurrent use: the directory is an immutable
// snapshot replaced wholesale on refresh, and the nonce is only handed
// out through consuming accessors.
type Session struct {
	serverURL *url.URL
	provider  Provider

	mu              sync.Mutex
	nonce           string
	directory       *resources.Directory
	directoryExpiry time.Time
}

// NewSession creates a Session for the given server identifier. It fails
// with an input error when the identifier is malformed or no provider
// accepts it. No network I/O happens until the directory is first
// needed.
func NewSession(config SessionConfig) (*Session, error) {
	if err := config.normalize(); err != nil {
		return nil, err
	}

	serverURL, err := url.Parse(config.Server)
	if err != nil {
		return nil, acme.NewInputError("invalid server identifier %q: %s", config.Server, err)
	}
	if serverURL.Scheme == "" {
		return nil, acme.NewInputError("server identifier %q has no scheme", config.Server)
	}

	provider, err := findProvider(serverURL, acmenet.Config{
		CABundlePath: config.CABundle,
		Timeout:      config.Timeout,
	})
	if err != nil {
		return nil, err
	}

	return &Session{
		serverURL: serverURL,
		provider:  provider,
	}, nil
}

// ServerURL returns the server identifier the Session was created with.
func (s *Session) ServerURL() *url.URL {
	return s.serverURL
}

// Provider returns the provider serving this Session.
func (s *Session) Provider() Provider {
	return s.provider
}

// Nonce returns the current nonce without consuming it. Empty until the
// first exchange stored one.
func (s *Session) Nonce() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonce
}

// SetNonce stores a replacement nonce from a server response.
func (s *Session) SetNonce(nonce string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonce = nonce
}

// RefreshNonce fetches a fresh nonce from the newNonce endpoint,
// replacing whatever the Session held, and returns it.
func (s *Session) RefreshNonce(ctx context.Context) (string, error) {
	conn, err := s.provider.Connect()
	if err != nil {
		return "", err
	}
	defer conn.Close()

	nonce, err := conn.fetchNonce(ctx, s)
	if err != nil {
		return "", err
	}
	s.SetNonce(nonce)
	return nonce, nil
}

// takeNonce consumes the current nonce. After a take the Session holds
// no nonce until the next response replaces it; an exchange that dies
// before reading response headers therefore never leaves a stale nonce
// behind.
func (s *Session) takeNonce() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	nonce := s.nonce
	s.nonce = ""
	return nonce
}

// Directory returns the server's directory, fetching it through the
// provider on first use and after the cached copy expires. Fetch errors
// propagate unchanged so callers can tell transport failures from
// protocol ones.
func (s *Session) Directory(ctx context.Context) (*resources.Directory, error) {
	s.mu.Lock()
	cached := s.directory
	expired := !time.Now().Before(s.directoryExpiry)
	s.mu.Unlock()

	if cached != nil && !expired {
		return cached, nil
	}

	directory, expiry, err := s.provider.Directory(ctx, s)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.directory = directory
	s.directoryExpiry = expiry
	s.mu.Unlock()
	return directory, nil
}

// ResourceURL returns the endpoint URL for the given resource, fetching
// the directory if required. Unsupported resources fail with a protocol
// error.
func (s *Session) ResourceURL(ctx context.Context, r acme.Resource) (*url.URL, error) {
	directory, err := s.Directory(ctx)
	if err != nil {
		return nil, err
	}
	endpoint, ok := directory.URL(r)
	if !ok {
		return nil, acme.NewProtocolError("server does not support the %q resource", r)
	}
	return endpoint, nil
}

// Metadata returns the directory metadata. Servers that publish no
// "meta" object yield an empty, non-nil Metadata.
func (s *Session) Metadata(ctx context.Context) (*resources.Metadata, error) {
	directory, err := s.Directory(ctx)
	if err != nil {
		return nil, err
	}
	return directory.Metadata(), nil
}

// Login binds an account key pair and account location URL to this
// Session for request signing. It performs no I/O; many Logins may share
// one Session.
func (s *Session) Login(accountLocation *url.URL, signer crypto.Signer) (*Login, error) {
	if accountLocation == nil {
		return nil, acme.NewInputError("accountLocation must not be nil")
	}
	if signer == nil {
		return nil, acme.NewInputError("signer must not be nil")
	}
	return &Login{
		session:         s,
		accountLocation: accountLocation,
		signer:          signer,
	}, nil
}
