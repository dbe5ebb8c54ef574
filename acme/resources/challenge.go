package resources

import (
	"crypto"
	"net/url"
	"sync"
	"time"

	"github.com/cpu/acmekit/acme"
)

// Challenge type strings registered by the IANA ACME validation methods
// registry.
const (
	// TypeHTTP01 is the "http-01" challenge type.
	// See https://tools.ietf.org/html/rfc8555#section-8.3
	TypeHTTP01 = "http-01"
	// TypeDNS01 is the "dns-01" challenge type.
	// See https://tools.ietf.org/html/rfc8555#section-8.4
	TypeDNS01 = "dns-01"
	// TypeTLSALPN01 is the "tls-alpn-01" challenge type. See RFC 8737.
	TypeTLSALPN01 = "tls-alpn-01"
)

// Challenge is a server-issued domain validation task. Concrete variants
// ({Http01,Dns01,TlsAlpn01,Token}Challenge) add the material a caller
// needs for provisioning; the base view carries the status lifecycle:
//
//	pending -> processing -> valid | invalid
//
// valid and invalid are terminal. The raw JSON is retained so
// variant-specific fields stay reachable.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.5
type Challenge interface {
	// Type returns the challenge's type string.
	Type() string
	// URL returns the challenge's location URL.
	URL() (*url.URL, error)
	// Status returns the current challenge status.
	Status() acme.Status
	// Validated returns the time the server validated the challenge, if
	// present.
	Validated() (time.Time, bool)
	// Error returns the problem recorded for a failed challenge, or nil.
	Error() *acme.Problem
	// JSON returns the current raw snapshot.
	JSON() acme.JSON
	// Update atomically replaces the snapshot with a fresh server
	// response. A challenge in a terminal status never transitions again;
	// an update trying to do so fails.
	Update(json acme.JSON) error
	// PrepareResponse populates the outbound trigger payload with the
	// fields the concrete variant requires. The standard RFC 8555 types
	// all use a bare acknowledgement object and add nothing.
	PrepareResponse(b *acme.Builder) error
}

// baseChallenge is the shared state of all challenge variants. The whole
// JSON snapshot sits behind one mutex so an Update never exposes
// a half-applied state to a concurrent reader.
type baseChallenge struct {
	mu   sync.Mutex
	json acme.JSON
}

func (c *baseChallenge) snapshot() acme.JSON {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.json
}

func (c *baseChallenge) Type() string {
	typ, err := c.snapshot().Get("type").AsString()
	if err != nil {
		return ""
	}
	return typ
}

func (c *baseChallenge) URL() (*url.URL, error) {
	return c.snapshot().Get("url").AsURL()
}

func (c *baseChallenge) Status() acme.Status {
	status, err := c.snapshot().Get("status").AsStatus()
	if err != nil {
		return acme.StatusUnknown
	}
	return status
}

func (c *baseChallenge) Validated() (time.Time, bool) {
	validated, err := c.snapshot().Get("validated").AsInstant()
	if err != nil {
		return time.Time{}, false
	}
	return validated, true
}

func (c *baseChallenge) Error() *acme.Problem {
	json := c.snapshot()
	location, _ := json.Get("url").AsURL()
	problem, err := json.Get("error").AsProblem(location)
	if err != nil {
		return nil
	}
	return problem
}

func (c *baseChallenge) JSON() acme.JSON {
	return c.snapshot()
}

func (c *baseChallenge) Update(json acme.JSON) error {
	if json.IsZero() {
		return acme.NewInputError("challenge update JSON must not be nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.json.Get("status").AsStatus()
	if err != nil {
		current = acme.StatusUnknown
	}
	next, err := json.Get("status").AsStatus()
	if err != nil {
		next = acme.StatusUnknown
	}
	if current.Terminal() && next != current {
		return acme.NewProtocolError(
			"challenge status is final (%s), refusing transition to %s",
			current, next)
	}
	c.json = json
	return nil
}

func (c *baseChallenge) PrepareResponse(b *acme.Builder) error {
	// The base challenge contributes nothing beyond the bare
	// acknowledgement object. See RFC 8555 section 7.5.1.
	return nil
}

// TokenChallenge is a challenge variant carrying a single-use token from
// which a key authorization is computed with the account key.
type TokenChallenge struct {
	baseChallenge
	signer crypto.Signer
}

// Token returns the challenge's token. A challenge without a token fails
// rather than yielding an empty authorization.
func (c *TokenChallenge) Token() (string, error) {
	return c.snapshot().Get("token").AsString()
}

// KeyAuthorization computes token + "." + base64url(SHA-256 thumbprint
// of the account public key). Deterministic for a token and key pair.
func (c *TokenChallenge) KeyAuthorization() (string, error) {
	token, err := c.Token()
	if err != nil {
		return "", err
	}
	return keyAuth(c.signer, token)
}

// Http01Challenge requires provisioning the key authorization at
// /.well-known/acme-challenge/<token> over HTTP.
type Http01Challenge struct {
	TokenChallenge
}

// Dns01Challenge requires provisioning a TXT record under
// _acme-challenge.<domain>.
type Dns01Challenge struct {
	TokenChallenge
}

// Digest returns the base64url encoded SHA-256 digest of the key
// authorization, the value of the TXT record.
func (c *Dns01Challenge) Digest() (string, error) {
	keyAuthorization, err := c.KeyAuthorization()
	if err != nil {
		return "", err
	}
	return digestBase64([]byte(keyAuthorization)), nil
}

// TlsAlpn01Challenge requires serving a self-signed certificate carrying
// an acmeIdentifier extension during an "acme-tls/1" ALPN handshake.
type TlsAlpn01Challenge struct {
	TokenChallenge
}

// AcmeValidation returns the raw SHA-256 digest of the key
// authorization, the content of the certificate's acmeIdentifier
// extension (RFC 8737 section 3).
func (c *TlsAlpn01Challenge) AcmeValidation() ([]byte, error) {
	keyAuthorization, err := c.KeyAuthorization()
	if err != nil {
		return nil, err
	}
	return digest([]byte(keyAuthorization)), nil
}
