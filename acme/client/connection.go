package client

import (
	"context"
	"crypto"
	"net/http"
	"net/url"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/cpu/acmekit/acme"
	"github.com/cpu/acmekit/acme/keys"
	acmenet "github.com/cpu/acmekit/net"
)

// Connection performs one logical request/response exchange with an
// ACME server, hiding nonce bookkeeping and the badNonce retry from
// callers. Acquire one per operation and release it with Close on every
// exit path:
//
//	conn, err := session.Provider().Connect()
//	if err != nil { ... }
//	defer conn.Close()
type Connection struct {
	net *acmenet.ACMENet
}

// NewConnection wraps a transport into a Connection.
func NewConnection(transport *acmenet.ACMENet) *Connection {
	return &Connection{net: transport}
}

// Close releases the underlying transport resources.
func (c *Connection) Close() {
	c.net.Close()
}

// Response is the outcome of one exchange. A successful response with no
// body is valid; JSON returns an empty object for it.
type Response struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Header holds the response headers.
	Header http.Header
	// Body is the raw response body, possibly empty.
	Body []byte
}

// JSON parses the response body. An empty body yields an empty JSON
// object rather than a parse failure.
func (r *Response) JSON() (acme.JSON, error) {
	if len(r.Body) == 0 {
		return acme.EmptyJSON(), nil
	}
	return acme.ParseJSON(r.Body)
}

// Location returns the response's Location header as a URL.
func (r *Response) Location() (*url.URL, error) {
	location := r.Header.Get(acme.LocationHeader)
	if location == "" {
		return nil, acme.NewProtocolError("response carries no %s header", acme.LocationHeader)
	}
	parsed, err := url.Parse(location)
	if err != nil {
		return nil, acme.WrapProtocolError(err, "invalid %s header %q", acme.LocationHeader, location)
	}
	return parsed, nil
}

// SignOptions controls how SendSignedRequest builds the JWS protected
// header.
type SignOptions struct {
	// Signer is the private key to sign with. Required.
	Signer crypto.Signer
	// If EmbedKey is true the signer's public key is embedded as a JWK in
	// the protected header. Used for requests made before an account
	// exists (newAccount, certain revocations). Mutually exclusive with
	// a non-empty KeyID.
	EmbedKey bool
	// KeyID is the account location URL identifying the signing account.
	// Required unless EmbedKey is set.
	KeyID string
}

func (opts *SignOptions) validate() error {
	if opts.Signer == nil {
		return acme.NewInputError("SignOptions: Signer must not be nil")
	}
	if opts.EmbedKey && opts.KeyID != "" {
		return acme.NewInputError("SignOptions: cannot specify both KeyID and EmbedKey")
	}
	if !opts.EmbedKey && opts.KeyID == "" {
		return acme.NewInputError("SignOptions: you must specify a KeyID or EmbedKey")
	}
	return nil
}

// Get performs an unsigned GET exchange (used only for the directory
// resource). A replacement nonce in the response, if any, is stored into
// the session.
func (c *Connection) Get(ctx context.Context, endpoint *url.URL, session *Session) (*Response, error) {
	netResp, err := c.net.GetURL(ctx, endpoint.String())
	if err != nil {
		return nil, acme.NewTransportError("GET "+endpoint.String(), err)
	}
	return c.finishExchange(netResp, endpoint, session)
}

// SendSignedRequest performs a signed POST exchange. The payload comes
// from a Builder; a nil payload sends a POST-as-GET with an empty
// payload. The current session nonce is consumed for the protected
// header (fetching a fresh one from newNonce when the session has none)
// and the replacement nonce is harvested from the response, success or
// failure. A badNonce rejection transparently retries the whole
// sign-send-parse cycle exactly once with the freshly supplied nonce.
func (c *Connection) SendSignedRequest(ctx context.Context, endpoint *url.URL, session *Session, payload *acme.Builder, opts SignOptions) (*Response, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	var payloadBytes []byte
	if payload != nil {
		payloadBytes = []byte(payload.String())
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		nonce, err := c.nonceFor(ctx, session)
		if err != nil {
			return nil, err
		}

		signedBody, err := signJWS(endpoint.String(), payloadBytes, nonce, opts)
		if err != nil {
			return nil, err
		}

		netResp, err := c.net.PostURL(ctx, endpoint.String(), signedBody)
		if err != nil {
			// The nonce was consumed but no response arrived; the session
			// holds no nonce now, so the next attempt fetches a fresh one.
			return nil, acme.NewTransportError("POST "+endpoint.String(), err)
		}

		resp, err := c.finishExchange(netResp, endpoint, session)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !acme.IsBadNonce(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// finishExchange harvests the replacement nonce and maps HTTP failures
// to server errors.
func (c *Connection) finishExchange(netResp *acmenet.NetResponse, endpoint *url.URL, session *Session) (*Response, error) {
	httpResp := netResp.Response
	if nonce := httpResp.Header.Get(acme.ReplayNonceHeader); nonce != "" {
		session.SetNonce(nonce)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       netResp.RespBody,
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, c.problemError(resp, endpoint)
	}
	return resp, nil
}

// problemError parses a failure body as a problem document and maps it
// to a catalogued ServerError.
func (c *Connection) problemError(resp *Response, endpoint *url.URL) error {
	body, err := resp.JSON()
	if err != nil || body.IsEmpty() {
		return acme.NewServerError(resp.StatusCode, nil)
	}
	problem := acme.NewProblem(body, endpoint)
	return acme.NewServerError(resp.StatusCode, problem)
}

// nonceFor consumes the session's current nonce, falling back to a fresh
// fetch from the newNonce endpoint when the session holds none.
func (c *Connection) nonceFor(ctx context.Context, session *Session) (string, error) {
	if nonce := session.takeNonce(); nonce != "" {
		return nonce, nil
	}
	return c.fetchNonce(ctx, session)
}

// fetchNonce requests a fresh nonce from the server's newNonce endpoint.
//
// See https://tools.ietf.org/html/rfc8555#section-7.2
func (c *Connection) fetchNonce(ctx context.Context, session *Session) (string, error) {
	nonceURL, err := session.ResourceURL(ctx, acme.NewNonce)
	if err != nil {
		return "", err
	}

	resp, err := c.net.HeadURL(ctx, nonceURL.String())
	if err != nil {
		return "", acme.NewTransportError("HEAD "+nonceURL.String(), err)
	}

	nonce := resp.Header.Get(acme.ReplayNonceHeader)
	if nonce == "" {
		return "", acme.NewProtocolError("%q returned no %q header value",
			acme.NewNonce, acme.ReplayNonceHeader)
	}
	return nonce, nil
}

// oneShotNonce satisfies the jose.NonceSource interface with a nonce
// already consumed from the session, so each signing attempt uses
// exactly the nonce chosen for it.
type oneShotNonce string

func (n oneShotNonce) Nonce() (string, error) {
	return string(n), nil
}

// signJWS produces the serialized JWS envelope for one request: a
// protected header carrying the algorithm, nonce, target URL and either
// an embedded JWK or the account key identifier, the base64url payload,
// and the signature.
func signJWS(endpoint string, payload []byte, nonce string, opts SignOptions) ([]byte, error) {
	alg, err := keys.SigAlgForKey(opts.Signer)
	if err != nil {
		return nil, err
	}

	signerOpts := &jose.SignerOptions{
		NonceSource: oneShotNonce(nonce),
		EmbedJWK:    opts.EmbedKey,
		ExtraHeaders: map[jose.HeaderKey]interface{}{
			"url": endpoint,
		},
	}

	var signingKey jose.SigningKey
	if opts.EmbedKey {
		signingKey = jose.SigningKey{
			Key:       opts.Signer,
			Algorithm: alg,
		}
	} else {
		signingKey = jose.SigningKey{
			Key: jose.JSONWebKey{
				Key:       opts.Signer,
				KeyID:     opts.KeyID,
				Algorithm: string(alg),
			},
			Algorithm: alg,
		}
	}

	signer, err := jose.NewSigner(signingKey, signerOpts)
	if err != nil {
		return nil, acme.WrapProtocolError(err, "failed to construct JWS signer")
	}

	signed, err := signer.Sign(payload)
	if err != nil {
		return nil, acme.WrapProtocolError(err, "failed to sign request payload")
	}

	return []byte(signed.FullSerialize()), nil
}
