package client

import (
	"context"
	"crypto"
	"net/url"

	"github.com/cpu/acmekit/acme"
	"github.com/cpu/acmekit/acme/keys"
	"github.com/cpu/acmekit/acme/resources"
)

// Login binds an account key pair and the account's location URL to
// a Session. It is stateless beyond that triple; all mutable protocol
// state lives in the Session.
type Login struct {
	session         *Session
	accountLocation *url.URL
	signer          crypto.Signer
}

// Session returns the Session this Login signs requests for.
func (l *Login) Session() *Session {
	return l.session
}

// AccountLocation returns the account URL used as the JWS key
// identifier.
func (l *Login) AccountLocation() *url.URL {
	return l.accountLocation
}

// Signer returns the account's private key.
func (l *Login) Signer() crypto.Signer {
	return l.signer
}

// KeyAuthorization computes the key authorization for a challenge
// token with this Login's account key.
func (l *Login) KeyAuthorization(token string) (string, error) {
	return keys.KeyAuth(l.signer, token)
}

// CreateChallenge instantiates a challenge from its JSON document,
// bound to this Login's account key.
func (l *Login) CreateChallenge(json acme.JSON) (resources.Challenge, error) {
	return resources.NewChallenge(l.signer, json)
}

// signOptions returns the kid-based signing options for authenticated
// requests.
func (l *Login) signOptions() SignOptions {
	return SignOptions{
		Signer: l.signer,
		KeyID:  l.accountLocation.String(),
	}
}

// post performs one signed POST exchange with this Login's key.
func (l *Login) post(ctx context.Context, endpoint *url.URL, payload *acme.Builder) (*Response, error) {
	conn, err := l.session.Provider().Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return conn.SendSignedRequest(ctx, endpoint, l.session, payload, l.signOptions())
}

// postAsGet performs a POST-as-GET exchange: a signed request with an
// empty payload, used to fetch resources.
//
// See https://tools.ietf.org/html/rfc8555#section-6.3
func (l *Login) postAsGet(ctx context.Context, endpoint *url.URL) (*Response, error) {
	return l.post(ctx, endpoint, nil)
}

// NewOrder creates an order for the given identifiers and returns it
// with its server-assigned location.
func (l *Login) NewOrder(ctx context.Context, identifiers []resources.Identifier) (*resources.Order, error) {
	if len(identifiers) == 0 {
		return nil, acme.NewInputError("at least one identifier is required")
	}

	endpoint, err := l.session.ResourceURL(ctx, acme.NewOrder)
	if err != nil {
		return nil, err
	}

	wireIdentifiers := make([]interface{}, len(identifiers))
	for i, identifier := range identifiers {
		wireIdentifiers[i] = identifier.ToMap()
	}
	payload := acme.NewBuilder().Array("identifiers", wireIdentifiers)

	resp, err := l.post(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}

	location, err := resp.Location()
	if err != nil {
		return nil, err
	}
	body, err := resp.JSON()
	if err != nil {
		return nil, err
	}
	return resources.NewOrder(location, body), nil
}

// GetOrder fetches the order at the given URL.
func (l *Login) GetOrder(ctx context.Context, orderURL *url.URL) (*resources.Order, error) {
	resp, err := l.postAsGet(ctx, orderURL)
	if err != nil {
		return nil, err
	}
	body, err := resp.JSON()
	if err != nil {
		return nil, err
	}
	return resources.NewOrder(orderURL, body), nil
}

// UpdateOrder refreshes the order from the server, replacing its
// snapshot atomically.
func (l *Login) UpdateOrder(ctx context.Context, order *resources.Order) error {
	resp, err := l.postAsGet(ctx, order.Location())
	if err != nil {
		return err
	}
	body, err := resp.JSON()
	if err != nil {
		return err
	}
	return order.Update(body)
}

// GetAuthorization fetches the authorization at the given URL. Its
// challenges are instantiated with this Login's account key.
func (l *Login) GetAuthorization(ctx context.Context, authzURL *url.URL) (*resources.Authorization, error) {
	resp, err := l.postAsGet(ctx, authzURL)
	if err != nil {
		return nil, err
	}
	body, err := resp.JSON()
	if err != nil {
		return nil, err
	}
	return resources.NewAuthorization(authzURL, l.signer, body), nil
}

// UpdateAuthorization refreshes the authorization from the server,
// replacing its snapshot atomically.
func (l *Login) UpdateAuthorization(ctx context.Context, authz *resources.Authorization) error {
	resp, err := l.postAsGet(ctx, authz.Location())
	if err != nil {
		return err
	}
	body, err := resp.JSON()
	if err != nil {
		return err
	}
	return authz.Update(body)
}

// TriggerChallenge asks the server to begin validating the challenge.
// The challenge payload is prepared by the concrete variant; the
// challenge snapshot is refreshed from the server's response.
func (l *Login) TriggerChallenge(ctx context.Context, challenge resources.Challenge) error {
	endpoint, err := challenge.URL()
	if err != nil {
		return err
	}

	payload := acme.NewBuilder()
	if err := challenge.PrepareResponse(payload); err != nil {
		return err
	}

	resp, err := l.post(ctx, endpoint, payload)
	if err != nil {
		return err
	}
	body, err := resp.JSON()
	if err != nil {
		return err
	}
	if body.IsEmpty() {
		return nil
	}
	return challenge.Update(body)
}

// UpdateChallenge refreshes the challenge from the server with a
// POST-as-GET, replacing its snapshot atomically.
func (l *Login) UpdateChallenge(ctx context.Context, challenge resources.Challenge) error {
	endpoint, err := challenge.URL()
	if err != nil {
		return err
	}

	resp, err := l.postAsGet(ctx, endpoint)
	if err != nil {
		return err
	}
	body, err := resp.JSON()
	if err != nil {
		return err
	}
	return challenge.Update(body)
}
