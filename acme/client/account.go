package client

import (
	"context"
	"crypto"

	"github.com/cpu/acmekit/acme"
)

// RegisterAccount creates (or, if the key is already registered,
// retrieves) an account for the given key pair and returns a Login for
// it. The newAccount request is signed with an embedded JWK since no
// account URL exists yet; the Location header of the response becomes
// the key identifier for all subsequent requests.
//
// See https://tools.ietf.org/html/rfc8555#section-7.3
func (s *Session) RegisterAccount(ctx context.Context, signer crypto.Signer, contacts []string, tosAgreed bool) (*Login, error) {
	if signer == nil {
		return nil, acme.NewInputError("signer must not be nil")
	}

	endpoint, err := s.ResourceURL(ctx, acme.NewAccount)
	if err != nil {
		return nil, err
	}

	payload := acme.NewBuilder()
	if len(contacts) > 0 {
		wireContacts := make([]interface{}, len(contacts))
		for i, contact := range contacts {
			wireContacts[i] = contact
		}
		payload.Array("contact", wireContacts)
	}
	if tosAgreed {
		payload.Put("termsOfServiceAgreed", true)
	}

	conn, err := s.Provider().Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resp, err := conn.SendSignedRequest(ctx, endpoint, s, payload, SignOptions{
		Signer:   signer,
		EmbedKey: true,
	})
	if err != nil {
		return nil, err
	}

	location, err := resp.Location()
	if err != nil {
		return nil, acme.WrapProtocolError(err, "newAccount response lacked a usable Location header")
	}
	return s.Login(location, signer)
}

// FindAccount looks up the Login for an already registered key pair
// without creating a new account. The server answers an unregistered key
// with an accountDoesNotExist problem.
func (s *Session) FindAccount(ctx context.Context, signer crypto.Signer) (*Login, error) {
	if signer == nil {
		return nil, acme.NewInputError("signer must not be nil")
	}

	endpoint, err := s.ResourceURL(ctx, acme.NewAccount)
	if err != nil {
		return nil, err
	}

	payload := acme.NewBuilder().Put("onlyReturnExisting", true)

	conn, err := s.Provider().Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resp, err := conn.SendSignedRequest(ctx, endpoint, s, payload, SignOptions{
		Signer:   signer,
		EmbedKey: true,
	})
	if err != nil {
		return nil, err
	}

	location, err := resp.Location()
	if err != nil {
		return nil, acme.WrapProtocolError(err, "newAccount response lacked a usable Location header")
	}
	return s.Login(location, signer)
}

// Account returns the current account document for this Login.
func (l *Login) Account(ctx context.Context) (acme.JSON, error) {
	resp, err := l.postAsGet(ctx, l.accountLocation)
	if err != nil {
		return acme.EmptyJSON(), err
	}
	return resp.JSON()
}

// UpdateContacts replaces the account's contact URLs.
func (l *Login) UpdateContacts(ctx context.Context, contacts []string) error {
	wireContacts := make([]interface{}, len(contacts))
	for i, contact := range contacts {
		wireContacts[i] = contact
	}
	payload := acme.NewBuilder().Array("contact", wireContacts)

	_, err := l.post(ctx, l.accountLocation, payload)
	return err
}

// DeactivateAccount permanently deactivates the account. The server
// rejects all further requests signed with its key.
func (l *Login) DeactivateAccount(ctx context.Context) error {
	payload := acme.NewBuilder().Put("status", string(acme.StatusDeactivated))

	_, err := l.post(ctx, l.accountLocation, payload)
	return err
}
