package resources

import (
	"crypto"
	"net/url"
	"sync"
	"time"

	"github.com/cpu/acmekit/acme"
)

// Authorization represents an account's authorization to issue for one
// identifier, based on its associated challenges.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.4
type Authorization struct {
	mu       sync.Mutex
	location *url.URL
	signer   crypto.Signer
	json     acme.JSON
}

// NewAuthorization wraps a server authorization response. The signer is
// the account key, used when instantiating the contained challenges.
func NewAuthorization(location *url.URL, signer crypto.Signer, json acme.JSON) *Authorization {
	return &Authorization{location: location, signer: signer, json: json}
}

func (a *Authorization) snapshot() acme.JSON {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.json
}

// Location returns the authorization's URL.
func (a *Authorization) Location() *url.URL {
	return a.location
}

// Status returns the authorization's current status.
func (a *Authorization) Status() acme.Status {
	status, err := a.snapshot().Get("status").AsStatus()
	if err != nil {
		return acme.StatusUnknown
	}
	return status
}

// Identifier returns the identifier this authorization covers. Wildcard
// authorizations report the identifier without the "*." prefix and
// Wildcard() true instead.
func (a *Authorization) Identifier() (Identifier, error) {
	obj, err := a.snapshot().Get("identifier").AsObject()
	if err != nil {
		return Identifier{}, err
	}
	typ, err := obj.Get("type").AsString()
	if err != nil {
		return Identifier{}, err
	}
	value, err := obj.Get("value").AsString()
	if err != nil {
		return Identifier{}, err
	}
	return Identifier{Type: typ, Value: value}, nil
}

// Wildcard reports whether the authorization was created for a wildcard
// identifier.
func (a *Authorization) Wildcard() bool {
	wildcard, err := a.snapshot().Get("wildcard").AsBool()
	if err != nil {
		return false
	}
	return wildcard
}

// Expires returns the authorization's expiry, if the server provided
// one.
func (a *Authorization) Expires() (time.Time, bool) {
	expires, err := a.snapshot().Get("expires").AsInstant()
	if err != nil {
		return time.Time{}, false
	}
	return expires, true
}

// Challenges instantiates the authorization's challenges through the
// challenge registry. Each call returns fresh instances.
func (a *Authorization) Challenges() ([]Challenge, error) {
	json := a.snapshot()
	array, err := json.Get("challenges").AsArray()
	if err != nil {
		return nil, err
	}
	challenges := make([]Challenge, 0, array.Len())
	for _, v := range array.Values() {
		obj, err := v.AsObject()
		if err != nil {
			return nil, err
		}
		challenge, err := NewChallenge(a.signer, obj)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, challenge)
	}
	return challenges, nil
}

// FindChallenge returns the authorization's challenge of the given type,
// if the server offered one.
func (a *Authorization) FindChallenge(typ string) (Challenge, bool) {
	challenges, err := a.Challenges()
	if err != nil {
		return nil, false
	}
	for _, challenge := range challenges {
		if challenge.Type() == typ {
			return challenge, true
		}
	}
	return nil, false
}

// JSON returns the current raw snapshot.
func (a *Authorization) JSON() acme.JSON {
	return a.snapshot()
}

// Update atomically replaces the snapshot with a fresh server response.
func (a *Authorization) Update(json acme.JSON) error {
	if json.IsZero() {
		return acme.NewInputError("authorization update JSON must not be nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.json = json
	return nil
}
