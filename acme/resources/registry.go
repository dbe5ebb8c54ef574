package resources

import (
	"crypto"
	"crypto/sha256"
	"encoding/base64"

	"github.com/cpu/acmekit/acme"
	"github.com/cpu/acmekit/acme/keys"
)

// challengeFactories is the ordered challenge dispatch table. Exact type
// matches come first; NewChallenge falls back to a TokenChallenge when
// the JSON carries a token, and to a minimal generic challenge
// otherwise. The set is closed on purpose: new validation methods get an
// entry here instead of an open-ended type hierarchy.
var challengeFactories = []struct {
	typ    string
	create func(signer crypto.Signer, json acme.JSON) Challenge
}{
	{TypeHTTP01, func(signer crypto.Signer, json acme.JSON) Challenge {
		return &Http01Challenge{TokenChallenge: TokenChallenge{
			baseChallenge: baseChallenge{json: json},
			signer:        signer,
		}}
	}},
	{TypeDNS01, func(signer crypto.Signer, json acme.JSON) Challenge {
		return &Dns01Challenge{TokenChallenge: TokenChallenge{
			baseChallenge: baseChallenge{json: json},
			signer:        signer,
		}}
	}},
	{TypeTLSALPN01, func(signer crypto.Signer, json acme.JSON) Challenge {
		return &TlsAlpn01Challenge{TokenChallenge: TokenChallenge{
			baseChallenge: baseChallenge{json: json},
			signer:        signer,
		}}
	}},
}

// NewChallenge constructs the challenge variant matching the JSON's
// "type" field. Every call returns a fresh, independently updatable
// instance. JSON without a "type" field fails with a protocol error;
// a zero JSON argument fails with an input error.
func NewChallenge(signer crypto.Signer, json acme.JSON) (Challenge, error) {
	if json.IsZero() {
		return nil, acme.NewInputError("challenge JSON must not be nil")
	}

	typ, err := json.Get("type").AsString()
	if err != nil {
		return nil, acme.NewProtocolError("challenge JSON has no type field")
	}

	for _, factory := range challengeFactories {
		if factory.typ == typ {
			return factory.create(signer, json), nil
		}
	}

	if json.Contains("token") {
		return &TokenChallenge{
			baseChallenge: baseChallenge{json: json},
			signer:        signer,
		}, nil
	}
	return &baseChallenge{json: json}, nil
}

func keyAuth(signer crypto.Signer, token string) (string, error) {
	if signer == nil {
		return "", acme.NewInputError("challenge has no account key")
	}
	return keys.KeyAuth(signer, token)
}

func digest(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

func digestBase64(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(digest(data))
}
