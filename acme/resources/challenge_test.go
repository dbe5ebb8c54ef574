package resources

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpu/acmekit/acme"
)

// The RFC 7638 section 3.1 example RSA key, used so key authorizations
// in this package have a fixed expected value.
const (
	rfc7638Modulus = "0vx7agoebGcQSuuPiLJXZptN9nndrQmbXEps2aiAFbWhM78LhWx4cbbf" +
		"AAtVT86zwu1RK7aPFFxuhDR1L6tSoc_BJECPebWKRXjBZCiFV4n3oknjhMstn64tZ_2W-5" +
		"JsGY4Hc5n9yBXArwl93lqt7_RN5w6Cf0h4QyQ5v-65YGjQR0_FDW2QvzqY368QQMicAtaS" +
		"qzs8KJZgnYb9c7d0zgdAZHzu6qMQvRL5hajrn1n91CbOpbISD08qNLyrdkt-bFTWhAI4vM" +
		"QFh6WeZu0fM4lFd2NcRwr3XPksINHaQ-G_xBniIqbw0Ls1jF44-csFCur-kEgU8awapJzK" +
		"nqDKgw"
	rfc7638Thumbprint = "NzbLsXh8uDCcd-6MNwXF4W_7noWXFZAfHkxZsRGC9Xs"

	testToken = "rSoI9JpyvFi-ltdnBW0W1DjKstzG7cHixjzcOjwzAEQ"
)

type staticSigner struct {
	pub crypto.PublicKey
}

func (s staticSigner) Public() crypto.PublicKey {
	return s.pub
}

func (s staticSigner) Sign(io.Reader, []byte, crypto.SignerOpts) ([]byte, error) {
	return nil, errors.New("static test key cannot sign")
}

func testSigner(t *testing.T) crypto.Signer {
	t.Helper()
	nBytes, err := base64.RawURLEncoding.DecodeString(rfc7638Modulus)
	require.NoError(t, err)
	return staticSigner{pub: &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: 65537,
	}}
}

func challengeJSON(t *testing.T, typ string) acme.JSON {
	t.Helper()
	parsed, err := acme.ParseJSON([]byte(fmt.Sprintf(`{
		"type": %q,
		"url": "https://example.com/acme/chall/1234",
		"status": "pending",
		"token": %q
	}`, typ, testToken)))
	require.NoError(t, err)
	return parsed
}

func TestNewChallengeDispatch(t *testing.T) {
	signer := testSigner(t)

	chall, err := NewChallenge(signer, challengeJSON(t, TypeHTTP01))
	require.NoError(t, err)
	_, ok := chall.(*Http01Challenge)
	assert.True(t, ok)

	chall, err = NewChallenge(signer, challengeJSON(t, TypeDNS01))
	require.NoError(t, err)
	_, ok = chall.(*Dns01Challenge)
	assert.True(t, ok)

	chall, err = NewChallenge(signer, challengeJSON(t, TypeTLSALPN01))
	require.NoError(t, err)
	_, ok = chall.(*TlsAlpn01Challenge)
	assert.True(t, ok)
}

func TestNewChallengeTokenFallback(t *testing.T) {
	// An unknown type with a token becomes a TokenChallenge.
	chall, err := NewChallenge(testSigner(t), challengeJSON(t, "foobar-01"))
	require.NoError(t, err)
	tokenChall, ok := chall.(*TokenChallenge)
	require.True(t, ok)
	assert.Equal(t, "foobar-01", tokenChall.Type())

	keyAuth, err := tokenChall.KeyAuthorization()
	require.NoError(t, err)
	assert.Equal(t, testToken+"."+rfc7638Thumbprint, keyAuth)
}

func TestNewChallengeGenericFallback(t *testing.T) {
	parsed, err := acme.ParseJSON([]byte(`{
		"type": "foobar-02",
		"url": "https://example.com/acme/chall/5678",
		"status": "pending"
	}`))
	require.NoError(t, err)

	chall, err := NewChallenge(testSigner(t), parsed)
	require.NoError(t, err)
	// Without a token there is no TokenChallenge to build.
	_, ok := chall.(*TokenChallenge)
	assert.False(t, ok)
	assert.Equal(t, "foobar-02", chall.Type())
	assert.Equal(t, acme.StatusPending, chall.Status())
}

func TestNewChallengeNoType(t *testing.T) {
	parsed, err := acme.ParseJSON([]byte(`{"url": "https://example.com/acme/chall/1"}`))
	require.NoError(t, err)

	_, err = NewChallenge(testSigner(t), parsed)
	var protocolErr *acme.ProtocolError
	assert.ErrorAs(t, err, &protocolErr)
}

func TestNewChallengeZeroJSON(t *testing.T) {
	var zero acme.JSON
	_, err := NewChallenge(testSigner(t), zero)
	var inputErr *acme.InputError
	assert.ErrorAs(t, err, &inputErr)
}

func TestChallengeAccessors(t *testing.T) {
	chall, err := NewChallenge(testSigner(t), challengeJSON(t, TypeHTTP01))
	require.NoError(t, err)

	assert.Equal(t, TypeHTTP01, chall.Type())
	assert.Equal(t, acme.StatusPending, chall.Status())

	challURL, err := chall.URL()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/acme/chall/1234", challURL.String())

	_, ok := chall.Validated()
	assert.False(t, ok)
	assert.Nil(t, chall.Error())
}

func TestChallengeUpdate(t *testing.T) {
	chall, err := NewChallenge(testSigner(t), challengeJSON(t, TypeHTTP01))
	require.NoError(t, err)

	next, err := acme.ParseJSON([]byte(fmt.Sprintf(`{
		"type": "http-01",
		"url": "https://example.com/acme/chall/1234",
		"status": "valid",
		"validated": "2016-01-08T12:00:00Z",
		"token": %q
	}`, testToken)))
	require.NoError(t, err)

	require.NoError(t, chall.Update(next))
	assert.Equal(t, acme.StatusValid, chall.Status())
	validated, ok := chall.Validated()
	require.True(t, ok)
	assert.Equal(t, 2016, validated.Year())
}

func TestChallengeUpdateTerminal(t *testing.T) {
	valid, err := acme.ParseJSON([]byte(`{"type": "http-01", "status": "valid"}`))
	require.NoError(t, err)
	chall, err := NewChallenge(testSigner(t), valid)
	require.NoError(t, err)

	// A terminal status never transitions again.
	pending, err := acme.ParseJSON([]byte(`{"type": "http-01", "status": "pending"}`))
	require.NoError(t, err)
	err = chall.Update(pending)
	var protocolErr *acme.ProtocolError
	assert.ErrorAs(t, err, &protocolErr)
	assert.Equal(t, acme.StatusValid, chall.Status())

	// Re-applying the same terminal status is fine.
	assert.NoError(t, chall.Update(valid))

	var zero acme.JSON
	var inputErr *acme.InputError
	assert.ErrorAs(t, chall.Update(zero), &inputErr)
}

func TestChallengeError(t *testing.T) {
	parsed, err := acme.ParseJSON([]byte(`{
		"type": "http-01",
		"url": "https://example.com/acme/chall/1234",
		"status": "invalid",
		"error": {
			"type": "urn:ietf:params:acme:error:connection",
			"detail": "connection refused"
		}
	}`))
	require.NoError(t, err)

	chall, err := NewChallenge(testSigner(t), parsed)
	require.NoError(t, err)
	problem := chall.Error()
	require.NotNil(t, problem)
	assert.Equal(t, "connection refused", problem.Detail())
}

func TestHttp01KeyAuthorization(t *testing.T) {
	chall, err := NewChallenge(testSigner(t), challengeJSON(t, TypeHTTP01))
	require.NoError(t, err)
	httpChall := chall.(*Http01Challenge)

	token, err := httpChall.Token()
	require.NoError(t, err)
	assert.Equal(t, testToken, token)

	keyAuth, err := httpChall.KeyAuthorization()
	require.NoError(t, err)
	assert.Equal(t, testToken+"."+rfc7638Thumbprint, keyAuth)
}

func TestHttp01NoToken(t *testing.T) {
	parsed, err := acme.ParseJSON([]byte(`{"type": "http-01", "status": "pending"}`))
	require.NoError(t, err)
	chall, err := NewChallenge(testSigner(t), parsed)
	require.NoError(t, err)

	// A challenge without a token fails rather than yielding an empty
	// authorization.
	_, err = chall.(*Http01Challenge).KeyAuthorization()
	var protocolErr *acme.ProtocolError
	assert.ErrorAs(t, err, &protocolErr)
}

func TestDns01Digest(t *testing.T) {
	chall, err := NewChallenge(testSigner(t), challengeJSON(t, TypeDNS01))
	require.NoError(t, err)
	dnsChall := chall.(*Dns01Challenge)

	keyAuth, err := dnsChall.KeyAuthorization()
	require.NoError(t, err)
	sum := sha256.Sum256([]byte(keyAuth))
	want := base64.RawURLEncoding.EncodeToString(sum[:])

	got, err := dnsChall.Digest()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTlsAlpn01AcmeValidation(t *testing.T) {
	chall, err := NewChallenge(testSigner(t), challengeJSON(t, TypeTLSALPN01))
	require.NoError(t, err)
	alpnChall := chall.(*TlsAlpn01Challenge)

	keyAuth, err := alpnChall.KeyAuthorization()
	require.NoError(t, err)
	sum := sha256.Sum256([]byte(keyAuth))

	got, err := alpnChall.AcmeValidation()
	require.NoError(t, err)
	assert.Equal(t, sum[:], got)
}

func TestNewChallengeNilSigner(t *testing.T) {
	chall, err := NewChallenge(nil, challengeJSON(t, TypeHTTP01))
	require.NoError(t, err)

	// Construction succeeds, computing a key authorization does not.
	_, err = chall.(*Http01Challenge).KeyAuthorization()
	var inputErr *acme.InputError
	assert.ErrorAs(t, err, &inputErr)
}

func TestPrepareResponse(t *testing.T) {
	chall, err := NewChallenge(testSigner(t), challengeJSON(t, TypeHTTP01))
	require.NoError(t, err)

	b := acme.NewBuilder()
	require.NoError(t, chall.PrepareResponse(b))
	// Standard types use the bare acknowledgement object.
	assert.Equal(t, "{}", b.String())
}
