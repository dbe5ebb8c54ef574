package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"io"
	"math/big"
	"testing"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpu/acmekit/acme"
)

// The RFC 7638 section 3.1 example RSA key. Its thumbprint is a fixed,
// published value.
const (
	rfc7638Modulus = "0vx7agoebGcQSuuPiLJXZptN9nndrQmbXEps2aiAFbWhM78LhWx4cbbf" +
		"AAtVT86zwu1RK7aPFFxuhDR1L6tSoc_BJECPebWKRXjBZCiFV4n3oknjhMstn64tZ_2W-5" +
		"JsGY4Hc5n9yBXArwl93lqt7_RN5w6Cf0h4QyQ5v-65YGjQR0_FDW2QvzqY368QQMicAtaS" +
		"qzs8KJZgnYb9c7d0zgdAZHzu6qMQvRL5hajrn1n91CbOpbISD08qNLyrdkt-bFTWhAI4vM" +
		"QFh6WeZu0fM4lFd2NcRwr3XPksINHaQ-G_xBniIqbw0Ls1jF44-csFCur-kEgU8awapJzK" +
		"nqDKgw"
	rfc7638Thumbprint = "NzbLsXh8uDCcd-6MNwXF4W_7noWXFZAfHkxZsRGC9Xs"
)

// staticSigner exposes a fixed public key. Signing is never exercised by
// thumbprint or key authorization computation.
type staticSigner struct {
	pub crypto.PublicKey
}

func (s staticSigner) Public() crypto.PublicKey {
	return s.pub
}

func (s staticSigner) Sign(io.Reader, []byte, crypto.SignerOpts) ([]byte, error) {
	return nil, errors.New("static test key cannot sign")
}

func rfc7638Signer(t *testing.T) crypto.Signer {
	t.Helper()
	nBytes, err := base64.RawURLEncoding.DecodeString(rfc7638Modulus)
	require.NoError(t, err)
	return staticSigner{pub: &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: 65537,
	}}
}

func TestJWKThumbprint(t *testing.T) {
	thumbprint, err := JWKThumbprint(rfc7638Signer(t))
	require.NoError(t, err)
	assert.Equal(t, rfc7638Thumbprint, thumbprint)
}

func TestKeyAuth(t *testing.T) {
	token := "rSoI9JpyvFi-ltdnBW0W1DjKstzG7cHixjzcOjwzAEQ"
	keyAuth, err := KeyAuth(rfc7638Signer(t), token)
	require.NoError(t, err)
	assert.Equal(t, token+"."+rfc7638Thumbprint, keyAuth)

	// Deterministic for a given token and key pair.
	again, err := KeyAuth(rfc7638Signer(t), token)
	require.NoError(t, err)
	assert.Equal(t, keyAuth, again)
}

func TestSigAlgForKey(t *testing.T) {
	ecdsaKey, err := NewSigner("ecdsa")
	require.NoError(t, err)
	alg, err := SigAlgForKey(ecdsaKey)
	require.NoError(t, err)
	assert.Equal(t, jose.ES256, alg)

	rsaKey, err := NewSigner("rsa")
	require.NoError(t, err)
	alg, err = SigAlgForKey(rsaKey)
	require.NoError(t, err)
	assert.Equal(t, jose.RS256, alg)

	_, err = SigAlgForKey(staticSigner{})
	var inputErr *acme.InputError
	assert.ErrorAs(t, err, &inputErr)
}

func TestNewSigner(t *testing.T) {
	ecdsaKey, err := NewSigner("ecdsa")
	require.NoError(t, err)
	_, ok := ecdsaKey.(*ecdsa.PrivateKey)
	assert.True(t, ok)

	_, err = NewSigner("dsa")
	var inputErr *acme.InputError
	assert.ErrorAs(t, err, &inputErr)
}

func TestPEMRoundTrip(t *testing.T) {
	for _, keyType := range []string{"ecdsa", "rsa"} {
		signer, err := NewSigner(keyType)
		require.NoError(t, err, "key type %q", keyType)

		pemStr, err := SignerToPEM(signer)
		require.NoError(t, err, "key type %q", keyType)

		restored, err := PEMToSigner([]byte(pemStr))
		require.NoError(t, err, "key type %q", keyType)
		assert.Equal(t, signer.Public(), restored.Public(), "key type %q", keyType)
	}
}

func TestPEMToSignerInvalid(t *testing.T) {
	var inputErr *acme.InputError

	_, err := PEMToSigner([]byte("not PEM at all"))
	assert.ErrorAs(t, err, &inputErr)

	_, err = PEMToSigner([]byte("-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n"))
	assert.ErrorAs(t, err, &inputErr)
}
