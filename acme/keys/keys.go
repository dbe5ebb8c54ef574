// Package keys offers utility functions for working with crypto.Signers,
// JWKs, key authorizations and PEM serialization.
package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/cpu/acmekit/acme"
)

// SigAlgForKey returns the JWS signature algorithm matching the signer's
// key type.
func SigAlgForKey(signer crypto.Signer) (jose.SignatureAlgorithm, error) {
	switch signer.(type) {
	case *ecdsa.PrivateKey:
		return jose.ES256, nil
	case *rsa.PrivateKey:
		return jose.RS256, nil
	}
	return "", acme.NewInputError("unsupported signer type %T", signer)
}

// JWKForSigner returns the public JWK for the signer.
func JWKForSigner(signer crypto.Signer) jose.JSONWebKey {
	return jose.JSONWebKey{
		Key: signer.Public(),
	}
}

// JWKThumbprintBytes returns the SHA-256 thumbprint of the signer's
// public key computed over the canonical JWK representation (RFC 7638).
func JWKThumbprintBytes(signer crypto.Signer) ([]byte, error) {
	jwk := JWKForSigner(signer)
	return jwk.Thumbprint(crypto.SHA256)
}

// JWKThumbprint returns the base64url encoded SHA-256 thumbprint of the
// signer's public key.
func JWKThumbprint(signer crypto.Signer) (string, error) {
	thumbprint, err := JWKThumbprintBytes(signer)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(thumbprint), nil
}

// KeyAuth computes the key authorization for a challenge token:
// token + "." + base64url(SHA-256 JWK thumbprint of the account key).
// The result is deterministic for a given token and key pair.
//
// See https://tools.ietf.org/html/rfc8555#section-8.1
func KeyAuth(signer crypto.Signer, token string) (string, error) {
	thumbprint, err := JWKThumbprint(signer)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s", token, thumbprint), nil
}

// NewSigner generates a fresh private key of the given type ("ecdsa" for
// a P-256 key, "rsa" for a 2048 bit key).
func NewSigner(keyType string) (crypto.Signer, error) {
	switch keyType {
	case "ecdsa":
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "rsa":
		return rsa.GenerateKey(rand.Reader, 2048)
	}
	return nil, acme.NewInputError("unknown key type %q", keyType)
}

// SignerToPEM serializes the signer's private key to a PEM block.
func SignerToPEM(signer crypto.Signer) (string, error) {
	var keyBytes []byte
	var keyHeader string
	var err error
	switch k := signer.(type) {
	case *ecdsa.PrivateKey:
		keyBytes, err = x509.MarshalECPrivateKey(k)
		keyHeader = "EC PRIVATE KEY"
	case *rsa.PrivateKey:
		keyBytes = x509.MarshalPKCS1PrivateKey(k)
		keyHeader = "RSA PRIVATE KEY"
	default:
		err = acme.NewInputError("unsupported signer type %T", k)
	}
	if err != nil {
		return "", err
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  keyHeader,
		Bytes: keyBytes,
	})
	return string(pemBytes), nil
}

// PEMToSigner parses a PEM encoded EC or RSA private key.
func PEMToSigner(pemBytes []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, acme.NewInputError("no PEM block found in input")
	}
	switch block.Type {
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	}
	return nil, acme.NewInputError("unsupported PEM block type %q", block.Type)
}
