// Package acme provides the core ACME protocol toolbox: resource
// identifiers, the typed JSON value model, the JSON builder, problem
// documents and the error taxonomy shared by the rest of acmekit.
// See RFC 8555.
package acme

// Resource is a logical name for an endpoint published in the ACME
// server's directory object.
//
// See https://tools.ietf.org/html/rfc8555#section-9.7.5
type Resource string

const (
	// NewAccount is the directory key for the newAccount endpoint.
	NewAccount Resource = "newAccount"
	// NewAuthz is the directory key for the newAuthz endpoint. Few ACME
	// servers implement pre-authorization so this entry is usually absent.
	NewAuthz Resource = "newAuthz"
	// NewOrder is the directory key for the newOrder endpoint.
	NewOrder Resource = "newOrder"
	// NewNonce is the directory key for the newNonce endpoint.
	NewNonce Resource = "newNonce"
	// RevokeCert is the directory key for the revokeCert endpoint.
	RevokeCert Resource = "revokeCert"
	// KeyChange is the directory key for the keyChange endpoint.
	KeyChange Resource = "keyChange"
	// RenewalInfo is the directory key for the draft-ietf-acme-ari
	// renewalInfo endpoint.
	RenewalInfo Resource = "renewalInfo"
)

const (
	// ReplayNonceHeader is the HTTP response header used by ACME servers to
	// communicate a fresh anti-replay nonce with every response.
	// See https://tools.ietf.org/html/rfc8555#section-6.5.1
	ReplayNonceHeader = "Replay-Nonce"

	// LocationHeader carries the URL of a newly created resource.
	LocationHeader = "Location"

	// ErrorPrefix is the URN namespace prefix for ACME problem types.
	// See https://tools.ietf.org/html/rfc8555#section-6.7
	ErrorPrefix = "urn:ietf:params:acme:error:"

	// JOSEContentType is the media type for outbound signed requests.
	JOSEContentType = "application/jose+json"

	// ProblemContentType is the media type for problem documents.
	ProblemContentType = "application/problem+json"
)

// String returns the directory key for the Resource.
func (r Resource) String() string {
	return string(r)
}
