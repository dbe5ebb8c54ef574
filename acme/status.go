package acme

import "strings"

// Status is the state of an ACME resource (account, order, authorization
// or challenge) as reported by the server.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.6
type Status string

const (
	StatusPending     Status = "pending"
	StatusReady       Status = "ready"
	StatusProcessing  Status = "processing"
	StatusValid       Status = "valid"
	StatusInvalid     Status = "invalid"
	StatusDeactivated Status = "deactivated"
	StatusExpired     Status = "expired"
	StatusRevoked     Status = "revoked"
	StatusCanceled    Status = "canceled"

	// StatusUnknown is used for status values this client does not know.
	// Servers are allowed to extend the status set, so an unknown value is
	// not a protocol error.
	StatusUnknown Status = "unknown"
)

var knownStatuses = []Status{
	StatusPending, StatusReady, StatusProcessing, StatusValid,
	StatusInvalid, StatusDeactivated, StatusExpired, StatusRevoked,
	StatusCanceled,
}

// ParseStatus maps a server-provided status string to a Status. The match
// is case insensitive. Values outside the RFC 8555 set map to
// StatusUnknown.
func ParseStatus(value string) Status {
	for _, s := range knownStatuses {
		if strings.EqualFold(value, string(s)) {
			return s
		}
	}
	return StatusUnknown
}

// Terminal returns true for statuses that never transition again.
func (s Status) Terminal() bool {
	switch s {
	case StatusValid, StatusInvalid, StatusDeactivated, StatusExpired,
		StatusRevoked, StatusCanceled:
		return true
	}
	return false
}

// String returns the wire form of the Status.
func (s Status) String() string {
	return string(s)
}
