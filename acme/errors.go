package acme

import (
	"errors"
	"fmt"
	"strings"
)

// The error taxonomy. Callers need to tell apart "my input was bad"
// (InputError), "the response violated the protocol" (ProtocolError),
// "the network failed" (TransportError) and "the server rejected the
// request with a problem document" (ServerError) because each implies a
// different retry policy.

// InputError reports a caller mistake: a malformed server identifier, a
// bad alias path or a missing required argument. It is never worth
// retrying.
type InputError struct {
	Message string
}

// NewInputError creates an InputError with a formatted message.
func NewInputError(format string, args ...interface{}) *InputError {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

func (e *InputError) Error() string {
	return "acme: " + e.Message
}

// ProtocolError reports a violation of the ACME protocol: unparseable
// JSON, a field of the wrong shape, an unsupported directory resource or
// a challenge missing its token.
type ProtocolError struct {
	Message string
	Err     error
}

// NewProtocolError creates a ProtocolError with a formatted message.
func NewProtocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Message: fmt.Sprintf(format, args...)}
}

// WrapProtocolError creates a ProtocolError preserving an underlying
// cause (typically a JSON decode error).
func WrapProtocolError(err error, format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("acme: %s: %s", e.Message, e.Err)
	}
	return "acme: " + e.Message
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// TransportError reports an I/O failure or timeout talking to the ACME
// server. The underlying cause is preserved for errors.Is checks
// (e.g. context.DeadlineExceeded).
type TransportError struct {
	Op  string
	Err error
}

// NewTransportError wraps err as a TransportError for the named
// operation.
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("acme: %s: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProblemKind is a catalogued ACME problem type. Problem types outside
// the catalogue map to KindOther; the raw type URN remains available on
// the ServerError's Problem.
type ProblemKind string

const (
	KindBadNonce                ProblemKind = "badNonce"
	KindRateLimited             ProblemKind = "rateLimited"
	KindUnauthorized            ProblemKind = "unauthorized"
	KindMalformed               ProblemKind = "malformed"
	KindUserActionRequired      ProblemKind = "userActionRequired"
	KindAccountDoesNotExist     ProblemKind = "accountDoesNotExist"
	KindBadSignatureAlgorithm   ProblemKind = "badSignatureAlgorithm"
	KindAlreadyRevoked          ProblemKind = "alreadyRevoked"
	KindOrderNotReady           ProblemKind = "orderNotReady"
	KindRejectedIdentifier      ProblemKind = "rejectedIdentifier"
	KindExternalAccountRequired ProblemKind = "externalAccountRequired"
	KindOther                   ProblemKind = "other"
)

var problemCatalog = []ProblemKind{
	KindBadNonce,
	KindRateLimited,
	KindUnauthorized,
	KindMalformed,
	KindUserActionRequired,
	KindAccountDoesNotExist,
	KindBadSignatureAlgorithm,
	KindAlreadyRevoked,
	KindOrderNotReady,
	KindRejectedIdentifier,
	KindExternalAccountRequired,
}

// classifyProblem maps a problem type URN to its catalogued kind.
func classifyProblem(typeURN string) ProblemKind {
	suffix, ok := strings.CutPrefix(typeURN, ErrorPrefix)
	if !ok {
		return KindOther
	}
	for _, kind := range problemCatalog {
		if suffix == string(kind) {
			return kind
		}
	}
	return KindOther
}

// ServerError is a problem document returned by the ACME server,
// classified into a ProblemKind. A badNonce ServerError is retried once,
// transparently, inside Connection; every other kind is surfaced to the
// caller untouched.
type ServerError struct {
	// Kind is the catalogued problem kind derived from the type URN.
	Kind ProblemKind
	// StatusCode is the HTTP status the problem arrived with.
	StatusCode int
	// Problem is the parsed problem document.
	Problem *Problem
}

// NewServerError builds a ServerError from an HTTP status code and a
// parsed problem document.
func NewServerError(statusCode int, problem *Problem) *ServerError {
	kind := KindOther
	if problem != nil {
		kind = classifyProblem(problem.TypeString())
	}
	return &ServerError{
		Kind:       kind,
		StatusCode: statusCode,
		Problem:    problem,
	}
}

func (e *ServerError) Error() string {
	if e.Problem == nil {
		return fmt.Sprintf("acme: server returned HTTP status %d", e.StatusCode)
	}
	return fmt.Sprintf("acme: server returned problem %q: %s",
		e.Problem.TypeString(), e.Problem.String())
}

// IsBadNonce returns true if err is (or wraps) a ServerError for the
// urn:ietf:params:acme:error:badNonce problem type.
func IsBadNonce(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr) && serverErr.Kind == KindBadNonce
}

// IsServerProblem returns the ServerError wrapped by err, if any.
func IsServerProblem(err error) (*ServerError, bool) {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr, true
	}
	return nil, false
}
