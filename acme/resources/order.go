package resources

import (
	"net/url"
	"sync"
	"time"

	"github.com/cpu/acmekit/acme"
)

// Identifier is a subject identifier an order requests a certificate
// for. In practice most ACME servers only support "dns" identifiers.
//
// See https://tools.ietf.org/html/rfc8555#section-9.7.7
type Identifier struct {
	// The type of the identifier value, usually "dns".
	Type string
	// The identifier value. For newOrder requests a dns value may carry
	// a "*." wildcard prefix.
	Value string
}

// DNSIdentifier returns a dns Identifier for the given name.
func DNSIdentifier(value string) Identifier {
	return Identifier{Type: "dns", Value: value}
}

// ToMap returns the request wire form of the Identifier.
func (i Identifier) ToMap() map[string]interface{} {
	return map[string]interface{}{"type": i.Type, "value": i.Value}
}

// Order is a collection of identifiers an account wants a certificate
// for. Like Challenge, it keeps the whole server JSON behind a mutex and
// refreshes it wholesale.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.3
type Order struct {
	mu       sync.Mutex
	location *url.URL
	json     acme.JSON
}

// NewOrder wraps a server order response. location is the Location
// header value identifying the order.
func NewOrder(location *url.URL, json acme.JSON) *Order {
	return &Order{location: location, json: json}
}

func (o *Order) snapshot() acme.JSON {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.json
}

// Location returns the order's URL.
func (o *Order) Location() *url.URL {
	return o.location
}

// Status returns the order's current status.
func (o *Order) Status() acme.Status {
	status, err := o.snapshot().Get("status").AsStatus()
	if err != nil {
		return acme.StatusUnknown
	}
	return status
}

// Expires returns the order's expiry, if the server provided one.
func (o *Order) Expires() (time.Time, bool) {
	expires, err := o.snapshot().Get("expires").AsInstant()
	if err != nil {
		return time.Time{}, false
	}
	return expires, true
}

// Identifiers returns the identifiers the order covers.
func (o *Order) Identifiers() ([]Identifier, error) {
	array, err := o.snapshot().Get("identifiers").AsArray()
	if err != nil {
		return nil, err
	}
	identifiers := make([]Identifier, 0, array.Len())
	for _, v := range array.Values() {
		obj, err := v.AsObject()
		if err != nil {
			return nil, err
		}
		typ, err := obj.Get("type").AsString()
		if err != nil {
			return nil, err
		}
		value, err := obj.Get("value").AsString()
		if err != nil {
			return nil, err
		}
		identifiers = append(identifiers, Identifier{Type: typ, Value: value})
	}
	return identifiers, nil
}

// Authorizations returns the URLs of the authorizations the order
// depends on.
func (o *Order) Authorizations() ([]*url.URL, error) {
	array, err := o.snapshot().Get("authorizations").AsArray()
	if err != nil {
		return nil, err
	}
	authzURLs := make([]*url.URL, 0, array.Len())
	for _, v := range array.Values() {
		authzURL, err := v.AsURL()
		if err != nil {
			return nil, err
		}
		authzURLs = append(authzURLs, authzURL)
	}
	return authzURLs, nil
}

// Finalize returns the URL used to finalize the order with a CSR once it
// is ready.
func (o *Order) Finalize() (*url.URL, error) {
	return o.snapshot().Get("finalize").AsURL()
}

// Certificate returns the URL of the issued certificate. Present only
// once the order is valid.
func (o *Order) Certificate() (*url.URL, error) {
	return o.snapshot().Get("certificate").AsURL()
}

// Error returns the problem recorded for a failed order, or nil.
func (o *Order) Error() *acme.Problem {
	problem, err := o.snapshot().Get("error").AsProblem(o.location)
	if err != nil {
		return nil
	}
	return problem
}

// JSON returns the current raw snapshot.
func (o *Order) JSON() acme.JSON {
	return o.snapshot()
}

// Update atomically replaces the snapshot with a fresh server response.
func (o *Order) Update(json acme.JSON) error {
	if json.IsZero() {
		return acme.NewInputError("order update JSON must not be nil")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.json = json
	return nil
}
