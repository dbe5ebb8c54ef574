// Package resources provides typed views over the ACME resources a
// client works with: the server directory, challenges, orders and
// authorizations. See RFC 8555 section 7.1.
package resources

import (
	"net/url"

	"github.com/cpu/acmekit/acme"
)

// Directory maps logical resource names to the endpoint URLs published
// by the ACME server. It is immutable once parsed; a resource absent
// from the map is unsupported by this server.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.1
type Directory struct {
	urls map[string]*url.URL
	meta *Metadata
}

// ParseDirectory builds a Directory from the server's directory JSON.
// Keys other than "meta" are endpoint entries; unknown keys are accepted
// as forward-compatible extra resources. The optional "meta" object
// becomes the directory Metadata.
func ParseDirectory(json acme.JSON) (*Directory, error) {
	dir := &Directory{
		urls: map[string]*url.URL{},
		meta: &Metadata{json: acme.EmptyJSON()},
	}
	for _, key := range json.Keys() {
		if key == "meta" {
			metaJSON, err := json.Get(key).AsObject()
			if err != nil {
				return nil, err
			}
			dir.meta = &Metadata{json: metaJSON}
			continue
		}
		endpoint, err := json.Get(key).AsURL()
		if err != nil {
			// Servers may publish non-URL extension values. They are not
			// resource entries, skip them.
			continue
		}
		dir.urls[key] = endpoint
	}
	return dir, nil
}

// URL returns the endpoint for the resource and whether the server
// supports it.
func (d *Directory) URL(r acme.Resource) (*url.URL, bool) {
	endpoint, ok := d.urls[r.String()]
	return endpoint, ok
}

// Resources returns the directory keys the server published.
func (d *Directory) Resources() []string {
	names := make([]string, 0, len(d.urls))
	for name := range d.urls {
		names = append(names, name)
	}
	return names
}

// Metadata returns the directory metadata. It is never nil; servers that
// omit "meta" yield an empty Metadata.
func (d *Directory) Metadata() *Metadata {
	return d.meta
}

// Metadata holds the optional "meta" object of a directory.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.1
type Metadata struct {
	json acme.JSON
}

// TermsOfService returns the terms of service URI, or nil.
func (m *Metadata) TermsOfService() *url.URL {
	tos, err := m.json.Get("termsOfService").AsURL()
	if err != nil {
		return nil
	}
	return tos
}

// Website returns the CA's website URL, or nil.
func (m *Metadata) Website() *url.URL {
	website, err := m.json.Get("website").AsURL()
	if err != nil {
		return nil
	}
	return website
}

// CAAIdentities returns the hostnames the CA recognizes in CAA records.
// The set is empty when the server publishes none.
func (m *Metadata) CAAIdentities() []string {
	array, err := m.json.Get("caaIdentities").AsArray()
	if err != nil {
		return nil
	}
	identities := make([]string, 0, array.Len())
	for _, v := range array.Values() {
		identity, err := v.AsString()
		if err != nil {
			continue
		}
		identities = append(identities, identity)
	}
	return identities
}

// ExternalAccountRequired reports whether newAccount requests must carry
// an externalAccountBinding.
func (m *Metadata) ExternalAccountRequired() bool {
	required, err := m.json.Get("externalAccountRequired").AsBool()
	if err != nil {
		return false
	}
	return required
}

// JSON returns the raw metadata object.
func (m *Metadata) JSON() acme.JSON {
	return m.json
}
