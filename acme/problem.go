package acme

import "net/url"

// Problem is a machine-readable problem document returned by the ACME
// server (RFC 7807 as profiled by RFC 8555 section 6.7). It wraps the raw
// JSON so variant-specific fields stay reachable.
type Problem struct {
	json    JSON
	baseURL *url.URL
}

// NewProblem creates a Problem from its JSON document. Relative type and
// instance URIs are resolved against baseURL.
func NewProblem(json JSON, baseURL *url.URL) *Problem {
	return &Problem{json: json, baseURL: baseURL}
}

// JSON returns the raw problem document.
func (p *Problem) JSON() JSON {
	return p.json
}

// Type returns the problem type URI resolved against the base URL, or
// nil when the document carries no type.
func (p *Problem) Type() *url.URL {
	return p.resolvedURL("type")
}

// TypeString returns the resolved problem type URI as a string, or "".
func (p *Problem) TypeString() string {
	if t := p.Type(); t != nil {
		return t.String()
	}
	return ""
}

// Detail returns the human-readable detail, or "" when absent.
func (p *Problem) Detail() string {
	detail, err := p.json.Get("detail").AsString()
	if err != nil {
		return ""
	}
	return detail
}

// Instance returns the problem instance URI resolved against the base
// URL, or nil when absent.
func (p *Problem) Instance() *url.URL {
	return p.resolvedURL("instance")
}

// resolvedURL reads a URI field and resolves it against the base URL.
// Problem documents may carry relative references.
func (p *Problem) resolvedURL(key string) *url.URL {
	str, err := p.json.Get(key).AsString()
	if err != nil {
		return nil
	}
	ref, err := url.Parse(str)
	if err != nil {
		return nil
	}
	if p.baseURL == nil {
		return ref
	}
	return p.baseURL.ResolveReference(ref)
}

// Subproblems returns the nested subproblem documents, if any.
//
// See https://tools.ietf.org/html/rfc8555#section-6.7.1
func (p *Problem) Subproblems() []*Problem {
	array, err := p.json.Get("subproblems").AsArray()
	if err != nil {
		return nil
	}
	var subs []*Problem
	for _, v := range array.Values() {
		obj, err := v.AsObject()
		if err != nil {
			continue
		}
		subs = append(subs, NewProblem(obj, p.baseURL))
	}
	return subs
}

// String returns the detail when present, otherwise the type URI.
func (p *Problem) String() string {
	if detail := p.Detail(); detail != "" {
		return detail
	}
	return p.TypeString()
}
