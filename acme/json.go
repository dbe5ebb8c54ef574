package acme

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// JSON is an immutable, typed view over a parsed JSON object. All ACME
// payloads flow through it. Accessors fail with a *ProtocolError instead
// of silently returning zero values so that a malformed server response
// is caught at the field access, not three layers later.
type JSON struct {
	data map[string]interface{}
}

// EmptyJSON returns a JSON object with no keys.
func EmptyJSON() JSON {
	return JSON{data: map[string]interface{}{}}
}

// ParseJSON parses text into a JSON object. Malformed input fails with
// a *ProtocolError; a raw decoder error is never propagated directly.
func ParseJSON(text []byte) (JSON, error) {
	return ParseJSONReader(bytes.NewReader(text))
}

// ParseJSONReader parses the reader's content into a JSON object.
func ParseJSONReader(r io.Reader) (JSON, error) {
	dec := json.NewDecoder(r)
	// Preserve number literals. The default float64 decoding would
	// round-trip large integers lossily.
	dec.UseNumber()

	var data map[string]interface{}
	if err := dec.Decode(&data); err != nil {
		return JSON{}, WrapProtocolError(err, "failed to parse JSON")
	}
	return JSON{data: data}, nil
}

// Keys returns the object's keys in sorted order.
func (j JSON) Keys() []string {
	keys := make([]string, 0, len(j.data))
	for k := range j.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Contains reports whether the key is present, even when its value is
// null.
func (j JSON) Contains(key string) bool {
	_, ok := j.data[key]
	return ok
}

// Get returns the Value for the key. It never fails: absent keys (and
// present-null keys) yield an absent Value whose terminal accessors fail
// with a *ProtocolError.
func (j JSON) Get(key string) Value {
	return Value{path: key, val: j.data[key]}
}

// ToMap returns a shallow copy of the underlying key/value mapping.
func (j JSON) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, len(j.data))
	for k, v := range j.data {
		m[k] = v
	}
	return m
}

// String returns the serialized JSON object. Parsing the result yields
// an equivalent JSON object.
func (j JSON) String() string {
	serialized, err := json.Marshal(j.data)
	if err != nil {
		// The map only ever holds decoder output, which re-marshals.
		return "{}"
	}
	return string(serialized)
}

// MarshalJSON implements json.Marshaler.
func (j JSON) MarshalJSON() ([]byte, error) {
	if j.data == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(j.data)
}

// IsEmpty reports whether the object has no keys.
func (j JSON) IsEmpty() bool {
	return len(j.data) == 0
}

// IsZero reports whether this is the zero JSON value, i.e. no object at
// all as opposed to an empty one.
func (j JSON) IsZero() bool {
	return j.data == nil
}

// Value is a single JSON value together with the key path it was read
// from, used in error messages.
type Value struct {
	path string
	val  interface{}
}

// IsPresent reports whether the value exists and is not null. It allows
// null-safe probing before using a terminal accessor.
func (v Value) IsPresent() bool {
	return v.val != nil
}

// required fails when the value is absent.
func (v Value) required() error {
	if v.val == nil {
		return NewProtocolError("required JSON value %q is not present", v.path)
	}
	return nil
}

// AsString returns the value as a string. Scalars are converted to their
// literal form; objects and arrays fail.
func (v Value) AsString() (string, error) {
	if err := v.required(); err != nil {
		return "", err
	}
	switch val := v.val.(type) {
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	}
	return "", NewProtocolError("JSON value %q is not a string", v.path)
}

// AsInt returns the value as an int.
func (v Value) AsInt() (int, error) {
	if err := v.required(); err != nil {
		return 0, err
	}
	num, ok := v.val.(json.Number)
	if !ok {
		return 0, NewProtocolError("JSON value %q is not a number", v.path)
	}
	i, err := strconv.ParseInt(num.String(), 10, 64)
	if err != nil {
		f, ferr := num.Float64()
		if ferr != nil {
			return 0, WrapProtocolError(err, "JSON value %q is not an integer", v.path)
		}
		return int(f), nil
	}
	return int(i), nil
}

// AsBool returns the value as a bool.
func (v Value) AsBool() (bool, error) {
	if err := v.required(); err != nil {
		return false, err
	}
	b, ok := v.val.(bool)
	if !ok {
		return false, NewProtocolError("JSON value %q is not a boolean", v.path)
	}
	return b, nil
}

// AsURL returns the value as an absolute URL (or URI; Go has a single
// type for both).
func (v Value) AsURL() (*url.URL, error) {
	str, err := v.AsString()
	if err != nil {
		return nil, err
	}
	parsed, err := url.Parse(str)
	if err != nil || parsed.Scheme == "" {
		return nil, NewProtocolError("JSON value %q is not a valid URL: %q", v.path, str)
	}
	return parsed, nil
}

// AsInstant returns the value as an RFC 3339 timestamp.
func (v Value) AsInstant() (time.Time, error) {
	str, err := v.AsString()
	if err != nil {
		return time.Time{}, err
	}
	instant, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return time.Time{}, WrapProtocolError(err, "JSON value %q is not a valid timestamp", v.path)
	}
	return instant, nil
}

// AsDuration returns the value, an integer number of seconds, as
// a time.Duration.
func (v Value) AsDuration() (time.Duration, error) {
	seconds, err := v.AsInt()
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

// AsBinary returns the value, a base64url string, as decoded bytes.
func (v Value) AsBinary() ([]byte, error) {
	str, err := v.AsString()
	if err != nil {
		return nil, err
	}
	decoded, err := base64.RawURLEncoding.DecodeString(str)
	if err != nil {
		return nil, WrapProtocolError(err, "JSON value %q is not valid base64url", v.path)
	}
	return decoded, nil
}

// AsStatus returns the value as a resource Status. Unknown status strings
// map to StatusUnknown; only an absent or non-string value fails.
func (v Value) AsStatus() (Status, error) {
	str, err := v.AsString()
	if err != nil {
		return StatusUnknown, err
	}
	return ParseStatus(str), nil
}

// AsObject returns the value as a nested JSON object.
func (v Value) AsObject() (JSON, error) {
	if err := v.required(); err != nil {
		return JSON{}, err
	}
	obj, ok := v.val.(map[string]interface{})
	if !ok {
		return JSON{}, NewProtocolError("JSON value %q is not an object", v.path)
	}
	return JSON{data: obj}, nil
}

// AsEncodedObject returns the value, a base64url string whose decoded
// content is itself JSON, as a JSON object.
func (v Value) AsEncodedObject() (JSON, error) {
	decoded, err := v.AsBinary()
	if err != nil {
		return JSON{}, err
	}
	obj, err := ParseJSON(decoded)
	if err != nil {
		return JSON{}, WrapProtocolError(err, "JSON value %q does not contain encoded JSON", v.path)
	}
	return obj, nil
}

// AsArray returns the value as an Array. An absent value yields an empty
// Array so optional lists can be ranged over directly; only a present
// non-array value fails.
func (v Value) AsArray() (Array, error) {
	if v.val == nil {
		return Array{path: v.path}, nil
	}
	vals, ok := v.val.([]interface{})
	if !ok {
		return Array{}, NewProtocolError("JSON value %q is not an array", v.path)
	}
	return Array{path: v.path, vals: vals}, nil
}

// AsProblem returns the value as a Problem document. Relative type and
// instance URIs are resolved against baseURL.
func (v Value) AsProblem(baseURL *url.URL) (*Problem, error) {
	obj, err := v.AsObject()
	if err != nil {
		return nil, err
	}
	return NewProblem(obj, baseURL), nil
}

// Array is an immutable view over a JSON array. Element order is
// preserved. Values returns a fresh slice on each call, so iteration is
// restartable.
type Array struct {
	path string
	vals []interface{}
}

// Len returns the number of elements.
func (a Array) Len() int {
	return len(a.vals)
}

// IsEmpty reports whether the array has no elements.
func (a Array) IsEmpty() bool {
	return len(a.vals) == 0
}

// Get returns the element at index i. An out-of-range index yields an
// absent Value.
func (a Array) Get(i int) Value {
	path := a.path + "[" + strconv.Itoa(i) + "]"
	if i < 0 || i >= len(a.vals) {
		return Value{path: path}
	}
	return Value{path: path, val: a.vals[i]}
}

// Values returns the elements as a slice of Values.
func (a Array) Values() []Value {
	values := make([]Value, len(a.vals))
	for i := range a.vals {
		values[i] = a.Get(i)
	}
	return values
}
