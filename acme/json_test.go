package acme

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJSON = `{
	"text": "lorem ipsum",
	"number": 123,
	"boolean": true,
	"uri": "mailto:foo@example.com",
	"url": "https://example.com/",
	"date": "2016-01-08T00:00:00Z",
	"array": ["foo", 987, [1, 2, 3], {"test": 123}],
	"collect": ["foo", "bar", "barfoo"],
	"status": "valid",
	"binary": "Q2hhaW5nbGluZw",
	"duration": 86400,
	"encoded": "eyJrZXkiOiJ2YWx1ZSJ9",
	"none": null
}`

func TestParseJSON(t *testing.T) {
	parsed, err := ParseJSON([]byte(testJSON))
	require.NoError(t, err)
	assert.False(t, parsed.IsEmpty())
	assert.True(t, parsed.Contains("text"))
	assert.False(t, parsed.Contains("nonexistent"))
	// A null value is present, it just isn't usable.
	assert.True(t, parsed.Contains("none"))

	fromReader, err := ParseJSONReader(strings.NewReader(testJSON))
	require.NoError(t, err)
	assert.Equal(t, parsed.Keys(), fromReader.Keys())
}

func TestParseJSONInvalid(t *testing.T) {
	for _, input := range []string{"", "This is no JSON.", "10", `"Test"`} {
		_, err := ParseJSON([]byte(input))
		var protocolErr *ProtocolError
		assert.True(t, errors.As(err, &protocolErr), "input %q", input)
	}
}

func TestEmptyJSON(t *testing.T) {
	empty := EmptyJSON()
	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.IsZero())
	assert.Empty(t, empty.Keys())
	assert.Equal(t, "{}", empty.String())

	var zero JSON
	assert.True(t, zero.IsZero())
	assert.True(t, zero.IsEmpty())
}

func TestJSONKeysSorted(t *testing.T) {
	parsed, err := ParseJSON([]byte(`{"b": 1, "a": 2, "c": 3}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, parsed.Keys())
}

func TestJSONRoundTrip(t *testing.T) {
	parsed, err := ParseJSON([]byte(testJSON))
	require.NoError(t, err)

	reparsed, err := ParseJSON([]byte(parsed.String()))
	require.NoError(t, err)
	assert.Equal(t, parsed.ToMap(), reparsed.ToMap())
}

func TestValueGetters(t *testing.T) {
	parsed, err := ParseJSON([]byte(testJSON))
	require.NoError(t, err)

	text, err := parsed.Get("text").AsString()
	require.NoError(t, err)
	assert.Equal(t, "lorem ipsum", text)

	number, err := parsed.Get("number").AsInt()
	require.NoError(t, err)
	assert.Equal(t, 123, number)

	// Scalars convert to their string literal form.
	numberText, err := parsed.Get("number").AsString()
	require.NoError(t, err)
	assert.Equal(t, "123", numberText)

	boolean, err := parsed.Get("boolean").AsBool()
	require.NoError(t, err)
	assert.True(t, boolean)

	uri, err := parsed.Get("uri").AsURL()
	require.NoError(t, err)
	assert.Equal(t, "mailto:foo@example.com", uri.String())

	date, err := parsed.Get("date").AsInstant()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2016, 1, 8, 0, 0, 0, 0, time.UTC), date.UTC())

	duration, err := parsed.Get("duration").AsDuration()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, duration)

	binary, err := parsed.Get("binary").AsBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte("Chaingling"), binary)

	status, err := parsed.Get("status").AsStatus()
	require.NoError(t, err)
	assert.Equal(t, StatusValid, status)

	encoded, err := parsed.Get("encoded").AsEncodedObject()
	require.NoError(t, err)
	value, err := encoded.Get("key").AsString()
	require.NoError(t, err)
	assert.Equal(t, "value", value)
}

func TestValueAbsent(t *testing.T) {
	parsed, err := ParseJSON([]byte(testJSON))
	require.NoError(t, err)

	assert.True(t, parsed.Get("text").IsPresent())
	assert.False(t, parsed.Get("nonexistent").IsPresent())
	assert.False(t, parsed.Get("none").IsPresent())

	var protocolErr *ProtocolError

	_, err = parsed.Get("nonexistent").AsString()
	require.True(t, errors.As(err, &protocolErr))
	assert.Contains(t, protocolErr.Message, "nonexistent")

	_, err = parsed.Get("none").AsInt()
	assert.True(t, errors.As(err, &protocolErr))
}

func TestValueWrongType(t *testing.T) {
	parsed, err := ParseJSON([]byte(testJSON))
	require.NoError(t, err)

	var protocolErr *ProtocolError

	_, err = parsed.Get("text").AsInt()
	assert.True(t, errors.As(err, &protocolErr))

	_, err = parsed.Get("text").AsBool()
	assert.True(t, errors.As(err, &protocolErr))

	_, err = parsed.Get("text").AsURL()
	assert.True(t, errors.As(err, &protocolErr))

	_, err = parsed.Get("text").AsInstant()
	assert.True(t, errors.As(err, &protocolErr))

	_, err = parsed.Get("array").AsString()
	assert.True(t, errors.As(err, &protocolErr))

	_, err = parsed.Get("text").AsObject()
	assert.True(t, errors.As(err, &protocolErr))

	_, err = parsed.Get("text").AsArray()
	assert.True(t, errors.As(err, &protocolErr))
}

func TestValueAsArray(t *testing.T) {
	parsed, err := ParseJSON([]byte(testJSON))
	require.NoError(t, err)

	array, err := parsed.Get("collect").AsArray()
	require.NoError(t, err)
	assert.Equal(t, 3, array.Len())
	assert.False(t, array.IsEmpty())

	first, err := array.Get(0).AsString()
	require.NoError(t, err)
	assert.Equal(t, "foo", first)

	// Out of range indexes yield absent values, not panics.
	assert.False(t, array.Get(3).IsPresent())
	assert.False(t, array.Get(-1).IsPresent())

	var collected []string
	for _, v := range array.Values() {
		str, err := v.AsString()
		require.NoError(t, err)
		collected = append(collected, str)
	}
	assert.Equal(t, []string{"foo", "bar", "barfoo"}, collected)
}

func TestValueAsArrayAbsent(t *testing.T) {
	parsed, err := ParseJSON([]byte(testJSON))
	require.NoError(t, err)

	// Absent keys give an empty array so optional lists can be ranged
	// over without presence checks.
	array, err := parsed.Get("nonexistent").AsArray()
	require.NoError(t, err)
	assert.True(t, array.IsEmpty())
	assert.Empty(t, array.Values())
}

func TestValueAsArrayMixed(t *testing.T) {
	parsed, err := ParseJSON([]byte(testJSON))
	require.NoError(t, err)

	array, err := parsed.Get("array").AsArray()
	require.NoError(t, err)
	require.Equal(t, 4, array.Len())

	str, err := array.Get(0).AsString()
	require.NoError(t, err)
	assert.Equal(t, "foo", str)

	number, err := array.Get(1).AsInt()
	require.NoError(t, err)
	assert.Equal(t, 987, number)

	nested, err := array.Get(2).AsArray()
	require.NoError(t, err)
	assert.Equal(t, 3, nested.Len())

	obj, err := array.Get(3).AsObject()
	require.NoError(t, err)
	objValue, err := obj.Get("test").AsInt()
	require.NoError(t, err)
	assert.Equal(t, 123, objValue)
}

func TestValueAsProblem(t *testing.T) {
	parsed, err := ParseJSON([]byte(`{
		"problem": {
			"type": "urn:ietf:params:acme:error:rateLimited",
			"detail": "too many requests"
		}
	}`))
	require.NoError(t, err)

	problem, err := parsed.Get("problem").AsProblem(nil)
	require.NoError(t, err)
	assert.Equal(t, "urn:ietf:params:acme:error:rateLimited", problem.TypeString())
	assert.Equal(t, "too many requests", problem.Detail())
}

func TestJSONLargeInt(t *testing.T) {
	// Ensure UseNumber decoding keeps large integers exact.
	parsed, err := ParseJSON([]byte(`{"big": 9007199254740993}`))
	require.NoError(t, err)
	big, err := parsed.Get("big").AsString()
	require.NoError(t, err)
	assert.Equal(t, "9007199254740993", big)
}
