package acme

import (
	"crypto"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
)

// Builder constructs JSON payloads for ACME requests. Keys keep their
// insertion order so that serialization is deterministic; re-putting an
// existing key replaces the value in place. The builder performs no
// ACME-specific validation, it only guarantees faithful serialization.
type Builder struct {
	keys   []string
	values map[string]interface{}
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{values: map[string]interface{}{}}
}

// Put adds a scalar value under the key and returns the builder for
// chaining. time.Time values serialize as RFC 3339 UTC with second
// precision, time.Duration as integer seconds and []byte as base64url
// without padding.
func (b *Builder) Put(key string, value interface{}) *Builder {
	b.set(key, normalize(value))
	return b
}

// PutBase64 adds the bytes under the key as a base64url string without
// padding.
func (b *Builder) PutBase64(key string, data []byte) *Builder {
	return b.Put(key, base64.RawURLEncoding.EncodeToString(data))
}

// PutKey adds the public key under the key as a JSON Web Key mapping.
// Only the key-type-specific required fields are included, in canonical
// order, so the serialized form is suitable for thumbprinting.
func (b *Builder) PutKey(key string, publicKey crypto.PublicKey) (*Builder, error) {
	jwkFields, err := canonicalJWK(publicKey)
	if err != nil {
		return nil, err
	}
	sub := b.Object(key)
	for _, field := range jwkFields {
		sub.Put(field.name, field.value)
	}
	return b, nil
}

// Object adds an empty nested object under the key and returns its
// builder. The child stays live-linked: later mutations of the child are
// visible in the parent's serialization.
func (b *Builder) Object(key string) *Builder {
	sub := NewBuilder()
	b.set(key, sub)
	return sub
}

// Array adds an array of scalar values under the key.
func (b *Builder) Array(key string, values []interface{}) *Builder {
	normalized := make([]interface{}, len(values))
	for i, v := range values {
		normalized[i] = normalize(v)
	}
	b.set(key, normalized)
	return b
}

// ToMap returns a snapshot of the current content as a plain mapping.
// Nested builders become nested maps.
func (b *Builder) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, len(b.keys))
	for _, key := range b.keys {
		switch v := b.values[key].(type) {
		case *Builder:
			m[key] = v.ToMap()
		default:
			m[key] = v
		}
	}
	return m
}

// ToJSON returns a snapshot of the current content as a JSON object.
func (b *Builder) ToJSON() JSON {
	parsed, err := ParseJSON([]byte(b.String()))
	if err != nil {
		// The builder only serializes values it normalized itself.
		return EmptyJSON()
	}
	return parsed
}

// String returns the canonical serialization of the current content.
func (b *Builder) String() string {
	var sb strings.Builder
	b.writeTo(&sb)
	return sb.String()
}

func (b *Builder) writeTo(sb *strings.Builder) {
	sb.WriteByte('{')
	for i, key := range b.keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeScalar(sb, key)
		sb.WriteByte(':')
		switch v := b.values[key].(type) {
		case *Builder:
			v.writeTo(sb)
		case []interface{}:
			sb.WriteByte('[')
			for j, elem := range v {
				if j > 0 {
					sb.WriteByte(',')
				}
				writeScalar(sb, elem)
			}
			sb.WriteByte(']')
		default:
			writeScalar(sb, v)
		}
	}
	sb.WriteByte('}')
}

func writeScalar(sb *strings.Builder, v interface{}) {
	encoded, err := json.Marshal(v)
	if err != nil {
		encoded = []byte("null")
	}
	sb.Write(encoded)
}

func (b *Builder) set(key string, value interface{}) {
	if _, exists := b.values[key]; !exists {
		b.keys = append(b.keys, key)
	}
	b.values[key] = value
}

func normalize(value interface{}) interface{} {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Truncate(time.Second).Format(time.RFC3339)
	case time.Duration:
		return int64(v / time.Second)
	case []byte:
		return base64.RawURLEncoding.EncodeToString(v)
	default:
		return v
	}
}

type jwkField struct {
	name  string
	value string
}

// canonicalJWK extracts the required JWK members for the key type in the
// RFC 7638 canonical (lexicographic) order.
func canonicalJWK(publicKey crypto.PublicKey) ([]jwkField, error) {
	jwk := jose.JSONWebKey{Key: publicKey}
	if !jwk.Valid() {
		return nil, NewInputError("unsupported public key type %T", publicKey)
	}
	serialized, err := jwk.MarshalJSON()
	if err != nil {
		return nil, NewInputError("cannot serialize public key: %s", err)
	}
	var members map[string]string
	if err := json.Unmarshal(serialized, &members); err != nil {
		return nil, NewInputError("cannot serialize public key: %s", err)
	}

	var required []string
	switch members["kty"] {
	case "RSA":
		required = []string{"e", "kty", "n"}
	case "EC":
		required = []string{"crv", "kty", "x", "y"}
	case "OKP":
		required = []string{"crv", "kty", "x"}
	default:
		return nil, NewInputError("unsupported JWK key type %q", members["kty"])
	}

	fields := make([]jwkField, 0, len(required))
	for _, name := range required {
		value, ok := members[name]
		if !ok {
			return nil, NewInputError("JWK is missing required member %q", name)
		}
		fields = append(fields, jwkField{name: name, value: value})
	}
	return fields, nil
}
