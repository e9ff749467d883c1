// Package document implements the tagged document model exchanged by the
// engine: every request and response body is a Document, and the package
// owns its JSON grammar in both directions.
//
// A Document is exactly one of four variants:
//
//   - Scalar: raw text (strings, numbers, true, false and null all land here)
//   - Object: unique string keys mapped to Documents
//   - Array: an ordered sequence of Documents
//   - ObjectID: a 12-byte store identifier, written as {"$oid":"<24 hex>"}
//
// The set is closed; consumers switch over the concrete types.
package document

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind identifies the variant held by a Document.
type Kind uint8

const (
	KindScalar Kind = iota
	KindObject
	KindArray
	KindObjectID
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindObjectID:
		return "objectid"
	default:
		return "unknown"
	}
}

// Document is the sealed sum type of Scalar, Object, Array and ObjectID.
type Document interface {
	Kind() Kind
	document()
}

// Scalar is a leaf value kept as text.
type Scalar string

// Object maps keys to documents. Key order carries no meaning; the encoder
// writes keys sorted.
type Object map[string]Document

// Array is an ordered list of documents.
type Array []Document

// ObjectID is the store's 12-byte identifier.
type ObjectID primitive.ObjectID

func (Scalar) Kind() Kind   { return KindScalar }
func (Object) Kind() Kind   { return KindObject }
func (Array) Kind() Kind    { return KindArray }
func (ObjectID) Kind() Kind { return KindObjectID }

func (Scalar) document()   {}
func (Object) document()   {}
func (Array) document()    {}
func (ObjectID) document() {}

// NewObjectID generates a fresh identifier.
func NewObjectID() ObjectID {
	return ObjectID(primitive.NewObjectID())
}

// ObjectIDFromHex parses a 24-character hex identifier.
func ObjectIDFromHex(s string) (ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return ObjectID{}, err
	}
	return ObjectID(id), nil
}

// Hex returns the 24-character lowercase hex form.
func (id ObjectID) Hex() string {
	return primitive.ObjectID(id).Hex()
}

// Primitive returns the driver representation of the identifier.
func (id ObjectID) Primitive() primitive.ObjectID {
	return primitive.ObjectID(id)
}

// Scalar returns the scalar stored under key.
func (o Object) Scalar(key string) (Scalar, bool) {
	s, ok := o[key].(Scalar)
	return s, ok
}

// Clone returns a copy of o sharing its values.
func (o Object) Clone() Object {
	c := make(Object, len(o))
	for k, v := range o {
		c[k] = v
	}
	return c
}

// Keys returns the object's keys in encoding order.
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether a and b have the same logical shape and content.
func Equal(a, b Document) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case Scalar:
		y, ok := b.(Scalar)
		return ok && x == y
	case Object:
		y, ok := b.(Object)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	case Array:
		y, ok := b.(Array)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case ObjectID:
		y, ok := b.(ObjectID)
		return ok && x == y
	}
	return false
}

func isHexID(s Scalar) bool {
	if len(s) != 24 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isHexDigit(s[i]) {
			return false
		}
	}
	return true
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
