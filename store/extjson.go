package store

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/Ceapa-git/anidle/core/document"
)

// ToBSON converts an object through relaxed extended JSON. Unquoted
// scalars become numbers, booleans or null, and {"$oid": ...} becomes an
// ObjectId.
func ToBSON(obj document.Object) (bson.D, error) {
	if obj == nil {
		obj = document.Object{}
	}
	var d bson.D
	if err := bson.UnmarshalExtJSON(document.Encode(obj), false, &d); err != nil {
		return nil, fmt.Errorf("document to bson: %w", err)
	}
	return d, nil
}

// FromBSON converts a stored document back. Values without a plain JSON
// form keep their extended JSON wrapper, e.g. {"$date": ...}.
func FromBSON(raw bson.Raw) (document.Object, error) {
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("bson to document: %w", err)
	}
	doc, err := document.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("bson to document: %w", err)
	}
	obj, ok := doc.(document.Object)
	if !ok {
		return nil, fmt.Errorf("bson to document: got %s", doc.Kind())
	}
	return obj, nil
}
