package document

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Bind decodes doc into the Go value pointed to by v. Scalars that read as
// numbers or literals bind as such, everything else as strings.
func Bind(doc Document, v any) error {
	if err := sonic.Unmarshal(Encode(doc), v); err != nil {
		return fmt.Errorf("document: bind %s: %w", kindOf(doc), err)
	}
	return nil
}

// FromValue builds a Document from any value sonic can marshal.
func FromValue(v any) (Document, error) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("document: marshal %T: %w", v, err)
	}
	return Parse(data)
}

// ObjectFromValue is FromValue for values that must marshal to an object.
func ObjectFromValue(v any) (Object, error) {
	doc, err := FromValue(v)
	if err != nil {
		return nil, err
	}
	obj, ok := doc.(Object)
	if !ok {
		return nil, fmt.Errorf("document: %T marshals to %s, want object", v, kindOf(doc))
	}
	return obj, nil
}

func kindOf(doc Document) string {
	if doc == nil {
		return "nil"
	}
	return doc.Kind().String()
}
