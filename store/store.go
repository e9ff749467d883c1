// Package store persists documents by collection name. Filters are
// documents whose every field must match.
package store

import (
	"context"
	"errors"

	"github.com/Ceapa-git/anidle/core/document"
)

// ErrNotFound is returned by FindOne when nothing matches.
var ErrNotFound = errors.New("store: document not found")

// Store is the persistence interface consumed by request handlers.
type Store interface {
	// FindOne returns the first document matching filter.
	FindOne(ctx context.Context, collection string, filter document.Object) (document.Object, error)
	// InsertOne stores doc and returns its _id, generating one if absent.
	InsertOne(ctx context.Context, collection string, doc document.Object) (document.ObjectID, error)
	// Count returns the number of documents matching filter.
	Count(ctx context.Context, collection string, filter document.Object) (int64, error)
	// EnsureCollection creates the collection when it does not exist.
	EnsureCollection(ctx context.Context, name string) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
