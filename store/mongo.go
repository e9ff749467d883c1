package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Ceapa-git/anidle/core/document"
)

// codeNamespaceExists is returned by create when the collection exists.
const codeNamespaceExists = 48

// MongoOptions configures Connect.
type MongoOptions struct {
	URI      string
	Database string
	// Timeout bounds connecting, the initial ping and each operation.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Mongo is a Store backed by a MongoDB database.
type Mongo struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
	log     zerolog.Logger
}

var _ Store = (*Mongo)(nil)

// Connect dials the server and pings the primary before returning.
func Connect(ctx context.Context, opts MongoOptions) (*Mongo, error) {
	if opts.URI == "" {
		return nil, errors.New("mongo: uri is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetServerSelectionTimeout(opts.Timeout).
		SetConnectTimeout(opts.Timeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	m := &Mongo{
		client:  client,
		db:      client.Database(opts.Database),
		timeout: opts.Timeout,
		log:     opts.Logger,
	}
	if err := m.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	m.log.Info().Str("database", opts.Database).Msg("connected to mongo")
	return m, nil
}

func (m *Mongo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.timeout)
}

// Ping checks that the primary is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

// EnsureCollection creates the collection when it does not exist.
func (m *Mongo) EnsureCollection(ctx context.Context, name string) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	names, err := m.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return fmt.Errorf("mongo list collections: %w", err)
	}
	if len(names) > 0 {
		return nil
	}

	err = m.db.CreateCollection(ctx, name)
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == codeNamespaceExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mongo create collection %s: %w", name, err)
	}
	m.log.Info().Str("collection", name).Msg("collection created")
	return nil
}

// FindOne returns the first document matching filter.
func (m *Mongo) FindOne(ctx context.Context, collection string, filter document.Object) (document.Object, error) {
	f, err := ToBSON(filter)
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	raw, err := m.db.Collection(collection).FindOne(ctx, f).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find %s: %w", collection, err)
	}
	return FromBSON(raw)
}

// InsertOne stores doc and returns the _id the server recorded.
func (m *Mongo) InsertOne(ctx context.Context, collection string, doc document.Object) (document.ObjectID, error) {
	d, err := ToBSON(doc)
	if err != nil {
		return document.ObjectID{}, err
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	res, err := m.db.Collection(collection).InsertOne(ctx, d)
	if err != nil {
		return document.ObjectID{}, fmt.Errorf("mongo insert %s: %w", collection, err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return document.ObjectID{}, fmt.Errorf("mongo insert %s: _id is %T, not an ObjectId", collection, res.InsertedID)
	}
	return document.ObjectID(id), nil
}

// Count returns the number of documents matching filter.
func (m *Mongo) Count(ctx context.Context, collection string, filter document.Object) (int64, error) {
	f, err := ToBSON(filter)
	if err != nil {
		return 0, err
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	n, err := m.db.Collection(collection).CountDocuments(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("mongo count %s: %w", collection, err)
	}
	return n, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo disconnect: %w", err)
	}
	return nil
}
