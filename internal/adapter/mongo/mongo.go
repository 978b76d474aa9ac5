// Package mongo implements the domain repositories on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"moviestats/internal/domain"
)

const (
	userCollection    = "users"
	sessionCollection = "sessions"

	indexUsername = "username_unique"
	indexEmail    = "email_unique"
	indexExpiry   = "expires_at_ttl"
)

// DB holds a connected client and the application database.
type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// Open connects to uri, pings the primary, and ensures indexes exist.
func Open(ctx context.Context, uri, database string) (*DB, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, domain.StoreError("mongo connect", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, domain.StoreError("mongo ping", err)
	}

	d := &DB{client: client, db: client.Database(database)}
	if err := d.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return d, nil
}

// Close disconnects the client.
func (d *DB) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

func (d *DB) ensureIndexes(ctx context.Context) error {
	users := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(indexUsername),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(indexEmail),
		},
	}
	if _, err := d.db.Collection(userCollection).Indexes().CreateMany(ctx, users); err != nil {
		return domain.StoreError("create user indexes", err)
	}

	// Storage reclamation only; expiry is decided when a session is read.
	sessions := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName(indexExpiry),
		},
	}
	if _, err := d.db.Collection(sessionCollection).Indexes().CreateMany(ctx, sessions); err != nil {
		return domain.StoreError("create session indexes", err)
	}
	return nil
}

// classify maps driver errors onto domain errors. Duplicate keys are named
// after the unique index reported by the server.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		msg := err.Error()
		switch {
		case strings.Contains(msg, indexUsername):
			return domain.ErrUsernameTaken
		case strings.Contains(msg, indexEmail):
			return domain.ErrEmailInUse
		default:
			return fmt.Errorf("%s: %w", op, domain.ErrDuplicateKey)
		}
	}
	return domain.StoreError(op, err)
}

// notFound reports whether err is the driver's no-documents sentinel.
func notFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
