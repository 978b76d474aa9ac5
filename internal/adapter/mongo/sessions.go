package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"moviestats/internal/domain"
)

type sessionDocument struct {
	ID            string    `bson:"_id"`
	Username      string    `bson:"username"`
	Email         string    `bson:"email"`
	UserType      string    `bson:"user_type"`
	Authenticated bool      `bson:"authenticated"`
	CreatedAt     time.Time `bson:"created_at"`
	ExpiresAt     time.Time `bson:"expires_at"`
}

// SessionRepo stores sessions in their own collection.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo wraps a DB as a SessionRepository.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Save upserts a session by id.
func (r *SessionRepo) Save(ctx context.Context, s *domain.Session) error {
	doc := sessionDocument{
		ID:            s.ID,
		Username:      s.Username,
		Email:         s.Email,
		UserType:      s.UserType,
		Authenticated: s.Authenticated,
		CreatedAt:     s.CreatedAt,
		ExpiresAt:     s.ExpiresAt,
	}
	_, err := r.db.db.Collection(sessionCollection).ReplaceOne(ctx,
		bson.M{"_id": s.ID}, doc, options.Replace().SetUpsert(true))
	return classify("sessions.save", err)
}

// GetByID retrieves a session by id.
func (r *SessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var doc sessionDocument
	err := r.db.db.Collection(sessionCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("sessions.get", err)
	}
	return &domain.Session{
		ID:            doc.ID,
		Username:      doc.Username,
		Email:         doc.Email,
		UserType:      doc.UserType,
		Authenticated: doc.Authenticated,
		CreatedAt:     doc.CreatedAt,
		ExpiresAt:     doc.ExpiresAt,
	}, nil
}

// Delete deletes a session by id.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.db.Collection(sessionCollection).DeleteOne(ctx, bson.M{"_id": id})
	return classify("sessions.delete", err)
}

// DeleteExpired deletes all sessions expired at now.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.db.Collection(sessionCollection).DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, classify("sessions.delete_expired", err)
	}
	return res.DeletedCount, nil
}
