package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"moviestats/internal/domain"
)

// userDocument matches documents written by earlier versions of the app, so
// the password field keeps its historical name.
type userDocument struct {
	ID             bson.ObjectID   `bson:"_id,omitempty"`
	Username       string          `bson:"username"`
	Email          string          `bson:"email"`
	Password       string          `bson:"password,omitempty"`
	UserType       string          `bson:"user_type"`
	Watchlist      []watchlistItem `bson:"watchlist"`
	RejectedMovies []string        `bson:"rejectedMovies"`
	CreatedAt      time.Time       `bson:"created_at,omitempty"`
}

type watchlistItem struct {
	MovieID string `bson:"movieId,omitempty"`
	Title   string `bson:"title,omitempty"`
	Watched string `bson:"Watched"`
}

func (doc *userDocument) toDomain() *domain.User {
	u := &domain.User{
		ID:             doc.ID.Hex(),
		Username:       doc.Username,
		Email:          doc.Email,
		UserType:       doc.UserType,
		RejectedMovies: doc.RejectedMovies,
		CreatedAt:      doc.CreatedAt,
	}
	if u.UserType == "" {
		u.UserType = domain.DefaultUserType
	}
	for _, w := range doc.Watchlist {
		u.Watchlist = append(u.Watchlist, domain.WatchlistEntry{MovieID: w.MovieID, Title: w.Title, Watched: w.Watched})
	}
	return u
}

// withoutPassword keeps the hash out of every read except the login path.
var withoutPassword = bson.M{"password": 0}

// FindByUsernameOrEmail returns a user matching either key. When the keys
// belong to different users the username match is returned.
func (d *DB) FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	cursor, err := d.db.Collection(userCollection).Find(ctx,
		bson.M{"$or": bson.A{bson.M{"username": username}, bson.M{"email": email}}},
		options.Find().SetProjection(bson.M{"username": 1, "email": 1, "user_type": 1, "created_at": 1}).SetLimit(2),
	)
	if err != nil {
		return nil, classify("users.find_by_username_or_email", err)
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classify("users.find_by_username_or_email", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	for i := range docs {
		if docs[i].Username == username {
			return docs[i].toDomain(), nil
		}
	}
	return docs[0].toDomain(), nil
}

// FindByUsername retrieves a full profile without the password hash.
func (d *DB) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	var doc userDocument
	err := d.db.Collection(userCollection).FindOne(ctx,
		bson.M{"username": username},
		options.FindOne().SetProjection(withoutPassword),
	).Decode(&doc)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("users.find_by_username", err)
	}
	return doc.toDomain(), nil
}

// FindCredentialsByEmail returns the login projection for email.
func (d *DB) FindCredentialsByEmail(ctx context.Context, email string) (*domain.Credentials, error) {
	var doc userDocument
	err := d.db.Collection(userCollection).FindOne(ctx,
		bson.M{"email": email},
		options.FindOne().SetProjection(bson.M{"username": 1, "email": 1, "password": 1, "user_type": 1}),
	).Decode(&doc)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("users.find_credentials", err)
	}

	userType := doc.UserType
	if userType == "" {
		userType = domain.DefaultUserType
	}
	return &domain.Credentials{
		ID:           doc.ID.Hex(),
		Username:     doc.Username,
		Email:        doc.Email,
		PasswordHash: doc.Password,
		UserType:     userType,
	}, nil
}

// Insert creates a new user with an empty watchlist.
func (d *DB) Insert(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	userType := nu.UserType
	if userType == "" {
		userType = domain.DefaultUserType
	}
	doc := userDocument{
		Username:       nu.Username,
		Email:          nu.Email,
		Password:       nu.PasswordHash,
		UserType:       userType,
		Watchlist:      []watchlistItem{},
		RejectedMovies: []string{},
		CreatedAt:      time.Now().UTC(),
	}

	res, err := d.db.Collection(userCollection).InsertOne(ctx, doc)
	if err != nil {
		return nil, classify("users.insert", err)
	}
	if id, ok := res.InsertedID.(bson.ObjectID); ok {
		doc.ID = id
	}
	return doc.toDomain(), nil
}
