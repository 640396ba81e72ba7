// internal/app/store/oauthstate/oauthstatestore.go
package oauthstate

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// DefaultTTL is how long a Google sign-in may take between redirect and callback.
const DefaultTTL = 10 * time.Minute

// State represents an OAuth state token record.
type State struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	State     string             `bson:"state"`
	ReturnTo  string             `bson:"return_to,omitempty"`
	ExpiresAt time.Time          `bson:"expires_at"`
	CreatedAt time.Time          `bson:"created_at"`
}

// Store provides access to the oauth_states collection.
type Store struct {
	c   *mongo.Collection
	now func() time.Time
}

// New creates a new OAuth state store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("oauth_states"), now: time.Now}
}

// Create stores a single-use state token that expires after DefaultTTL.
// returnTo is where the browser goes after a successful callback.
func (s *Store) Create(ctx context.Context, state, returnTo string) error {
	now := s.now().UTC()
	_, err := s.c.InsertOne(ctx, State{
		ID:        primitive.NewObjectID(),
		State:     state,
		ReturnTo:  returnTo,
		ExpiresAt: now.Add(DefaultTTL),
		CreatedAt: now,
	})
	return err
}

// Consume deletes an unexpired state and returns it. ok is false when the
// state is unknown, expired, or was already used.
func (s *Store) Consume(ctx context.Context, state string) (st State, ok bool) {
	if state == "" {
		return State{}, false
	}
	err := s.c.FindOneAndDelete(ctx, bson.M{
		"state":      state,
		"expires_at": bson.M{"$gt": s.now().UTC()},
	}).Decode(&st)
	return st, err == nil
}

// DeleteExpired removes states past their expiry. The TTL index does the
// same eventually; the cleanup task calls this so the collection stays
// small between TTL monitor passes.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": s.now().UTC()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
