// internal/app/store/ratelimit/store.go
package ratelimit

import (
	"context"
	"time"

	"github.com/dalemusser/stratasheet/internal/app/system/normalize"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Attempt tracks failed sign-in attempts for one username.
type Attempt struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	LoginID      string             `bson:"login_id"`      // folded username
	AttemptCount int                `bson:"attempt_count"` // failures in the current window
	WindowStart  time.Time          `bson:"window_start"`
	LockedUntil  *time.Time         `bson:"locked_until"`
	LastAttempt  time.Time          `bson:"last_attempt"` // TTL field
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// Config controls lockout behavior.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
}

// Store manages rate limit tracking for login attempts.
type Store struct {
	c   *mongo.Collection
	cfg Config
	now func() time.Time
}

// New creates a new rate limit Store with the given configuration.
func New(db *mongo.Database, cfg Config) *Store {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = 15 * time.Minute
	}
	return &Store{c: db.Collection("rate_limits"), cfg: cfg, now: time.Now}
}

func key(loginID string) string {
	return text.Fold(normalize.Username(loginID))
}

// CheckAllowed reports whether loginID may attempt to sign in.
// remaining is -1 while locked. Lookup errors fail open.
func (s *Store) CheckAllowed(ctx context.Context, loginID string) (allowed bool, remaining int, lockedUntil *time.Time) {
	now := s.now()

	var a Attempt
	if err := s.c.FindOne(ctx, bson.M{"login_id": key(loginID)}).Decode(&a); err != nil {
		return true, s.cfg.MaxAttempts, nil
	}

	if a.LockedUntil != nil && now.Before(*a.LockedUntil) {
		return false, -1, a.LockedUntil
	}
	if now.After(a.WindowStart.Add(s.cfg.Window)) {
		return true, s.cfg.MaxAttempts, nil
	}

	remaining = s.cfg.MaxAttempts - a.AttemptCount
	if remaining <= 0 {
		return true, s.cfg.MaxAttempts, nil
	}
	return true, remaining, nil
}

// RecordFailure counts a failed attempt. When the count reaches the limit
// inside the window the username is locked for the lockout duration.
func (s *Store) RecordFailure(ctx context.Context, loginID string) (lockedOut bool, lockedUntil *time.Time, err error) {
	k := key(loginID)
	now := s.now()
	after := options.FindOneAndUpdate().SetReturnDocument(options.After)

	// Count inside a live window.
	var a Attempt
	err = s.c.FindOneAndUpdate(ctx,
		bson.M{"login_id": k, "window_start": bson.M{"$gt": now.Add(-s.cfg.Window)}},
		bson.M{
			"$inc": bson.M{"attempt_count": 1},
			"$set": bson.M{"last_attempt": now, "updated_at": now},
		},
		after,
	).Decode(&a)

	if err == mongo.ErrNoDocuments {
		// No record or the window lapsed: start a new window.
		err = s.c.FindOneAndUpdate(ctx,
			bson.M{"login_id": k},
			bson.M{
				"$set": bson.M{
					"attempt_count": 1,
					"window_start":  now,
					"locked_until":  nil,
					"last_attempt":  now,
					"updated_at":    now,
				},
				"$setOnInsert": bson.M{"created_at": now},
			},
			after.SetUpsert(true),
		).Decode(&a)
	}
	if err != nil {
		return false, nil, err
	}

	if a.AttemptCount < s.cfg.MaxAttempts {
		return false, nil, nil
	}
	until := now.Add(s.cfg.Lockout)
	if _, err := s.c.UpdateOne(ctx, bson.M{"_id": a.ID}, bson.M{"$set": bson.M{"locked_until": until}}); err != nil {
		return false, nil, err
	}
	return true, &until, nil
}

// ClearOnSuccess removes the record after a successful sign-in.
func (s *Store) ClearOnSuccess(ctx context.Context, loginID string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"login_id": key(loginID)})
	return err
}

// GetAttempt returns the current record for loginID, or nil.
func (s *Store) GetAttempt(ctx context.Context, loginID string) (*Attempt, error) {
	var a Attempt
	err := s.c.FindOne(ctx, bson.M{"login_id": key(loginID)}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteStale removes records whose last attempt is before cutoff and that
// are not currently locked.
func (s *Store) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{
		"last_attempt": bson.M{"$lt": cutoff},
		"$or": bson.A{
			bson.M{"locked_until": nil},
			bson.M{"locked_until": bson.M{"$lt": s.now()}},
		},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
