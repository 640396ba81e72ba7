// Package orphans records uploaded blobs that have no dataset record so a
// background task can remove them.
package orphans

import (
	"context"
	"time"

	"github.com/dalemusser/stratasheet/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the orphan_blobs collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new orphan store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("orphan_blobs")}
}

// Record notes an orphaned blob. Recording the same path twice keeps one entry.
func (s *Store) Record(ctx context.Context, storagePath string, owner primitive.ObjectID, reason string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"storage_path": storagePath},
		bson.M{"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"owner_id":   owner,
			"reason":     reason,
			"attempts":   0,
			"created_at": time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

// ListPending returns up to limit orphans, least recently attempted first.
func (s *Store) ListPending(ctx context.Context, limit int64) ([]models.OrphanBlob, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "last_attempt_at", Value: 1}, {Key: "created_at", Value: 1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.OrphanBlob
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve removes the entry once its blob is gone.
func (s *Store) Resolve(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// MarkAttempt records a failed cleanup attempt.
func (s *Store) MarkAttempt(ctx context.Context, id primitive.ObjectID, cause error) error {
	set := bson.M{"last_attempt_at": time.Now().UTC()}
	if cause != nil {
		set["last_error"] = cause.Error()
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": set,
		"$inc": bson.M{"attempts": 1},
	})
	return err
}

// Count returns the number of unresolved orphans.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}
