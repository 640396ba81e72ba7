// Package datasets provides storage for ingested spreadsheet records.
package datasets

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratasheet/internal/app/store/storeutil"
	"github.com/dalemusser/stratasheet/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateTitle is returned when the owner already has a dataset with the title.
var ErrDuplicateTitle = errors.New("a dataset with this title already exists")

// Store provides access to the datasets collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new dataset store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("datasets")}
}

// Create inserts a dataset record. The (uploaded_by, title) unique index
// turns a concurrent duplicate into ErrDuplicateTitle.
func (s *Store) Create(ctx context.Context, d models.Dataset) (*models.Dataset, error) {
	now := time.Now().UTC()
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	d.TitleCI = text.Fold(d.Title)
	d.CreatedAt = now
	d.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, d); err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicateTitle
		}
		return nil, err
	}
	return &d, nil
}

// GetByID retrieves a dataset by ID. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Dataset, error) {
	var d models.Dataset
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Delete removes a dataset record and reports whether one was deleted.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// TitleExists reports whether owner already has a dataset titled exactly title.
func (s *Store) TitleExists(ctx context.Context, owner primitive.ObjectID, title string) (bool, error) {
	err := s.c.FindOne(ctx,
		bson.M{"uploaded_by": owner, "title": title},
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, err
}

// ListByOwner returns the owner's datasets, newest first. A limit of 0 returns all.
func (s *Store) ListByOwner(ctx context.Context, owner primitive.ObjectID, limit, page int64) ([]models.Dataset, error) {
	opts := options.Find()
	if limit > 0 {
		opts = storeutil.Paginate(limit, page)
	}
	opts.SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	return s.find(ctx, bson.M{"uploaded_by": owner}, opts)
}

// ListByOwnerByTitle returns the owner's datasets ordered by case-folded
// title. A limit of 0 returns all.
func (s *Store) ListByOwnerByTitle(ctx context.Context, owner primitive.ObjectID, limit, page int64) ([]models.Dataset, error) {
	opts := options.Find()
	if limit > 0 {
		opts = storeutil.Paginate(limit, page)
	}
	opts.SetSort(bson.D{{Key: "title_ci", Value: 1}, {Key: "_id", Value: 1}})
	return s.find(ctx, bson.M{"uploaded_by": owner}, opts)
}

// HistoryTitles returns the owner's dataset titles in upload order.
func (s *Store) HistoryTitles(ctx context.Context, owner primitive.ObjectID) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"title": 1})
	cur, err := s.c.Find(ctx, bson.M{"uploaded_by": owner}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	titles := []string{}
	for cur.Next(ctx) {
		var row struct {
			Title string `bson:"title"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		titles = append(titles, row.Title)
	}
	return titles, cur.Err()
}

// ListAll returns every dataset, newest first.
func (s *Store) ListAll(ctx context.Context) ([]models.Dataset, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"summary": 0, "graph_data": 0})
	return s.find(ctx, bson.M{}, opts)
}

// Count returns the number of datasets.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}

// DeleteByOwner removes all of owner's dataset records and returns the blob
// paths of exactly the records it removed, plus their count. Records are
// taken one at a time so one added mid-delete is still reported.
func (s *Store) DeleteByOwner(ctx context.Context, owner primitive.ObjectID) ([]string, int64, error) {
	var (
		paths   []string
		removed int64
	)
	opts := options.FindOneAndDelete().SetProjection(bson.M{"storage_path": 1})
	for {
		var row struct {
			StoragePath string `bson:"storage_path"`
		}
		err := s.c.FindOneAndDelete(ctx, bson.M{"uploaded_by": owner}, opts).Decode(&row)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return paths, removed, nil
		}
		if err != nil {
			return nil, 0, err
		}
		removed++
		if row.StoragePath != "" {
			paths = append(paths, row.StoragePath)
		}
	}
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Dataset, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Dataset{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
