package validators

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/stratasheet/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < 2; i++ {
		if err := EnsureAll(ctx, db); err != nil {
			t.Fatalf("EnsureAll() run %d error = %v", i+1, err)
		}
	}

	for _, c := range collections() {
		exists, err := collectionExists(ctx, db, c.name)
		if err != nil {
			t.Fatalf("collectionExists(%s) error = %v", c.name, err)
		}
		if !exists {
			t.Errorf("collection %s should exist after EnsureAll", c.name)
		}
	}
}

func TestEnsureAll_DatasetValidatorRejectsBadDocs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll() error = %v", err)
	}

	coll := db.Collection("datasets")
	good := bson.M{
		"title":        "Q1",
		"uploaded_by":  primitive.NewObjectID(),
		"storage_path": "datasets/2026/01/x.csv",
		"format":       "csv",
		"size":         int64(12),
		"summary":      bson.M{"total_rows": 1, "numeric_columns": bson.A{}, "column_names": bson.A{"a"}},
		"graph_data":   nil,
		"created_at":   primitive.NewDateTimeFromTime(testNow()),
	}
	if _, err := coll.InsertOne(ctx, good); err != nil {
		t.Fatalf("InsertOne(valid) error = %v", err)
	}

	bad := bson.M{}
	for k, v := range good {
		bad[k] = v
	}
	bad["title"] = ""
	if _, err := coll.InsertOne(ctx, bad); err == nil {
		t.Error("InsertOne(empty title) should fail validation")
	}

	bad["title"] = "Q2"
	bad["format"] = "ods"
	if _, err := coll.InsertOne(ctx, bad); err == nil {
		t.Error("InsertOne(unknown format) should fail validation")
	}
}

func TestEnsureCollection(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := ensureCollection(ctx, db, "new_collection")
	if err != nil {
		t.Fatalf("first ensureCollection() error = %v", err)
	}
	if !created {
		t.Error("first ensureCollection() created = false, want true")
	}

	created, err = ensureCollection(ctx, db, "new_collection")
	if err != nil {
		t.Fatalf("second ensureCollection() error = %v", err)
	}
	if created {
		t.Error("second ensureCollection() created = true, want false")
	}
}

func TestErrorClassifiers(t *testing.T) {
	tests := []struct {
		name string
		fn   func(error) bool
		err  error
		want bool
	}{
		{"exists nil", isNamespaceExistsErr, nil, false},
		{"exists message", isNamespaceExistsErr, errors.New("collection already exists"), true},
		{"exists code 48", isNamespaceExistsErr, mongo.CommandError{Code: 48, Message: "exists"}, true},
		{"exists other", isNamespaceExistsErr, errors.New("boom"), false},
		{"no such command", isNoSuchCommand, errors.New("NO SUCH COMMAND"), true},
		{"no such command code 59", isNoSuchCommand, mongo.CommandError{Code: 59}, true},
		{"no such command other", isNoSuchCommand, errors.New("boom"), false},
		{"not implemented code 115", isNotImplemented, mongo.CommandError{Code: 115}, true},
		{"not supported message", isNotImplemented, errors.New("collMod not supported"), true},
		{"not implemented nil", isNotImplemented, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSchemasRequireCoreFields(t *testing.T) {
	tests := []struct {
		name   string
		schema bson.M
		field  string
	}{
		{"users", usersSchema(), "login_id_ci"},
		{"datasets", datasetsSchema(), "uploaded_by"},
	}
	for _, tt := range tests {
		js, ok := tt.schema["$jsonSchema"].(bson.M)
		if !ok {
			t.Fatalf("%s: $jsonSchema missing", tt.name)
		}
		required, _ := js["required"].(bson.A)
		found := false
		for _, r := range required {
			if r == tt.field {
				found = true
			}
		}
		if !found {
			t.Errorf("%s schema does not require %q", tt.name, tt.field)
		}
	}
}

func testNow() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }
