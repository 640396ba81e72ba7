package testutil

import (
	"testing"
	"time"

	"github.com/dalemusser/stratasheet/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// InsertUser writes a password user straight to the users collection.
// The password hash uses bcrypt.MinCost to keep tests fast.
func InsertUser(t *testing.T, db *mongo.Database, loginID, password, role string) models.User {
	t.Helper()
	ctx, cancel := TestContext()
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	h := string(hash)
	now := time.Now().UTC()
	u := models.User{
		ID:           primitive.NewObjectID(),
		FullName:     loginID,
		FullNameCI:   text.Fold(loginID),
		LoginID:      loginID,
		LoginIDCI:    text.Fold(loginID),
		AuthMethod:   models.AuthMethodPassword,
		PasswordHash: &h,
		Role:         role,
		Status:       "active",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := db.Collection("users").InsertOne(ctx, u); err != nil {
		t.Fatalf("insert user %q: %v", loginID, err)
	}
	return u
}

// InsertDataset writes a minimal dataset record owned by owner.
func InsertDataset(t *testing.T, db *mongo.Database, owner primitive.ObjectID, title string, createdAt time.Time) models.Dataset {
	t.Helper()
	ctx, cancel := TestContext()
	defer cancel()

	d := models.Dataset{
		ID:          primitive.NewObjectID(),
		Title:       title,
		TitleCI:     text.Fold(title),
		UploadedBy:  owner,
		StoragePath: "datasets/test/" + primitive.NewObjectID().Hex() + ".csv",
		URL:         "/files/datasets/test.csv",
		Size:        12,
		ContentType: "text/csv",
		Format:      "csv",
		Summary: models.DatasetSummary{
			TotalRows:      1,
			NumericColumns: []models.NumericColumn{},
			ColumnNames:    []string{"a"},
		},
		CreatedAt: createdAt.UTC(),
		UpdatedAt: createdAt.UTC(),
	}
	if _, err := db.Collection("datasets").InsertOne(ctx, d); err != nil {
		t.Fatalf("insert dataset %q: %v", title, err)
	}
	return d
}
