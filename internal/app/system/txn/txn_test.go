package txn

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dalemusser/stratasheet/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func TestIsNotSupported(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"code 20", mongo.CommandError{Code: 20, Message: "x"}, true},
		{"wrapped code 263", fmt.Errorf("delete: %w", mongo.CommandError{Code: 263}), true},
		{"other code", mongo.CommandError{Code: 11000, Message: "duplicate key"}, false},
		{"message match", errors.New("Transaction numbers are only allowed on a replica set member"), true},
		{"single keyword", errors.New("session expired"), false},
		{"unrelated", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotSupported(tt.err); got != tt.want {
				t.Errorf("IsNotSupported(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRun(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	coll := db.Collection("datasets")
	if _, err := coll.InsertMany(ctx, []any{bson.M{"n": 1}, bson.M{"n": 2}}); err != nil {
		t.Fatalf("InsertMany() error = %v", err)
	}

	err := Run(ctx, db, zap.NewNop(), func(ctx context.Context) error {
		_, err := coll.DeleteMany(ctx, bson.M{})
		return err
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	n, _ := coll.CountDocuments(ctx, bson.M{})
	if n != 0 {
		t.Errorf("documents left = %d, want 0", n)
	}

	boom := errors.New("boom")
	err = Run(ctx, db, nil, func(ctx context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want boom", err)
	}
}
