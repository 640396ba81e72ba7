// internal/app/system/validators/validators.go
package validators

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates the app's collections and attaches JSON-Schema
// validators where one is defined. Servers without collMod support
// (some DocumentDB versions) skip the validator with an info log.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	for _, c := range collections() {
		if _, err := ensureCollection(ctx, db, c.name); err != nil {
			problems = append(problems, c.name+": "+err.Error())
			continue
		}
		if c.schema == nil {
			continue
		}
		if err := setValidator(ctx, db, c.name, c.schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", c.name))
				continue
			}
			problems = append(problems, c.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

type collection struct {
	name   string
	schema bson.M
}

func collections() []collection {
	return []collection{
		{"users", usersSchema()},
		{"datasets", datasetsSchema()},
		{"orphan_blobs", nil},
		{"oauth_states", nil},
		{"audit_logs", nil},
		{"rate_limits", nil},
	}
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"login_id", "login_id_ci", "role", "status", "auth_method"},
			"properties": bson.M{
				"login_id":    bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"login_id_ci": bson.M{"bsonType": "string", "minLength": 1},
				"full_name":   bson.M{"bsonType": "string"},
				"email":       bson.M{"bsonType": bson.A{"string", "null"}},
				"google_id":   bson.M{"bsonType": "string"},
				"role":        bson.M{"enum": bson.A{"admin", "member"}},
				"status":      bson.M{"enum": bson.A{"active", "disabled"}},
				"auth_method": bson.M{"enum": bson.A{"password", "google"}},
			},
		},
	}
}

func datasetsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"title", "uploaded_by", "storage_path", "summary", "created_at"},
			"properties": bson.M{
				"title":        bson.M{"bsonType": "string", "minLength": 1, "maxLength": 200},
				"uploaded_by":  bson.M{"bsonType": "objectId"},
				"storage_path": bson.M{"bsonType": "string", "minLength": 1},
				"format":       bson.M{"enum": bson.A{"xlsx", "xls", "csv"}},
				"size":         bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"summary": bson.M{
					"bsonType": "object",
					"required": bson.A{"total_rows", "column_names"},
					"properties": bson.M{
						"total_rows":      bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
						"numeric_columns": bson.M{"bsonType": "array"},
						"column_names":    bson.M{"bsonType": "array"},
					},
				},
				"graph_data": bson.M{"bsonType": bson.A{"object", "null"}},
			},
		},
	}
}
