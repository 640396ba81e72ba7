// internal/domain/models/orphan.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrphanBlob records a stored upload whose dataset record was never written
// and whose immediate removal failed. The cleanup task retries the delete.
type OrphanBlob struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	StoragePath   string             `bson:"storage_path"`
	OwnerID       primitive.ObjectID `bson:"owner_id"`
	Reason        string             `bson:"reason"`
	Attempts      int                `bson:"attempts"`
	LastError     string             `bson:"last_error,omitempty"`
	CreatedAt     time.Time          `bson:"created_at"`
	LastAttemptAt *time.Time         `bson:"last_attempt_at,omitempty"`
}
