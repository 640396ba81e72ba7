// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/stratasheet/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// OrphanStore is the subset of the orphan store the cleanup job uses.
type OrphanStore interface {
	ListPending(ctx context.Context, limit int64) ([]models.OrphanBlob, error)
	Resolve(ctx context.Context, id primitive.ObjectID) error
	MarkAttempt(ctx context.Context, id primitive.ObjectID, cause error) error
}

// BlobDeleter removes stored uploads.
type BlobDeleter interface {
	Delete(ctx context.Context, path string) error
}

// CleanupCounter is told how many orphans a pass removed.
type CleanupCounter interface {
	OrphansCleaned(n int)
}

// OrphanBatchSize bounds the number of blobs one pass tries to delete.
const OrphanBatchSize = 100

// OrphanCleanupJob retries deletion of uploads whose dataset record was
// never written. Successes are resolved; failures are counted and retried
// on the next pass.
func OrphanCleanupJob(orphans OrphanStore, blobs BlobDeleter, counter CleanupCounter, interval time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "orphan-blob-cleanup",
		Interval: interval,
		Run: func(ctx context.Context) error {
			pending, err := orphans.ListPending(ctx, OrphanBatchSize)
			if err != nil {
				return err
			}
			cleaned := 0
			for _, o := range pending {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err := blobs.Delete(ctx, o.StoragePath); err != nil {
					logger.Warn("orphan blob delete failed",
						zap.String("storage_path", o.StoragePath),
						zap.Int("attempts", o.Attempts+1),
						zap.Error(err))
					if mErr := orphans.MarkAttempt(ctx, o.ID, err); mErr != nil {
						return mErr
					}
					continue
				}
				if err := orphans.Resolve(ctx, o.ID); err != nil {
					return err
				}
				cleaned++
			}
			if cleaned > 0 {
				if counter != nil {
					counter.OrphansCleaned(cleaned)
				}
				logger.Info("cleaned up orphaned blobs",
					zap.Int("deleted", cleaned),
					zap.Int("remaining", len(pending)-cleaned))
			}
			return nil
		},
	}
}

// OAuthStateStore removes expired OAuth states.
type OAuthStateStore interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// OAuthStateCleanupJob removes expired OAuth state tokens.
func OAuthStateCleanupJob(states OAuthStateStore, logger *zap.Logger) Job {
	return Job{
		Name:     "oauth-state-cleanup",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			n, err := states.DeleteExpired(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("cleaned up expired oauth states", zap.Int64("deleted", n))
			}
			return nil
		},
	}
}

// RateLimitStore removes stale login attempt records.
type RateLimitStore interface {
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// RateLimitCleanupJob removes login attempt records untouched for retention.
func RateLimitCleanupJob(limits RateLimitStore, retention time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "rate-limit-cleanup",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			n, err := limits.DeleteStale(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("cleaned up stale login attempts", zap.Int64("deleted", n))
			}
			return nil
		},
	}
}
