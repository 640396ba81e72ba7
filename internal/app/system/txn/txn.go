// Package txn runs multi-document writes in a MongoDB transaction, falling
// back to plain execution on deployments without transactions (standalone
// servers, some DocumentDB configurations).
//
//	err := txn.Run(ctx, db, log, func(ctx context.Context) error {
//	    if _, _, err := datasets.DeleteByOwner(ctx, userID); err != nil {
//	        return err
//	    }
//	    _, err := users.Delete(ctx, userID)
//	    return err
//	})
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Func receives the context to use for every database call. Inside a
// transaction it is a mongo.SessionContext.
type Func func(ctx context.Context) error

// Run executes fn in a transaction when the deployment supports one.
// fn may run more than once when the driver retries a transient error,
// so it must not have side effects outside the database.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn Func) error {
	session, err := db.Client().StartSession()
	if err != nil {
		if log != nil {
			log.Warn("failed to start session, running without transaction", zap.Error(err))
		}
		return fn(ctx)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		if log != nil {
			log.Warn("transactions not supported, running without transaction", zap.Error(err))
		}
		return fn(ctx)
	}
	return err
}

// IsNotSupported reports whether err means the server cannot run
// multi-document transactions.
//
// Known codes: 20 (IllegalOperation, "Transaction numbers are only allowed
// on a replica set member or mongos"), 51, 263.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case 20, 51, 263:
			return true
		}
	}

	// Two keyword hits keep unrelated errors from matching.
	msg := strings.ToLower(err.Error())
	hits := 0
	for _, kw := range []string{"transaction", "replica set", "session", "not supported", "illegal operation"} {
		if strings.Contains(msg, kw) {
			hits++
		}
	}
	return hits >= 2
}
