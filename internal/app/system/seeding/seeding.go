// internal/app/system/seeding/seeding.go
// Package seeding creates the records a fresh deployment needs.
package seeding

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The username people type to sign in

import (
	"context"
	"errors"
	"fmt"

	userstore "github.com/dalemusser/stratasheet/internal/app/store/users"
	"github.com/dalemusser/stratasheet/internal/app/system/authutil"
	"github.com/dalemusser/stratasheet/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// AdminSeed names the administrator to ensure on startup.
type AdminSeed struct {
	Username string
	Name     string
	Password string // only used when the user does not exist yet
}

// SeedAdmin ensures seed.Username is an admin. An existing user is
// promoted; a missing one is created as a password user when
// seed.Password is set, and skipped with a warning otherwise.
func SeedAdmin(ctx context.Context, db *mongo.Database, seed AdminSeed, logger *zap.Logger) error {
	if seed.Username == "" {
		return nil
	}
	users := userstore.New(db)

	existing, err := users.GetByLoginID(ctx, seed.Username)
	switch {
	case err == nil:
		if existing.Role == models.RoleAdmin {
			logger.Debug("admin user already configured", zap.String("login_id", existing.LoginID))
			return nil
		}
		if err := users.SetRole(ctx, existing.ID, models.RoleAdmin); err != nil {
			return fmt.Errorf("promote %q: %w", seed.Username, err)
		}
		logger.Info("promoted existing user to admin",
			zap.String("login_id", existing.LoginID),
			zap.String("user_id", existing.ID.Hex()),
			zap.String("previous_role", existing.Role))
		return nil
	case !errors.Is(err, mongo.ErrNoDocuments):
		return err
	}

	if seed.Password == "" {
		logger.Warn("seed admin does not exist and no seed password is set; skipping",
			zap.String("login_id", seed.Username))
		return nil
	}
	if err := authutil.ValidatePassword(seed.Password); err != nil {
		return fmt.Errorf("seed admin password: %w", err)
	}
	hash, err := authutil.HashPassword(seed.Password)
	if err != nil {
		return err
	}

	name := seed.Name
	if name == "" {
		name = "Admin"
	}
	u, err := users.Create(ctx, userstore.CreateInput{
		FullName:     name,
		LoginID:      seed.Username,
		AuthMethod:   models.AuthMethodPassword,
		Role:         models.RoleAdmin,
		PasswordHash: &hash,
	})
	if err != nil {
		return fmt.Errorf("create seed admin: %w", err)
	}

	logger.Info("created admin user",
		zap.String("login_id", u.LoginID),
		zap.String("user_id", u.ID.Hex()))
	return nil
}
