// internal/app/system/authz/authz.go
// Package authz answers ownership questions about the signed-in user.
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/stratasheet/internal/app/system/auth"
	"github.com/dalemusser/stratasheet/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor returns the signed-in user's id and lowercased role. ok is false
// for anonymous requests and for sessions carrying a malformed id.
func Actor(r *http.Request) (userID primitive.ObjectID, role string, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return primitive.NilObjectID, "", false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return primitive.NilObjectID, "", false
	}
	return userID, strings.ToLower(user.Role), true
}

// CanAccess reports whether the current user owns a resource or is an
// admin. Anonymous requests never can.
func CanAccess(r *http.Request, ownerID primitive.ObjectID) bool {
	userID, role, ok := Actor(r)
	if !ok {
		return false
	}
	return role == models.RoleAdmin || userID == ownerID
}
