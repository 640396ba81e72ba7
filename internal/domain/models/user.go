// internal/domain/models/user.go
package models

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The username people type to sign in

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an account that can upload datasets.
//
// Auth fields:
//   - LoginID: the username, trimmed, case preserved for display
//   - LoginIDCI: folded username used for the unique index and lookups
//   - GoogleID: Google subject id for accounts created through Google sign-in
//   - AuthMethod: password, google
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"full_name_ci"` // lowercase, diacritics-stripped

	LoginID    string  `bson:"login_id" json:"login_id"`
	LoginIDCI  string  `bson:"login_id_ci" json:"login_id_ci"`
	Email      *string `bson:"email,omitempty" json:"email,omitempty"`
	GoogleID   *string `bson:"google_id,omitempty" json:"-"`
	AuthMethod string  `bson:"auth_method" json:"auth_method"`
	AvatarURL  string  `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`

	PasswordHash *string `bson:"password_hash,omitempty" json:"-"` // bcrypt hash (never in JSON)

	Role   string `bson:"role" json:"role"`                         // admin, member
	Status string `bson:"status,omitempty" json:"status,omitempty"` // active, disabled

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// User roles
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// DefaultAvatarURL is shown for accounts without a picture.
const DefaultAvatarURL = "https://encrypted-tbn0.gstatic.com/images?q=tbn:ANd9GcR2NIXc73ZgxZfbifJP3Bsv35sekQyklo-9JA&s"

// AllRoles returns all valid user roles.
func AllRoles() []string {
	return []string{
		RoleAdmin,
		RoleMember,
	}
}

// IsValidRole checks if a role is valid.
func IsValidRole(role string) bool {
	for _, r := range AllRoles() {
		if r == role {
			return true
		}
	}
	return false
}

// Avatar returns the user's picture or the default one.
func (u *User) Avatar() string {
	if u.AvatarURL != "" {
		return u.AvatarURL
	}
	return DefaultAvatarURL
}
