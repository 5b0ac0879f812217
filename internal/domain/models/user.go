// internal/domain/models/user.go
package models

import (
	"time"

	"github.com/dalemusser/waffle/pantry/text"
)

// Role values for User.Role, from most to least privileged.
const (
	RoleSuperAdmin = "superadmin"
	RoleAdmin      = "admin"
	RoleLeader     = "leader"
	RoleWorker     = "worker"
)

// User is a directory record in the users collection.
//
// The document ID is the identity provider's subject ID (UID), not a
// generated ObjectID, so directory lookups on auth events are a single
// get by id.
//
// NOTE:
//   - Verified is an int (0/1) cache of the provider's emailVerified
//     flag. It is reconciled toward the provider, never the reverse.
//   - TeamID is a plain string reference; empty means unassigned.
type User struct {
	ID         string    `bson:"_id" json:"id"`
	Name       string    `bson:"name" json:"name"`
	NameCI     string    `bson:"name_ci" json:"name_ci"` // lowercase, diacritics-stripped
	Email      string    `bson:"email" json:"email"`
	EmailCI    string    `bson:"email_ci" json:"email_ci"`
	Role       string    `bson:"role" json:"role"` // superadmin | admin | leader | worker
	TeamID     string    `bson:"team_id,omitempty" json:"team_id,omitempty"`
	Verified   int       `bson:"verified" json:"verified"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	VerifiedAt time.Time `bson:"verified_at,omitempty" json:"verified_at,omitempty"`
}

// ApplyDefaults fills fields a raw document may omit. Called at the
// deserialization boundary so callers never see a zero role.
func (u *User) ApplyDefaults() {
	if u.Role == "" {
		u.Role = RoleWorker
	}
	if u.EmailCI == "" {
		u.EmailCI = text.Fold(u.Email)
	}
	if u.NameCI == "" {
		u.NameCI = text.Fold(u.Name)
	}
}

// IsVerified reports whether the cached verified flag is set.
func (u User) IsVerified() bool { return u.Verified == 1 }

// RoleRank orders roles for the superadmin ⊇ admin ⊇ leader ⊇ worker
// hierarchy. Unknown roles rank below worker.
func RoleRank(role string) int {
	switch role {
	case RoleSuperAdmin:
		return 4
	case RoleAdmin:
		return 3
	case RoleLeader:
		return 2
	case RoleWorker:
		return 1
	default:
		return 0
	}
}

// ValidRole reports whether role is one of the four known roles.
func ValidRole(role string) bool { return RoleRank(role) > 0 }
