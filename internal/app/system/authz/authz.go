// internal/app/system/authz/authz.go

// Package authz centralizes role-based permission checks. Screens ask
// Can(role, action, resource) instead of re-deriving the four-role
// hierarchy (superadmin ⊇ admin ⊇ leader ⊇ worker) ad hoc.
package authz

import (
	"strings"

	"github.com/crewtask/crewtask/internal/domain/models"
)

// Action is something a user tries to do to a resource.
type Action string

const (
	ActionView          Action = "view"
	ActionCreate        Action = "create"
	ActionUpdate        Action = "update"
	ActionAssign        Action = "assign"
	ActionManageMembers Action = "manage_members"
	ActionSetLeader     Action = "set_leader"
	ActionManageRoles   Action = "manage_roles"
)

// Resource is the kind of thing an action targets.
type Resource string

const (
	ResourceTask Resource = "task"
	ResourceTeam Resource = "team"
	ResourceUser Resource = "user"
)

// IsSuperAdmin reports whether role is the superadmin role.
func IsSuperAdmin(role string) bool {
	return normalize(role) == models.RoleSuperAdmin
}

// IsAdmin reports whether role carries admin privileges. Superadmins
// are admins for permission purposes.
func IsAdmin(role string) bool {
	r := normalize(role)
	return r == models.RoleAdmin || r == models.RoleSuperAdmin
}

// IsLeader reports whether role is specifically the leader role.
func IsLeader(role string) bool {
	return normalize(role) == models.RoleLeader
}

// IsWorker reports whether role is specifically the worker role.
func IsWorker(role string) bool {
	return normalize(role) == models.RoleWorker
}

// CanManageAll reports whether role may manage every team and task.
func CanManageAll(role string) bool { return IsAdmin(role) }

// CanManageTeam reports whether role may manage some team (its own for
// leaders, any for admins).
func CanManageTeam(role string) bool { return IsLeader(role) || CanManageAll(role) }

// Can is the single authorization decision point. Unknown roles,
// actions, and resources are denied.
func Can(role string, action Action, resource Resource) bool {
	r := normalize(role)
	if !models.ValidRole(r) {
		return false
	}
	switch resource {
	case ResourceTask:
		switch action {
		case ActionView, ActionUpdate:
			// Everyone sees their scoped task list and can move status
			// on tasks on their board; the data scoping itself happens
			// in the queries, not here.
			return true
		case ActionCreate, ActionAssign:
			return CanManageTeam(r)
		}
	case ResourceTeam:
		switch action {
		case ActionView:
			return true
		case ActionCreate:
			return IsSuperAdmin(r)
		case ActionManageMembers:
			return CanManageTeam(r)
		case ActionSetLeader:
			return CanManageAll(r)
		}
	case ResourceUser:
		switch action {
		case ActionView, ActionUpdate:
			return CanManageAll(r)
		case ActionManageRoles:
			return IsSuperAdmin(r)
		}
	}
	return false
}

func normalize(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
