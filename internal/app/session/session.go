// internal/app/session/session.go
package session

import "github.com/crewtask/crewtask/internal/app/identity"

// State is the session's position in the verification-gated auth
// lifecycle.
type State string

const (
	// StateLoading means no auth event has been resolved yet.
	StateLoading State = "loading"
	// StateUnauthenticated means no provider session exists.
	StateUnauthenticated State = "unauthenticated"
	// StatePendingVerification means a provider session exists but the
	// account has not passed the verification gate; User and Role stay
	// empty so role-scoped screens stay unreachable.
	StatePendingVerification State = "pending_verification"
	// StateActive means the user is verified (or the bootstrap
	// superadmin) and the role is resolved.
	StateActive State = "active"
)

// Session is the resolved {user, role, verified} tuple the rest of the
// app reads. It is rebuilt whole on every event, never mutated in
// place.
type Session struct {
	State    State
	User     *identity.AuthUser
	Role     string
	Verified bool
	IsDemo   bool
}

// Loading reports whether the initial auth state is still unresolved.
func (s Session) Loading() bool { return s.State == StateLoading }

// Active reports whether the user is through the verification gate.
func (s Session) Active() bool { return s.State == StateActive }
