// internal/app/identity/identity.go

// Package identity defines the gateway to the external auth provider:
// sign-in/sign-up/sign-out, password reset, email verification, and the
// auth-change subscription. The session state machine consumes this
// interface; concrete providers live in sub-packages.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured means no backing credentials were supplied. All
	// operations fail fast with this; the app degrades to a
	// disabled-auth state instead of crashing.
	ErrNotConfigured = errors.New("identity provider not configured")

	// ErrInvalidCredentials means the provider rejected the sign-in.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrNoSession means an operation requiring an active provider
	// session (e.g. resending a verification email) found none.
	ErrNoSession = errors.New("no active provider session")
)

// AuthUser is the normalized view of a provider account.
type AuthUser struct {
	UID           string
	Email         string
	DisplayName   string
	EmailVerified bool
}

// Event is one auth-state change. User is nil on sign-out.
type Event struct {
	User *AuthUser
}

// Listener receives auth-state changes. Listeners run on the goroutine
// performing the auth operation and must not block for long.
type Listener func(Event)

// Provider is the identity gateway contract.
type Provider interface {
	// SignIn authenticates email/password and returns the account.
	// Fails with ErrInvalidCredentials or ErrNotConfigured.
	SignIn(ctx context.Context, email, password string) (AuthUser, error)

	// SignUp creates an account and signs it in.
	SignUp(ctx context.Context, email, password string) (AuthUser, error)

	// SignOut tears down the active session. Signing out with no
	// session is a no-op.
	SignOut(ctx context.Context) error

	// SetDisplayName updates the display name on the active account.
	SetDisplayName(ctx context.Context, name string) error

	// SendPasswordReset emails a password-reset link.
	SendPasswordReset(ctx context.Context, email string) error

	// SendEmailVerification emails a verification message to the
	// active account.
	SendEmailVerification(ctx context.Context) error

	// Reload refreshes the provider's view of the account with the
	// given UID, in particular EmailVerified.
	Reload(ctx context.Context, uid string) (AuthUser, error)

	// CurrentUser returns the active account, if any.
	CurrentUser() (AuthUser, bool)

	// OnAuthChange registers a listener fired on every sign-in and
	// sign-out. The returned func unsubscribes.
	OnAuthChange(l Listener) (unsubscribe func())
}
