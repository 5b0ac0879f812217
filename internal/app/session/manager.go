// internal/app/session/manager.go

// Package session holds the authorization and verification state
// machine: it consumes identity-provider events, reconciles the
// verification flag between the provider and the user directory,
// derives the effective role, and republishes the resolved session.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/crewtask/crewtask/internal/app/docstore"
	"github.com/crewtask/crewtask/internal/app/identity"
	userstore "github.com/crewtask/crewtask/internal/app/store/users"
	"github.com/crewtask/crewtask/internal/domain/models"
)

// ErrEmailNotVerified means sign-in succeeded at the provider but the
// account has not passed the verification gate; the session has been
// signed back out as part of this failure.
var ErrEmailNotVerified = errors.New("email not verified")

// DemoUID is the pseudo-user id demo sessions carry.
const DemoUID = "demo-user"

// Manager is the single writer of the session. Everything else reads
// via Current or Subscribe.
type Manager struct {
	provider   identity.Provider
	users      *userstore.Store
	superEmail string
	log        *zap.Logger

	// flight serializes event-handling passes per subject uid so two
	// rapid events for one account cannot interleave their
	// reload/fetch/reconcile sequences. pending holds the latest
	// unresolved event per key; a pass drains it before returning so an
	// event arriving mid-pass is re-resolved instead of dropped.
	flight  singleflight.Group
	pending sync.Map

	mu      sync.RWMutex
	cur     Session
	subs    map[int]func(Session)
	nextSub int
	unsub   func()
}

// NewManager creates a manager in the loading state. superadminEmail is
// the bootstrap address granted the superadmin role and verification
// bypass; empty disables the bypass.
func NewManager(provider identity.Provider, users *userstore.Store, superadminEmail string, logger *zap.Logger) *Manager {
	return &Manager{
		provider:   provider,
		users:      users,
		superEmail: strings.TrimSpace(superadminEmail),
		log:        logger,
		cur:        Session{State: StateLoading},
		subs:       make(map[int]func(Session)),
	}
}

// Start subscribes to provider events and resolves the current provider
// state once, moving the session out of loading. Stop releases the
// subscription.
func (m *Manager) Start(ctx context.Context) {
	m.unsub = m.provider.OnAuthChange(func(ev identity.Event) {
		m.handleEvent(ctx, ev)
	})
	if cur, ok := m.provider.CurrentUser(); ok {
		u := cur
		m.handleEvent(ctx, identity.Event{User: &u})
	} else {
		m.handleEvent(ctx, identity.Event{})
	}
}

// Stop unsubscribes from provider events.
func (m *Manager) Stop() {
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
}

// Current returns the resolved session.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Subscribe registers fn to run on every session change, starting with
// the current value. The returned func unsubscribes.
func (m *Manager) Subscribe(fn func(Session)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	cur := m.cur
	m.mu.Unlock()
	fn(cur)
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// handleEvent is the transition rule applied to every provider event.
// While a demo session is active, provider events are not applied at
// all — demo and real sessions never mix within one lifecycle.
func (m *Manager) handleEvent(ctx context.Context, ev identity.Event) {
	if m.Current().IsDemo {
		return
	}
	key := "signed-out"
	if ev.User != nil {
		key = ev.User.UID
	}
	m.pending.Store(key, ev)
	for {
		_, _, shared := m.flight.Do(key, func() (any, error) {
			for {
				v, ok := m.pending.LoadAndDelete(key)
				if !ok {
					return nil, nil
				}
				m.resolve(ctx, v.(identity.Event))
			}
		})
		if !shared {
			return
		}
		// Coalesced into a pass that may have finished draining before
		// our event landed; retry until it has been picked up.
		if _, ok := m.pending.Load(key); !ok {
			return
		}
	}
}

func (m *Manager) resolve(ctx context.Context, ev identity.Event) {
	if ev.User == nil {
		m.publish(Session{State: StateUnauthenticated})
		return
	}
	au := *ev.User

	// Refresh the provider's view, best-effort: a failed reload is
	// swallowed and the event's snapshot used instead.
	if fresh, err := m.provider.Reload(ctx, au.UID); err == nil {
		au = fresh
	} else {
		m.log.Debug("provider reload failed", zap.String("uid", au.UID), zap.Error(err))
	}

	rec, recErr := m.users.GetByID(ctx, au.UID)
	haveRec := recErr == nil
	recMissing := errors.Is(recErr, docstore.ErrNotFound)
	if recErr != nil && !recMissing {
		m.log.Warn("directory fetch failed", zap.String("uid", au.UID), zap.Error(recErr))
	}

	isSuper := m.isSuperadmin(au.Email)
	verified := isSuper || au.EmailVerified || (haveRec && rec.IsVerified())

	if !verified {
		// The access gate: the provider session exists but user/role
		// stay empty so role-scoped screens remain unreachable.
		m.publish(Session{State: StatePendingVerification})
		return
	}

	role := ""
	if haveRec {
		role = rec.Role
	}
	if role == "" {
		if isSuper {
			role = models.RoleSuperAdmin
		} else {
			role = models.RoleWorker
		}
	}

	if recMissing {
		// Self-healing path for accounts whose directory write failed
		// at registration. Runs only when the record is known absent: a
		// transient fetch failure must never replace an existing record.
		name := au.DisplayName
		if name == "" {
			name = au.Email
		}
		if _, err := m.users.Create(ctx, models.User{
			ID:         au.UID,
			Name:       name,
			Email:      au.Email,
			Role:       role,
			Verified:   1,
			VerifiedAt: time.Now().UTC(),
		}); err != nil {
			m.log.Warn("directory self-heal failed", zap.String("uid", au.UID), zap.Error(err))
		}
	} else if haveRec && au.EmailVerified && !rec.IsVerified() {
		m.reconcileVerified(ctx, au.UID)
	}

	m.publish(Session{
		State:    StateActive,
		User:     &au,
		Role:     role,
		Verified: true,
	})
}

// reconcileVerified backfills the directory's verified flag from the
// provider. The provider's flag is authoritative for UX; the directory
// flag is a cache, so a write failure is retried once via merge-write
// and then logged, never blocking entry to the active state.
func (m *Manager) reconcileVerified(ctx context.Context, uid string) {
	now := time.Now().UTC()
	err := m.users.MarkVerified(ctx, uid, now)
	if err == nil {
		return
	}
	m.log.Warn("verified-flag update failed, retrying as merge",
		zap.String("uid", uid), zap.Error(err))
	if err := m.users.MergeVerified(ctx, uid, now); err != nil {
		m.log.Warn("verified-flag merge retry failed", zap.String("uid", uid), zap.Error(err))
	}
}

// Login signs in and enforces the verification gate itself: if the
// provider shows the email unverified and the account is not the
// bootstrap superadmin, the session is signed back out and
// ErrEmailNotVerified returned. The gate lives here, not only in the
// event listener.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	au, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	if fresh, err := m.provider.Reload(ctx, au.UID); err == nil {
		au = fresh
	}

	isSuper := m.isSuperadmin(au.Email)
	verified := isSuper || au.EmailVerified
	if !verified {
		if rec, err := m.users.GetByID(ctx, au.UID); err == nil && rec.IsVerified() {
			verified = true
		}
	}
	if !verified {
		if err := m.provider.SignOut(ctx); err != nil {
			m.log.Warn("sign-out after failed verification gate failed", zap.Error(err))
		}
		return ErrEmailNotVerified
	}
	return nil
}

// Register creates the provider account and its directory record. The
// bootstrap superadmin is created verified with no email sent; everyone
// else starts as an unverified worker and gets a verification email,
// best-effort — a send failure is logged and registration still
// succeeds.
func (m *Manager) Register(ctx context.Context, name, email, password string) error {
	au, err := m.provider.SignUp(ctx, email, password)
	if err != nil {
		return err
	}
	if name != "" {
		if err := m.provider.SetDisplayName(ctx, name); err != nil {
			m.log.Warn("set display name failed", zap.String("uid", au.UID), zap.Error(err))
		}
	}

	isSuper := m.isSuperadmin(au.Email)
	u := models.User{
		ID:    au.UID,
		Name:  name,
		Email: au.Email,
		Role:  models.RoleWorker,
	}
	if u.Name == "" {
		u.Name = au.Email
	}
	if isSuper {
		u.Role = models.RoleSuperAdmin
		u.Verified = 1
		u.VerifiedAt = time.Now().UTC()
	}
	if _, err := m.users.Create(ctx, u); err != nil {
		return err
	}

	if !isSuper {
		if err := m.provider.SendEmailVerification(ctx); err != nil {
			m.log.Warn("verification email failed",
				zap.String("uid", au.UID), zap.String("email", au.Email), zap.Error(err))
		}
	}
	return nil
}

// Logout tears the session down. Leaving demo mode never touches the
// provider.
func (m *Manager) Logout(ctx context.Context) error {
	if m.Current().IsDemo {
		m.publish(Session{State: StateUnauthenticated})
		return nil
	}
	if err := m.provider.SignOut(ctx); err != nil {
		if errors.Is(err, identity.ErrNotConfigured) {
			m.publish(Session{State: StateUnauthenticated})
			return nil
		}
		return err
	}
	return nil
}

// ResetPassword sends a reset email.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	return m.provider.SendPasswordReset(ctx, email)
}

// ResendVerification resends the verification email to the active
// provider session.
func (m *Manager) ResendVerification(ctx context.Context) error {
	return m.provider.SendEmailVerification(ctx)
}

// ResendVerificationBySignIn is the transient-session path for a user
// locked out pending verification: sign in, resend the email, then
// always sign back out — even when the resend failed.
func (m *Manager) ResendVerificationBySignIn(ctx context.Context, email, password string) error {
	if _, err := m.provider.SignIn(ctx, email, password); err != nil {
		return err
	}
	resendErr := m.provider.SendEmailVerification(ctx)
	if err := m.provider.SignOut(ctx); err != nil {
		m.log.Warn("sign-out after transient resend failed", zap.Error(err))
	}
	return resendErr
}

// DemoLogin synthesizes a local session with a pseudo-user and the
// requested role, bypassing the provider entirely. While the demo
// session lives, provider events are ignored.
func (m *Manager) DemoLogin(role string) {
	if !models.ValidRole(role) {
		role = models.RoleWorker
	}
	m.publish(Session{
		State: StateActive,
		User: &identity.AuthUser{
			UID:           DemoUID,
			DisplayName:   strings.ToUpper(role[:1]) + role[1:],
			EmailVerified: true,
		},
		Role:     role,
		Verified: true,
		IsDemo:   true,
	})
}

func (m *Manager) isSuperadmin(email string) bool {
	return m.superEmail != "" && strings.EqualFold(strings.TrimSpace(email), m.superEmail)
}

func (m *Manager) publish(s Session) {
	m.mu.Lock()
	m.cur = s
	fns := make([]func(Session), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}
