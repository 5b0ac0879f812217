package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/crewtask/crewtask/internal/app/identity"
	"github.com/crewtask/crewtask/internal/app/session"
	userstore "github.com/crewtask/crewtask/internal/app/store/users"
	"github.com/crewtask/crewtask/internal/domain/models"
	"github.com/crewtask/crewtask/internal/testutil"
)

// fakeProvider is an in-memory identity.Provider with knobs for
// failure injection. Listeners fire synchronously, like the real
// provider.
type fakeProvider struct {
	mu        sync.Mutex
	accounts  map[string]identity.AuthUser // by uid
	uidByMail map[string]string
	passwords map[string]string // by email
	current   *identity.AuthUser
	listeners []identity.Listener
	nextUID   int

	reloadErr error
	sendErr   error
	signOuts  int
	sent      int
	resets    []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts:  make(map[string]identity.AuthUser),
		uidByMail: make(map[string]string),
		passwords: make(map[string]string),
	}
}

// addAccount seeds a provider account without signing it in.
func (p *fakeProvider) addAccount(email, password string, verified bool) identity.AuthUser {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextUID++
	u := identity.AuthUser{
		UID:           fmt.Sprintf("uid-%d", p.nextUID),
		Email:         email,
		EmailVerified: verified,
	}
	p.accounts[u.UID] = u
	p.uidByMail[email] = u.UID
	p.passwords[email] = password
	return u
}

func (p *fakeProvider) setVerified(uid string, v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := p.accounts[uid]
	u.EmailVerified = v
	p.accounts[uid] = u
}

func (p *fakeProvider) SignIn(ctx context.Context, email, password string) (identity.AuthUser, error) {
	p.mu.Lock()
	uid, ok := p.uidByMail[email]
	if !ok || p.passwords[email] != password {
		p.mu.Unlock()
		return identity.AuthUser{}, identity.ErrInvalidCredentials
	}
	u := p.accounts[uid]
	p.mu.Unlock()
	p.setCurrent(&u)
	return u, nil
}

func (p *fakeProvider) SignUp(ctx context.Context, email, password string) (identity.AuthUser, error) {
	u := p.addAccount(email, password, false)
	p.setCurrent(&u)
	return u, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.signOuts++
	p.mu.Unlock()
	p.setCurrent(nil)
	return nil
}

func (p *fakeProvider) SetDisplayName(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return identity.ErrNoSession
	}
	p.current.DisplayName = name
	u := p.accounts[p.current.UID]
	u.DisplayName = name
	p.accounts[p.current.UID] = u
	return nil
}

func (p *fakeProvider) SendPasswordReset(ctx context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets = append(p.resets, email)
	return nil
}

func (p *fakeProvider) SendEmailVerification(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent++
	return nil
}

func (p *fakeProvider) Reload(ctx context.Context, uid string) (identity.AuthUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reloadErr != nil {
		return identity.AuthUser{}, p.reloadErr
	}
	u, ok := p.accounts[uid]
	if !ok {
		return identity.AuthUser{}, identity.ErrNoSession
	}
	return u, nil
}

func (p *fakeProvider) CurrentUser() (identity.AuthUser, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return identity.AuthUser{}, false
	}
	return *p.current, true
}

func (p *fakeProvider) OnAuthChange(l identity.Listener) func() {
	p.mu.Lock()
	p.listeners = append(p.listeners, l)
	p.mu.Unlock()
	return func() {}
}

func (p *fakeProvider) setCurrent(u *identity.AuthUser) {
	p.mu.Lock()
	p.current = u
	ls := append([]identity.Listener(nil), p.listeners...)
	p.mu.Unlock()
	ev := identity.Event{}
	if u != nil {
		copied := *u
		ev.User = &copied
	}
	for _, l := range ls {
		l(ev)
	}
}

const superEmail = "root@example.com"

func newManager(t *testing.T) (*session.Manager, *fakeProvider, *userstore.Store, context.Context, context.CancelFunc) {
	t.Helper()
	db := testutil.NewStore(t)
	users := userstore.New(db)
	provider := newFakeProvider()
	m := session.NewManager(provider, users, superEmail, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	return m, provider, users, ctx, cancel
}

func TestStart_NoProviderSession(t *testing.T) {
	m, _, _, ctx, cancel := newManager(t)
	defer cancel()

	if !m.Current().Loading() {
		t.Error("expected loading before Start")
	}
	m.Start(ctx)
	defer m.Stop()

	if got := m.Current().State; got != session.StateUnauthenticated {
		t.Errorf("state: got %q, want unauthenticated", got)
	}
}

func TestSignIn_VerifiedWithRecord(t *testing.T) {
	m, provider, users, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	au := provider.addAccount("lead@example.com", "pw", true)
	if _, err := users.Create(ctx, models.User{
		ID: au.UID, Name: "Lead", Email: au.Email, Role: models.RoleLeader, Verified: 1,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	if err := m.Login(ctx, "lead@example.com", "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	cur := m.Current()
	if cur.State != session.StateActive {
		t.Fatalf("state: got %q, want active", cur.State)
	}
	if cur.Role != models.RoleLeader {
		t.Errorf("role: got %q, want leader", cur.Role)
	}
	if cur.User == nil || cur.User.UID != au.UID {
		t.Errorf("expected user %q in session", au.UID)
	}
}

func TestSignIn_UnverifiedGate(t *testing.T) {
	m, provider, users, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	au := provider.addAccount("new@example.com", "pw", false)
	if _, err := users.Create(ctx, models.User{
		ID: au.UID, Email: au.Email, Role: models.RoleWorker,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	err := m.Login(ctx, "new@example.com", "pw")
	if !errors.Is(err, session.ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified, got %v", err)
	}

	// The gate tears the provider session back down.
	if _, ok := provider.CurrentUser(); ok {
		t.Error("expected provider session signed out")
	}
	cur := m.Current()
	if cur.State == session.StateActive {
		t.Error("session must not be active behind the gate")
	}
}

func TestSignIn_PendingSessionHidesUserAndRole(t *testing.T) {
	m, provider, _, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	// Raw provider sign-in (not via Login) for an unverified account:
	// the event listener lands the session in pending with no user and
	// no role exposed.
	provider.addAccount("new@example.com", "pw", false)
	if _, err := provider.SignIn(ctx, "new@example.com", "pw"); err != nil {
		t.Fatalf("provider SignIn failed: %v", err)
	}

	cur := m.Current()
	if cur.State != session.StatePendingVerification {
		t.Fatalf("state: got %q, want pending_verification", cur.State)
	}
	if cur.User != nil {
		t.Error("pending session must not expose the user")
	}
	if cur.Role != "" {
		t.Errorf("pending session must not expose a role, got %q", cur.Role)
	}
}

func TestSignIn_DirectoryVerifiedOverridesProvider(t *testing.T) {
	m, provider, users, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	// Provider says unverified, directory says verified: the directory
	// flag admits the user.
	au := provider.addAccount("ok@example.com", "pw", false)
	if _, err := users.Create(ctx, models.User{
		ID: au.UID, Email: au.Email, Role: models.RoleWorker, Verified: 1,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	if err := m.Login(ctx, "ok@example.com", "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if got := m.Current().State; got != session.StateActive {
		t.Errorf("state: got %q, want active", got)
	}
}

func TestSignIn_SuperadminBypassesVerification(t *testing.T) {
	m, provider, _, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	provider.addAccount(superEmail, "pw", false)

	if err := m.Login(ctx, superEmail, "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	cur := m.Current()
	if cur.State != session.StateActive {
		t.Fatalf("state: got %q, want active", cur.State)
	}
	if cur.Role != models.RoleSuperAdmin {
		t.Errorf("role: got %q, want superadmin", cur.Role)
	}
}

func TestSignIn_SelfHealsMissingRecord(t *testing.T) {
	m, provider, users, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	au := provider.addAccount("ghost@example.com", "pw", true)

	if err := m.Login(ctx, "ghost@example.com", "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	cur := m.Current()
	if cur.State != session.StateActive {
		t.Fatalf("state: got %q, want active", cur.State)
	}
	if cur.Role != models.RoleWorker {
		t.Errorf("role: got %q, want worker", cur.Role)
	}

	rec, err := users.GetByID(ctx, au.UID)
	if err != nil {
		t.Fatalf("expected directory record recreated: %v", err)
	}
	if !rec.IsVerified() {
		t.Error("expected self-healed record verified")
	}
	if rec.Name != au.Email {
		t.Errorf("expected email used as fallback name, got %q", rec.Name)
	}
}

func TestSignIn_ReconcilesVerifiedFlag(t *testing.T) {
	m, provider, users, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	au := provider.addAccount("late@example.com", "pw", true)
	if _, err := users.Create(ctx, models.User{
		ID: au.UID, Email: au.Email, Role: models.RoleWorker, Verified: 0,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	if err := m.Login(ctx, "late@example.com", "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	rec, _ := users.GetByID(ctx, au.UID)
	if !rec.IsVerified() {
		t.Error("expected directory flag reconciled from provider")
	}
	if rec.VerifiedAt.IsZero() {
		t.Error("expected VerifiedAt stamped")
	}
}

func TestSignIn_ReloadFailureUsesEventSnapshot(t *testing.T) {
	m, provider, users, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	au := provider.addAccount("ok@example.com", "pw", true)
	if _, err := users.Create(ctx, models.User{
		ID: au.UID, Email: au.Email, Role: models.RoleWorker, Verified: 1,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	provider.reloadErr = errors.New("backend down")

	if err := m.Login(ctx, "ok@example.com", "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if got := m.Current().State; got != session.StateActive {
		t.Errorf("state: got %q, want active", got)
	}
}

func TestRegister_Worker(t *testing.T) {
	m, provider, users, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	if err := m.Register(ctx, "Pat", "pat@example.com", "pw"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	rec, err := users.GetByEmail(ctx, "pat@example.com")
	if err != nil {
		t.Fatalf("expected directory record: %v", err)
	}
	if rec.Role != models.RoleWorker {
		t.Errorf("role: got %q, want worker", rec.Role)
	}
	if rec.IsVerified() {
		t.Error("new worker must start unverified")
	}
	if provider.sent != 1 {
		t.Errorf("expected 1 verification email, got %d", provider.sent)
	}
}

func TestRegister_EmailSendFailureStillSucceeds(t *testing.T) {
	m, provider, users, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	provider.sendErr = errors.New("smtp down")

	if err := m.Register(ctx, "Pat", "pat@example.com", "pw"); err != nil {
		t.Fatalf("Register should succeed despite send failure: %v", err)
	}
	if _, err := users.GetByEmail(ctx, "pat@example.com"); err != nil {
		t.Fatalf("expected directory record: %v", err)
	}
}

func TestRegister_Superadmin(t *testing.T) {
	m, provider, users, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	if err := m.Register(ctx, "Root", superEmail, "pw"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	rec, err := users.GetByEmail(ctx, superEmail)
	if err != nil {
		t.Fatalf("expected directory record: %v", err)
	}
	if rec.Role != models.RoleSuperAdmin {
		t.Errorf("role: got %q, want superadmin", rec.Role)
	}
	if !rec.IsVerified() {
		t.Error("superadmin must be created verified")
	}
	if provider.sent != 0 {
		t.Errorf("superadmin gets no verification email, got %d", provider.sent)
	}
}

func TestLogout_SignsOutProvider(t *testing.T) {
	m, provider, users, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	au := provider.addAccount("ok@example.com", "pw", true)
	users.Create(ctx, models.User{ID: au.UID, Email: au.Email, Role: models.RoleWorker, Verified: 1})
	if err := m.Login(ctx, "ok@example.com", "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := m.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if got := m.Current().State; got != session.StateUnauthenticated {
		t.Errorf("state: got %q, want unauthenticated", got)
	}
}

func TestDemoLogin(t *testing.T) {
	m, _, _, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	m.DemoLogin(models.RoleLeader)

	cur := m.Current()
	if cur.State != session.StateActive {
		t.Fatalf("state: got %q, want active", cur.State)
	}
	if !cur.IsDemo {
		t.Error("expected demo flag")
	}
	if cur.Role != models.RoleLeader {
		t.Errorf("role: got %q, want leader", cur.Role)
	}
	if cur.User == nil || cur.User.UID != session.DemoUID {
		t.Errorf("expected pseudo-user %q", session.DemoUID)
	}
	if cur.User.DisplayName != "Leader" {
		t.Errorf("display name: got %q, want Leader", cur.User.DisplayName)
	}
}

func TestDemoLogin_InvalidRoleFallsBackToWorker(t *testing.T) {
	m, _, _, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	m.DemoLogin("wizard")
	if got := m.Current().Role; got != models.RoleWorker {
		t.Errorf("role: got %q, want worker", got)
	}
}

func TestDemoSession_IgnoresProviderEvents(t *testing.T) {
	m, provider, _, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	m.DemoLogin(models.RoleWorker)

	// A provider event while demo is active must not replace the demo
	// session.
	provider.addAccount("real@example.com", "pw", true)
	provider.SignIn(ctx, "real@example.com", "pw")

	cur := m.Current()
	if !cur.IsDemo {
		t.Error("expected demo session to survive provider event")
	}
	if cur.User.UID != session.DemoUID {
		t.Errorf("expected demo user, got %q", cur.User.UID)
	}
}

func TestLogout_DemoNeverTouchesProvider(t *testing.T) {
	m, provider, _, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	m.DemoLogin(models.RoleWorker)
	before := provider.signOuts

	if err := m.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if provider.signOuts != before {
		t.Error("demo logout must not call the provider")
	}
	if got := m.Current().State; got != session.StateUnauthenticated {
		t.Errorf("state: got %q, want unauthenticated", got)
	}
}

func TestSubscribe_FiresImmediatelyAndOnChange(t *testing.T) {
	m, provider, users, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	var mu sync.Mutex
	var states []session.State
	unsub := m.Subscribe(func(s session.Session) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})
	defer unsub()

	au := provider.addAccount("ok@example.com", "pw", true)
	users.Create(ctx, models.User{ID: au.UID, Email: au.Email, Role: models.RoleWorker, Verified: 1})
	if err := m.Login(ctx, "ok@example.com", "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) < 2 {
		t.Fatalf("expected immediate fire plus change, got %v", states)
	}
	if states[0] != session.StateUnauthenticated {
		t.Errorf("first notification: got %q, want the current state", states[0])
	}
	if states[len(states)-1] != session.StateActive {
		t.Errorf("last notification: got %q, want active", states[len(states)-1])
	}
}

func TestResendVerificationBySignIn_AlwaysSignsOut(t *testing.T) {
	m, provider, _, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	provider.addAccount("new@example.com", "pw", false)
	provider.sendErr = errors.New("smtp down")

	err := m.ResendVerificationBySignIn(ctx, "new@example.com", "pw")
	if err == nil {
		t.Fatal("expected resend error surfaced")
	}
	if _, ok := provider.CurrentUser(); ok {
		t.Error("expected transient session signed out even after resend failure")
	}
}

func TestResendVerificationBySignIn_BadCredentials(t *testing.T) {
	m, _, _, ctx, cancel := newManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	err := m.ResendVerificationBySignIn(ctx, "nobody@example.com", "pw")
	if !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestResetPassword_Delegates(t *testing.T) {
	m, provider, _, ctx, cancel := newManager(t)
	defer cancel()

	if err := m.ResetPassword(ctx, "pat@example.com"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if len(provider.resets) != 1 || provider.resets[0] != "pat@example.com" {
		t.Errorf("expected reset for pat@example.com, got %v", provider.resets)
	}
}

// newFaultManager wires the manager over a fault-injecting store so
// tests can fail or stall directory reads.
func newFaultManager(t *testing.T) (*session.Manager, *fakeProvider, *userstore.Store, *testutil.FaultStore, context.Context, context.CancelFunc) {
	t.Helper()
	fdb := &testutil.FaultStore{Inner: testutil.NewStore(t)}
	users := userstore.New(fdb)
	provider := newFakeProvider()
	m := session.NewManager(provider, users, superEmail, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	return m, provider, users, fdb, ctx, cancel
}

func TestSignIn_TransientDirectoryErrorKeepsRecord(t *testing.T) {
	m, provider, users, fdb, ctx, cancel := newFaultManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	au := provider.addAccount("lead@example.com", "pw", true)
	if _, err := users.Create(ctx, models.User{
		ID: au.UID, Name: "Lead", Email: au.Email,
		Role: models.RoleLeader, TeamID: "team-1", Verified: 1,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	// Every directory read fails for the duration of this sign-in.
	fdb.GetErr = func(coll, id string) error {
		return errors.New("backend down")
	}
	if err := m.Login(ctx, "lead@example.com", "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if got := m.Current().State; got != session.StateActive {
		t.Fatalf("state: got %q, want active", got)
	}
	fdb.GetErr = nil

	// Only a known-absent record may be recreated; the record the fetch
	// could not see must survive untouched.
	rec, err := users.GetByID(ctx, au.UID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if rec.Role != models.RoleLeader {
		t.Errorf("role: got %q, want leader preserved", rec.Role)
	}
	if rec.TeamID != "team-1" {
		t.Errorf("team: got %q, want team-1 preserved", rec.TeamID)
	}
}

func TestSignIn_EventMidPassIsReapplied(t *testing.T) {
	m, provider, users, fdb, ctx, cancel := newFaultManager(t)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	au := provider.addAccount("slow@example.com", "pw", false)
	if _, err := users.Create(ctx, models.User{
		ID: au.UID, Email: au.Email, Role: models.RoleWorker,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	// Stall the first pass inside its directory read so a second event
	// for the same account lands while it is still in flight.
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fdb.GetErr = func(coll, id string) error {
		once.Do(func() {
			close(entered)
			<-release
		})
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		provider.SignIn(ctx, "slow@example.com", "pw")
	}()
	<-entered

	provider.setVerified(au.UID, true)
	go func() {
		defer wg.Done()
		provider.SignIn(ctx, "slow@example.com", "pw")
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	// The verified sign-in must not be swallowed by the in-flight
	// unverified pass.
	if got := m.Current().State; got != session.StateActive {
		t.Fatalf("state: got %q, want active after second event", got)
	}
}
