// internal/app/identity/localident/localident.go

// Package localident implements identity.Provider on a docstore
// collection: bcrypt password hashes, emailed verification codes, and
// synchronous auth-change dispatch. It is the self-hosted stand-in for
// a managed identity service.
package localident

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/crewtask/crewtask/internal/app/docstore"
	"github.com/crewtask/crewtask/internal/app/identity"
	"github.com/crewtask/crewtask/internal/app/system/mailer"
)

const credentialsCollection = "credentials"

// ErrEmailTaken is returned by SignUp when the email already has an
// account.
var ErrEmailTaken = errors.New("an account with this email already exists")

// ErrBadCode is returned by ConfirmCode for a wrong or expired code.
var ErrBadCode = errors.New("invalid or expired verification code")

// credential is a document in the credentials collection, keyed by UID.
type credential struct {
	UID             string    `json:"uid" bson:"_id"`
	Email           string    `json:"email" bson:"email"`
	EmailCI         string    `json:"email_ci" bson:"email_ci"`
	PasswordHash    string    `json:"password_hash" bson:"password_hash"`
	DisplayName     string    `json:"display_name" bson:"display_name"`
	EmailVerified   bool      `json:"email_verified" bson:"email_verified"`
	VerifyCode      string    `json:"verify_code,omitempty" bson:"verify_code,omitempty"`
	VerifyExpiresAt time.Time `json:"verify_expires_at" bson:"verify_expires_at"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}

func (c credential) authUser() identity.AuthUser {
	return identity.AuthUser{
		UID:           c.UID,
		Email:         c.Email,
		DisplayName:   c.DisplayName,
		EmailVerified: c.EmailVerified,
	}
}

// Config holds provider settings.
type Config struct {
	SiteName     string
	BaseURL      string        // for verification/reset links in email
	VerifyExpiry time.Duration // verification code lifetime
}

// Provider implements identity.Provider.
type Provider struct {
	creds docstore.Collection
	mail  mailer.Sender
	cfg   Config
	log   *zap.Logger

	mu        sync.Mutex
	current   *identity.AuthUser
	listeners map[int]identity.Listener
	nextID    int
}

// New creates a provider over the given store. Passing a nil store
// yields a disabled provider whose operations fail with
// identity.ErrNotConfigured; the app keeps running in that state.
func New(store docstore.Store, mail mailer.Sender, cfg Config, logger *zap.Logger) *Provider {
	p := &Provider{
		mail:      mail,
		cfg:       cfg,
		log:       logger,
		listeners: make(map[int]identity.Listener),
	}
	if cfg.VerifyExpiry <= 0 {
		p.cfg.VerifyExpiry = 10 * time.Minute
	}
	if store != nil {
		p.creds = store.Collection(credentialsCollection)
	}
	return p
}

func (p *Provider) configured() bool { return p.creds != nil }

// SignIn authenticates email/password and makes the account current.
func (p *Provider) SignIn(ctx context.Context, email, password string) (identity.AuthUser, error) {
	if !p.configured() {
		return identity.AuthUser{}, identity.ErrNotConfigured
	}
	cred, err := p.byEmail(ctx, email)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return identity.AuthUser{}, identity.ErrInvalidCredentials
		}
		return identity.AuthUser{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return identity.AuthUser{}, identity.ErrInvalidCredentials
	}
	u := cred.authUser()
	p.setCurrent(&u)
	return u, nil
}

// SignUp creates an account and signs it in.
func (p *Provider) SignUp(ctx context.Context, email, password string) (identity.AuthUser, error) {
	if !p.configured() {
		return identity.AuthUser{}, identity.ErrNotConfigured
	}
	if _, err := p.byEmail(ctx, email); err == nil {
		return identity.AuthUser{}, ErrEmailTaken
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return identity.AuthUser{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return identity.AuthUser{}, err
	}
	cred := credential{
		UID:          uuid.NewString(),
		Email:        strings.TrimSpace(email),
		EmailCI:      text.Fold(email),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.creds.Set(ctx, cred.UID, cred); err != nil {
		return identity.AuthUser{}, err
	}
	u := cred.authUser()
	p.setCurrent(&u)
	return u, nil
}

// SignOut clears the current session and notifies listeners.
func (p *Provider) SignOut(ctx context.Context) error {
	if !p.configured() {
		return identity.ErrNotConfigured
	}
	p.setCurrent(nil)
	return nil
}

// SetDisplayName updates the display name on the active account.
func (p *Provider) SetDisplayName(ctx context.Context, name string) error {
	if !p.configured() {
		return identity.ErrNotConfigured
	}
	cur, ok := p.CurrentUser()
	if !ok {
		return identity.ErrNoSession
	}
	if err := p.creds.Update(ctx, cur.UID, map[string]any{"display_name": name}); err != nil {
		return err
	}
	p.mu.Lock()
	if p.current != nil && p.current.UID == cur.UID {
		p.current.DisplayName = name
	}
	p.mu.Unlock()
	return nil
}

// SendPasswordReset emails a reset link to the account, if one exists.
// An unknown email is not an error, so the endpoint cannot be used to
// probe for accounts.
func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	if !p.configured() {
		return identity.ErrNotConfigured
	}
	cred, err := p.byEmail(ctx, email)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		return err
	}
	code, err := newCode()
	if err != nil {
		return err
	}
	fields := map[string]any{
		"verify_code":       code,
		"verify_expires_at": time.Now().UTC().Add(p.cfg.VerifyExpiry),
	}
	if err := p.creds.Update(ctx, cred.UID, fields); err != nil {
		return err
	}
	msg := mailer.BuildResetEmail(mailer.ResetEmailData{
		SiteName:  p.cfg.SiteName,
		ResetLink: fmt.Sprintf("%s/reset?uid=%s&code=%s", p.cfg.BaseURL, cred.UID, code),
		ExpiresIn: formatExpiry(p.cfg.VerifyExpiry),
	})
	msg.To = cred.Email
	return p.mail.Send(msg)
}

// SendEmailVerification emails a fresh verification code to the active
// account.
func (p *Provider) SendEmailVerification(ctx context.Context) error {
	if !p.configured() {
		return identity.ErrNotConfigured
	}
	cur, ok := p.CurrentUser()
	if !ok {
		return identity.ErrNoSession
	}
	code, err := newCode()
	if err != nil {
		return err
	}
	fields := map[string]any{
		"verify_code":       code,
		"verify_expires_at": time.Now().UTC().Add(p.cfg.VerifyExpiry),
	}
	if err := p.creds.Update(ctx, cur.UID, fields); err != nil {
		return err
	}
	msg := mailer.BuildVerificationEmail(mailer.VerificationEmailData{
		SiteName:   p.cfg.SiteName,
		Code:       code,
		VerifyLink: fmt.Sprintf("%s/verify?uid=%s&code=%s", p.cfg.BaseURL, cur.UID, code),
		ExpiresIn:  formatExpiry(p.cfg.VerifyExpiry),
	})
	msg.To = cur.Email
	if err := p.mail.Send(msg); err != nil {
		return err
	}
	p.log.Info("verification email sent", zap.String("email", cur.Email), zap.String("uid", cur.UID))
	return nil
}

// ConfirmCode marks the account's email verified if the code matches
// and has not expired. This is what the emailed link lands on.
func (p *Provider) ConfirmCode(ctx context.Context, uid, code string) error {
	if !p.configured() {
		return identity.ErrNotConfigured
	}
	var cred credential
	if err := p.creds.Get(ctx, uid, &cred); err != nil {
		return err
	}
	if cred.VerifyCode == "" || cred.VerifyCode != code || time.Now().UTC().After(cred.VerifyExpiresAt) {
		return ErrBadCode
	}
	fields := map[string]any{
		"email_verified": true,
		"verify_code":    "",
	}
	if err := p.creds.Update(ctx, uid, fields); err != nil {
		return err
	}
	p.mu.Lock()
	if p.current != nil && p.current.UID == uid {
		p.current.EmailVerified = true
	}
	p.mu.Unlock()
	return nil
}

// Reload refreshes the provider's view of the account, in particular
// EmailVerified.
func (p *Provider) Reload(ctx context.Context, uid string) (identity.AuthUser, error) {
	if !p.configured() {
		return identity.AuthUser{}, identity.ErrNotConfigured
	}
	var cred credential
	if err := p.creds.Get(ctx, uid, &cred); err != nil {
		return identity.AuthUser{}, err
	}
	u := cred.authUser()
	p.mu.Lock()
	if p.current != nil && p.current.UID == uid {
		*p.current = u
	}
	p.mu.Unlock()
	return u, nil
}

// CurrentUser returns the active account, if any.
func (p *Provider) CurrentUser() (identity.AuthUser, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return identity.AuthUser{}, false
	}
	return *p.current, true
}

// OnAuthChange registers a listener fired on every sign-in and
// sign-out.
func (p *Provider) OnAuthChange(l identity.Listener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = l
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) setCurrent(u *identity.AuthUser) {
	p.mu.Lock()
	p.current = u
	ls := make([]identity.Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		ls = append(ls, l)
	}
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

func (p *Provider) byEmail(ctx context.Context, email string) (credential, error) {
	var creds []credential
	err := p.creds.Query(ctx, &creds, docstore.Eq("email_ci", text.Fold(email)))
	if err != nil {
		return credential{}, err
	}
	if len(creds) == 0 {
		return credential{}, docstore.ErrNotFound
	}
	return creds[0], nil
}

// newCode returns a 6-digit numeric verification code.
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func formatExpiry(d time.Duration) string {
	if d >= time.Hour {
		return fmt.Sprintf("%d hours", int(d.Hours()))
	}
	return fmt.Sprintf("%d minutes", int(d.Minutes()))
}
