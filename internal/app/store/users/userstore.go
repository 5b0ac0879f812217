// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/waffle/pantry/text"

	"github.com/crewtask/crewtask/internal/app/docstore"
	"github.com/crewtask/crewtask/internal/domain/models"
)

// Store is the user directory over the users collection. Documents are
// keyed by the identity provider's subject ID.
type Store struct {
	c docstore.Collection
}

var ErrBadRole = errors.New(`role must be "superadmin"|"admin"|"leader"|"worker"`)

func New(db docstore.Store) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads a directory record by provider UID. Returns
// docstore.ErrNotFound if there is no record.
func (s *Store) GetByID(ctx context.Context, uid string) (models.User, error) {
	var u models.User
	if err := s.c.Get(ctx, uid, &u); err != nil {
		return models.User{}, err
	}
	u.ApplyDefaults()
	return u, nil
}

// GetByEmail looks up a record by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var users []models.User
	if err := s.c.Query(ctx, &users, docstore.Eq("email_ci", text.Fold(email))); err != nil {
		return models.User{}, err
	}
	if len(users) == 0 {
		return models.User{}, docstore.ErrNotFound
	}
	u := users[0]
	u.ApplyDefaults()
	return u, nil
}

// Create writes a new directory record after normalizing and validating
// fields. The caller supplies the provider UID as u.ID.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	if !models.ValidRole(u.Role) {
		return models.User{}, ErrBadRole
	}
	u.NameCI = text.Fold(u.Name)
	u.EmailCI = text.Fold(u.Email)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if err := s.c.Set(ctx, u.ID, u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// List returns every directory record.
func (s *Store) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.c.List(ctx, &users); err != nil {
		return nil, err
	}
	for i := range users {
		users[i].ApplyDefaults()
	}
	return users, nil
}

// UpdateRole changes a user's role. Returns docstore.ErrNotFound for an
// unknown UID.
func (s *Store) UpdateRole(ctx context.Context, uid, role string) error {
	if !models.ValidRole(role) {
		return ErrBadRole
	}
	return s.c.Update(ctx, uid, map[string]any{"role": role})
}

// UpdateTeam changes a user's team assignment. An empty teamID clears
// the assignment.
func (s *Store) UpdateTeam(ctx context.Context, uid, teamID string) error {
	return s.c.Update(ctx, uid, map[string]any{"team_id": teamID})
}

// MarkVerified sets the cached verified flag on an existing record.
func (s *Store) MarkVerified(ctx context.Context, uid string, at time.Time) error {
	return s.c.Update(ctx, uid, map[string]any{
		"verified":    1,
		"verified_at": at.UTC(),
	})
}

// MergeVerified is the merge-write fallback for MarkVerified: it sets
// the flag even if the record is missing, creating a partial document
// the self-healing path fills in later.
func (s *Store) MergeVerified(ctx context.Context, uid string, at time.Time) error {
	return s.c.Merge(ctx, uid, map[string]any{
		"verified":    1,
		"verified_at": at.UTC(),
	})
}
