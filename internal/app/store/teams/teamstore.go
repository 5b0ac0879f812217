// internal/app/store/teams/teamstore.go
package teamstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"go.uber.org/zap"

	"github.com/crewtask/crewtask/internal/app/docstore"
	"github.com/crewtask/crewtask/internal/domain/models"
)

// Store is the team registry over the teams collection.
//
// The registry mutates team documents only. Companion updates to user
// records (team_id, role demotion/promotion) are the caller's job; see
// the teamops package.
type Store struct {
	c   docstore.Collection
	log *zap.Logger
}

var ErrEmptyName = errors.New("team name must not be empty")

func New(db docstore.Store, logger *zap.Logger) *Store {
	return &Store{c: db.Collection("teams"), log: logger}
}

// Create inserts a team with a generated id. Color defaults to the
// deterministic palette pick for the new id.
func (s *Store) Create(ctx context.Context, t models.Team) (models.Team, error) {
	if strings.TrimSpace(t.Name) == "" {
		return models.Team{}, ErrEmptyName
	}
	t.ID = s.c.NewID()
	t.NameCI = text.Fold(t.Name)
	if t.MemberIDs == nil {
		t.MemberIDs = []string{}
	}
	if t.Color == "" {
		t.Color = models.PickTeamColor(t.ID)
	}
	t.CreatedAt = time.Now().UTC()
	if err := s.c.Set(ctx, t.ID, t); err != nil {
		return models.Team{}, err
	}
	return t, nil
}

// GetByID loads a team. Returns docstore.ErrNotFound for an unknown id.
func (s *Store) GetByID(ctx context.Context, id string) (models.Team, error) {
	var t models.Team
	if err := s.c.Get(ctx, id, &t); err != nil {
		return models.Team{}, err
	}
	t.ApplyDefaults()
	return t, nil
}

// List returns all teams, backfilling the color field for documents
// created before colors were persisted. The backfill write is
// best-effort; a failure is logged and the derived color still returned.
func (s *Store) List(ctx context.Context) ([]models.Team, error) {
	var teams []models.Team
	if err := s.c.List(ctx, &teams); err != nil {
		return nil, err
	}
	for i := range teams {
		teams[i].ApplyDefaults()
		if teams[i].Color == "" {
			teams[i].Color = models.PickTeamColor(teams[i].ID)
			if err := s.c.Update(ctx, teams[i].ID, map[string]any{"color": teams[i].Color}); err != nil {
				s.log.Warn("team color backfill failed",
					zap.String("team_id", teams[i].ID), zap.Error(err))
			}
		}
	}
	return teams, nil
}

// AddMember adds userID to the member set. Adding an existing member is
// a no-op, not an error.
func (s *Store) AddMember(ctx context.Context, teamID, userID string) ([]string, error) {
	t, err := s.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	for _, id := range t.MemberIDs {
		if id == userID {
			return t.MemberIDs, nil
		}
	}
	members := append(t.MemberIDs, userID)
	if err := s.c.Update(ctx, teamID, map[string]any{"member_ids": members}); err != nil {
		return nil, err
	}
	return members, nil
}

// RemoveMember removes userID from the member set. Removing an absent
// member is a no-op.
func (s *Store) RemoveMember(ctx context.Context, teamID, userID string) ([]string, error) {
	t, err := s.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	members := make([]string, 0, len(t.MemberIDs))
	for _, id := range t.MemberIDs {
		if id != userID {
			members = append(members, id)
		}
	}
	if len(members) == len(t.MemberIDs) {
		return t.MemberIDs, nil
	}
	if err := s.c.Update(ctx, teamID, map[string]any{"member_ids": members}); err != nil {
		return nil, err
	}
	return members, nil
}

// SetLeader writes the leader reference. An empty leaderID clears it.
// Role and membership cascades live in teamops, not here.
func (s *Store) SetLeader(ctx context.Context, teamID, leaderID string) error {
	return s.c.Update(ctx, teamID, map[string]any{"leader_id": leaderID})
}

// ListByLeader returns the teams led by the given user.
func (s *Store) ListByLeader(ctx context.Context, leaderID string) ([]models.Team, error) {
	var teams []models.Team
	if err := s.c.Query(ctx, &teams, docstore.Eq("leader_id", leaderID)); err != nil {
		return nil, err
	}
	for i := range teams {
		teams[i].ApplyDefaults()
	}
	return teams, nil
}

// ListByMember returns the teams whose member_ids contain the given
// user. Teams the user leads without appearing in member_ids are not
// returned; callers that need the effective-membership view use
// teamtasks.VisibleTeams.
func (s *Store) ListByMember(ctx context.Context, userID string) ([]models.Team, error) {
	var teams []models.Team
	if err := s.c.Query(ctx, &teams, docstore.ArrayContains("member_ids", userID)); err != nil {
		return nil, err
	}
	for i := range teams {
		teams[i].ApplyDefaults()
	}
	return teams, nil
}
