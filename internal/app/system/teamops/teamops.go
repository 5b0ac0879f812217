// internal/app/system/teamops/teamops.go

// Package teamops is the orchestration layer screens call for team
// mutations that must keep the user directory consistent with team
// membership: leader changes cascade role promotions/demotions, member
// changes cascade team assignments.
//
// There is no transaction underneath. Steps run best-effort in order; a
// failed step never rolls back earlier steps, and every failure is
// surfaced independently so the caller can retry just that step.
package teamops

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	teamstore "github.com/crewtask/crewtask/internal/app/store/teams"
	userstore "github.com/crewtask/crewtask/internal/app/store/users"
	"github.com/crewtask/crewtask/internal/domain/models"
)

// Service bundles the stores the cascades span.
type Service struct {
	users *userstore.Store
	teams *teamstore.Store
	log   *zap.Logger
}

func New(users *userstore.Store, teams *teamstore.Store, logger *zap.Logger) *Service {
	return &Service{users: users, teams: teams, log: logger}
}

// StepError reports one failed cascade step.
type StepError struct {
	Step string
	Err  error
}

func (e StepError) Error() string { return fmt.Sprintf("%s: %v", e.Step, e.Err) }
func (e StepError) Unwrap() error { return e.Err }

// SetLeader makes newLeaderID the leader of the team, in order:
// demote the previous leader (if different and they held the leader
// role), release any other team the new leader was leading, set the
// leader on the team, promote the new leader's role, ensure the leader
// is in the member set, and point the leader's team assignment at the
// team.
//
// The returned slice holds the failed steps; an empty slice means the
// whole cascade landed.
func (s *Service) SetLeader(ctx context.Context, teamID, newLeaderID string) ([]StepError, error) {
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}

	var failed []StepError
	fail := func(step string, err error) {
		failed = append(failed, StepError{Step: step, Err: err})
		s.log.Warn("set-leader step failed",
			zap.String("team_id", teamID),
			zap.String("new_leader_id", newLeaderID),
			zap.String("step", step),
			zap.Error(err))
	}

	// Demote the outgoing leader, but only if they actually held the
	// leader role; admins loaned out as leaders keep their role.
	if team.LeaderID != "" && team.LeaderID != newLeaderID {
		prev, err := s.users.GetByID(ctx, team.LeaderID)
		if err != nil {
			fail("load previous leader", err)
		} else if prev.Role == models.RoleLeader {
			if err := s.users.UpdateRole(ctx, team.LeaderID, models.RoleWorker); err != nil {
				fail("demote previous leader", err)
			}
		}
	}

	// A user leads at most one team; release any other team still
	// pointing at the new leader.
	if newLeaderID != "" {
		others, err := s.teams.ListByLeader(ctx, newLeaderID)
		if err != nil {
			fail("list teams led by new leader", err)
		} else {
			for _, other := range others {
				if other.ID == teamID {
					continue
				}
				if err := s.teams.SetLeader(ctx, other.ID, ""); err != nil {
					fail("release previous team "+other.ID, err)
				}
			}
		}
	}

	if err := s.teams.SetLeader(ctx, teamID, newLeaderID); err != nil {
		fail("set team leader", err)
	}

	if newLeaderID != "" {
		if err := s.users.UpdateRole(ctx, newLeaderID, models.RoleLeader); err != nil {
			fail("promote new leader", err)
		}
		if !team.HasMember(newLeaderID) {
			if _, err := s.teams.AddMember(ctx, teamID, newLeaderID); err != nil {
				fail("add leader to members", err)
			}
		}
		if err := s.users.UpdateTeam(ctx, newLeaderID, teamID); err != nil {
			fail("assign leader team", err)
		}
	}

	return failed, nil
}

// Roster returns the directory records for a team's effective members.
// Dangling member ids (no directory record) are skipped.
func (s *Service) Roster(ctx context.Context, teamID string) ([]models.User, error) {
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return s.users.GetByIDs(ctx, team.EffectiveMembers())
}

// AddMember adds the user to the team and points their directory record
// at it.
func (s *Service) AddMember(ctx context.Context, teamID, userID string) ([]StepError, error) {
	if _, err := s.teams.AddMember(ctx, teamID, userID); err != nil {
		return nil, err
	}
	var failed []StepError
	if err := s.users.UpdateTeam(ctx, userID, teamID); err != nil {
		failed = append(failed, StepError{Step: "assign member team", Err: err})
		s.log.Warn("add-member companion update failed",
			zap.String("team_id", teamID), zap.String("user_id", userID), zap.Error(err))
	}
	return failed, nil
}

// RemoveMember removes the user from the team and clears their team
// assignment. Removing the team's leader also demotes their role to
// worker and clears the team's leader reference.
func (s *Service) RemoveMember(ctx context.Context, teamID, userID string) ([]StepError, error) {
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if _, err := s.teams.RemoveMember(ctx, teamID, userID); err != nil {
		return nil, err
	}

	var failed []StepError
	fail := func(step string, err error) {
		failed = append(failed, StepError{Step: step, Err: err})
		s.log.Warn("remove-member step failed",
			zap.String("team_id", teamID), zap.String("user_id", userID),
			zap.String("step", step), zap.Error(err))
	}

	if err := s.users.UpdateTeam(ctx, userID, ""); err != nil {
		fail("clear member team", err)
	}
	if team.LeaderID == userID {
		if err := s.users.UpdateRole(ctx, userID, models.RoleWorker); err != nil {
			fail("demote removed leader", err)
		}
		if err := s.teams.SetLeader(ctx, teamID, ""); err != nil {
			fail("clear team leader", err)
		}
	}
	return failed, nil
}
