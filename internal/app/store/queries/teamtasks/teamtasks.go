// internal/app/store/queries/teamtasks/teamtasks.go

// Package teamtasks answers the cross-collection questions dashboards
// ask: which teams can a user see, and which tasks belong on a leader's
// board. It is the single home for the visibility logic the screens
// used to re-derive with differing fallback chains.
package teamtasks

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/crewtask/crewtask/internal/app/docstore"
	taskstore "github.com/crewtask/crewtask/internal/app/store/tasks"
	teamstore "github.com/crewtask/crewtask/internal/app/store/teams"
	"github.com/crewtask/crewtask/internal/domain/models"
)

// Queries bundles the stores the visibility questions span.
type Queries struct {
	teams *teamstore.Store
	tasks *taskstore.Store
	log   *zap.Logger
}

func New(teams *teamstore.Store, tasks *taskstore.Store, logger *zap.Logger) *Queries {
	return &Queries{teams: teams, tasks: tasks, log: logger}
}

// VisibleTeams is the canonical "teams visible to user X" query: teams
// the user leads, plus teams whose member set contains the user. Only
// if the member-array query is rejected by the backend does it degrade
// to scanning all teams for effective membership.
func (q *Queries) VisibleTeams(ctx context.Context, userID string) ([]models.Team, error) {
	led, err := q.teams.ListByLeader(ctx, userID)
	if err != nil {
		return nil, err
	}
	member, err := q.teams.ListByMember(ctx, userID)
	if err != nil {
		if !errors.Is(err, docstore.ErrUnsupportedFilter) {
			return nil, err
		}
		q.log.Warn("member-array query rejected, scanning all teams",
			zap.String("user_id", userID), zap.Error(err))
		all, scanErr := q.teams.List(ctx)
		if scanErr != nil {
			return nil, scanErr
		}
		member = member[:0]
		for _, t := range all {
			if t.HasMember(userID) {
				member = append(member, t)
			}
		}
	}
	return mergeTeams(led, member), nil
}

// LeaderBoard returns the tasks a leader's dashboard shows for one
// team: tasks carrying the team id, plus tasks assigned to any
// effective member regardless of the task's own team id. The union is
// required — a task assigned to a member without the team id set must
// not be hidden.
func (q *Queries) LeaderBoard(ctx context.Context, teamID string) ([]models.Task, error) {
	team, err := q.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	byTeam, err := q.tasks.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	members := make(map[string]struct{})
	for _, id := range team.EffectiveMembers() {
		members[id] = struct{}{}
	}
	all, err := q.tasks.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := byTeam
	seen := make(map[string]struct{}, len(byTeam))
	for _, t := range byTeam {
		seen[t.ID] = struct{}{}
	}
	for _, t := range all {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		if _, ok := members[t.AssigneeID]; ok {
			out = append(out, t)
		}
	}
	if out == nil {
		out = []models.Task{}
	}
	return out, nil
}

// DashboardTasks returns the task list scoped to the given role: a
// worker sees tasks assigned to them, a leader sees the union across
// their visible teams' boards, admins and the superadmin see all tasks.
func (q *Queries) DashboardTasks(ctx context.Context, role, userID string) ([]models.Task, error) {
	switch role {
	case models.RoleSuperAdmin, models.RoleAdmin:
		return q.tasks.ListAll(ctx)
	case models.RoleLeader:
		teams, err := q.VisibleTeams(ctx, userID)
		if err != nil {
			return nil, err
		}
		out := []models.Task{}
		seen := make(map[string]struct{})
		for _, team := range teams {
			board, err := q.LeaderBoard(ctx, team.ID)
			if err != nil {
				return nil, err
			}
			for _, t := range board {
				if _, dup := seen[t.ID]; dup {
					continue
				}
				seen[t.ID] = struct{}{}
				out = append(out, t)
			}
		}
		return out, nil
	default:
		return q.tasks.ListByAssignee(ctx, userID)
	}
}

func mergeTeams(a, b []models.Team) []models.Team {
	out := make([]models.Team, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]models.Team{a, b} {
		for _, t := range list {
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
