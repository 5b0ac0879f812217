package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"

	"github.com/crewtask/crewtask/internal/app/docstore"
	"github.com/crewtask/crewtask/internal/app/docstore/memdoc"
	"github.com/crewtask/crewtask/internal/domain/models"
)

// NewStore returns a fresh in-memory document store for a test.
func NewStore(t *testing.T) *memdoc.Store {
	t.Helper()
	return memdoc.New()
}

// Fixtures provides helper methods for creating test data. Documents
// are written straight into the backing store, bypassing the store
// layer, so tests can set up states the write paths would normalize
// away.
type Fixtures struct {
	db  docstore.Store
	t   *testing.T
	seq int
}

// NewFixtures creates a new Fixtures instance for the given store.
func NewFixtures(t *testing.T, db docstore.Store) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying store for direct access in tests.
func (f *Fixtures) DB() docstore.Store {
	return f.db
}

func (f *Fixtures) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%04d", prefix, f.seq)
}

// CreateUser creates a test directory record with the given name,
// email, and role. The generated UID doubles as the document ID.
func (f *Fixtures) CreateUser(ctx context.Context, name, email, role string) models.User {
	f.t.Helper()

	user := models.User{
		ID:        f.nextID("user"),
		Name:      name,
		NameCI:    text.Fold(name),
		Email:     email,
		EmailCI:   text.Fold(email),
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}

	if err := f.db.Collection("users").Set(ctx, user.ID, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateWorker creates a test worker user.
func (f *Fixtures) CreateWorker(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, models.RoleWorker)
}

// CreateLeader creates a test leader user.
func (f *Fixtures) CreateLeader(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, models.RoleLeader)
}

// CreateVerifiedUser creates a test user with the verified flag set.
func (f *Fixtures) CreateVerifiedUser(ctx context.Context, name, email, role string) models.User {
	f.t.Helper()

	user := models.User{
		ID:         f.nextID("user"),
		Name:       name,
		NameCI:     text.Fold(name),
		Email:      email,
		EmailCI:    text.Fold(email),
		Role:       role,
		Verified:   1,
		CreatedAt:  time.Now().UTC(),
		VerifiedAt: time.Now().UTC(),
	}

	if err := f.db.Collection("users").Set(ctx, user.ID, user); err != nil {
		f.t.Fatalf("failed to create verified test user: %v", err)
	}

	return user
}

// CreateTeam creates a test team with the given leader and members.
// Pass an empty leaderID for a leaderless team.
func (f *Fixtures) CreateTeam(ctx context.Context, name, leaderID string, memberIDs ...string) models.Team {
	f.t.Helper()

	if memberIDs == nil {
		memberIDs = []string{}
	}
	team := models.Team{
		ID:        f.nextID("team"),
		Name:      name,
		NameCI:    text.Fold(name),
		LeaderID:  leaderID,
		MemberIDs: memberIDs,
		CreatedAt: time.Now().UTC(),
	}
	team.Color = models.PickTeamColor(team.ID)

	if err := f.db.Collection("teams").Set(ctx, team.ID, team); err != nil {
		f.t.Fatalf("failed to create test team: %v", err)
	}

	return team
}

// CreateTask creates a test task for the given team and assignee.
func (f *Fixtures) CreateTask(ctx context.Context, title, teamID, assigneeID string) models.Task {
	f.t.Helper()

	now := time.Now().UTC()
	task := models.Task{
		ID:         f.nextID("task"),
		Title:      title,
		TeamID:     teamID,
		AssigneeID: assigneeID,
		Status:     models.StatusTodo,
		Priority:   models.PriorityMedium,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := f.db.Collection("tasks").Set(ctx, task.ID, task); err != nil {
		f.t.Fatalf("failed to create test task: %v", err)
	}

	return task
}

// CreateTaskDue creates a test task with a due date and status.
func (f *Fixtures) CreateTaskDue(ctx context.Context, title, teamID, assigneeID, status string, due time.Time) models.Task {
	f.t.Helper()

	now := time.Now().UTC()
	task := models.Task{
		ID:         f.nextID("task"),
		Title:      title,
		TeamID:     teamID,
		AssigneeID: assigneeID,
		Status:     status,
		Priority:   models.PriorityMedium,
		DueDate:    &due,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := f.db.Collection("tasks").Set(ctx, task.ID, task); err != nil {
		f.t.Fatalf("failed to create test task: %v", err)
	}

	return task
}
