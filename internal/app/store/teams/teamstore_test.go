package teamstore_test

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/crewtask/crewtask/internal/app/docstore"
	teamstore "github.com/crewtask/crewtask/internal/app/store/teams"
	"github.com/crewtask/crewtask/internal/domain/models"
	"github.com/crewtask/crewtask/internal/testutil"
)

func TestStore_Create(t *testing.T) {
	db := testutil.NewStore(t)
	store := teamstore.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Team{Name: "Night Crew"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == "" {
		t.Error("expected ID to be assigned")
	}
	if created.Color != models.PickTeamColor(created.ID) {
		t.Errorf("expected deterministic color for id, got %q", created.Color)
	}
	if created.MemberIDs == nil {
		t.Error("expected MemberIDs initialized")
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestStore_Create_EmptyName(t *testing.T) {
	db := testutil.NewStore(t)
	store := teamstore.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.Team{Name: "   "}); !errors.Is(err, teamstore.ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
}

func TestStore_Create_KeepsExplicitColor(t *testing.T) {
	db := testutil.NewStore(t)
	store := teamstore.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Team{Name: "Crew", Color: "#facc15"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Color != "#facc15" {
		t.Errorf("expected explicit color kept, got %q", created.Color)
	}
}

func TestStore_List_BackfillsColor(t *testing.T) {
	db := testutil.NewStore(t)
	store := teamstore.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// A pre-palette document with no color field.
	if err := db.Collection("teams").Set(ctx, "team-old", models.Team{
		ID:   "team-old",
		Name: "Old Crew",
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	teams, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(teams) != 1 {
		t.Fatalf("expected 1 team, got %d", len(teams))
	}
	want := models.PickTeamColor("team-old")
	if teams[0].Color != want {
		t.Errorf("Color: got %q, want %q", teams[0].Color, want)
	}

	// The backfill writes the derived color so the next read needs no
	// derivation.
	got, err := store.GetByID(ctx, "team-old")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Color != want {
		t.Errorf("expected persisted color %q, got %q", want, got.Color)
	}
}

func TestStore_AddMember_Idempotent(t *testing.T) {
	db := testutil.NewStore(t)
	store := teamstore.New(db, zap.NewNop())
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	team := fixtures.CreateTeam(ctx, "Crew", "")

	members, err := store.AddMember(ctx, team.ID, "w-1")
	if err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if len(members) != 1 || members[0] != "w-1" {
		t.Errorf("members: got %v", members)
	}

	members, err = store.AddMember(ctx, team.ID, "w-1")
	if err != nil {
		t.Fatalf("second AddMember failed: %v", err)
	}
	if len(members) != 1 {
		t.Errorf("expected duplicate add to be a no-op, got %v", members)
	}
}

func TestStore_RemoveMember_Idempotent(t *testing.T) {
	db := testutil.NewStore(t)
	store := teamstore.New(db, zap.NewNop())
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	team := fixtures.CreateTeam(ctx, "Crew", "", "w-1", "w-2")

	members, err := store.RemoveMember(ctx, team.ID, "w-1")
	if err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	if len(members) != 1 || members[0] != "w-2" {
		t.Errorf("members: got %v", members)
	}

	members, err = store.RemoveMember(ctx, team.ID, "w-1")
	if err != nil {
		t.Fatalf("second RemoveMember failed: %v", err)
	}
	if len(members) != 1 {
		t.Errorf("expected absent removal to be a no-op, got %v", members)
	}
}

func TestStore_RemoveMember_UnknownTeam(t *testing.T) {
	db := testutil.NewStore(t)
	store := teamstore.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.RemoveMember(ctx, "missing", "w-1"); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_SetLeader(t *testing.T) {
	db := testutil.NewStore(t)
	store := teamstore.New(db, zap.NewNop())
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	team := fixtures.CreateTeam(ctx, "Crew", "lead-old")

	if err := store.SetLeader(ctx, team.ID, "lead-new"); err != nil {
		t.Fatalf("SetLeader failed: %v", err)
	}
	got, _ := store.GetByID(ctx, team.ID)
	if got.LeaderID != "lead-new" {
		t.Errorf("LeaderID: got %q, want %q", got.LeaderID, "lead-new")
	}

	if err := store.SetLeader(ctx, team.ID, ""); err != nil {
		t.Fatalf("SetLeader clear failed: %v", err)
	}
	got, _ = store.GetByID(ctx, team.ID)
	if got.LeaderID != "" {
		t.Errorf("expected leader cleared, got %q", got.LeaderID)
	}
}

func TestStore_ListByLeaderAndMember(t *testing.T) {
	db := testutil.NewStore(t)
	store := teamstore.New(db, zap.NewNop())
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	led := fixtures.CreateTeam(ctx, "Led", "lead-1")
	joined := fixtures.CreateTeam(ctx, "Joined", "lead-2", "lead-1", "w-1")
	fixtures.CreateTeam(ctx, "Other", "lead-3", "w-2")

	teams, err := store.ListByLeader(ctx, "lead-1")
	if err != nil {
		t.Fatalf("ListByLeader failed: %v", err)
	}
	if len(teams) != 1 || teams[0].ID != led.ID {
		t.Errorf("ListByLeader: got %v", teams)
	}

	teams, err = store.ListByMember(ctx, "lead-1")
	if err != nil {
		t.Fatalf("ListByMember failed: %v", err)
	}
	if len(teams) != 1 || teams[0].ID != joined.ID {
		t.Errorf("ListByMember: got %v", teams)
	}
}
