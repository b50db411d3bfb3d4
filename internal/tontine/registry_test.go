package tontine

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"tontine_manager/internal/models"
)

func TestAddMemberRejectsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	group, users := seedGroup(t, env, 3, 10000)

	_, err := env.registry.AddMember(group.ID, users[1].ID, models.GroupRoleMember, nil)
	if !errors.Is(err, ErrDuplicateMembership) {
		t.Fatalf("expected DuplicateMembership, got %v", err)
	}
}

func TestAddMemberRejectsWhenFull(t *testing.T) {
	env := newTestEnv(t)
	group, _ := seedGroup(t, env, 3, 10000)

	if err := env.db.Model(group).Update("max_members", 3).Error; err != nil {
		t.Fatal(err)
	}

	extra := models.User{Email: "extra@example.com", Phone: "+2250000", Password: "x", Role: models.RoleMember, IsActive: true}
	if err := env.db.Create(&extra).Error; err != nil {
		t.Fatal(err)
	}

	_, err := env.registry.AddMember(group.ID, extra.ID, models.GroupRoleMember, nil)
	if !errors.Is(err, ErrGroupFull) {
		t.Fatalf("expected GroupFull, got %v", err)
	}
}

func TestRejoinReactivatesAndKeepsAggregates(t *testing.T) {
	env := newTestEnv(t)
	group, users := seedGroup(t, env, 3, 10000)

	member := reloadMember(t, env, group.ID, users[1].ID)
	if err := env.db.Model(member).Update("total_contributions", decimal.NewFromInt(30000)).Error; err != nil {
		t.Fatal(err)
	}

	if err := env.registry.RemoveMember(group.ID, member.ID, chairOf(users)); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	removed := reloadMember(t, env, group.ID, users[1].ID)
	if removed.IsActive || removed.LeftAt == nil {
		t.Fatalf("expected inactive member with left_at set")
	}

	rejoined, err := env.registry.AddMember(group.ID, users[1].ID, models.GroupRoleMember, nil)
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if rejoined.ID != member.ID {
		t.Fatalf("rejoin created a new row: %d != %d", rejoined.ID, member.ID)
	}
	if !rejoined.IsActive || rejoined.LeftAt != nil {
		t.Fatalf("expected reactivated membership")
	}
	if !rejoined.TotalContributions.Equal(decimal.NewFromInt(30000)) {
		t.Fatalf("aggregates lost on rejoin: %s", rejoined.TotalContributions)
	}
}

func TestRemoveLastChairRefused(t *testing.T) {
	env := newTestEnv(t)
	group, users := seedGroup(t, env, 3, 10000)

	chairMember := reloadMember(t, env, group.ID, users[0].ID)
	err := env.registry.RemoveMember(group.ID, chairMember.ID, chairOf(users))
	if !errors.Is(err, ErrLastManagerConstraint) {
		t.Fatalf("expected LastManagerConstraint, got %v", err)
	}

	// With a second chair the removal goes through.
	role := models.GroupRoleChair
	if _, err := env.registry.UpdateMember(group.ID, reloadMember(t, env, group.ID, users[1].ID).ID, &role, nil); err != nil {
		t.Fatal(err)
	}
	if err := env.registry.RemoveMember(group.ID, chairMember.ID, chairOf(users)); err != nil {
		t.Fatalf("removal with a backup chair should pass, got %v", err)
	}
}

func TestJoinByCode(t *testing.T) {
	env := newTestEnv(t)
	group, _ := seedGroup(t, env, 3, 10000)

	joiner := models.User{Email: "joiner@example.com", Phone: "+2250001", Password: "x", Role: models.RoleMember, IsActive: true}
	if err := env.db.Create(&joiner).Error; err != nil {
		t.Fatal(err)
	}

	member, err := env.registry.JoinByCode(group.JoinCode, joiner.ID)
	if err != nil {
		t.Fatalf("join by code: %v", err)
	}
	if member.Role != models.GroupRoleMember {
		t.Fatalf("join-by-code must grant the plain member role, got %s", member.Role)
	}

	if _, err := env.registry.JoinByCode("NOPE", joiner.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected NotFound for unknown code, got %v", err)
	}
}

func TestListMembersOrdering(t *testing.T) {
	env := newTestEnv(t)
	group, users := seedGroup(t, env, 4, 10000)

	// Give the last joiner the first payout slot.
	pos := 1
	last := reloadMember(t, env, group.ID, users[3].ID)
	if _, err := env.registry.UpdateMember(group.ID, last.ID, nil, &pos); err != nil {
		t.Fatal(err)
	}

	members, err := env.registry.ListMembers(group.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 4 {
		t.Fatalf("expected 4 members, got %d", len(members))
	}
	if members[0].OrderPosition != nil {
		t.Fatalf("unpositioned members sort first, got position %v", *members[0].OrderPosition)
	}
	lastListed := members[len(members)-1]
	if lastListed.UserID != users[3].ID || lastListed.OrderPosition == nil {
		t.Fatalf("positioned member expected last, got user %d", lastListed.UserID)
	}
}
