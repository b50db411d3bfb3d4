package tontine

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tontine_manager/internal/config"
	"tontine_manager/internal/models"
	"tontine_manager/internal/momo"
)

var seedCounter atomic.Uint64

type testEnv struct {
	db       *gorm.DB
	registry *Registry
	sessions *SessionEngine
	payouts  *PayoutEngine
	payments *PaymentEngine
}

// newTestEnv opens a throwaway SQLite database and wires all engines against
// it with a no-op notifier and no payment operators.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, momo.NewRegistryWith(map[models.PaymentMethod]momo.Provider{}))
}

func newTestEnvWith(t *testing.T, providers *momo.Registry) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	nop := NopNotifier{}
	return &testEnv{
		db:       db,
		registry: NewRegistry(db, nop),
		sessions: NewSessionEngine(db, nop),
		payouts:  NewPayoutEngine(db, nop),
		payments: NewPaymentEngine(db, nop, providers),
	}
}

// seedGroup creates n users and a group with all of them enrolled, the first
// as chair. Contribution is in whole currency units.
func seedGroup(t *testing.T, env *testEnv, n int, contribution int64) (*models.Group, []models.User) {
	t.Helper()

	tag := seedCounter.Add(1)
	users := make([]models.User, n)
	for i := range users {
		users[i] = models.User{
			Email:     fmt.Sprintf("user%d.%d@example.com", tag, i+1),
			Password:  "not-a-real-hash",
			Phone:     fmt.Sprintf("+2250%03d%04d", tag%1000, i+1),
			FirstName: fmt.Sprintf("User%d", i+1),
			LastName:  fmt.Sprintf("%c-Family", 'A'+i%26),
			Role:      models.RoleMember,
			IsActive:  true,
		}
		if err := env.db.Create(&users[i]).Error; err != nil {
			t.Fatalf("seed user %d: %v", i+1, err)
		}
	}

	group := models.Group{
		Name:               fmt.Sprintf("Group %d", tag),
		JoinCode:           fmt.Sprintf("JC%06d", tag),
		Frequency:          models.FrequencyMonthly,
		ContributionAmount: decimal.NewFromInt(contribution),
		Currency:           "FCFA",
		MinMembers:         2,
		MaxMembers:         12,
		StartDate:          time.Now().UTC(),
		PenaltyAmount:      decimal.Zero,
		GracePeriodDays:    3,
		IsActive:           true,
		CreatedByID:        users[0].ID,
	}
	if err := env.db.Create(&group).Error; err != nil {
		t.Fatalf("seed group: %v", err)
	}

	for i, u := range users {
		role := models.GroupRoleMember
		if i == 0 {
			role = models.GroupRoleChair
		}
		if _, err := env.registry.AddMember(group.ID, u.ID, role, nil); err != nil {
			t.Fatalf("enroll user %d: %v", i+1, err)
		}
	}
	return &group, users
}

func chairOf(users []models.User) Actor {
	return Actor{UserID: users[0].ID, Role: models.RoleMember}
}

// openSession creates and opens a session with a due date one week out.
func openSession(t *testing.T, env *testEnv, group *models.Group, chair Actor) *models.Session {
	t.Helper()

	now := time.Now().UTC()
	session, err := env.sessions.Create(group.ID, now, now.AddDate(0, 0, 7), nil, "", chair)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	session, err = env.sessions.Open(session.ID, chair)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return session
}

func reloadSession(t *testing.T, env *testEnv, id uint) *models.Session {
	t.Helper()
	var session models.Session
	if err := env.db.First(&session, id).Error; err != nil {
		t.Fatalf("reload session %d: %v", id, err)
	}
	return &session
}

func reloadMember(t *testing.T, env *testEnv, groupID, userID uint) *models.Member {
	t.Helper()
	var member models.Member
	err := env.db.Where("group_id = ? AND user_id = ?", groupID, userID).First(&member).Error
	if err != nil {
		t.Fatalf("reload member: %v", err)
	}
	return &member
}

// assertCollectedMatchesValidated checks the running-total invariant against
// a recount of the session's validated payments.
func assertCollectedMatchesValidated(t *testing.T, env *testEnv, sessionID uint) {
	t.Helper()
	session := reloadSession(t, env, sessionID)
	recomputed, err := env.sessions.RecomputeCollected(sessionID)
	if err != nil {
		t.Fatalf("recompute collected: %v", err)
	}
	if !session.CollectedAmount.Equal(recomputed) {
		t.Fatalf("collected_amount %s diverged from validated sum %s",
			session.CollectedAmount, recomputed)
	}
}
