package notify

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tontine_manager/internal/config"
	"tontine_manager/internal/models"
)

func newDispatcherEnv(t *testing.T) (*gorm.DB, *Dispatcher) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	d := NewDispatcher(db, map[models.NotificationChannel]Sender{
		models.ChannelInApp: InAppSender{},
		models.ChannelSMS:   &SMSSender{},
	}, 16)
	d.Start()
	return db, d
}

func seedUser(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	user := models.User{
		Email: "awa@example.com", Phone: "+22507000001", Password: "x",
		FirstName: "Awa", LastName: "Traore", Role: models.RoleMember, IsActive: true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}
	return user
}

func TestDispatcherPersistsAndSends(t *testing.T) {
	db, d := newDispatcherEnv(t)
	user := seedUser(t, db)

	groupID := uint(7)
	d.Enqueue(user.ID, models.ChannelInApp, PaymentConfirmationVars{
		GroupName: "Djigui",
		Amount:    decimal.NewFromInt(10000),
		Currency:  "FCFA",
	}, Refs{GroupID: &groupID})
	d.Stop()

	var rows []models.Notification
	if err := db.Where("user_id = ?", user.ID).Find(&rows).Error; err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(rows))
	}
	n := rows[0]
	if n.Type != models.NotifyPaymentConfirmation || n.Status != models.NotificationSent {
		t.Fatalf("notification %s in status %s", n.Type, n.Status)
	}
	if n.GroupID == nil || *n.GroupID != groupID {
		t.Fatalf("group ref lost: %v", n.GroupID)
	}
	if n.SentAt == nil || n.Title == "" || n.Message == "" {
		t.Fatalf("sent notification missing fields: %+v", n)
	}
}

func TestDispatcherDropsInvalidVars(t *testing.T) {
	db, d := newDispatcherEnv(t)
	user := seedUser(t, db)

	d.Enqueue(user.ID, models.ChannelInApp, PaymentConfirmationVars{}, Refs{})
	d.Stop()

	var count int64
	if err := db.Model(&models.Notification{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("invalid vars produced %d notifications", count)
	}
}

func TestReminderTriggersPersist(t *testing.T) {
	db, d := newDispatcherEnv(t)
	user := seedUser(t, db)

	group := models.Group{
		Name:               "Djigui",
		JoinCode:           "JC000001",
		ContributionAmount: decimal.NewFromInt(10000),
		PenaltyAmount:      decimal.NewFromInt(500),
		Currency:           "FCFA",
		IsActive:           true,
	}
	if err := db.Create(&group).Error; err != nil {
		t.Fatal(err)
	}
	member := models.Member{GroupID: group.ID, UserID: user.ID, IsActive: true, JoinedAt: time.Now()}
	if err := db.Create(&member).Error; err != nil {
		t.Fatal(err)
	}
	session := models.Session{GroupID: group.ID, SessionNumber: 1, DueDate: time.Now().AddDate(0, 0, 3)}
	if err := db.Create(&session).Error; err != nil {
		t.Fatal(err)
	}

	d.ContributionReminder(&group, &session, &member)
	d.LateAlert(&group, &session, &member)
	d.Stop()

	var rows []models.Notification
	if err := db.Where("user_id = ?", user.ID).Order("id").Find(&rows).Error; err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(rows))
	}
	if rows[0].Type != models.NotifyContributionReminder || rows[1].Type != models.NotifyLateAlert {
		t.Fatalf("types %s / %s, want reminder then late alert", rows[0].Type, rows[1].Type)
	}
	for _, n := range rows {
		if n.SessionID == nil || *n.SessionID != session.ID {
			t.Fatalf("session ref lost: %+v", n)
		}
	}
}

func TestMarkReadScopedToOwner(t *testing.T) {
	db, d := newDispatcherEnv(t)
	user := seedUser(t, db)

	d.Enqueue(user.ID, models.ChannelInApp, NewMemberVars{GroupName: "Djigui", NewMemberName: "Moussa"}, Refs{})
	d.Stop()

	var n models.Notification
	if err := db.Where("user_id = ?", user.ID).First(&n).Error; err != nil {
		t.Fatal(err)
	}

	// A different user cannot mark it.
	if err := d.MarkRead(n.ID, user.ID+1); err != nil {
		t.Fatal(err)
	}
	var after models.Notification
	if err := db.First(&after, n.ID).Error; err != nil {
		t.Fatal(err)
	}
	if after.Status == models.NotificationRead {
		t.Fatal("foreign user marked the notification read")
	}

	if err := d.MarkRead(n.ID, user.ID); err != nil {
		t.Fatal(err)
	}
	if err := db.First(&after, n.ID).Error; err != nil {
		t.Fatal(err)
	}
	if after.Status != models.NotificationRead || after.ReadAt == nil {
		t.Fatalf("owner mark-read did not stick: %s", after.Status)
	}
}
