package tontine

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tontine_manager/internal/models"
)

// SessionEngine governs the collection-cycle lifecycle.
type SessionEngine struct {
	db       *gorm.DB
	notifier Notifier
}

func NewSessionEngine(db *gorm.DB, notifier Notifier) *SessionEngine {
	return &SessionEngine{db: db, notifier: notifier}
}

// Create opens a new cycle in scheduled state. The expected amount is the
// contribution times the active member count at creation time and is frozen
// afterwards, even if membership changes.
func (e *SessionEngine) Create(groupID uint, scheduledDate, dueDate time.Time, beneficiaryID *uint, notes string, actor Actor) (*models.Session, error) {
	if dueDate.Before(scheduledDate) {
		return nil, ErrValidation
	}

	var session *models.Session
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := requireManager(tx, groupID, actor); err != nil {
			return err
		}

		var group models.Group
		if err := tx.Preload("Members").First(&group, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		// The beneficiary, when set up front, must be an active member.
		if beneficiaryID != nil {
			if _, err := activeMembership(tx, groupID, *beneficiaryID); err != nil {
				return err
			}
		}

		var last models.Session
		number := 1
		err := tx.Where("group_id = ?", groupID).Order("session_number DESC").First(&last).Error
		if err == nil {
			number = last.SessionNumber + 1
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		expected := group.ContributionAmount.Mul(decimal.NewFromInt(int64(group.ActiveMemberCount())))

		session = &models.Session{
			GroupID:         groupID,
			SessionNumber:   number,
			ScheduledDate:   scheduledDate,
			DueDate:         dueDate,
			Status:          models.SessionScheduled,
			ExpectedAmount:  expected,
			CollectedAmount: decimal.Zero,
			BeneficiaryID:   beneficiaryID,
			Notes:           notes,
		}
		return tx.Create(session).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"group_id":        groupID,
		"session_number":  session.SessionNumber,
		"expected_amount": session.ExpectedAmount.String(),
	}).Info("session created")
	return session, nil
}

// Open starts collecting. Legal only from scheduled. The session-opened
// trigger is emitted after commit and never awaited.
func (e *SessionEngine) Open(sessionID uint, actor Actor) (*models.Session, error) {
	var session models.Session
	var group models.Group
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := requireManager(tx, session.GroupID, actor); err != nil {
			return err
		}
		if !session.Status.CanTransitionTo(models.SessionOpen) {
			return ErrInvalidTransition
		}
		now := time.Now().UTC()
		session.Status = models.SessionOpen
		session.OpenedAt = &now
		if err := tx.Save(&session).Error; err != nil {
			return err
		}
		return tx.First(&group, session.GroupID).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithField("session_id", sessionID).Info("session opened")
	e.notifier.SessionOpened(&group, &session)
	return &session, nil
}

// Close ends collection. Without force it refuses while the collected amount
// is below the expected amount.
func (e *SessionEngine) Close(sessionID uint, force bool, notes string, actor Actor) (*models.Session, error) {
	var session models.Session
	var group models.Group
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := requireManager(tx, session.GroupID, actor); err != nil {
			return err
		}
		if session.Status != models.SessionOpen {
			return ErrInvalidTransition
		}
		if !force && !session.IsComplete() {
			return ErrIncompleteCollection
		}
		now := time.Now().UTC()
		session.Status = models.SessionClosed
		session.ClosedAt = &now
		if notes != "" {
			session.Notes = notes
		}
		if err := tx.Save(&session).Error; err != nil {
			return err
		}
		return tx.First(&group, session.GroupID).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"collected":  session.CollectedAmount.String(),
		"forced":     force,
	}).Info("session closed")
	e.notifier.SessionClosed(&group, &session)
	return &session, nil
}

// Cancel voids a session that never opened. Open or closed sessions cannot
// be cancelled through this path so in-flight payments are never orphaned.
func (e *SessionEngine) Cancel(sessionID uint, actor Actor) (*models.Session, error) {
	var session models.Session
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := requireManager(tx, session.GroupID, actor); err != nil {
			return err
		}
		if session.Status != models.SessionScheduled {
			return ErrInvalidTransition
		}
		session.Status = models.SessionCancelled
		return tx.Save(&session).Error
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GenerateSessions bulk-creates one session per active member, each member
// in turn as beneficiary ordered by payout position, dates advancing by the
// group frequency, due date = scheduled date + grace period.
func (e *SessionEngine) GenerateSessions(groupID uint, actor Actor) ([]models.Session, error) {
	var sessions []models.Session
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := requireManager(tx, groupID, actor); err != nil {
			return err
		}

		var group models.Group
		if err := tx.Preload("Members").First(&group, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var existing int64
		if err := tx.Model(&models.Session{}).Where("group_id = ?", groupID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrSessionsAlreadyExist
		}

		active := make([]models.Member, 0, len(group.Members))
		for _, m := range group.Members {
			if m.IsActive {
				active = append(active, m)
			}
		}
		if len(active) < group.MinMembers {
			return ErrInsufficientMembers
		}

		// Beneficiary rotation follows the payout position; members without
		// one sort last, tie-broken by join date then id so the order is
		// stable across runs.
		sort.SliceStable(active, func(i, j int) bool {
			pi, pj := active[i].OrderPosition, active[j].OrderPosition
			switch {
			case pi != nil && pj != nil && *pi != *pj:
				return *pi < *pj
			case pi != nil && pj == nil:
				return true
			case pi == nil && pj != nil:
				return false
			}
			if !active[i].JoinedAt.Equal(active[j].JoinedAt) {
				return active[i].JoinedAt.Before(active[j].JoinedAt)
			}
			return active[i].ID < active[j].ID
		})

		expected := group.ContributionAmount.Mul(decimal.NewFromInt(int64(len(active))))

		date := group.StartDate
		for i, member := range active {
			beneficiaryID := member.UserID
			session := models.Session{
				GroupID:         groupID,
				SessionNumber:   i + 1,
				ScheduledDate:   date,
				DueDate:         date.AddDate(0, 0, group.GracePeriodDays),
				Status:          models.SessionScheduled,
				ExpectedAmount:  expected,
				CollectedAmount: decimal.Zero,
				BeneficiaryID:   &beneficiaryID,
			}
			if err := tx.Create(&session).Error; err != nil {
				return err
			}
			sessions = append(sessions, session)
			date = group.Frequency.AddTo(group.StartDate, i+1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"group_id": groupID,
		"count":    len(sessions),
	}).Info("sessions generated")
	return sessions, nil
}

// RemindPending nudges every active member without a live payment for the
// session: a contribution reminder while the due date has not passed, a late
// alert once it has. Manager-only, open sessions only. Returns how many
// members were notified.
func (e *SessionEngine) RemindPending(sessionID uint, actor Actor) (int, error) {
	var session models.Session
	var group models.Group
	var pending []models.Member
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Payments").First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := requireManager(tx, session.GroupID, actor); err != nil {
			return err
		}
		if session.Status != models.SessionOpen {
			return ErrSessionNotOpen
		}
		if err := tx.First(&group, session.GroupID).Error; err != nil {
			return err
		}

		covered := make(map[uint]bool)
		for _, p := range session.Payments {
			if p.Status.BlocksNewAttempt() {
				covered[p.UserID] = true
			}
		}

		var members []models.Member
		if err := tx.Where("group_id = ? AND is_active = ?", session.GroupID, true).
			Order("joined_at").Find(&members).Error; err != nil {
			return err
		}
		for _, m := range members {
			if !covered[m.UserID] {
				pending = append(pending, m)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	late := time.Now().UTC().After(session.DueDate)
	for i := range pending {
		if late {
			e.notifier.LateAlert(&group, &session, &pending[i])
		} else {
			e.notifier.ContributionReminder(&group, &session, &pending[i])
		}
	}

	logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"notified":   len(pending),
		"late":       late,
	}).Info("contribution reminders dispatched")
	return len(pending), nil
}

// SessionStats is the read-side collection summary of one session.
type SessionStats struct {
	SessionID          uint            `json:"session_id"`
	ExpectedPayments   int             `json:"expected_payments"`
	ReceivedPayments   int             `json:"received_payments"`
	MissingPayments    int             `json:"missing_payments"`
	ExpectedAmount     decimal.Decimal `json:"expected_amount"`
	CollectedAmount    decimal.Decimal `json:"collected_amount"`
	CollectionRate     float64         `json:"collection_rate"`
	LatePayments       int             `json:"late_payments"`
	PenaltiesCollected decimal.Decimal `json:"penalties_collected"`
	PendingUserIDs     []uint          `json:"pending_user_ids"`
}

// Stats recomputes the per-session collection summary from payments, which
// doubles as the audit path for the denormalized collected amount.
func (e *SessionEngine) Stats(sessionID uint) (*SessionStats, error) {
	var session models.Session
	if err := e.db.Preload("Payments").First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var members []models.Member
	if err := e.db.Where("group_id = ? AND is_active = ?", session.GroupID, true).Find(&members).Error; err != nil {
		return nil, err
	}

	paid := make(map[uint]bool)
	late := 0
	penalties := decimal.Zero
	for _, p := range session.Payments {
		if p.Status != models.PaymentValidated {
			continue
		}
		paid[p.UserID] = true
		penalties = penalties.Add(p.PenaltyAmount)
		if p.IsLate {
			late++
		}
	}

	stats := &SessionStats{
		SessionID:          session.ID,
		ExpectedPayments:   len(members),
		ReceivedPayments:   len(paid),
		ExpectedAmount:     session.ExpectedAmount,
		CollectedAmount:    session.CollectedAmount,
		CollectionRate:     session.CollectionPercentage(),
		LatePayments:       late,
		PenaltiesCollected: penalties,
	}
	for _, m := range members {
		if !paid[m.UserID] {
			stats.PendingUserIDs = append(stats.PendingUserIDs, m.UserID)
		}
	}
	stats.MissingPayments = len(stats.PendingUserIDs)
	return stats, nil
}

// RecomputeCollected re-derives collected_amount from validated payments.
// Repair/audit path only; transactions that validate payments keep the
// running total as the source of truth.
func (e *SessionEngine) RecomputeCollected(sessionID uint) (decimal.Decimal, error) {
	var payments []models.Payment
	err := e.db.Where("session_id = ? AND status = ?", sessionID, models.PaymentValidated).Find(&payments).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total, nil
}
