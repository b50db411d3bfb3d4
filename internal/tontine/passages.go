package tontine

import (
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tontine_manager/internal/models"
)

// OrderStrategy selects how the payout order is generated. Each strategy is
// a pure function of the member set (and the seed, for random).
type OrderStrategy string

const (
	OrderRandom       OrderStrategy = "random"
	OrderAlphabetical OrderStrategy = "alphabetical"
	OrderJoinDate     OrderStrategy = "join_date"
)

func (s OrderStrategy) Valid() bool {
	return s == OrderRandom || s == OrderAlphabetical || s == OrderJoinDate
}

// OrderPair assigns one member to one slot when reordering.
type OrderPair struct {
	MemberID    uint `json:"member_id" binding:"required"`
	OrderNumber int  `json:"order_number" binding:"required"`
}

// PayoutEngine generates and mutates the passage sequence of a group.
type PayoutEngine struct {
	db       *gorm.DB
	notifier Notifier
}

func NewPayoutEngine(db *gorm.DB, notifier Notifier) *PayoutEngine {
	return &PayoutEngine{db: db, notifier: notifier}
}

// orderMembers returns the active members in payout order for the strategy.
// Sorts are stable; the random shuffle is reproducible for a given seed.
func orderMembers(members []models.Member, strategy OrderStrategy, seed int64) []models.Member {
	ordered := make([]models.Member, len(members))
	copy(ordered, members)

	switch strategy {
	case OrderRandom:
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	case OrderAlphabetical:
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].User.LastName < ordered[j].User.LastName
		})
	case OrderJoinDate:
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].JoinedAt.Before(ordered[j].JoinedAt)
		})
	}
	return ordered
}

// GenerateOrder creates one passage per active member, numbered 1..N with no
// gaps, scheduled by advancing from the group start date one frequency
// interval per slot. Fails if passages already exist or membership is below
// the group minimum.
func (e *PayoutEngine) GenerateOrder(groupID uint, strategy OrderStrategy, seed int64, actor Actor) ([]models.Passage, error) {
	if !strategy.Valid() {
		return nil, ErrValidation
	}

	var passages []models.Passage
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := requireManager(tx, groupID, actor); err != nil {
			return err
		}

		var group models.Group
		if err := tx.Preload("Members.User").First(&group, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var existing int64
		if err := tx.Model(&models.Passage{}).Where("group_id = ?", groupID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrOrderAlreadyExists
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

		ordered := orderMembers(active, strategy, seed)
		expected := group.ContributionAmount.Mul(decimal.NewFromInt(int64(len(ordered))))

		for i, member := range ordered {
			orderNumber := i + 1
			passage := models.Passage{
				GroupID:        groupID,
				MemberID:       member.ID,
				OrderNumber:    orderNumber,
				ScheduledDate:  group.Frequency.AddTo(group.StartDate, orderNumber-1),
				Status:         models.PassageScheduled,
				ExpectedAmount: expected,
				AmountReceived: decimal.Zero,
			}
			if err := tx.Create(&passage).Error; err != nil {
				return err
			}
			passages = append(passages, passage)

			pos := orderNumber
			if err := tx.Model(&models.Member{}).Where("id = ?", member.ID).
				Update("order_position", pos).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"group_id": groupID,
		"strategy": strategy,
		"count":    len(passages),
	}).Info("payout order generated")
	return passages, nil
}

// Reorder bulk-reassigns order numbers. The supplied pairs must be a
// bijection from the group's passage members onto 1..N. Locked once any
// passage has completed.
func (e *PayoutEngine) Reorder(groupID uint, pairs []OrderPair, actor Actor) ([]models.Passage, error) {
	var reordered []models.Passage
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := requireManager(tx, groupID, actor); err != nil {
			return err
		}

		var passages []models.Passage
		if err := tx.Where("group_id = ?", groupID).Find(&passages).Error; err != nil {
			return err
		}
		if len(passages) == 0 {
			return ErrNotFound
		}

		for _, p := range passages {
			if p.Status == models.PassageComplete {
				return ErrOrderLocked
			}
		}

		if len(pairs) != len(passages) {
			return ErrValidation
		}
		byMember := make(map[uint]*models.Passage, len(passages))
		for i := range passages {
			byMember[passages[i].MemberID] = &passages[i]
		}
		seenSlots := make(map[int]bool, len(pairs))
		seenMembers := make(map[uint]bool, len(pairs))
		for _, pair := range pairs {
			if pair.OrderNumber < 1 || pair.OrderNumber > len(passages) {
				return ErrValidation
			}
			if seenSlots[pair.OrderNumber] || seenMembers[pair.MemberID] {
				return ErrValidation
			}
			if _, ok := byMember[pair.MemberID]; !ok {
				return ErrValidation
			}
			seenSlots[pair.OrderNumber] = true
			seenMembers[pair.MemberID] = true
		}

		// Two-phase renumbering so the unique (group, order) index never
		// sees a transient duplicate.
		for _, pair := range pairs {
			if err := tx.Model(&models.Passage{}).
				Where("group_id = ? AND member_id = ?", groupID, pair.MemberID).
				Update("order_number", -pair.OrderNumber).Error; err != nil {
				return err
			}
		}
		for _, pair := range pairs {
			if err := tx.Model(&models.Passage{}).
				Where("group_id = ? AND member_id = ?", groupID, pair.MemberID).
				Update("order_number", pair.OrderNumber).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Member{}).
				Where("id = ?", pair.MemberID).
				Update("order_position", pair.OrderNumber).Error; err != nil {
				return err
			}
		}

		return tx.Where("group_id = ?", groupID).Order("order_number").Find(&reordered).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithField("group_id", groupID).Info("payout order updated")
	return reordered, nil
}

// Start marks a passage as the current payout turn.
func (e *PayoutEngine) Start(passageID uint, actor Actor) (*models.Passage, error) {
	var passage models.Passage
	var group models.Group
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Member").First(&passage, passageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := requireManager(tx, passage.GroupID, actor); err != nil {
			return err
		}
		if passage.Status != models.PassageScheduled {
			return ErrInvalidTransition
		}
		passage.Status = models.PassageInProgress
		if err := tx.Save(&passage).Error; err != nil {
			return err
		}
		return tx.First(&group, passage.GroupID).Error
	})
	if err != nil {
		return nil, err
	}

	e.notifier.PayoutTurn(&group, &passage)
	return &passage, nil
}

// RecordPayout stores how the pot was handed over to the beneficiary.
func (e *PayoutEngine) RecordPayout(passageID uint, actor Actor, method string, amount decimal.Decimal, reference, phone string) (*models.Passage, error) {
	if amount.IsNegative() {
		return nil, ErrValidation
	}
	var passage models.Passage
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&passage, passageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := requireManager(tx, passage.GroupID, actor); err != nil {
			return err
		}
		if passage.Status != models.PassageInProgress {
			return ErrInvalidTransition
		}
		now := time.Now().UTC()
		passage.PayoutMethod = method
		passage.PayoutReference = reference
		passage.PayoutPhone = phone
		passage.AmountReceived = amount
		passage.ActualDate = &now
		return tx.Save(&passage).Error
	})
	if err != nil {
		return nil, err
	}
	return &passage, nil
}

// Confirm completes a passage and credits the beneficiary's total_received.
// Allowed to the beneficiary, a group manager, or a platform admin.
func (e *PayoutEngine) Confirm(passageID uint, amountReceived decimal.Decimal, actor Actor, notes string) (*models.Passage, error) {
	if amountReceived.IsNegative() {
		return nil, ErrValidation
	}
	var passage models.Passage
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Member").First(&passage, passageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		isBeneficiary := passage.Member.UserID == actor.UserID
		if !isBeneficiary && !actor.IsAdmin() {
			if err := requireManager(tx, passage.GroupID, actor); err != nil {
				return err
			}
		}

		if passage.Status != models.PassageInProgress {
			return ErrInvalidTransition
		}

		now := time.Now().UTC()
		passage.Status = models.PassageComplete
		passage.AmountReceived = amountReceived
		passage.ConfirmedByMember = isBeneficiary
		passage.ConfirmedAt = &now
		if notes != "" {
			passage.Notes = notes
		}
		if passage.ActualDate == nil {
			passage.ActualDate = &now
		}
		if err := tx.Save(&passage).Error; err != nil {
			return err
		}

		return tx.Model(&models.Member{}).Where("id = ?", passage.MemberID).
			Update("total_received", gorm.Expr("total_received + ?", amountReceived)).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"passage_id": passageID,
		"amount":     amountReceived.String(),
	}).Info("passage confirmed")
	return &passage, nil
}

// Postpone records the reason and, when a new date is supplied, returns the
// passage to the schedule under that date. Illegal once complete.
func (e *PayoutEngine) Postpone(passageID uint, newDate time.Time, reason string, actor Actor) (*models.Passage, error) {
	var passage models.Passage
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&passage, passageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := requireManager(tx, passage.GroupID, actor); err != nil {
			return err
		}
		if !passage.Status.CanTransitionTo(models.PassagePostponed) && passage.Status != models.PassagePostponed {
			return ErrInvalidTransition
		}
		passage.Status = models.PassagePostponed
		passage.PostponeReason = reason
		if !newDate.IsZero() {
			passage.ScheduledDate = newDate
			passage.Status = models.PassageScheduled
		}
		return tx.Save(&passage).Error
	})
	if err != nil {
		return nil, err
	}
	return &passage, nil
}

// Cancel drops a scheduled passage. Terminal.
func (e *PayoutEngine) Cancel(passageID uint, actor Actor) (*models.Passage, error) {
	var passage models.Passage
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&passage, passageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := requireManager(tx, passage.GroupID, actor); err != nil {
			return err
		}
		if passage.Status != models.PassageScheduled {
			return ErrInvalidTransition
		}
		passage.Status = models.PassageCancelled
		return tx.Save(&passage).Error
	})
	if err != nil {
		return nil, err
	}
	return &passage, nil
}

// Schedule is the read-side view of a group's payout rotation.
type Schedule struct {
	GroupID        uint             `json:"group_id"`
	Passages       []models.Passage `json:"passages"`
	Current        *models.Passage  `json:"current_passage,omitempty"`
	Next           *models.Passage  `json:"next_passage,omitempty"`
	CompletedCount int              `json:"completed_count"`
	RemainingCount int              `json:"remaining_count"`
}

// GetSchedule returns the ordered passages with the current and next turns.
func (e *PayoutEngine) GetSchedule(groupID uint) (*Schedule, error) {
	var passages []models.Passage
	err := e.db.Preload("Member.User").
		Where("group_id = ?", groupID).
		Order("order_number").
		Find(&passages).Error
	if err != nil {
		return nil, err
	}

	sched := &Schedule{GroupID: groupID, Passages: passages}
	for i := range passages {
		switch passages[i].Status {
		case models.PassageInProgress:
			if sched.Current == nil {
				sched.Current = &passages[i]
			}
			sched.RemainingCount++
		case models.PassageScheduled:
			if sched.Next == nil {
				sched.Next = &passages[i]
			}
			sched.RemainingCount++
		case models.PassageComplete:
			sched.CompletedCount++
		}
	}
	return sched, nil
}
