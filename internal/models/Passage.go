// internal/models/passage.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PassageStatus values are persisted verbatim; do not rename.
type PassageStatus string

const (
	PassageScheduled  PassageStatus = "scheduled"
	PassageInProgress PassageStatus = "in_progress"
	PassageComplete   PassageStatus = "complete"
	PassagePostponed  PassageStatus = "postponed"
	PassageCancelled  PassageStatus = "cancelled"
)

var passageTransitions = map[PassageStatus][]PassageStatus{
	PassageScheduled:  {PassageInProgress, PassagePostponed, PassageCancelled},
	PassageInProgress: {PassageComplete, PassagePostponed},
	// a postponed passage re-enters the schedule once a new date is set
	PassagePostponed: {PassageScheduled},
}

func (s PassageStatus) CanTransitionTo(next PassageStatus) bool {
	for _, t := range passageTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Passage is one payout slot: the turn in which a member receives the pot.
// One passage per (group, member); order_number is unique within the group.
type Passage struct {
	gorm.Model
	GroupID  uint `json:"group_id" gorm:"uniqueIndex:idx_passage_group_member;uniqueIndex:idx_passage_group_order"`
	MemberID uint `json:"member_id" gorm:"uniqueIndex:idx_passage_group_member"`

	SessionID *uint `json:"session_id,omitempty"`

	OrderNumber int `json:"order_number" gorm:"uniqueIndex:idx_passage_group_order"`

	ScheduledDate time.Time  `json:"scheduled_date"`
	ActualDate    *time.Time `json:"actual_date,omitempty"`

	Status PassageStatus `json:"status" gorm:"size:20;default:scheduled;index"`

	ExpectedAmount decimal.Decimal `json:"expected_amount" gorm:"type:decimal(14,2)"`
	AmountReceived decimal.Decimal `json:"amount_received" gorm:"type:decimal(14,2);default:0"`

	PayoutMethod    string `json:"payout_method" gorm:"size:50"`
	PayoutReference string `json:"payout_reference" gorm:"size:100"`
	PayoutPhone     string `json:"payout_phone" gorm:"size:20"`

	ConfirmedByMember bool       `json:"confirmed_by_member" gorm:"default:false"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`

	Notes          string `json:"notes"`
	PostponeReason string `json:"postpone_reason"`

	Member Member `gorm:"foreignKey:MemberID" json:"member,omitempty"`
}

func (p *Passage) IsOverdue(now time.Time) bool {
	return p.Status == PassageScheduled && now.After(p.ScheduledDate)
}
