// internal/models/session.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SessionStatus values are persisted verbatim; do not rename.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionOpen      SessionStatus = "open"
	SessionClosed    SessionStatus = "closed"
	SessionCancelled SessionStatus = "cancelled"
)

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionScheduled: {SessionOpen, SessionCancelled},
	SessionOpen:      {SessionClosed, SessionCancelled},
}

// CanTransitionTo reports whether the lifecycle allows status -> next.
// Closed and cancelled are terminal.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, t := range sessionTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Session is one collection cycle of a group. ExpectedAmount is frozen at
// creation time; CollectedAmount is the running sum of validated payment
// amounts and is mutated only by the reconciliation engine.
type Session struct {
	gorm.Model
	GroupID       uint `json:"group_id" gorm:"uniqueIndex:idx_session_group_number"`
	SessionNumber int  `json:"session_number" gorm:"uniqueIndex:idx_session_group_number"`

	ScheduledDate time.Time     `json:"scheduled_date"`
	DueDate       time.Time     `json:"due_date"`
	Status        SessionStatus `json:"status" gorm:"size:20;default:scheduled;index"`

	ExpectedAmount  decimal.Decimal `json:"expected_amount" gorm:"type:decimal(14,2)"`
	CollectedAmount decimal.Decimal `json:"collected_amount" gorm:"type:decimal(14,2);default:0"`

	BeneficiaryID *uint  `json:"beneficiary_id,omitempty"` // user id, for rotative payout
	Notes         string `json:"notes"`

	OpenedAt *time.Time `json:"opened_at,omitempty"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`

	Payments []Payment `gorm:"foreignKey:SessionID" json:"payments,omitempty"`
}

// IsComplete is always recomputed, never stored.
func (s *Session) IsComplete() bool {
	return s.CollectedAmount.GreaterThanOrEqual(s.ExpectedAmount)
}

// CollectionPercentage returns collected/expected as a percentage, 0 when
// nothing is expected. Display value only; comparisons stay on decimals.
func (s *Session) CollectionPercentage() float64 {
	if s.ExpectedAmount.IsZero() {
		return 0
	}
	pct, _ := s.CollectedAmount.Div(s.ExpectedAmount).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

func (s *Session) IsOverdue(now time.Time) bool {
	return s.Status == SessionOpen && now.After(s.DueDate)
}

func (s *Session) RemainingAmount() decimal.Decimal {
	rem := s.ExpectedAmount.Sub(s.CollectedAmount)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}
