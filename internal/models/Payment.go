// internal/models/payment.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentStatus values are persisted verbatim; do not rename.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentInProgress PaymentStatus = "in_progress"
	PaymentValidated  PaymentStatus = "validated"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
	PaymentRefunded   PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentInProgress, PaymentValidated, PaymentFailed, PaymentCancelled},
	PaymentInProgress: {PaymentValidated, PaymentFailed, PaymentCancelled},
	// refund is the only legal move out of a terminal state
	PaymentValidated: {PaymentRefunded},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, t := range paymentTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further operator mutation.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentValidated, PaymentFailed, PaymentCancelled, PaymentRefunded:
		return true
	}
	return false
}

// Blocking statuses: a user may not open a new contribution attempt for a
// session while one of these exists.
func (s PaymentStatus) BlocksNewAttempt() bool {
	return s == PaymentPending || s == PaymentInProgress || s == PaymentValidated
}

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodOrangeMoney  PaymentMethod = "orange_money"
	MethodMTNMoMo      PaymentMethod = "mtn_momo"
	MethodWave         PaymentMethod = "wave"
	MethodMoovMoney    PaymentMethod = "moov_money"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodOrangeMoney, MethodMTNMoMo, MethodWave, MethodMoovMoney, MethodBankTransfer:
		return true
	}
	return false
}

// IsMobileMoney reports whether the method goes through an operator.
func (m PaymentMethod) IsMobileMoney() bool {
	switch m {
	case MethodOrangeMoney, MethodMTNMoMo, MethodWave, MethodMoovMoney:
		return true
	}
	return false
}

// Payment is a single contribution attempt by one user against one session.
// A partial unique index (see config.InitDB) guarantees at most one
// pending/in_progress/validated payment per (user, session).
type Payment struct {
	gorm.Model
	UserID    uint `json:"user_id" gorm:"index:idx_payment_user_session"`
	SessionID uint `json:"session_id" gorm:"index:idx_payment_user_session"`
	GroupID   uint `json:"group_id" gorm:"index"`

	Amount   decimal.Decimal `json:"amount" gorm:"type:decimal(12,2)"`
	Currency string          `json:"currency" gorm:"size:10;default:FCFA"`
	Method   PaymentMethod   `json:"method" gorm:"size:20"`
	Status   PaymentStatus   `json:"status" gorm:"size:20;default:pending;index"`

	OperatorReference     string `json:"operator_reference" gorm:"uniqueIndex;size:100"`
	OperatorTransactionID string `json:"operator_transaction_id" gorm:"size:100"`
	PhoneNumber           string `json:"phone_number" gorm:"size:20"`
	CallbackPayload       string `json:"callback_payload,omitempty" gorm:"type:jsonb"`

	ProofURL         string `json:"proof_url"`
	ProofDescription string `json:"proof_description"`

	ValidatedByID   *uint      `json:"validated_by_id,omitempty"`
	ValidatedAt     *time.Time `json:"validated_at,omitempty"`
	RejectionReason string     `json:"rejection_reason"`

	IsLate        bool            `json:"is_late" gorm:"default:false"`
	PenaltyAmount decimal.Decimal `json:"penalty_amount" gorm:"type:decimal(10,2);default:0"`

	Notes       string     `json:"notes"`
	InitiatedAt time.Time  `json:"initiated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TotalDue is the contribution plus any late penalty.
func (p *Payment) TotalDue() decimal.Decimal {
	return p.Amount.Add(p.PenaltyAmount)
}
