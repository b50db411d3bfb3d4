// internal/models/member.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Group-scoped roles, independent of the platform role on User.
type GroupRole string

const (
	GroupRoleMember    GroupRole = "member"
	GroupRoleChair     GroupRole = "chair"
	GroupRoleTreasurer GroupRole = "treasurer"
)

func (r GroupRole) Valid() bool {
	switch r {
	case GroupRoleMember, GroupRoleChair, GroupRoleTreasurer:
		return true
	}
	return false
}

// IsManager reports whether the role can manage sessions and payments.
func (r GroupRole) IsManager() bool {
	return r == GroupRoleChair || r == GroupRoleTreasurer
}

// Member links a user to exactly one group. Members are soft-deleted
// (is_active=false + left_at) and never removed while payments reference
// them. The running aggregates are mutated only by the payment and payout
// engines.
type Member struct {
	gorm.Model
	UserID  uint `json:"user_id" gorm:"uniqueIndex:idx_member_user_group"`
	GroupID uint `json:"group_id" gorm:"uniqueIndex:idx_member_user_group"`

	Role          GroupRole `json:"role" gorm:"size:20;default:member"`
	OrderPosition *int      `json:"order_position,omitempty"` // nil until the payout order is generated

	IsActive bool       `json:"is_active" gorm:"default:true"`
	JoinedAt time.Time  `json:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty"`

	TotalContributions decimal.Decimal `json:"total_contributions" gorm:"type:decimal(14,2);default:0"`
	TotalReceived      decimal.Decimal `json:"total_received" gorm:"type:decimal(14,2);default:0"`
	MissedPayments     int             `json:"missed_payments" gorm:"default:0"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
