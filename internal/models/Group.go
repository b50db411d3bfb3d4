// internal/models/group.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Frequency is the contribution cadence of a group. The string values are
// part of the persisted contract consumed by mobile clients.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// AddTo advances t by n frequency intervals.
func (f Frequency) AddTo(t time.Time, n int) time.Time {
	switch f {
	case FrequencyDaily:
		return t.AddDate(0, 0, n)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7*n)
	case FrequencyBiweekly:
		return t.AddDate(0, 0, 14*n)
	case FrequencyQuarterly:
		return t.AddDate(0, 3*n, 0)
	default: // monthly
		return t.AddDate(0, n, 0)
	}
}

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly, FrequencyQuarterly:
		return true
	}
	return false
}

// Group is a rotating/cumulative savings group (tontine).
type Group struct {
	gorm.Model
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	JoinCode    string `json:"join_code" gorm:"uniqueIndex;size:10"`

	Frequency          Frequency       `json:"frequency" gorm:"size:20;default:monthly"`
	ContributionAmount decimal.Decimal `json:"contribution_amount" gorm:"type:decimal(12,2)"`
	Currency           string          `json:"currency" gorm:"size:10;default:FCFA"`

	MinMembers int `json:"min_members" gorm:"default:3"`
	MaxMembers int `json:"max_members" gorm:"default:12"`

	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	Rules           string          `json:"rules"`
	PenaltyAmount   decimal.Decimal `json:"penalty_amount" gorm:"type:decimal(10,2);default:0"`
	GracePeriodDays int             `json:"grace_period_days" gorm:"default:3"`

	IsActive bool `json:"is_active" gorm:"default:true"`
	IsPublic bool `json:"is_public" gorm:"default:false"`

	CreatedByID uint `json:"created_by_id"`

	Members  []Member  `gorm:"foreignKey:GroupID" json:"members,omitempty"`
	Sessions []Session `gorm:"foreignKey:GroupID" json:"sessions,omitempty"`
	Passages []Passage `gorm:"foreignKey:GroupID" json:"passages,omitempty"`
}

// ActiveMemberCount counts currently active members among the preloaded set.
func (g *Group) ActiveMemberCount() int {
	n := 0
	for _, m := range g.Members {
		if m.IsActive {
			n++
		}
	}
	return n
}

func (g *Group) IsFull() bool {
	return g.ActiveMemberCount() >= g.MaxMembers
}

// TotalPot is the pot size per session at current membership.
func (g *Group) TotalPot() decimal.Decimal {
	return g.ContributionAmount.Mul(decimal.NewFromInt(int64(g.ActiveMemberCount())))
}
