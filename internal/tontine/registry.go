package tontine

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tontine_manager/internal/models"
)

// Registry manages group membership. It never touches the running member
// aggregates; those belong to the payment and payout engines.
type Registry struct {
	db       *gorm.DB
	notifier Notifier
}

func NewRegistry(db *gorm.DB, notifier Notifier) *Registry {
	return &Registry{db: db, notifier: notifier}
}

// AddMember enrolls a user into a group. A previously-left member is
// reactivated in place, keeping historical aggregates.
func (r *Registry) AddMember(groupID, userID uint, role models.GroupRole, orderPosition *int) (*models.Member, error) {
	if !role.Valid() {
		return nil, ErrValidation
	}

	var member *models.Member
	var group models.Group
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Members").First(&group, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var existing models.Member
		err := tx.Where("group_id = ? AND user_id = ?", groupID, userID).First(&existing).Error
		switch {
		case err == nil && existing.IsActive:
			return ErrDuplicateMembership
		case err == nil:
			// rejoin: clear the leave timestamp, keep aggregates
			if group.IsFull() {
				return ErrGroupFull
			}
			existing.IsActive = true
			existing.LeftAt = nil
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			member = &existing
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if group.IsFull() {
			return ErrGroupFull
		}

		member = &models.Member{
			UserID:        userID,
			GroupID:       groupID,
			Role:          role,
			OrderPosition: orderPosition,
			IsActive:      true,
			JoinedAt:      time.Now().UTC(),
		}
		return tx.Create(member).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"group_id": groupID,
		"user_id":  userID,
		"role":     role,
	}).Info("member added to group")

	r.notifier.MemberJoined(&group, member)
	return member, nil
}

// JoinByCode enrolls the calling user via the group's join code, always with
// the plain member role.
func (r *Registry) JoinByCode(code string, userID uint) (*models.Member, error) {
	var group models.Group
	err := r.db.Where("join_code = ? AND is_active = ?", code, true).First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.AddMember(group.ID, userID, models.GroupRoleMember, nil)
}

// RemoveMember soft-deletes a membership. The sole chair cannot remove
// themselves; the role must be handed over first.
func (r *Registry) RemoveMember(groupID, memberID uint, actor Actor) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var member models.Member
		err := tx.Where("id = ? AND group_id = ?", memberID, groupID).First(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !member.IsActive {
			return ErrNotFound
		}

		if member.Role == models.GroupRoleChair && member.UserID == actor.UserID {
			var chairs int64
			if err := tx.Model(&models.Member{}).
				Where("group_id = ? AND role = ? AND is_active = ?", groupID, models.GroupRoleChair, true).
				Count(&chairs).Error; err != nil {
				return err
			}
			if chairs <= 1 {
				return ErrLastManagerConstraint
			}
		}

		now := time.Now().UTC()
		member.IsActive = false
		member.LeftAt = &now
		if err := tx.Save(&member).Error; err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"group_id":  groupID,
			"member_id": memberID,
		}).Info("member removed from group")
		return nil
	})
}

// UpdateMember changes a member's group role or order position.
func (r *Registry) UpdateMember(groupID, memberID uint, role *models.GroupRole, orderPosition *int) (*models.Member, error) {
	var member models.Member
	err := r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND group_id = ?", memberID, groupID).First(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if role != nil {
			if !role.Valid() {
				return ErrValidation
			}
			member.Role = *role
		}
		if orderPosition != nil {
			member.OrderPosition = orderPosition
		}
		return tx.Save(&member).Error
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// ListMembers returns the group's members ordered by payout position.
func (r *Registry) ListMembers(groupID uint, includeInactive bool) ([]models.Member, error) {
	var members []models.Member
	q := r.db.Preload("User").Where("group_id = ?", groupID)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("order_position NULLS FIRST, joined_at, id").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}
