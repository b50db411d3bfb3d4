package tontine

import (
	"errors"

	"gorm.io/gorm"

	"tontine_manager/internal/models"
)

// Actor is the authenticated identity performing an operation: an opaque
// user id plus the platform-wide role from the token. Group-scoped roles are
// looked up from membership rows.
type Actor struct {
	UserID uint
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// activeMembership returns the active membership of a user in a group, or
// ErrNotAMember.
func activeMembership(tx *gorm.DB, groupID, userID uint) (*models.Member, error) {
	var member models.Member
	err := tx.Where("group_id = ? AND user_id = ? AND is_active = ?", groupID, userID, true).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotAMember
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// requireManager passes for platform admins and for group chairs/treasurers.
func requireManager(tx *gorm.DB, groupID uint, actor Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	member, err := activeMembership(tx, groupID, actor.UserID)
	if err != nil {
		if errors.Is(err, ErrNotAMember) {
			return ErrPermissionDenied
		}
		return err
	}
	if !member.Role.IsManager() {
		return ErrPermissionDenied
	}
	return nil
}
