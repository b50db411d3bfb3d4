package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tontine_manager/internal/config"
	"tontine_manager/internal/models"
	"tontine_manager/internal/tontine"
)

type createGroupInput struct {
	Name               string          `json:"name" binding:"required"`
	Description        string          `json:"description"`
	Frequency          string          `json:"frequency" binding:"required"`
	ContributionAmount decimal.Decimal `json:"contribution_amount" binding:"required"`
	Currency           string          `json:"currency"`
	MinMembers         int             `json:"min_members"`
	MaxMembers         int             `json:"max_members"`
	StartDate          time.Time       `json:"start_date" binding:"required"`
	EndDate            *time.Time      `json:"end_date"`
	Rules              string          `json:"rules"`
	PenaltyAmount      decimal.Decimal `json:"penalty_amount"`
	GracePeriodDays    int             `json:"grace_period_days"`
	IsPublic           bool            `json:"is_public"`
}

// newJoinCode mints the shareable code members use to self-enroll.
func newJoinCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
}

// CreateGroup creates a group and enrolls the creator as its chair.
func CreateGroup(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var input createGroupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	freq := models.Frequency(strings.ToLower(input.Frequency))
	if !freq.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid frequency"})
		return
	}
	if !input.ContributionAmount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "contribution_amount must be positive"})
		return
	}
	if input.MinMembers <= 0 {
		input.MinMembers = 3
	}
	if input.MaxMembers <= 0 {
		input.MaxMembers = 50
	}
	if input.MaxMembers < input.MinMembers {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_members below min_members"})
		return
	}
	if input.Currency == "" {
		input.Currency = "FCFA"
	}

	group := models.Group{
		Name:               input.Name,
		Description:        input.Description,
		JoinCode:           newJoinCode(),
		Frequency:          freq,
		ContributionAmount: input.ContributionAmount,
		Currency:           input.Currency,
		MinMembers:         input.MinMembers,
		MaxMembers:         input.MaxMembers,
		StartDate:          input.StartDate,
		EndDate:            input.EndDate,
		Rules:              input.Rules,
		PenaltyAmount:      input.PenaltyAmount,
		GracePeriodDays:    input.GracePeriodDays,
		IsActive:           true,
		IsPublic:           input.IsPublic,
		CreatedByID:        actor.UserID,
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&group).Error
	})
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "join code collision, retry"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group: " + err.Error()})
		return
	}

	if _, err := registry.AddMember(group.ID, actor.UserID, models.GroupRoleChair, nil); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"group": group})
}

// ListGroups returns the public groups plus the caller's own.
func ListGroups(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var groups []models.Group
	q := config.DB.Where("is_active = ?", true)
	if !actor.IsAdmin() {
		q = q.Where("is_public = ? OR id IN (?)", true,
			config.DB.Model(&models.Member{}).Select("group_id").
				Where("user_id = ? AND is_active = ?", actor.UserID, true))
	}
	if err := q.Find(&groups).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error listing groups: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": groups})
}

// ListMyGroups returns the groups the caller is an active member of.
func ListMyGroups(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var groups []models.Group
	err := config.DB.
		Joins("JOIN members ON members.group_id = groups.id").
		Where("members.user_id = ? AND members.is_active = ?", actor.UserID, true).
		Find(&groups).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error listing groups: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": groups})
}

func GetGroup(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var group models.Group
	err := config.DB.Preload("Members.User").First(&group, groupID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": group})
}

type updateGroupInput struct {
	Name            *string          `json:"name"`
	Description     *string          `json:"description"`
	Rules           *string          `json:"rules"`
	PenaltyAmount   *decimal.Decimal `json:"penalty_amount"`
	GracePeriodDays *int             `json:"grace_period_days"`
	IsPublic        *bool            `json:"is_public"`
}

// UpdateGroup edits the mutable group settings. The contribution amount and
// frequency are frozen after creation; the financial engines price against
// them.
func UpdateGroup(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input updateGroupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var group models.Group
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&group, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return tontine.ErrNotFound
			}
			return err
		}
		if group.CreatedByID != actor.UserID && !actor.IsAdmin() {
			return tontine.ErrPermissionDenied
		}

		if input.Name != nil {
			group.Name = *input.Name
		}
		if input.Description != nil {
			group.Description = *input.Description
		}
		if input.Rules != nil {
			group.Rules = *input.Rules
		}
		if input.PenaltyAmount != nil {
			group.PenaltyAmount = *input.PenaltyAmount
		}
		if input.GracePeriodDays != nil {
			group.GracePeriodDays = *input.GracePeriodDays
		}
		if input.IsPublic != nil {
			group.IsPublic = *input.IsPublic
		}
		return tx.Save(&group).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": group})
}

// DeactivateGroup retires a group. Soft only; history stays queryable.
func DeactivateGroup(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.First(&group, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return tontine.ErrNotFound
			}
			return err
		}
		if group.CreatedByID != actor.UserID && !actor.IsAdmin() {
			return tontine.ErrPermissionDenied
		}
		group.IsActive = false
		return tx.Save(&group).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "group deactivated"})
}

type addMemberInput struct {
	UserID        uint   `json:"user_id" binding:"required"`
	Role          string `json:"role"`
	OrderPosition *int   `json:"order_position"`
}

// AddMember enrolls a user. Manager-gated inside the registry.
func AddMember(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input addMemberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role := models.GroupRole(input.Role)
	if input.Role == "" {
		role = models.GroupRoleMember
	}

	// Only a manager of the group (or an admin) enrolls third parties.
	if err := requireGroupManager(groupID, actor); err != nil {
		respondError(c, err)
		return
	}

	member, err := registry.AddMember(groupID, input.UserID, role, input.OrderPosition)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"member": member})
}

// JoinByCode self-enrolls the caller via the group's join code.
func JoinByCode(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var input struct {
		JoinCode string `json:"join_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := registry.JoinByCode(strings.ToUpper(strings.TrimSpace(input.JoinCode)), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"member": member})
}

// ListGroupMembers returns the roster in payout order.
func ListGroupMembers(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	includeInactive := c.Query("include_inactive") == "true"
	members, err := registry.ListMembers(groupID, includeInactive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": members})
}

type updateMemberInput struct {
	Role          *string `json:"role"`
	OrderPosition *int    `json:"order_position"`
}

func UpdateGroupMember(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	memberID, ok := pathID(c, "member_id")
	if !ok {
		return
	}

	var input updateMemberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := requireGroupManager(groupID, actor); err != nil {
		respondError(c, err)
		return
	}

	var role *models.GroupRole
	if input.Role != nil {
		r := models.GroupRole(*input.Role)
		role = &r
	}

	member, err := registry.UpdateMember(groupID, memberID, role, input.OrderPosition)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"member": member})
}

// RemoveGroupMember removes a member from the roster. A plain member can only
// remove themselves; managers remove anyone subject to the last-chair rule.
func RemoveGroupMember(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	memberID, ok := pathID(c, "member_id")
	if !ok {
		return
	}

	var member models.Member
	if err := config.DB.Where("id = ? AND group_id = ?", memberID, groupID).First(&member).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}
	if member.UserID != actor.UserID {
		if err := requireGroupManager(groupID, actor); err != nil {
			respondError(c, err)
			return
		}
	}

	if err := registry.RemoveMember(groupID, memberID, actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "member removed"})
}

// requireGroupManager re-runs the engine-side permission check at the HTTP
// boundary for routes that compose several registry calls.
func requireGroupManager(groupID uint, actor tontine.Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	var count int64
	err := config.DB.Model(&models.Member{}).
		Where("group_id = ? AND user_id = ? AND is_active = ? AND role IN ?",
			groupID, actor.UserID, true,
			[]models.GroupRole{models.GroupRoleChair, models.GroupRoleTreasurer}).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return tontine.ErrPermissionDenied
	}
	return nil
}
