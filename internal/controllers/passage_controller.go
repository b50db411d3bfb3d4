package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tontine_manager/internal/config"
	"tontine_manager/internal/models"
	"tontine_manager/internal/tontine"
)

type generateOrderInput struct {
	Strategy string `json:"strategy" binding:"required"`
	Seed     int64  `json:"seed"`
}

// GeneratePayoutOrder draws the rotation for a group. Random draws accept a
// seed so a disputed draw can be replayed in front of the members.
func GeneratePayoutOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input generateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	seed := input.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	passages, err := payouts.GenerateOrder(groupID, tontine.OrderStrategy(input.Strategy), seed, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": passages})
}

// GetPayoutSchedule returns the ordered rotation with current and next turns.
func GetPayoutSchedule(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	schedule, err := payouts.GetSchedule(groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule": schedule})
}

// ReorderPayouts bulk-reassigns the order numbers before any payout happens.
func ReorderPayouts(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input struct {
		Order []tontine.OrderPair `json:"order" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	passages, err := payouts.Reorder(groupID, input.Order, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": passages})
}

func GetPassage(c *gin.Context) {
	passageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var passage models.Passage
	err := config.DB.Preload("Member.User").First(&passage, passageID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "passage not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"passage": passage})
}

// StartPassage marks the passage as the current payout turn and notifies the
// beneficiary.
func StartPassage(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	passageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	passage, err := payouts.Start(passageID, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"passage": passage})
}

type recordPayoutInput struct {
	Method    string          `json:"method" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Reference string          `json:"reference"`
	Phone     string          `json:"phone"`
}

// RecordPayout stores how the pot was handed over.
func RecordPayout(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	passageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input recordPayoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	passage, err := payouts.RecordPayout(passageID, actor, input.Method, input.Amount, input.Reference, input.Phone)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"passage": passage})
}

// ConfirmPassage completes the turn. The beneficiary confirms receipt, or a
// manager closes it on their behalf.
func ConfirmPassage(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	passageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input struct {
		AmountReceived decimal.Decimal `json:"amount_received" binding:"required"`
		Notes          string          `json:"notes"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	passage, err := payouts.Confirm(passageID, input.AmountReceived, actor, input.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"passage": passage})
}

func PostponePassage(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	passageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input struct {
		NewDate time.Time `json:"new_date"`
		Reason  string    `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	passage, err := payouts.Postpone(passageID, input.NewDate, input.Reason, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"passage": passage})
}

func CancelPassage(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	passageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	passage, err := payouts.Cancel(passageID, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"passage": passage})
}
