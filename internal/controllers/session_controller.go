package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"tontine_manager/internal/config"
	"tontine_manager/internal/models"
)

type createSessionInput struct {
	ScheduledDate time.Time `json:"scheduled_date" binding:"required"`
	DueDate       time.Time `json:"due_date" binding:"required"`
	BeneficiaryID *uint     `json:"beneficiary_id"`
	Notes         string    `json:"notes"`
}

func CreateSession(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input createSessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := sessions.Create(groupID, input.ScheduledDate, input.DueDate, input.BeneficiaryID, input.Notes, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// GenerateGroupSessions bulk-creates the whole cycle, one session per member.
func GenerateGroupSessions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	generated, err := sessions.GenerateSessions(groupID, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": generated})
}

func ListGroupSessions(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var list []models.Session
	q := config.DB.Where("group_id = ?", groupID).Order("session_number")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error listing sessions: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

func GetSession(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var session models.Session
	err := config.DB.Preload("Payments").First(&session, sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func OpenSession(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	session, err := sessions.Open(sessionID, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func CloseSession(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input struct {
		Force bool   `json:"force"`
		Notes string `json:"notes"`
	}
	// Body is optional; default is a strict close.
	_ = c.ShouldBindJSON(&input)

	session, err := sessions.Close(sessionID, input.Force, input.Notes, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func CancelSession(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	session, err := sessions.Cancel(sessionID, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// RemindSessionContributors notifies every member who has not paid yet:
// a contribution reminder before the due date, a late alert after it.
func RemindSessionContributors(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	notified, err := sessions.RemindPending(sessionID, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notified": notified})
}

// GetSessionStats recomputes the collection summary from payment rows.
func GetSessionStats(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	stats, err := sessions.Stats(sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
