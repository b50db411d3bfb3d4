package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tontine_manager/internal/config"
	"tontine_manager/internal/models"
)

// ListMyNotifications returns the caller's notifications, newest first.
func ListMyNotifications(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var list []models.Notification
	q := config.DB.Where("user_id = ?", actor.UserID).Order("created_at DESC").Limit(100)
	if c.Query("unread") == "true" {
		q = q.Where("status NOT IN ?", []models.NotificationStatus{models.NotificationRead})
	}
	if err := q.Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error listing notifications: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

// MarkNotificationRead flags one of the caller's notifications as read.
func MarkNotificationRead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	notificationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := dispatcher.MarkRead(notificationID, actor.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark as read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked read"})
}
