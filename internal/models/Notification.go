// internal/models/notification.go
package models

import (
	"time"

	"gorm.io/gorm"
)

type NotificationType string

const (
	NotifyContributionReminder NotificationType = "contribution_reminder"
	NotifyPaymentConfirmation  NotificationType = "payment_confirmation"
	NotifyLateAlert            NotificationType = "late_alert"
	NotifyPayoutTurn           NotificationType = "payout_turn"
	NotifyNewMember            NotificationType = "new_member"
	NotifyMemberLeft           NotificationType = "member_left"
	NotifySessionOpened        NotificationType = "session_opened"
	NotifySessionClosed        NotificationType = "session_closed"
	NotifyPayoutReceived       NotificationType = "payout_received"
	NotifyPenaltyApplied       NotificationType = "penalty_applied"
)

type NotificationChannel string

const (
	ChannelSMS   NotificationChannel = "sms"
	ChannelEmail NotificationChannel = "email"
	ChannelInApp NotificationChannel = "in_app"
)

type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationSent      NotificationStatus = "sent"
	NotificationDelivered NotificationStatus = "delivered"
	NotificationRead      NotificationStatus = "read"
	NotificationFailed    NotificationStatus = "failed"
	NotificationCancelled NotificationStatus = "cancelled"
)

// Notification is an observational record of an outbound communication
// attempt. It is never authoritative state; the core never waits on it.
type Notification struct {
	gorm.Model
	UserID uint `json:"user_id" gorm:"index"`

	Type    NotificationType    `json:"type" gorm:"size:40"`
	Channel NotificationChannel `json:"channel" gorm:"size:10;default:in_app"`
	Status  NotificationStatus  `json:"status" gorm:"size:20;default:pending;index"`

	Title   string `json:"title" gorm:"size:200"`
	Message string `json:"message"`

	GroupID   *uint `json:"group_id,omitempty"`
	SessionID *uint `json:"session_id,omitempty"`
	PaymentID *uint `json:"payment_id,omitempty"`

	RetryCount int `json:"retry_count" gorm:"default:0"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}
