package notify

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tontine_manager/internal/models"
)

const maxSendAttempts = 3

// Refs are the optional entity links stored on the notification row.
type Refs struct {
	GroupID   *uint
	SessionID *uint
	PaymentID *uint
}

type job struct {
	userID  uint
	channel models.NotificationChannel
	vars    TemplateVars
	refs    Refs
}

// Dispatcher persists and delivers notifications from a background worker.
// Enqueue never blocks; when the queue is full the event is dropped with a
// log line, never an error back into a core transaction. It satisfies the
// core's Notifier interface.
type Dispatcher struct {
	db      *gorm.DB
	senders map[models.NotificationChannel]Sender
	queue   chan job
	done    chan struct{}
}

func NewDispatcher(db *gorm.DB, senders map[models.NotificationChannel]Sender, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		db:      db,
		senders: senders,
		queue:   make(chan job, queueSize),
		done:    make(chan struct{}),
	}
}

// Start launches the delivery worker.
func (d *Dispatcher) Start() {
	go func() {
		for j := range d.queue {
			d.deliver(j)
		}
		close(d.done)
	}()
}

// Stop drains the queue and waits for the worker to finish.
func (d *Dispatcher) Stop() {
	close(d.queue)
	<-d.done
}

// Enqueue validates the vars and hands the event to the worker. Fire and
// forget.
func (d *Dispatcher) Enqueue(userID uint, channel models.NotificationChannel, vars TemplateVars, refs Refs) {
	if err := vars.Validate(); err != nil {
		logrus.WithError(err).WithField("type", vars.Type()).Warn("notification vars rejected")
		return
	}
	select {
	case d.queue <- job{userID: userID, channel: channel, vars: vars, refs: refs}:
	default:
		logrus.WithField("type", vars.Type()).Warn("notification queue full, event dropped")
	}
}

func (d *Dispatcher) deliver(j job) {
	title, message := j.vars.Render()

	notification := models.Notification{
		UserID:    j.userID,
		Type:      j.vars.Type(),
		Channel:   j.channel,
		Status:    models.NotificationPending,
		Title:     title,
		Message:   message,
		GroupID:   j.refs.GroupID,
		SessionID: j.refs.SessionID,
		PaymentID: j.refs.PaymentID,
	}
	if err := d.db.Create(&notification).Error; err != nil {
		logrus.WithError(err).Warn("could not persist notification")
		return
	}

	sender, ok := d.senders[j.channel]
	if !ok {
		sender = InAppSender{}
	}

	var user models.User
	if err := d.db.First(&user, j.userID).Error; err != nil {
		d.markFailed(&notification)
		return
	}
	recipient := user.Email
	if j.channel == models.ChannelSMS {
		recipient = user.Phone
	}

	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		notification.RetryCount = attempt - 1
		if err := sender.Send(recipient, title, message); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"notification_id": notification.ID,
				"attempt":         attempt,
			}).Warn("notification send failed")
			continue
		}
		now := time.Now().UTC()
		notification.Status = models.NotificationSent
		notification.SentAt = &now
		d.db.Save(&notification)
		return
	}
	d.markFailed(&notification)
}

func (d *Dispatcher) markFailed(n *models.Notification) {
	n.Status = models.NotificationFailed
	d.db.Save(n)
}

// MarkRead flags an in-app notification as read by its owner.
func (d *Dispatcher) MarkRead(notificationID, userID uint) error {
	now := time.Now().UTC()
	return d.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]any{"status": models.NotificationRead, "read_at": now}).Error
}
