// Package notify derives notification events from core state transitions
// and dispatches them best-effort. The core never waits on it.
package notify

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tontine_manager/internal/models"
)

// TemplateVars is a typed variable set for one notification type. Each type
// carries exactly the fields its message needs, validated before rendering
// instead of failing at format time on a missing key.
type TemplateVars interface {
	Type() models.NotificationType
	Validate() error
	Render() (title, message string)
}

type SessionOpenedVars struct {
	GroupName     string
	SessionNumber int
	Amount        decimal.Decimal
	Currency      string
	DueDate       time.Time
}

func (v SessionOpenedVars) Type() models.NotificationType { return models.NotifySessionOpened }

func (v SessionOpenedVars) Validate() error {
	if v.GroupName == "" || v.SessionNumber <= 0 {
		return fmt.Errorf("session-opened vars incomplete")
	}
	return nil
}

func (v SessionOpenedVars) Render() (string, string) {
	return "New contribution session",
		fmt.Sprintf("Session #%d of %s is open. Contribution: %s %s, due by %s.",
			v.SessionNumber, v.GroupName, v.Amount.String(), v.Currency, v.DueDate.Format("2006-01-02"))
}

type SessionClosedVars struct {
	GroupName       string
	SessionNumber   int
	CollectedAmount decimal.Decimal
	Currency        string
}

func (v SessionClosedVars) Type() models.NotificationType { return models.NotifySessionClosed }

func (v SessionClosedVars) Validate() error {
	if v.GroupName == "" || v.SessionNumber <= 0 {
		return fmt.Errorf("session-closed vars incomplete")
	}
	return nil
}

func (v SessionClosedVars) Render() (string, string) {
	return "Session closed",
		fmt.Sprintf("Session #%d of %s is closed. Collected: %s %s.",
			v.SessionNumber, v.GroupName, v.CollectedAmount.String(), v.Currency)
}

type PaymentConfirmationVars struct {
	GroupName string
	Amount    decimal.Decimal
	Currency  string
}

func (v PaymentConfirmationVars) Type() models.NotificationType {
	return models.NotifyPaymentConfirmation
}

func (v PaymentConfirmationVars) Validate() error {
	if v.GroupName == "" || !v.Amount.IsPositive() {
		return fmt.Errorf("payment-confirmation vars incomplete")
	}
	return nil
}

func (v PaymentConfirmationVars) Render() (string, string) {
	return "Payment confirmed",
		fmt.Sprintf("Your payment of %s %s for %s has been confirmed. Thank you!",
			v.Amount.String(), v.Currency, v.GroupName)
}

type PayoutTurnVars struct {
	UserName  string
	GroupName string
	Amount    decimal.Decimal
	Currency  string
}

func (v PayoutTurnVars) Type() models.NotificationType { return models.NotifyPayoutTurn }

func (v PayoutTurnVars) Validate() error {
	if v.UserName == "" || v.GroupName == "" {
		return fmt.Errorf("payout-turn vars incomplete")
	}
	return nil
}

func (v PayoutTurnVars) Render() (string, string) {
	return "It's your turn!",
		fmt.Sprintf("Congratulations %s! It's your turn to receive the pot of %s. Expected amount: %s %s.",
			v.UserName, v.GroupName, v.Amount.String(), v.Currency)
}

type NewMemberVars struct {
	GroupName     string
	NewMemberName string
}

func (v NewMemberVars) Type() models.NotificationType { return models.NotifyNewMember }

func (v NewMemberVars) Validate() error {
	if v.GroupName == "" || v.NewMemberName == "" {
		return fmt.Errorf("new-member vars incomplete")
	}
	return nil
}

func (v NewMemberVars) Render() (string, string) {
	return "New member",
		fmt.Sprintf("%s joined %s. Welcome!", v.NewMemberName, v.GroupName)
}

type ContributionReminderVars struct {
	UserName  string
	GroupName string
	Amount    decimal.Decimal
	Currency  string
	DueDate   time.Time
}

func (v ContributionReminderVars) Type() models.NotificationType {
	return models.NotifyContributionReminder
}

func (v ContributionReminderVars) Validate() error {
	if v.UserName == "" || v.GroupName == "" {
		return fmt.Errorf("contribution-reminder vars incomplete")
	}
	return nil
}

func (v ContributionReminderVars) Render() (string, string) {
	return "Contribution reminder",
		fmt.Sprintf("Hello %s, don't forget your contribution of %s %s for %s. Due date: %s.",
			v.UserName, v.Amount.String(), v.Currency, v.GroupName, v.DueDate.Format("2006-01-02"))
}

type LateAlertVars struct {
	UserName  string
	GroupName string
	Penalty   decimal.Decimal
	Currency  string
}

func (v LateAlertVars) Type() models.NotificationType { return models.NotifyLateAlert }

func (v LateAlertVars) Validate() error {
	if v.UserName == "" || v.GroupName == "" {
		return fmt.Errorf("late-alert vars incomplete")
	}
	return nil
}

func (v LateAlertVars) Render() (string, string) {
	return "Late payment",
		fmt.Sprintf("Attention %s, your contribution for %s is late. Applicable penalty: %s %s.",
			v.UserName, v.GroupName, v.Penalty.String(), v.Currency)
}
