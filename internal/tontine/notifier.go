package tontine

import "tontine_manager/internal/models"

// Notifier receives trigger events derived from state transitions. Dispatch
// is fire-and-forget: implementations must never block and are never awaited
// inside an engine transaction.
type Notifier interface {
	SessionOpened(group *models.Group, session *models.Session)
	SessionClosed(group *models.Group, session *models.Session)
	PaymentValidated(group *models.Group, payment *models.Payment)
	PayoutTurn(group *models.Group, passage *models.Passage)
	MemberJoined(group *models.Group, member *models.Member)
	ContributionReminder(group *models.Group, session *models.Session, member *models.Member)
	LateAlert(group *models.Group, session *models.Session, member *models.Member)
}

// NopNotifier discards all triggers. Used by tests.
type NopNotifier struct{}

func (NopNotifier) SessionOpened(*models.Group, *models.Session)                        {}
func (NopNotifier) SessionClosed(*models.Group, *models.Session)                        {}
func (NopNotifier) PaymentValidated(*models.Group, *models.Payment)                     {}
func (NopNotifier) PayoutTurn(*models.Group, *models.Passage)                           {}
func (NopNotifier) MemberJoined(*models.Group, *models.Member)                          {}
func (NopNotifier) ContributionReminder(*models.Group, *models.Session, *models.Member) {}
func (NopNotifier) LateAlert(*models.Group, *models.Session, *models.Member)            {}
