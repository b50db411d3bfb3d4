package notify

import "tontine_manager/internal/models"

// The methods below implement the core's Notifier interface, translating
// state transitions into typed notification events.

func (d *Dispatcher) SessionOpened(group *models.Group, session *models.Session) {
	vars := SessionOpenedVars{
		GroupName:     group.Name,
		SessionNumber: session.SessionNumber,
		Amount:        group.ContributionAmount,
		Currency:      group.Currency,
		DueDate:       session.DueDate,
	}
	refs := Refs{GroupID: &group.ID, SessionID: &session.ID}
	for _, userID := range d.activeMemberUserIDs(group.ID) {
		d.Enqueue(userID, models.ChannelInApp, vars, refs)
	}
}

func (d *Dispatcher) SessionClosed(group *models.Group, session *models.Session) {
	vars := SessionClosedVars{
		GroupName:       group.Name,
		SessionNumber:   session.SessionNumber,
		CollectedAmount: session.CollectedAmount,
		Currency:        group.Currency,
	}
	refs := Refs{GroupID: &group.ID, SessionID: &session.ID}
	for _, userID := range d.activeMemberUserIDs(group.ID) {
		d.Enqueue(userID, models.ChannelInApp, vars, refs)
	}
}

func (d *Dispatcher) PaymentValidated(group *models.Group, payment *models.Payment) {
	d.Enqueue(payment.UserID, models.ChannelInApp, PaymentConfirmationVars{
		GroupName: group.Name,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
	}, Refs{GroupID: &group.ID, SessionID: &payment.SessionID, PaymentID: &payment.ID})
}

func (d *Dispatcher) PayoutTurn(group *models.Group, passage *models.Passage) {
	var member models.Member
	if err := d.db.Preload("User").First(&member, passage.MemberID).Error; err != nil {
		return
	}
	d.Enqueue(member.UserID, models.ChannelInApp, PayoutTurnVars{
		UserName:  member.User.FullName(),
		GroupName: group.Name,
		Amount:    passage.ExpectedAmount,
		Currency:  group.Currency,
	}, Refs{GroupID: &group.ID})
}

func (d *Dispatcher) MemberJoined(group *models.Group, member *models.Member) {
	var user models.User
	if err := d.db.First(&user, member.UserID).Error; err != nil {
		return
	}
	vars := NewMemberVars{GroupName: group.Name, NewMemberName: user.FullName()}
	refs := Refs{GroupID: &group.ID}
	for _, userID := range d.activeMemberUserIDs(group.ID) {
		if userID == member.UserID {
			continue
		}
		d.Enqueue(userID, models.ChannelInApp, vars, refs)
	}
}

func (d *Dispatcher) ContributionReminder(group *models.Group, session *models.Session, member *models.Member) {
	var user models.User
	if err := d.db.First(&user, member.UserID).Error; err != nil {
		return
	}
	d.Enqueue(member.UserID, models.ChannelInApp, ContributionReminderVars{
		UserName:  user.FullName(),
		GroupName: group.Name,
		Amount:    group.ContributionAmount,
		Currency:  group.Currency,
		DueDate:   session.DueDate,
	}, Refs{GroupID: &group.ID, SessionID: &session.ID})
}

func (d *Dispatcher) LateAlert(group *models.Group, session *models.Session, member *models.Member) {
	var user models.User
	if err := d.db.First(&user, member.UserID).Error; err != nil {
		return
	}
	d.Enqueue(member.UserID, models.ChannelInApp, LateAlertVars{
		UserName:  user.FullName(),
		GroupName: group.Name,
		Penalty:   group.PenaltyAmount,
		Currency:  group.Currency,
	}, Refs{GroupID: &group.ID, SessionID: &session.ID})
}

func (d *Dispatcher) activeMemberUserIDs(groupID uint) []uint {
	var ids []uint
	d.db.Model(&models.Member{}).
		Where("group_id = ? AND is_active = ?", groupID, true).
		Pluck("user_id", &ids)
	return ids
}
