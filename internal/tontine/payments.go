package tontine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tontine_manager/internal/models"
	"tontine_manager/internal/momo"
)

// PaymentEngine validates, accepts or rejects contribution attempts and is
// the only writer of session.collected_amount and member.total_contributions.
type PaymentEngine struct {
	db        *gorm.DB
	notifier  Notifier
	providers *momo.Registry
}

func NewPaymentEngine(db *gorm.DB, notifier Notifier, providers *momo.Registry) *PaymentEngine {
	return &PaymentEngine{db: db, notifier: notifier, providers: providers}
}

// newOperatorReference mints the globally-unique reference carried through
// operator callbacks. TTN-YYYYMMDD-XXXXXXXX.
func newOperatorReference() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("TTN-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}

// isUniqueViolation detects the Postgres duplicate-key error raised when two
// concurrent attempts race past the in-transaction duplicate check.
func isUniqueViolation(err error) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// checkSubmitPreconditions loads the open session, the group and the active
// membership, and rejects a second live attempt for the same (user, session).
func checkSubmitPreconditions(tx *gorm.DB, userID, sessionID uint) (*models.Session, *models.Group, error) {
	var session models.Session
	if err := tx.First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	if session.Status != models.SessionOpen {
		return nil, nil, ErrSessionNotOpen
	}

	var group models.Group
	if err := tx.First(&group, session.GroupID).Error; err != nil {
		return nil, nil, err
	}

	if _, err := activeMembership(tx, session.GroupID, userID); err != nil {
		return nil, nil, err
	}

	var blocking int64
	err := tx.Model(&models.Payment{}).
		Where("user_id = ? AND session_id = ? AND status IN ?", userID, sessionID,
			[]models.PaymentStatus{models.PaymentPending, models.PaymentInProgress, models.PaymentValidated}).
		Count(&blocking).Error
	if err != nil {
		return nil, nil, err
	}
	if blocking > 0 {
		return nil, nil, ErrDuplicatePayment
	}
	return &session, &group, nil
}

// SubmitManual records a cash/transfer contribution awaiting manager review.
func (e *PaymentEngine) SubmitManual(userID, sessionID uint, amount decimal.Decimal, method models.PaymentMethod, phone, proofURL, proofDescription, notes string) (*models.Payment, error) {
	if !amount.IsPositive() || !method.Valid() {
		return nil, ErrValidation
	}

	var payment *models.Payment
	err := e.db.Transaction(func(tx *gorm.DB) error {
		session, group, err := checkSubmitPreconditions(tx, userID, sessionID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		isLate := now.After(session.DueDate)
		penalty := decimal.Zero
		if isLate {
			penalty = group.PenaltyAmount
		}

		payment = &models.Payment{
			UserID:            userID,
			SessionID:         sessionID,
			GroupID:           session.GroupID,
			Amount:            amount,
			Currency:          group.Currency,
			Method:            method,
			Status:            models.PaymentPending,
			OperatorReference: newOperatorReference(),
			PhoneNumber:       phone,
			ProofURL:          proofURL,
			ProofDescription:  proofDescription,
			IsLate:            isLate,
			PenaltyAmount:     penalty,
			Notes:             notes,
			InitiatedAt:       now,
		}
		return tx.Create(payment).Error
	})
	if isUniqueViolation(err) {
		return nil, ErrDuplicatePayment
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"session_id": sessionID,
		"amount":     payment.Amount.String(),
		"method":     payment.Method,
		"is_late":    payment.IsLate,
	}).Info("manual payment submitted")
	return payment, nil
}

// InitiateMobile starts a mobile-money collection. The payment row is
// committed first; the operator call happens outside any transaction and its
// outcome arrives through ApplyOperatorCallback. The amount is always the
// group's contribution amount.
func (e *PaymentEngine) InitiateMobile(ctx context.Context, userID, sessionID uint, method models.PaymentMethod, phone string) (*models.Payment, *momo.InitiateResult, error) {
	if !method.IsMobileMoney() || phone == "" {
		return nil, nil, ErrValidation
	}

	var payment *models.Payment
	var group *models.Group
	err := e.db.Transaction(func(tx *gorm.DB) error {
		session, g, err := checkSubmitPreconditions(tx, userID, sessionID)
		if err != nil {
			return err
		}
		group = g

		now := time.Now().UTC()
		isLate := now.After(session.DueDate)
		penalty := decimal.Zero
		if isLate {
			penalty = g.PenaltyAmount
		}

		payment = &models.Payment{
			UserID:            userID,
			SessionID:         sessionID,
			GroupID:           session.GroupID,
			Amount:            g.ContributionAmount,
			Currency:          g.Currency,
			Method:            method,
			Status:            models.PaymentInProgress,
			OperatorReference: newOperatorReference(),
			PhoneNumber:       phone,
			IsLate:            isLate,
			PenaltyAmount:     penalty,
			InitiatedAt:       now,
		}
		return tx.Create(payment).Error
	})
	if isUniqueViolation(err) {
		return nil, nil, ErrDuplicatePayment
	}
	if err != nil {
		return nil, nil, err
	}

	provider, ok := e.providers.Provider(method)
	if !ok {
		// No operator configured: fail the attempt in its own transaction
		// so the user is not blocked by a payment that can never resolve.
		e.failPayment(payment.ID, "operator not configured: "+string(method))
		return nil, nil, fmt.Errorf("%w: unsupported payment operator", ErrValidation)
	}

	result, err := provider.Initiate(ctx, payment.TotalDue(), phone, payment.OperatorReference,
		fmt.Sprintf("%s - session contribution", group.Name))
	if err != nil {
		// Transport failure: the payment stays in_progress; the operator
		// callback or a manager cancel resolves it.
		logrus.WithFields(logrus.Fields{
			"payment_id": payment.ID,
			"operator":   method,
		}).WithError(err).Error("operator initiation errored")
		return payment, nil, nil
	}
	if !result.Success {
		e.failPayment(payment.ID, result.FailureReason)
		return payment, result, nil
	}

	if result.ProviderReference != "" {
		e.db.Model(&models.Payment{}).Where("id = ?", payment.ID).
			Update("operator_transaction_id", result.ProviderReference)
	}

	logrus.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"operator":   method,
		"reference":  payment.OperatorReference,
	}).Info("mobile payment initiated")
	return payment, result, nil
}

func (e *PaymentEngine) failPayment(paymentID uint, reason string) {
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.First(&payment, paymentID).Error; err != nil {
			return err
		}
		if !payment.Status.CanTransitionTo(models.PaymentFailed) {
			return nil
		}
		return tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, payment.Status).
			Updates(map[string]any{
				"status":           models.PaymentFailed,
				"rejection_reason": reason,
			}).Error
	})
	if err != nil {
		logrus.WithField("payment_id", paymentID).WithError(err).Error("could not mark payment failed")
	}
}

// Validate approves or rejects a pending payment. Manager-only. Approval is
// the single point where session and member aggregates move. The status
// write is conditional on the row still being pending, so of two concurrent
// reviewers exactly one transitions the row and credits; the other affects
// zero rows and gets InvalidTransition.
func (e *PaymentEngine) Validate(paymentID uint, actor Actor, approve bool, rejectionReason string) (*models.Payment, error) {
	var payment models.Payment
	var group models.Group
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&payment, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := requireManager(tx, payment.GroupID, actor); err != nil {
			return err
		}
		if payment.Status != models.PaymentPending {
			return ErrInvalidTransition
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"validated_by_id": actor.UserID,
			"validated_at":    now,
		}
		if approve {
			updates["status"] = models.PaymentValidated
			updates["completed_at"] = now
		} else {
			updates["status"] = models.PaymentFailed
			updates["rejection_reason"] = rejectionReason
		}

		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another reviewer moved the row between our read and this write.
			return ErrInvalidTransition
		}

		payment.ValidatedByID = &actor.UserID
		payment.ValidatedAt = &now
		if !approve {
			payment.Status = models.PaymentFailed
			payment.RejectionReason = rejectionReason
			return nil
		}

		payment.Status = models.PaymentValidated
		payment.CompletedAt = &now
		if err := e.creditAggregates(tx, &payment); err != nil {
			return err
		}
		return tx.First(&group, payment.GroupID).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"approved":   approve,
		"actor":      actor.UserID,
	}).Info("payment reviewed")

	if approve {
		e.notifier.PaymentValidated(&group, &payment)
	}
	return &payment, nil
}

// creditAggregates applies the one-time increments tied to the transition
// into validated. The penalty amount is deliberately not credited to the
// pot; it is tracked on the payment row only.
func (e *PaymentEngine) creditAggregates(tx *gorm.DB, payment *models.Payment) error {
	err := tx.Model(&models.Session{}).Where("id = ?", payment.SessionID).
		Update("collected_amount", gorm.Expr("collected_amount + ?", payment.Amount)).Error
	if err != nil {
		return err
	}
	return tx.Model(&models.Member{}).
		Where("group_id = ? AND user_id = ?", payment.GroupID, payment.UserID).
		Update("total_contributions", gorm.Expr("total_contributions + ?", payment.Amount)).Error
}

// genericNormalize covers callbacks for operators without a configured
// provider, using the union of the operator vocabularies.
func genericNormalize(operatorStatus string) models.PaymentStatus {
	switch strings.ToUpper(operatorStatus) {
	case "SUCCESS", "SUCCESSFUL", "SUCCEEDED":
		return models.PaymentValidated
	case "FAILED", "FAILURE":
		return models.PaymentFailed
	case "CANCELLED", "CANCELED":
		return models.PaymentCancelled
	default:
		return models.PaymentInProgress
	}
}

// ApplyOperatorCallback folds an asynchronous operator notification into the
// payment. Unknown references are logged and swallowed; the external caller
// cannot act on an error. Redelivery of a terminal status is idempotent:
// aggregates move only on the transition into validated.
func (e *PaymentEngine) ApplyOperatorCallback(operator models.PaymentMethod, reference, operatorStatus, transactionID string, rawPayload []byte) error {
	newStatus := genericNormalize(operatorStatus)
	if provider, ok := e.providers.Provider(operator); ok {
		newStatus = provider.NormalizeStatus(operatorStatus)
	}

	var payment models.Payment
	var group models.Group
	validatedNow := false
	err := e.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("operator_reference = ?", reference).First(&payment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithFields(logrus.Fields{
				"operator":  operator,
				"reference": reference,
			}).Warn("callback for unknown payment reference ignored")
			return nil
		}
		if err != nil {
			return err
		}

		if payment.Status == newStatus {
			// Redelivery: refresh operator metadata, touch nothing else.
			return tx.Model(&models.Payment{}).Where("id = ?", payment.ID).
				Updates(map[string]any{
					"operator_transaction_id": transactionID,
					"callback_payload":        string(rawPayload),
				}).Error
		}
		if !payment.Status.CanTransitionTo(newStatus) {
			logrus.WithFields(logrus.Fields{
				"payment_id": payment.ID,
				"from":       payment.Status,
				"to":         newStatus,
			}).Warn("out-of-order operator callback ignored")
			return nil
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":                  newStatus,
			"operator_transaction_id": transactionID,
			"callback_payload":        string(rawPayload),
		}
		if newStatus == models.PaymentValidated {
			updates["completed_at"] = now
		}

		// Conditional on the status read above: when a concurrent delivery
		// wins the transition this affects zero rows and no credit happens.
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, payment.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			logrus.WithFields(logrus.Fields{
				"payment_id": payment.ID,
				"to":         newStatus,
			}).Warn("conflicting operator callback ignored")
			return nil
		}

		payment.Status = newStatus
		payment.OperatorTransactionID = transactionID
		payment.CallbackPayload = string(rawPayload)
		if newStatus == models.PaymentValidated {
			payment.CompletedAt = &now
			validatedNow = true
			if err := e.creditAggregates(tx, &payment); err != nil {
				return err
			}
			return tx.First(&group, payment.GroupID).Error
		}
		return nil
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"operator":  operator,
		"reference": reference,
		"status":    newStatus,
	}).Info("operator callback processed")

	if validatedNow {
		e.notifier.PaymentValidated(&group, &payment)
	}
	return nil
}

// Cancel lets a manager resolve a stuck non-terminal payment so the member
// can retry.
func (e *PaymentEngine) Cancel(paymentID uint, actor Actor, reason string) (*models.Payment, error) {
	var payment models.Payment
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&payment, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := requireManager(tx, payment.GroupID, actor); err != nil {
			return err
		}
		if !payment.Status.CanTransitionTo(models.PaymentCancelled) {
			return ErrInvalidTransition
		}
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, payment.Status).
			Updates(map[string]any{
				"status":           models.PaymentCancelled,
				"rejection_reason": reason,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		payment.Status = models.PaymentCancelled
		payment.RejectionReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Refund marks a validated payment refunded. The only legal move out of a
// terminal state. Aggregates stay untouched; reversal bookkeeping is outside
// this system's scope.
func (e *PaymentEngine) Refund(paymentID uint, actor Actor, reason string) (*models.Payment, error) {
	var payment models.Payment
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&payment, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := requireManager(tx, payment.GroupID, actor); err != nil {
			return err
		}
		if !payment.Status.CanTransitionTo(models.PaymentRefunded) {
			return ErrInvalidTransition
		}
		updates := map[string]any{"status": models.PaymentRefunded}
		if reason != "" {
			updates["notes"] = reason
		}
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, payment.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		payment.Status = models.PaymentRefunded
		if reason != "" {
			payment.Notes = reason
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithField("payment_id", paymentID).Info("payment refunded")
	return &payment, nil
}
