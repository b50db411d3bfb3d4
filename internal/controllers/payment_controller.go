package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tontine_manager/internal/config"
	"tontine_manager/internal/models"
)

type manualPaymentInput struct {
	Amount           decimal.Decimal `json:"amount" binding:"required"`
	Method           string          `json:"method" binding:"required"`
	Phone            string          `json:"phone"`
	ProofURL         string          `json:"proof_url"`
	ProofDescription string          `json:"proof_description"`
	Notes            string          `json:"notes"`
}

// SubmitManualPayment records a cash or bank-transfer contribution that a
// manager will review.
func SubmitManualPayment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input manualPaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payment, err := payments.SubmitManual(actor.UserID, sessionID, input.Amount,
		models.PaymentMethod(input.Method), input.Phone, input.ProofURL, input.ProofDescription, input.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payment": payment})
}

// InitiateMobilePayment starts a mobile-money collection for the caller. The
// final outcome arrives on the operator callback route.
func InitiateMobilePayment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input struct {
		Method string `json:"method" binding:"required"`
		Phone  string `json:"phone" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payment, result, err := payments.InitiateMobile(c.Request.Context(), actor.UserID, sessionID,
		models.PaymentMethod(input.Method), input.Phone)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"payment": payment}
	if result != nil && result.PaymentURL != "" {
		resp["payment_url"] = result.PaymentURL
	}
	c.JSON(http.StatusCreated, resp)
}

func ListSessionPayments(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var list []models.Payment
	q := config.DB.Where("session_id = ?", sessionID).Order("initiated_at")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error listing payments: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

func ListMyPayments(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var list []models.Payment
	if err := config.DB.Where("user_id = ?", actor.UserID).Order("initiated_at DESC").Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error listing payments: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

func GetPayment(c *gin.Context) {
	paymentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var payment models.Payment
	if err := config.DB.First(&payment, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// ValidatePayment approves or rejects a pending manual payment.
func ValidatePayment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	paymentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input struct {
		Approve         *bool  `json:"approve" binding:"required"`
		RejectionReason string `json:"rejection_reason"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payment, err := payments.Validate(paymentID, actor, *input.Approve, input.RejectionReason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// CancelPayment lets a manager unblock a stuck attempt so the member retries.
func CancelPayment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	paymentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&input)

	payment, err := payments.Cancel(paymentID, actor, input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

func RefundPayment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	paymentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&input)

	payment, err := payments.Refund(paymentID, actor, input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// Operator callbacks. Each operator posts its own payload shape; all of them
// reduce to (reference, status, transaction id) before hitting the engine.
// Unknown references and out-of-order statuses are swallowed by the engine,
// so anything but a 200 here means a storage failure the operator should
// retry against.

func OrangeMoneyCallback(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	var body struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
		TxnID   string `json:"txnid"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.OrderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed callback"})
		return
	}
	if err := payments.ApplyOperatorCallback(models.MethodOrangeMoney, body.OrderID, body.Status, body.TxnID, raw); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "callback processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func MTNMoMoCallback(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	var body struct {
		ExternalID             string `json:"externalId"`
		Status                 string `json:"status"`
		FinancialTransactionID string `json:"financialTransactionId"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.ExternalID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed callback"})
		return
	}
	if err := payments.ApplyOperatorCallback(models.MethodMTNMoMo, body.ExternalID, body.Status, body.FinancialTransactionID, raw); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "callback processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func WaveCallback(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	var body struct {
		ClientReference string `json:"client_reference"`
		PaymentStatus   string `json:"payment_status"`
		TransactionID   string `json:"transaction_id"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.ClientReference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed callback"})
		return
	}
	if err := payments.ApplyOperatorCallback(models.MethodWave, body.ClientReference, body.PaymentStatus, body.TransactionID, raw); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "callback processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func MoovMoneyCallback(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	var body struct {
		Reference     string `json:"reference"`
		Status        string `json:"status"`
		TransactionID string `json:"transaction_id"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed callback"})
		return
	}
	if err := payments.ApplyOperatorCallback(models.MethodMoovMoney, body.Reference, body.Status, body.TransactionID, raw); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "callback processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}
