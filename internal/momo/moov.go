package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tontine_manager/internal/models"
)

// MoovMoney implements the Moov Money merchant push API.
type MoovMoney struct {
	cfg    OperatorConfig
	client *http.Client
}

func NewMoovMoney(cfg OperatorConfig, client *http.Client) *MoovMoney {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.moov-africa.com"
	}
	return &MoovMoney{cfg: cfg, client: client}
}

func (m *MoovMoney) Initiate(ctx context.Context, amount decimal.Decimal, phone, reference, description string) (*InitiateResult, error) {
	payload, err := json.Marshal(map[string]any{
		"amount":       amount.String(),
		"currency":     "XOF",
		"subscriber":   phone,
		"reference":    reference,
		"description":  description,
		"callback_url": m.cfg.CallbackURL,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.cfg.BaseURL+"/v1/merchant/push", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		logrus.WithFields(logrus.Fields{
			"operator":  "moov_money",
			"reference": reference,
			"status":    resp.StatusCode,
		}).Warn("initiation rejected")
		return &InitiateResult{Success: false, FailureReason: string(body)}, nil
	}

	var out struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &InitiateResult{Success: true, ProviderReference: out.TransactionID}, nil
}

func (m *MoovMoney) NormalizeStatus(operatorStatus string) models.PaymentStatus {
	switch operatorStatus {
	case "SUCCESS":
		return models.PaymentValidated
	case "FAILED":
		return models.PaymentFailed
	case "CANCELLED":
		return models.PaymentCancelled
	default: // PENDING or anything unrecognized
		return models.PaymentInProgress
	}
}
