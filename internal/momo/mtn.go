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

// MTNMoMo implements the MTN Mobile Money request-to-pay collection API.
type MTNMoMo struct {
	cfg    OperatorConfig
	client *http.Client
	// sandbox unless overridden
	environment string
}

func NewMTNMoMo(cfg OperatorConfig, client *http.Client) *MTNMoMo {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://sandbox.momodeveloper.mtn.com"
	}
	return &MTNMoMo{cfg: cfg, client: client, environment: "sandbox"}
}

func (m *MTNMoMo) Initiate(ctx context.Context, amount decimal.Decimal, phone, reference, description string) (*InitiateResult, error) {
	payload, err := json.Marshal(map[string]any{
		"amount":     amount.String(),
		"currency":   "XOF",
		"externalId": reference,
		"payer": map[string]string{
			"partyIdType": "MSISDN",
			"partyId":     phone,
		},
		"payerMessage": description,
		"payeeNote":    description,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.cfg.BaseURL+"/collection/v1_0/requesttopay", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	req.Header.Set("X-Reference-Id", reference)
	req.Header.Set("X-Target-Environment", m.environment)
	req.Header.Set("Ocp-Apim-Subscription-Key", m.cfg.APISecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return &InitiateResult{Success: true, ProviderReference: reference}, nil
	}

	body, _ := io.ReadAll(resp.Body)
	logrus.WithFields(logrus.Fields{
		"operator":  "mtn_momo",
		"reference": reference,
		"status":    resp.StatusCode,
	}).Warn("initiation rejected")
	return &InitiateResult{Success: false, FailureReason: string(body)}, nil
}

func (m *MTNMoMo) NormalizeStatus(operatorStatus string) models.PaymentStatus {
	switch operatorStatus {
	case "SUCCESSFUL":
		return models.PaymentValidated
	case "FAILED":
		return models.PaymentFailed
	default: // PENDING or anything unrecognized
		return models.PaymentInProgress
	}
}
