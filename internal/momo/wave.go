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

// Wave implements the Wave checkout-sessions API.
type Wave struct {
	cfg    OperatorConfig
	client *http.Client
}

func NewWave(cfg OperatorConfig, client *http.Client) *Wave {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.wave.com"
	}
	return &Wave{cfg: cfg, client: client}
}

func (w *Wave) Initiate(ctx context.Context, amount decimal.Decimal, phone, reference, description string) (*InitiateResult, error) {
	// Wave takes whole units only.
	payload, err := json.Marshal(map[string]any{
		"amount":           amount.Round(0).String(),
		"currency":         "XOF",
		"error_url":        w.cfg.CallbackURL,
		"success_url":      w.cfg.CallbackURL,
		"client_reference": reference,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		w.cfg.BaseURL+"/v1/checkout/sessions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+w.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		logrus.WithFields(logrus.Fields{
			"operator":  "wave",
			"reference": reference,
			"status":    resp.StatusCode,
		}).Warn("initiation rejected")
		return &InitiateResult{Success: false, FailureReason: string(body)}, nil
	}

	var out struct {
		ID            string `json:"id"`
		WaveLaunchURL string `json:"wave_launch_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &InitiateResult{
		Success:           true,
		ProviderReference: out.ID,
		PaymentURL:        out.WaveLaunchURL,
	}, nil
}

func (w *Wave) NormalizeStatus(operatorStatus string) models.PaymentStatus {
	switch operatorStatus {
	case "succeeded":
		return models.PaymentValidated
	case "failed":
		return models.PaymentFailed
	case "cancelled":
		return models.PaymentCancelled
	default: // "pending" or anything unrecognized
		return models.PaymentInProgress
	}
}
