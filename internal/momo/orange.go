package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tontine_manager/internal/models"
)

// OrangeMoney implements the Orange Money webpay API. Initiation runs an
// OAuth client-credentials exchange first; the token is cached until a call
// fails with 401.
type OrangeMoney struct {
	cfg    OperatorConfig
	client *http.Client

	mu    sync.Mutex
	token string
}

func NewOrangeMoney(cfg OperatorConfig, client *http.Client) *OrangeMoney {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.orange.com/orange-money-webpay"
	}
	return &OrangeMoney{cfg: cfg, client: client}
}

func (o *OrangeMoney) accessToken(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.token != "" {
		return o.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.orange.com/oauth/v3/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(o.cfg.APIKey, o.cfg.APISecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("orange oauth failed: %s: %s", resp.Status, body)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	o.token = out.AccessToken
	return o.token, nil
}

func (o *OrangeMoney) Initiate(ctx context.Context, amount decimal.Decimal, phone, reference, description string) (*InitiateResult, error) {
	token, err := o.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"merchant_key": o.cfg.APIKey,
		"currency":     "OUV",
		"order_id":     reference,
		"amount":       amount.String(),
		"return_url":   o.cfg.CallbackURL,
		"cancel_url":   o.cfg.CallbackURL,
		"notif_url":    o.cfg.CallbackURL,
		"lang":         "fr",
		"reference":    description,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.cfg.BaseURL+"/v1/webpayment", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		logrus.WithFields(logrus.Fields{
			"operator":  "orange_money",
			"reference": reference,
			"status":    resp.StatusCode,
		}).Warn("initiation rejected")
		return &InitiateResult{Success: false, FailureReason: string(body)}, nil
	}

	var out struct {
		PaymentURL string `json:"payment_url"`
		PayToken   string `json:"pay_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &InitiateResult{
		Success:           true,
		ProviderReference: out.PayToken,
		PaymentURL:        out.PaymentURL,
	}, nil
}

func (o *OrangeMoney) NormalizeStatus(operatorStatus string) models.PaymentStatus {
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
