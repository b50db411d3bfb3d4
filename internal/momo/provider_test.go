package momo

import (
	"net/http"
	"testing"
	"time"

	"tontine_manager/internal/models"
)

func testClient() *http.Client {
	return &http.Client{Timeout: time.Second}
}

func TestNormalizeStatusPerOperator(t *testing.T) {
	cfg := OperatorConfig{APIKey: "k", APISecret: "s"}
	client := testClient()

	cases := []struct {
		name     string
		provider Provider
		statuses map[string]models.PaymentStatus
	}{
		{
			name:     "orange",
			provider: NewOrangeMoney(cfg, client),
			statuses: map[string]models.PaymentStatus{
				"SUCCESS":   models.PaymentValidated,
				"FAILED":    models.PaymentFailed,
				"CANCELLED": models.PaymentCancelled,
				"PENDING":   models.PaymentInProgress,
				"garbage":   models.PaymentInProgress,
			},
		},
		{
			name:     "mtn",
			provider: NewMTNMoMo(cfg, client),
			statuses: map[string]models.PaymentStatus{
				"SUCCESSFUL": models.PaymentValidated,
				"FAILED":     models.PaymentFailed,
				"PENDING":    models.PaymentInProgress,
			},
		},
		{
			name:     "wave",
			provider: NewWave(cfg, client),
			statuses: map[string]models.PaymentStatus{
				"succeeded": models.PaymentValidated,
				"failed":    models.PaymentFailed,
				"cancelled": models.PaymentCancelled,
				"pending":   models.PaymentInProgress,
			},
		},
		{
			name:     "moov",
			provider: NewMoovMoney(cfg, client),
			statuses: map[string]models.PaymentStatus{
				"SUCCESS":   models.PaymentValidated,
				"FAILED":    models.PaymentFailed,
				"CANCELLED": models.PaymentCancelled,
				"WAITING":   models.PaymentInProgress,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for in, want := range tc.statuses {
				if got := tc.provider.NormalizeStatus(in); got != want {
					t.Errorf("%s: NormalizeStatus(%q) = %s, want %s", tc.name, in, got, want)
				}
			}
		})
	}
}

func TestRegistrySkipsUnconfiguredOperators(t *testing.T) {
	reg := NewRegistry(
		OperatorConfig{APIKey: "orange-key"},
		OperatorConfig{}, // MTN not configured
		OperatorConfig{APIKey: "wave-key"},
		OperatorConfig{},
	)

	if _, ok := reg.Provider(models.MethodOrangeMoney); !ok {
		t.Error("orange should be configured")
	}
	if _, ok := reg.Provider(models.MethodMTNMoMo); ok {
		t.Error("mtn should be absent")
	}
	if _, ok := reg.Provider(models.MethodWave); !ok {
		t.Error("wave should be configured")
	}
	if _, ok := reg.Provider(models.MethodCash); ok {
		t.Error("cash never has a provider")
	}
}
