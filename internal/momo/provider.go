// Package momo is the outbound payment-operator boundary. Each mobile-money
// operator gets one Provider implementation; the engine picks one from a
// lookup table keyed by the payment method. Providers are constructed
// explicitly with their own credentials; there is no package-level state.
package momo

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"tontine_manager/internal/models"
)

// InitiateResult is the normalized outcome of an initiation call. A rejected
// initiation is not an error at this boundary; Success carries the verdict.
type InitiateResult struct {
	Success           bool
	ProviderReference string
	PaymentURL        string
	FailureReason     string
}

// Provider is implemented once per operator.
type Provider interface {
	// Initiate asks the operator to start collecting the amount from the
	// phone number. Never called inside a database transaction.
	Initiate(ctx context.Context, amount decimal.Decimal, phone, reference, description string) (*InitiateResult, error)
	// NormalizeStatus maps the operator's status vocabulary onto the
	// internal payment statuses. Unknown values map to in_progress.
	NormalizeStatus(operatorStatus string) models.PaymentStatus
}

// OperatorConfig carries one operator's credentials and endpoints.
type OperatorConfig struct {
	APIKey      string
	APISecret   string
	CallbackURL string
	BaseURL     string
}

// Registry holds the configured providers.
type Registry struct {
	providers map[models.PaymentMethod]Provider
}

// NewRegistry wires one provider per configured operator. Operators with an
// empty config are simply absent from the table.
func NewRegistry(orange, mtn, wave, moov OperatorConfig) *Registry {
	client := &http.Client{Timeout: 30 * time.Second}
	providers := map[models.PaymentMethod]Provider{}
	if orange.APIKey != "" {
		providers[models.MethodOrangeMoney] = NewOrangeMoney(orange, client)
	}
	if mtn.APIKey != "" {
		providers[models.MethodMTNMoMo] = NewMTNMoMo(mtn, client)
	}
	if wave.APIKey != "" {
		providers[models.MethodWave] = NewWave(wave, client)
	}
	if moov.APIKey != "" {
		providers[models.MethodMoovMoney] = NewMoovMoney(moov, client)
	}
	return &Registry{providers: providers}
}

// NewRegistryWith builds a registry from an explicit table. Used by tests.
func NewRegistryWith(providers map[models.PaymentMethod]Provider) *Registry {
	return &Registry{providers: providers}
}

// Provider returns the implementation for a method, if configured.
func (r *Registry) Provider(method models.PaymentMethod) (Provider, bool) {
	p, ok := r.providers[method]
	return p, ok
}
