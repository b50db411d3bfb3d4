package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSessionTransitions(t *testing.T) {
	legal := []struct{ from, to SessionStatus }{
		{SessionScheduled, SessionOpen},
		{SessionScheduled, SessionCancelled},
		{SessionOpen, SessionClosed},
		{SessionOpen, SessionCancelled},
	}
	for _, c := range legal {
		if !c.from.CanTransitionTo(c.to) {
			t.Errorf("%s -> %s should be legal", c.from, c.to)
		}
	}

	illegal := []struct{ from, to SessionStatus }{
		{SessionScheduled, SessionClosed},
		{SessionOpen, SessionScheduled},
		{SessionClosed, SessionOpen},
		{SessionCancelled, SessionOpen},
		{SessionClosed, SessionCancelled},
	}
	for _, c := range illegal {
		if c.from.CanTransitionTo(c.to) {
			t.Errorf("%s -> %s must be illegal", c.from, c.to)
		}
	}
}

func TestPaymentTransitions(t *testing.T) {
	// refunded is the single legal move out of a terminal state.
	if !PaymentValidated.CanTransitionTo(PaymentRefunded) {
		t.Error("validated -> refunded should be legal")
	}
	for _, to := range []PaymentStatus{PaymentPending, PaymentInProgress, PaymentFailed, PaymentCancelled} {
		if PaymentValidated.CanTransitionTo(to) {
			t.Errorf("validated -> %s must be illegal", to)
		}
	}
	for _, from := range []PaymentStatus{PaymentFailed, PaymentCancelled, PaymentRefunded} {
		for _, to := range []PaymentStatus{PaymentPending, PaymentInProgress, PaymentValidated, PaymentRefunded} {
			if from.CanTransitionTo(to) {
				t.Errorf("%s -> %s must be illegal", from, to)
			}
		}
	}

	if !PaymentPending.CanTransitionTo(PaymentValidated) || !PaymentInProgress.CanTransitionTo(PaymentValidated) {
		t.Error("pending and in_progress must both reach validated")
	}
}

func TestPaymentBlocksNewAttempt(t *testing.T) {
	blocking := []PaymentStatus{PaymentPending, PaymentInProgress, PaymentValidated}
	for _, s := range blocking {
		if !s.BlocksNewAttempt() {
			t.Errorf("%s must block a new attempt", s)
		}
	}
	for _, s := range []PaymentStatus{PaymentFailed, PaymentCancelled, PaymentRefunded} {
		if s.BlocksNewAttempt() {
			t.Errorf("%s must not block a new attempt", s)
		}
	}
}

func TestPassageTransitions(t *testing.T) {
	if !PassageScheduled.CanTransitionTo(PassageInProgress) {
		t.Error("scheduled -> in_progress should be legal")
	}
	if !PassagePostponed.CanTransitionTo(PassageScheduled) {
		t.Error("postponed -> scheduled should be legal")
	}
	if PassageComplete.CanTransitionTo(PassageScheduled) || PassageCancelled.CanTransitionTo(PassageScheduled) {
		t.Error("complete and cancelled are terminal")
	}
}

func TestFrequencyAddTo(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		freq Frequency
		n    int
		want time.Time
	}{
		{FrequencyDaily, 3, start.AddDate(0, 0, 3)},
		{FrequencyWeekly, 2, start.AddDate(0, 0, 14)},
		{FrequencyBiweekly, 1, start.AddDate(0, 0, 14)},
		{FrequencyMonthly, 1, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)},
		{FrequencyQuarterly, 2, time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		if got := c.freq.AddTo(start, c.n); !got.Equal(c.want) {
			t.Errorf("%s.AddTo(+%d) = %s, want %s", c.freq, c.n, got, c.want)
		}
	}
}

func TestSessionCompletionMath(t *testing.T) {
	s := Session{
		ExpectedAmount:  decimal.NewFromInt(50000),
		CollectedAmount: decimal.NewFromInt(30000),
	}
	if s.IsComplete() {
		t.Error("30000/50000 is not complete")
	}
	if pct := s.CollectionPercentage(); pct < 59.9 || pct > 60.1 {
		t.Errorf("collection percentage = %f, want 60", pct)
	}
	if !s.RemainingAmount().Equal(decimal.NewFromInt(20000)) {
		t.Errorf("remaining = %s, want 20000", s.RemainingAmount())
	}

	s.CollectedAmount = decimal.NewFromInt(50000)
	if !s.IsComplete() {
		t.Error("50000/50000 is complete")
	}
	if !s.RemainingAmount().IsZero() {
		t.Errorf("remaining = %s, want 0", s.RemainingAmount())
	}
}
