package tontine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tontine_manager/internal/models"
	"tontine_manager/internal/momo"
)

// stubProvider answers initiations from a canned result and records calls.
type stubProvider struct {
	result    momo.InitiateResult
	err       error
	initiated int
}

func (s *stubProvider) Initiate(ctx context.Context, amount decimal.Decimal, phone, reference, description string) (*momo.InitiateResult, error) {
	s.initiated++
	if s.err != nil {
		return nil, s.err
	}
	r := s.result
	return &r, nil
}

func (s *stubProvider) NormalizeStatus(operatorStatus string) models.PaymentStatus {
	return genericNormalize(operatorStatus)
}

func stubbedEnv(t *testing.T, provider *stubProvider) *testEnv {
	t.Helper()
	return newTestEnvWith(t, momo.NewRegistryWith(map[models.PaymentMethod]momo.Provider{
		models.MethodOrangeMoney: provider,
	}))
}

func TestDuplicatePaymentRejected(t *testing.T) {
	env := newTestEnv(t)
	group, users := seedGroup(t, env, 3, 10000)
	chair := chairOf(users)
	session := openSession(t, env, group, chair)

	if _, err := env.payments.SubmitManual(users[1].ID, session.ID, decimal.NewFromInt(10000), models.MethodCash, "", "", "", ""); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err := env.payments.SubmitManual(users[1].ID, session.ID, decimal.NewFromInt(10000), models.MethodCash, "", "", "", "")
	if !errors.Is(err, ErrDuplicatePayment) {
		t.Fatalf("expected DuplicatePayment while first is pending, got %v", err)
	}
}

func TestCancelUnblocksRetry(t *testing.T) {
	env := newTestEnv(t)
	group, users := seedGroup(t, env, 3, 10000)
	chair := chairOf(users)
	session := openSession(t, env, group, chair)

	p, err := env.payments.SubmitManual(users[1].ID, session.ID, decimal.NewFromInt(10000), models.MethodCash, "", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.payments.Cancel(p.ID, chair, "stuck"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := env.payments.SubmitManual(users[1].ID, session.ID, decimal.NewFromInt(10000), models.MethodCash, "", "", "", ""); err != nil {
		t.Fatalf("retry after cancel should pass, got %v", err)
	}
}

func TestSubmitRequiresOpenSession(t *testing.T) {
	env := newTestEnv(t)
	group, users := seedGroup(t, env, 3, 10000)
	chair := chairOf(users)

	now := time.Now().UTC()
	session, err := env.sessions.Create(group.ID, now, now.AddDate(0, 0, 7), nil, "", chair)
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.payments.SubmitManual(users[1].ID, session.ID, decimal.NewFromInt(10000), models.MethodCash, "", "", "", "")
	if !errors.Is(err, ErrSessionNotOpen) {
		t.Fatalf("expected SessionNotOpen, got %v", err)
	}
}

func TestSubmitRequiresMembership(t *testing.T) {
	env := newTestEnv(t)
	group, users := seedGroup(t, env, 3, 10000)
	chair := chairOf(users)
	session := openSession(t, env, group, chair)

	outsider := models.User{Email: "outsider@example.com", Phone: "+2259999", Password: "x", Role: models.RoleMember, IsActive: true}
	if err := env.db.Create(&outsider).Error; err != nil {
		t.Fatal(err)
	}

	_, err := env.payments.SubmitManual(outsider.ID, session.ID, decimal.NewFromInt(10000), models.MethodCash, "", "", "", "")
	if !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected NotAMember, got %v", err)
	}
}

func TestValidateExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	group, users := seedGroup(t, env, 3, 10000)
	chair := chairOf(users)
	session := openSession(t, env, group, chair)

	p, err := env.payments.SubmitManual(users[1].ID, session.ID, decimal.NewFromInt(10000), models.MethodCash, "", "", "", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := env.payments.Validate(p.ID, chair, true, ""); err != nil {
		t.Fatalf("first validation: %v", err)
	}
	if _, err := env.payments.Validate(p.ID, chair, true, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second validation must fail with InvalidTransition, got %v", err)
	}

	session2 := reloadSession(t, env, session.ID)
	if !session2.CollectedAmount.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("collected = %s after double validate, want 10000", session2.CollectedAmount)
	}
	assertCollectedMatchesValidated(t, env, session.ID)
}

func TestValidateRejectDoesNotCredit(t *testing.T) {
	env := newTestEnv(t)
	group, users := seedGroup(t, env, 3, 10000)
	chair := chairOf(users)
	session := openSession(t, env, group, chair)

	p, err := env.payments.SubmitManual(users[1].ID, session.ID, decimal.NewFromInt(10000), models.MethodCash, "", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	rejected, err := env.payments.Validate(p.ID, chair, false, "no proof")
	if err != nil {
		t.Fatal(err)
	}
	if rejected.Status != models.PaymentFailed || rejected.RejectionReason != "no proof" {
		t.Fatalf("expected failed payment with reason, got %s", rejected.Status)
	}

	if !reloadSession(t, env, session.ID).CollectedAmount.IsZero() {
		t.Fatal("rejection must not credit the pot")
	}
}

func TestLatePenaltyRecordedButNotCredited(t *testing.T) {
	env := newTestEnv(t)
	group, users := seedGroup(t, env, 3, 10000)
	chair := chairOf(users)

	if err := env.db.Model(group).Update("penalty_amount", decimal.NewFromInt(500)).Error; err != nil {
		t.Fatal(err)
	}

	// Session whose due date is already past.
	past := time.Now().UTC().AddDate(0, 0, -10)
	session, err := env.sessions.Create(group.ID, past, past.AddDate(0, 0, 3), nil, "", chair)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.sessions.Open(session.ID, chair); err != nil {
		t.Fatal(err)
	}

	p, err := env.payments.SubmitManual(users[1].ID, session.ID, decimal.NewFromInt(10000), models.MethodCash, "", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsLate {
		t.Fatal("payment past the due date must be late")
	}
	if !p.PenaltyAmount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("penalty = %s, want 500", p.PenaltyAmount)
	}

	if _, err := env.payments.Validate(p.ID, chair, true, ""); err != nil {
		t.Fatal(err)
	}

	// Only the contribution amount reaches the pot; the penalty is tracked
	// on the payment row alone.
	if !reloadSession(t, env, session.ID).CollectedAmount.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("collected = %s, want 10000 (penalty excluded)",
			reloadSession(t, env, session.ID).CollectedAmount)
	}
	member := reloadMember(t, env, group.ID, users[1].ID)
	if !member.TotalContributions.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("total_contributions = %s, want 10000 (penalty excluded)", member.TotalContributions)
	}
}

func TestMobileInitiateAndIdempotentCallback(t *testing.T) {
	provider := &stubProvider{result: momo.InitiateResult{Success: true, ProviderReference: "OM-123"}}
	env := stubbedEnv(t, provider)
	group, users := seedGroup(t, env, 3, 10000)
	chair := chairOf(users)
	session := openSession(t, env, group, chair)

	p, _, err := env.payments.InitiateMobile(context.Background(), users[1].ID, session.ID, models.MethodOrangeMoney, "+22507000001")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if provider.initiated != 1 {
		t.Fatalf("provider called %d times, want 1", provider.initiated)
	}
	if p.Status != models.PaymentInProgress {
		t.Fatalf("initiated payment status %s, want in_progress", p.Status)
	}

	// First SUCCESS delivery validates and credits once.
	if err := env.payments.ApplyOperatorCallback(models.MethodOrangeMoney, p.OperatorReference, "SUCCESS", "TX-1", []byte(`{"status":"SUCCESS"}`)); err != nil {
		t.Fatalf("first callback: %v", err)
	}
	session1 := reloadSession(t, env, session.ID)
	if !session1.CollectedAmount.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("collected = %s after callback, want 10000", session1.CollectedAmount)
	}

	// Redelivery leaves everything as is.
	if err := env.payments.ApplyOperatorCallback(models.MethodOrangeMoney, p.OperatorReference, "SUCCESS", "TX-1", []byte(`{"status":"SUCCESS"}`)); err != nil {
		t.Fatalf("second callback: %v", err)
	}
	session2 := reloadSession(t, env, session.ID)
	if !session2.CollectedAmount.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("redelivery double-credited: %s", session2.CollectedAmount)
	}

	var reloaded models.Payment
	if err := env.db.First(&reloaded, p.ID).Error; err != nil {
		t.Fatal(err)
	}
	if reloaded.Status != models.PaymentValidated {
		t.Fatalf("payment status %s, want validated", reloaded.Status)
	}
	assertCollectedMatchesValidated(t, env, session.ID)
}

// Two settlement paths racing for the same payment must credit the session
// and member aggregates exactly once, whichever lands first. The losing write
// is conditional on the pending/in_progress status and affects zero rows.
func TestReviewAndCallbackSettleExactlyOnce(t *testing.T) {
	provider := &stubProvider{result: momo.InitiateResult{Success: true}}
	env := stubbedEnv(t, provider)
	group, users := seedGroup(t, env, 3, 10000)
	chair := chairOf(users)
	session := openSession(t, env, group, chair)

	// Operator settles first; a manager review landing afterwards must fail
	// without touching the totals.
	p, _, err := env.payments.InitiateMobile(context.Background(), users[1].ID, session.ID, models.MethodOrangeMoney, "+22507000001")
	if err != nil {
		t.Fatal(err)
	}
	if err := env.payments.ApplyOperatorCallback(models.MethodOrangeMoney, p.OperatorReference, "SUCCESS", "TX-1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := env.payments.Validate(p.ID, chair, true, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("review after operator settlement must fail, got %v", err)
	}

	// Manager settles first; a success callback for the same reference is a
	// redelivery and must leave the totals alone.
	m, err := env.payments.SubmitManual(users[2].ID, session.ID, decimal.NewFromInt(10000), models.MethodCash, "", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.payments.Validate(m.ID, chair, true, ""); err != nil {
		t.Fatal(err)
	}
	if err := env.payments.ApplyOperatorCallback(models.MethodOrangeMoney, m.OperatorReference, "SUCCESS", "TX-2", nil); err != nil {
		t.Fatal(err)
	}

	if got := reloadSession(t, env, session.ID).CollectedAmount; !got.Equal(decimal.NewFromInt(20000)) {
		t.Fatalf("collected = %s, want 20000 (one credit per payment)", got)
	}
	for _, u := range []models.User{users[1], users[2]} {
		member := reloadMember(t, env, group.ID, u.ID)
		if !member.TotalContributions.Equal(decimal.NewFromInt(10000)) {
			t.Fatalf("total_contributions for user %d = %s, want 10000", u.ID, member.TotalContributions)
		}
	}
	assertCollectedMatchesValidated(t, env, session.ID)
}

func TestCallbackUnknownReferenceSwallowed(t *testing.T) {
	env := newTestEnv(t)

	err := env.payments.ApplyOperatorCallback(models.MethodWave, "TTN-NOSUCHREF", "SUCCESS", "TX-9", nil)
	if err != nil {
		t.Fatalf("unknown reference must be swallowed, got %v", err)
	}
}

func TestCallbackOutOfOrderIgnored(t *testing.T) {
	provider := &stubProvider{result: momo.InitiateResult{Success: true}}
	env := stubbedEnv(t, provider)
	group, users := seedGroup(t, env, 3, 10000)
	chair := chairOf(users)
	session := openSession(t, env, group, chair)

	p, _, err := env.payments.InitiateMobile(context.Background(), users[1].ID, session.ID, models.MethodOrangeMoney, "+22507000001")
	if err != nil {
		t.Fatal(err)
	}

	if err := env.payments.ApplyOperatorCallback(models.MethodOrangeMoney, p.OperatorReference, "SUCCESS", "TX-1", nil); err != nil {
		t.Fatal(err)
	}
	// A stale FAILED arriving after validation must not move the payment.
	if err := env.payments.ApplyOperatorCallback(models.MethodOrangeMoney, p.OperatorReference, "FAILED", "TX-1", nil); err != nil {
		t.Fatal(err)
	}

	var reloaded models.Payment
	if err := env.db.First(&reloaded, p.ID).Error; err != nil {
		t.Fatal(err)
	}
	if reloaded.Status != models.PaymentValidated {
		t.Fatalf("stale callback moved payment to %s", reloaded.Status)
	}
	assertCollectedMatchesValidated(t, env, session.ID)
}

func TestMobileInitiateRejectedByOperator(t *testing.T) {
	provider := &stubProvider{result: momo.InitiateResult{Success: false, FailureReason: "insufficient funds"}}
	env := stubbedEnv(t, provider)
	group, users := seedGroup(t, env, 3, 10000)
	chair := chairOf(users)
	session := openSession(t, env, group, chair)

	p, result, err := env.payments.InitiateMobile(context.Background(), users[1].ID, session.ID, models.MethodOrangeMoney, "+22507000001")
	if err != nil {
		t.Fatal(err)
	}
	if result == nil || result.Success {
		t.Fatal("expected a rejected initiation result")
	}

	var reloaded models.Payment
	if err := env.db.First(&reloaded, p.ID).Error; err != nil {
		t.Fatal(err)
	}
	if reloaded.Status != models.PaymentFailed {
		t.Fatalf("rejected initiation left payment in %s", reloaded.Status)
	}

	// The member can immediately retry.
	if _, _, err := env.payments.InitiateMobile(context.Background(), users[1].ID, session.ID, models.MethodOrangeMoney, "+22507000001"); err != nil {
		t.Fatalf("retry after operator rejection: %v", err)
	}
}

func TestUnconfiguredOperatorFailsAttempt(t *testing.T) {
	env := newTestEnv(t) // empty provider table
	group, users := seedGroup(t, env, 3, 10000)
	chair := chairOf(users)
	session := openSession(t, env, group, chair)

	_, _, err := env.payments.InitiateMobile(context.Background(), users[1].ID, session.ID, models.MethodMTNMoMo, "+22505000001")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected Validation for unconfigured operator, got %v", err)
	}

	// The failed attempt must not block a manual fallback.
	if _, err := env.payments.SubmitManual(users[1].ID, session.ID, decimal.NewFromInt(10000), models.MethodCash, "", "", "", ""); err != nil {
		t.Fatalf("manual fallback blocked: %v", err)
	}
}

func TestRefundKeepsAggregates(t *testing.T) {
	env := newTestEnv(t)
	group, users := seedGroup(t, env, 3, 10000)
	chair := chairOf(users)
	session := openSession(t, env, group, chair)

	p, err := env.payments.SubmitManual(users[1].ID, session.ID, decimal.NewFromInt(10000), models.MethodCash, "", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.payments.Validate(p.ID, chair, true, ""); err != nil {
		t.Fatal(err)
	}

	refunded, err := env.payments.Refund(p.ID, chair, "session voided")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunded.Status != models.PaymentRefunded {
		t.Fatalf("expected refunded, got %s", refunded.Status)
	}

	// Reversal bookkeeping is out of scope: the pot total stands.
	if !reloadSession(t, env, session.ID).CollectedAmount.Equal(decimal.NewFromInt(10000)) {
		t.Fatal("refund must not decrement collected_amount")
	}

	// Refunding anything but a validated payment is illegal.
	if _, err := env.payments.Refund(p.ID, chair, "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected InvalidTransition on double refund, got %v", err)
	}
}
