package notify

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"tontine_manager/internal/models"
)

func TestTemplateVarsValidate(t *testing.T) {
	due := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	valid := []TemplateVars{
		SessionOpenedVars{GroupName: "Djigui", SessionNumber: 1, Amount: decimal.NewFromInt(10000), Currency: "FCFA", DueDate: due},
		SessionClosedVars{GroupName: "Djigui", SessionNumber: 1, CollectedAmount: decimal.NewFromInt(50000), Currency: "FCFA"},
		PaymentConfirmationVars{GroupName: "Djigui", Amount: decimal.NewFromInt(10000), Currency: "FCFA"},
		PayoutTurnVars{UserName: "Awa Traore", GroupName: "Djigui", Amount: decimal.NewFromInt(50000), Currency: "FCFA"},
		NewMemberVars{GroupName: "Djigui", NewMemberName: "Moussa Kone"},
		ContributionReminderVars{UserName: "Awa Traore", GroupName: "Djigui", Amount: decimal.NewFromInt(10000), Currency: "FCFA", DueDate: due},
		LateAlertVars{UserName: "Awa Traore", GroupName: "Djigui", Penalty: decimal.NewFromInt(500), Currency: "FCFA"},
	}
	for _, v := range valid {
		if err := v.Validate(); err != nil {
			t.Errorf("%s: unexpected validation error: %v", v.Type(), err)
		}
		title, message := v.Render()
		if title == "" || message == "" {
			t.Errorf("%s: rendered empty title or message", v.Type())
		}
	}

	invalid := []TemplateVars{
		SessionOpenedVars{SessionNumber: 1},
		SessionClosedVars{GroupName: "Djigui"},
		PaymentConfirmationVars{GroupName: "Djigui"}, // zero amount
		PayoutTurnVars{GroupName: "Djigui"},
		NewMemberVars{NewMemberName: "Moussa Kone"},
		ContributionReminderVars{UserName: "Awa Traore"},
		LateAlertVars{GroupName: "Djigui"},
	}
	for _, v := range invalid {
		if err := v.Validate(); err == nil {
			t.Errorf("%s: incomplete vars passed validation", v.Type())
		}
	}
}

func TestTemplateTypesAreDistinct(t *testing.T) {
	all := []TemplateVars{
		SessionOpenedVars{},
		SessionClosedVars{},
		PaymentConfirmationVars{},
		PayoutTurnVars{},
		NewMemberVars{},
		ContributionReminderVars{},
		LateAlertVars{},
	}
	seen := map[models.NotificationType]bool{}
	for _, v := range all {
		if seen[v.Type()] {
			t.Errorf("duplicate notification type %s", v.Type())
		}
		seen[v.Type()] = true
	}
}

func TestRenderIncludesKeyFacts(t *testing.T) {
	v := PayoutTurnVars{
		UserName:  "Awa Traore",
		GroupName: "Djigui",
		Amount:    decimal.NewFromInt(50000),
		Currency:  "FCFA",
	}
	_, message := v.Render()
	for _, fact := range []string{"Awa Traore", "Djigui", "50000", "FCFA"} {
		if !strings.Contains(message, fact) {
			t.Errorf("payout-turn message missing %q: %s", fact, message)
		}
	}
}

func TestSMSSenderTruncates(t *testing.T) {
	s := &SMSSender{}
	long := strings.Repeat("x", 400)
	if err := s.Send("+22507000001", "title", long); err != nil {
		t.Fatalf("simulated send: %v", err)
	}
}

func TestTruncateRunesKeepsValidUTF8(t *testing.T) {
	// "é" is two bytes; a byte-indexed cut at 160 would land mid-rune.
	long := strings.Repeat("é", 200)
	got := truncateRunes(long, 160)
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a multi-byte rune")
	}
	if utf8.RuneCountInString(got) != 160 {
		t.Fatalf("truncated to %d runes, want 160", utf8.RuneCountInString(got))
	}

	short := "ça va dépasser? non"
	if truncateRunes(short, 160) != short {
		t.Fatal("short message must pass through unchanged")
	}
}

func TestMaskPhone(t *testing.T) {
	if got := maskPhone("+22507000001"); got != "+22507***" {
		t.Errorf("maskPhone = %q", got)
	}
	if got := maskPhone("123"); got != "***" {
		t.Errorf("short maskPhone = %q", got)
	}
}
