package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/devmatch/be-talent-pipeline/internal/apperrors"
	"github.com/devmatch/be-talent-pipeline/internal/logger"
	"github.com/devmatch/be-talent-pipeline/internal/repository"
)

const testWebhookSecret = "whsec-test"

func newTestCreditService(balance int64) (*CreditService, *fakeLedgerStore, *fakePaymentClient) {
	ledger := newFakeLedgerStore(balance)
	payments := &fakePaymentClient{}
	return NewCreditService(ledger, payments, logger.Nop(), testWebhookSecret), ledger, payments
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func callbackBody(reference, companyID string, credits int64) []byte {
	return []byte(fmt.Sprintf(
		`{"reference":%q,"company_id":%q,"credits":%d,"status":"succeeded"}`,
		reference, companyID, credits,
	))
}

func TestHandlePaymentCallbackCreditsBalance(t *testing.T) {
	svc, ledger, _ := newTestCreditService(0)
	body := callbackBody("pay-1", "comp-1", 10)

	tx, err := svc.HandlePaymentCallback(context.Background(), body, sign(testWebhookSecret, body))
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if tx.Type != repository.TxPurchase || tx.Amount != 10 {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	if tx.BalanceAfter != 10 {
		t.Fatalf("balance_after = %d, want 10", tx.BalanceAfter)
	}
	if ledger.balance != 10 {
		t.Fatalf("balance = %d, want 10", ledger.balance)
	}
	if tx.PaymentRef == nil || *tx.PaymentRef != "pay-1" {
		t.Fatalf("payment ref not recorded: %+v", tx.PaymentRef)
	}
}

func TestHandlePaymentCallbackRejectsBadSignature(t *testing.T) {
	svc, ledger, _ := newTestCreditService(0)
	body := callbackBody("pay-1", "comp-1", 10)

	_, err := svc.HandlePaymentCallback(context.Background(), body, sign("wrong-secret", body))
	if !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if len(ledger.txs) != 0 {
		t.Fatal("rejected callback must not touch the ledger")
	}
}

func TestHandlePaymentCallbackRejectsTamperedBody(t *testing.T) {
	svc, _, _ := newTestCreditService(0)
	body := callbackBody("pay-1", "comp-1", 10)
	signature := sign(testWebhookSecret, body)
	tampered := callbackBody("pay-1", "comp-1", 10000)

	_, err := svc.HandlePaymentCallback(context.Background(), tampered, signature)
	if !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for tampered body, got %v", err)
	}
}

func TestHandlePaymentCallbackDuplicateIsAbsorbed(t *testing.T) {
	svc, ledger, _ := newTestCreditService(0)
	body := callbackBody("pay-1", "comp-1", 10)
	signature := sign(testWebhookSecret, body)

	first, err := svc.HandlePaymentCallback(context.Background(), body, signature)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	second, err := svc.HandlePaymentCallback(context.Background(), body, signature)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("redelivery must return the original row, got %s vs %s", second.ID, first.ID)
	}
	if ledger.balance != 10 {
		t.Fatalf("redelivery must not credit twice, balance = %d", ledger.balance)
	}
	if len(ledger.txs) != 1 {
		t.Fatalf("expected one PURCHASE row, got %d", len(ledger.txs))
	}
}

func TestHandlePaymentCallbackValidation(t *testing.T) {
	svc, _, _ := newTestCreditService(0)

	cases := []struct {
		name string
		body []byte
	}{
		{"malformed json", []byte(`{"reference":`)},
		{"missing reference", []byte(`{"company_id":"comp-1","credits":5,"status":"succeeded"}`)},
		{"missing company", []byte(`{"reference":"pay-1","credits":5,"status":"succeeded"}`)},
		{"zero credits", callbackBody("pay-1", "comp-1", 0)},
		{"negative credits", callbackBody("pay-1", "comp-1", -5)},
		{"failed status", []byte(`{"reference":"pay-1","company_id":"comp-1","credits":5,"status":"failed"}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.HandlePaymentCallback(context.Background(), tc.body, sign(testWebhookSecret, tc.body))
			if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestStartCheckoutValidatesCredits(t *testing.T) {
	svc, _, payments := newTestCreditService(0)

	_, err := svc.StartCheckout(context.Background(), "comp-1", 0)
	if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(payments.checkouts) != 0 {
		t.Fatal("invalid request must not reach the processor")
	}

	checkout, err := svc.StartCheckout(context.Background(), "comp-1", 25)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if checkout.CheckoutURL == "" || checkout.Reference == "" {
		t.Fatalf("incomplete checkout: %+v", checkout)
	}
}

func TestGetTransactionHistoryClampsLimit(t *testing.T) {
	svc, _, _ := newTestCreditService(0)
	body := callbackBody("pay-1", "comp-1", 3)
	if _, err := svc.HandlePaymentCallback(context.Background(), body, sign(testWebhookSecret, body)); err != nil {
		t.Fatalf("seed purchase: %v", err)
	}

	txs, total, err := svc.GetTransactionHistory(context.Background(), "comp-1", 0, -5)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 1 || len(txs) != 1 {
		t.Fatalf("expected one row, got %d (total %d)", len(txs), total)
	}
}

// The ledger invariant: after any sequence of purchases and unlocks, the sum
// of transaction amounts equals the live balance.
func TestLedgerSumMatchesBalanceAcrossOperations(t *testing.T) {
	ledger := newFakeLedgerStore(0)
	pipeline := newFakePipelineStore(
		boundEntry("e1", "comp-1", "dev-1", repository.StageAssessed),
		boundEntry("e2", "comp-1", "dev-2", repository.StageAssessed),
	)
	ledger.pipeline = pipeline
	credits := NewCreditService(ledger, &fakePaymentClient{}, logger.Nop(), testWebhookSecret)
	unlocks := NewUnlockService(ledger, pipeline, newTestPipelineService(pipeline, nil), logger.Nop())

	buy := func(ref string, amount int64) {
		t.Helper()
		body := callbackBody(ref, "comp-1", amount)
		if _, err := credits.HandlePaymentCallback(context.Background(), body, sign(testWebhookSecret, body)); err != nil {
			t.Fatalf("purchase %s: %v", ref, err)
		}
	}

	buy("pay-1", 3)
	if _, err := unlocks.UnlockReport(context.Background(), "comp-1", "dev-1"); err != nil {
		t.Fatalf("unlock dev-1: %v", err)
	}
	buy("pay-2", 2)
	buy("pay-2", 2) // duplicate delivery
	if _, err := unlocks.UnlockReport(context.Background(), "comp-1", "dev-2"); err != nil {
		t.Fatalf("unlock dev-2: %v", err)
	}
	if _, err := unlocks.UnlockReport(context.Background(), "comp-1", "dev-1"); err != nil {
		t.Fatalf("repeat unlock dev-1: %v", err)
	}

	if ledger.balance != 3 {
		t.Fatalf("balance = %d, want 3", ledger.balance)
	}
	if got := ledger.amountSum(); got != ledger.balance {
		t.Fatalf("sum of amounts %d != balance %d", got, ledger.balance)
	}
	for _, tx := range ledger.txs {
		if tx.Type == repository.TxUnlockDebit && tx.Amount != -1 {
			t.Fatalf("unlock debit must be exactly -1, got %d", tx.Amount)
		}
	}
}
