package service

import (
	"context"
	"encoding/json"

	"github.com/devmatch/be-talent-pipeline/internal/apperrors"
	"github.com/devmatch/be-talent-pipeline/internal/client"
	"github.com/devmatch/be-talent-pipeline/internal/logger"
	"github.com/devmatch/be-talent-pipeline/internal/repository"
)

// CreditService exposes the ledger: balance, history, purchases.
type CreditService struct {
	ledger        LedgerStore
	payments      client.PaymentClientInterface
	log           *logger.Logger
	webhookSecret string
}

// NewCreditService creates a new credit service.
func NewCreditService(ledger LedgerStore, payments client.PaymentClientInterface, log *logger.Logger, webhookSecret string) *CreditService {
	return &CreditService{
		ledger:        ledger,
		payments:      payments,
		log:           log,
		webhookSecret: webhookSecret,
	}
}

// GetBalance returns a company's current credit balance.
func (s *CreditService) GetBalance(ctx context.Context, companyID string) (int64, error) {
	return s.ledger.GetBalance(ctx, companyID)
}

// GetTransactionHistory returns ledger rows, newest first.
func (s *CreditService) GetTransactionHistory(ctx context.Context, companyID string, limit, offset int) ([]*repository.CreditTransaction, int64, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.ledger.History(ctx, companyID, limit, offset)
}

// StartCheckout opens a purchase with the payment processor. The balance is
// only credited later, when the processor's signed callback confirms.
func (s *CreditService) StartCheckout(ctx context.Context, companyID string, credits int64) (*client.Checkout, error) {
	if credits < 1 {
		return nil, apperrors.InvalidInput("credits", "must purchase at least 1 credit")
	}

	checkout, err := s.payments.CreateCheckout(ctx, companyID, credits)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("company_id", companyID).
		Int64("credits", credits).
		Str("reference", checkout.Reference).
		Msg("Checkout created")

	return checkout, nil
}

// paymentCallback is the processor's confirmation payload.
type paymentCallback struct {
	Reference string `json:"reference"`
	CompanyID string `json:"company_id"`
	Credits   int64  `json:"credits"`
	Status    string `json:"status"`
}

// HandlePaymentCallback verifies the processor's signature and appends the
// PURCHASE transaction. Duplicate deliveries for the same reference are
// absorbed without a second credit.
func (s *CreditService) HandlePaymentCallback(ctx context.Context, body []byte, signature string) (*repository.CreditTransaction, error) {
	if !client.VerifyCallbackSignature(s.webhookSecret, body, signature) {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "payment callback signature mismatch")
	}

	var cb paymentCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, apperrors.InvalidInput("body", "malformed payment callback")
	}
	if cb.Reference == "" || cb.CompanyID == "" {
		return nil, apperrors.InvalidInput("body", "payment callback missing reference or company")
	}
	if cb.Status != "" && cb.Status != "succeeded" {
		return nil, apperrors.InvalidInput("status", "payment callback is not a success confirmation")
	}
	if cb.Credits < 1 {
		return nil, apperrors.InvalidInput("credits", "payment callback credits must be positive")
	}

	tx, applied, err := s.ledger.AppendPurchase(ctx, cb.CompanyID, cb.Credits, cb.Reference)
	if err != nil {
		return nil, err
	}

	if !applied {
		s.log.Warn().
			Str("company_id", cb.CompanyID).
			Str("reference", cb.Reference).
			Msg("Duplicate payment callback ignored")
		return tx, nil
	}

	s.log.Info().
		Str("company_id", cb.CompanyID).
		Str("reference", cb.Reference).
		Int64("credits", cb.Credits).
		Int64("balance_after", tx.BalanceAfter).
		Msg("Credits purchased")

	return tx, nil
}
