package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/devmatch/be-talent-pipeline/internal/apperrors"
	"github.com/devmatch/be-talent-pipeline/internal/database"
)

// LedgerRepository owns the credit balance and the append-only transaction
// log. No other component writes balances; every balance change goes through
// a transaction here and leaves a ledger row.
type LedgerRepository struct {
	db *database.DB
}

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// GetBalance returns a company's current credit balance.
func (r *LedgerRepository) GetBalance(ctx context.Context, companyID string) (int64, error) {
	query := `SELECT credit_balance FROM companies WHERE id = $1`

	var balance int64
	err := r.db.QueryRow(ctx, query, companyID).Scan(&balance)
	if err == pgx.ErrNoRows {
		return 0, apperrors.NotFound("company", companyID)
	}
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get balance")
	}
	return balance, nil
}

// History returns a company's ledger rows, newest first.
func (r *LedgerRepository) History(ctx context.Context, companyID string, limit, offset int) ([]*CreditTransaction, int64, error) {
	countQuery := `SELECT COUNT(*) FROM credit_transactions WHERE company_id = $1`

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, companyID).Scan(&total); err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to count transactions")
	}

	query := `
		SELECT id, company_id, type, amount, balance_after, related_developer_id, payment_ref, created_at
		FROM credit_transactions
		WHERE company_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, companyID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list transactions")
	}
	defer rows.Close()

	txs := make([]*CreditTransaction, 0)
	for rows.Next() {
		t := &CreditTransaction{}
		err := rows.Scan(&t.ID, &t.CompanyID, &t.Type, &t.Amount, &t.BalanceAfter,
			&t.RelatedDeveloperID, &t.PaymentRef, &t.CreatedAt)
		if err != nil {
			return nil, 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan transaction")
		}
		txs = append(txs, t)
	}

	return txs, total, nil
}

// GetUnlock returns the unlock record for a (company, developer) pair.
func (r *LedgerRepository) GetUnlock(ctx context.Context, companyID, developerID string) (*UnlockedReport, error) {
	query := `
		SELECT id, company_id, developer_id, created_at
		FROM unlocked_reports
		WHERE company_id = $1 AND developer_id = $2
	`

	report := &UnlockedReport{}
	err := r.db.QueryRow(ctx, query, companyID, developerID).
		Scan(&report.ID, &report.CompanyID, &report.DeveloperID, &report.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("unlocked report", developerID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get unlocked report")
	}
	return report, nil
}

// AppendPurchase credits a company's balance and appends the PURCHASE row,
// atomically. paymentRef is the processor's payment reference; a repeated
// callback for the same reference is absorbed without a second credit and
// reported via the applied flag.
func (r *LedgerRepository) AppendPurchase(ctx context.Context, companyID string, credits int64, paymentRef string) (*CreditTransaction, bool, error) {
	result := &CreditTransaction{
		CompanyID:  companyID,
		Type:       TxPurchase,
		Amount:     credits,
		PaymentRef: &paymentRef,
	}

	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		var balance int64
		lockQuery := `SELECT credit_balance FROM companies WHERE id = $1 FOR UPDATE`
		err := tx.QueryRow(ctx, lockQuery, companyID).Scan(&balance)
		if err == pgx.ErrNoRows {
			return apperrors.NotFound("company", companyID)
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to lock balance")
		}

		result.BalanceAfter = balance + credits

		insertQuery := `
			INSERT INTO credit_transactions (company_id, type, amount, balance_after, payment_ref)
			VALUES ($1, 'PURCHASE', $2, $3, $4)
			RETURNING id, created_at
		`
		err = tx.QueryRow(ctx, insertQuery, companyID, credits, result.BalanceAfter, paymentRef).
			Scan(&result.ID, &result.CreatedAt)
		if database.IsUniqueViolation(err, "credit_transactions_payment_ref_key") {
			return apperrors.Conflict("payment reference already processed")
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to append purchase")
		}

		updateQuery := `UPDATE companies SET credit_balance = $2 WHERE id = $1`
		if _, err := tx.Exec(ctx, updateQuery, companyID, result.BalanceAfter); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to update balance")
		}
		return nil
	})

	if apperrors.IsCode(err, apperrors.CodeConflict) {
		// Duplicate delivery of the same payment reference: return the row
		// written the first time, with no new credit.
		existing, lookupErr := r.getByPaymentRef(ctx, paymentRef)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

func (r *LedgerRepository) getByPaymentRef(ctx context.Context, paymentRef string) (*CreditTransaction, error) {
	query := `
		SELECT id, company_id, type, amount, balance_after, related_developer_id, payment_ref, created_at
		FROM credit_transactions
		WHERE payment_ref = $1
	`

	t := &CreditTransaction{}
	err := r.db.QueryRow(ctx, query, paymentRef).
		Scan(&t.ID, &t.CompanyID, &t.Type, &t.Amount, &t.BalanceAfter,
			&t.RelatedDeveloperID, &t.PaymentRef, &t.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("credit transaction", paymentRef)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get transaction")
	}
	return t, nil
}

// UnlockResult is the outcome of ExecuteUnlock.
type UnlockResult struct {
	Report     *UnlockedReport
	Debit      *CreditTransaction
	NewBalance int64
}

// ErrAlreadyUnlocked is surfaced by ExecuteUnlock when a concurrent call won
// the race on the (company, developer) uniqueness constraint. Callers treat
// it as benign.
var ErrAlreadyUnlocked = apperrors.Conflict("report already unlocked")

// ExecuteUnlock performs the atomic unlock: lock the balance row, re-check
// the balance, insert the unlock record, append the UNLOCK_DEBIT, and
// advance the pipeline entry from ASSESSED to UNLOCKED. All five steps
// commit or roll back together.
//
// The row lock serializes concurrent debits on one company; the uniqueness
// constraint on unlocked_reports(company_id, developer_id) is the final
// arbiter for two racing unlocks of the same developer.
func (r *LedgerRepository) ExecuteUnlock(ctx context.Context, companyID, developerID string) (*UnlockResult, error) {
	result := &UnlockResult{
		Report: &UnlockedReport{CompanyID: companyID, DeveloperID: developerID},
		Debit: &CreditTransaction{
			CompanyID:          companyID,
			Type:               TxUnlockDebit,
			Amount:             -1,
			RelatedDeveloperID: &developerID,
		},
	}

	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		var balance int64
		lockQuery := `SELECT credit_balance FROM companies WHERE id = $1 FOR UPDATE`
		err := tx.QueryRow(ctx, lockQuery, companyID).Scan(&balance)
		if err == pgx.ErrNoRows {
			return apperrors.NotFound("company", companyID)
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to lock balance")
		}

		if balance < 1 {
			return apperrors.New(apperrors.CodeInsufficientCredits, "no credits available")
		}

		reportQuery := `
			INSERT INTO unlocked_reports (company_id, developer_id)
			VALUES ($1, $2)
			RETURNING id, created_at
		`
		err = tx.QueryRow(ctx, reportQuery, companyID, developerID).
			Scan(&result.Report.ID, &result.Report.CreatedAt)
		if database.IsUniqueViolation(err, "unlocked_reports_company_id_developer_id_key") {
			return ErrAlreadyUnlocked
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create unlocked report")
		}

		result.NewBalance = balance - 1
		result.Debit.BalanceAfter = result.NewBalance

		debitQuery := `
			INSERT INTO credit_transactions (company_id, type, amount, balance_after, related_developer_id)
			VALUES ($1, 'UNLOCK_DEBIT', -1, $2, $3)
			RETURNING id, created_at
		`
		err = tx.QueryRow(ctx, debitQuery, companyID, result.NewBalance, developerID).
			Scan(&result.Debit.ID, &result.Debit.CreatedAt)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to append unlock debit")
		}

		balanceQuery := `UPDATE companies SET credit_balance = $2 WHERE id = $1`
		if _, err := tx.Exec(ctx, balanceQuery, companyID, result.NewBalance); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to update balance")
		}

		// Advance ASSESSED → UNLOCKED. A no-op when the stage already moved;
		// the unlock itself does not depend on it.
		stageQuery := `
			UPDATE pipeline_entries
			SET stage = 'UNLOCKED',
			    updated_at = NOW()
			WHERE company_id = $1 AND developer_id = $2 AND stage = 'ASSESSED'
		`
		if _, err := tx.Exec(ctx, stageQuery, companyID, developerID); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to advance pipeline stage")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
