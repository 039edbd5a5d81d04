package service

import (
	"context"

	"github.com/devmatch/be-talent-pipeline/internal/apperrors"
	"github.com/devmatch/be-talent-pipeline/internal/logger"
	"github.com/devmatch/be-talent-pipeline/internal/repository"
)

// LedgerStore is the persistence surface the unlock and credit services
// need. Implemented by repository.LedgerRepository.
type LedgerStore interface {
	GetBalance(ctx context.Context, companyID string) (int64, error)
	History(ctx context.Context, companyID string, limit, offset int) ([]*repository.CreditTransaction, int64, error)
	AppendPurchase(ctx context.Context, companyID string, credits int64, paymentRef string) (*repository.CreditTransaction, bool, error)
	GetUnlock(ctx context.Context, companyID, developerID string) (*repository.UnlockedReport, error)
	ExecuteUnlock(ctx context.Context, companyID, developerID string) (*repository.UnlockResult, error)
}

// StageSyncer reconciles a pipeline entry's stored stage with the analysis
// engine. Implemented by PipelineService.
type StageSyncer interface {
	SyncStage(ctx context.Context, entryID, companyID string) (*repository.PipelineEntry, error)
}

// UnlockService coordinates the atomic spend-one-credit report unlock.
type UnlockService struct {
	ledger   LedgerStore
	pipeline PipelineStore
	stages   StageSyncer
	log      *logger.Logger
}

// NewUnlockService creates a new unlock service.
func NewUnlockService(ledger LedgerStore, pipeline PipelineStore, stages StageSyncer, log *logger.Logger) *UnlockService {
	return &UnlockService{ledger: ledger, pipeline: pipeline, stages: stages, log: log}
}

// UnlockOutcome is the result of UnlockReport. Repeat unlocks return the
// original record with AlreadyUnlocked set and no new debit.
type UnlockOutcome struct {
	Report          *repository.UnlockedReport `json:"report"`
	Balance         int64                      `json:"balance"`
	AlreadyUnlocked bool                       `json:"alreadyUnlocked"`
}

// UnlockReport spends one credit to permanently unlock a developer's report.
//
// The pre-checks here are advisory; the repository transaction re-checks
// the balance under a row lock and the unique (company, developer)
// constraint settles any race, so two concurrent calls produce exactly one
// debit.
func (s *UnlockService) UnlockReport(ctx context.Context, companyID, developerID string) (*UnlockOutcome, error) {
	entry, err := s.pipeline.GetByDeveloper(ctx, companyID, developerID)
	if err != nil {
		return nil, err
	}
	// The stored stage can lag the analysis engine. Reconcile before the
	// gate so a freshly assessed developer is unlockable immediately; a
	// failed sync falls back to the stored stage.
	if synced, syncErr := s.stages.SyncStage(ctx, entry.ID, companyID); syncErr == nil {
		entry = synced
	}
	if entry.EffectiveStage().Rank() < repository.StageAssessed.Rank() {
		return nil, apperrors.NotFound("assessed report for developer", developerID)
	}

	// Pay once, view forever: a repeat call is a read, not a charge.
	if report, err := s.ledger.GetUnlock(ctx, companyID, developerID); err == nil {
		return s.alreadyUnlocked(ctx, companyID, report)
	} else if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		return nil, err
	}

	result, err := s.ledger.ExecuteUnlock(ctx, companyID, developerID)
	if apperrors.IsCode(err, apperrors.CodeConflict) {
		// Lost a race with a concurrent unlock of the same developer. That
		// call paid; this one reads through.
		report, lookupErr := s.ledger.GetUnlock(ctx, companyID, developerID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		return s.alreadyUnlocked(ctx, companyID, report)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("company_id", companyID).
		Str("developer_id", developerID).
		Int64("balance_after", result.NewBalance).
		Msg("Report unlocked")

	return &UnlockOutcome{
		Report:  result.Report,
		Balance: result.NewBalance,
	}, nil
}

func (s *UnlockService) alreadyUnlocked(ctx context.Context, companyID string, report *repository.UnlockedReport) (*UnlockOutcome, error) {
	balance, err := s.ledger.GetBalance(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return &UnlockOutcome{
		Report:          report,
		Balance:         balance,
		AlreadyUnlocked: true,
	}, nil
}
