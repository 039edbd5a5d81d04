package service

import (
	"context"
	"time"

	"github.com/devmatch/be-talent-pipeline/internal/apperrors"
	"github.com/devmatch/be-talent-pipeline/internal/client"
	"github.com/devmatch/be-talent-pipeline/internal/logger"
	"github.com/devmatch/be-talent-pipeline/internal/repository"
)

// maxNotesLength bounds the free-text notes field.
const maxNotesLength = 2000

// PipelineStore is the persistence surface the pipeline service needs.
// Implemented by repository.PipelineRepository.
type PipelineStore interface {
	Create(ctx context.Context, entry *repository.PipelineEntry) error
	GetByID(ctx context.Context, id, companyID string) (*repository.PipelineEntry, error)
	GetByDeveloper(ctx context.Context, companyID, developerID string) (*repository.PipelineEntry, error)
	List(ctx context.Context, companyID string, stage *repository.Stage, search *string, limit, offset int) ([]*repository.PipelineEntry, int64, error)
	Stats(ctx context.Context, companyID string) (*repository.PipelineStats, error)
	AdvanceStage(ctx context.Context, id, companyID string, to repository.Stage, allowedFrom ...repository.Stage) (bool, error)
	UpdateNotes(ctx context.Context, id, companyID, notes string) error
	Delete(ctx context.Context, id, companyID string) error
}

// DeveloperLookup resolves developer accounts by ID.
// Implemented by repository.DeveloperRepository.
type DeveloperLookup interface {
	GetByID(ctx context.Context, id string) (*repository.Developer, error)
}

// PipelineService owns the hiring-funnel state machine.
type PipelineService struct {
	pipeline   PipelineStore
	developers DeveloperLookup
	analysis   client.AnalysisClientInterface
	log        *logger.Logger
	clock      func() time.Time
}

// NewPipelineService creates a new pipeline service.
func NewPipelineService(
	pipeline PipelineStore,
	developers DeveloperLookup,
	analysis client.AnalysisClientInterface,
	log *logger.Logger,
) *PipelineService {
	return &PipelineService{
		pipeline:   pipeline,
		developers: developers,
		analysis:   analysis,
		log:        log,
		clock:      time.Now,
	}
}

// ListEntries lists a company's pipeline entries with optional filters.
func (s *PipelineService) ListEntries(ctx context.Context, companyID string, stage *repository.Stage, search *string, page, pageSize int) ([]*repository.PipelineEntry, int64, error) {
	if stage != nil && !stage.Valid() {
		return nil, 0, apperrors.InvalidInput("stage", "unknown pipeline stage")
	}
	offset := (page - 1) * pageSize
	return s.pipeline.List(ctx, companyID, stage, search, pageSize, offset)
}

// GetStats computes the per-stage projection on demand.
func (s *PipelineService) GetStats(ctx context.Context, companyID string) (*repository.PipelineStats, error) {
	return s.pipeline.Stats(ctx, companyID)
}

// GetEntry returns one entry, reconciling its stage against the analysis
// engine first so callers never see a stale funnel position.
func (s *PipelineService) GetEntry(ctx context.Context, entryID, companyID string) (*repository.PipelineEntry, error) {
	return s.SyncStage(ctx, entryID, companyID)
}

// AddDeveloper tracks an already-registered developer directly, without an
// invitation.
func (s *PipelineService) AddDeveloper(ctx context.Context, companyID, developerID string) (*repository.PipelineEntry, error) {
	dev, err := s.developers.GetByID(ctx, developerID)
	if err != nil {
		return nil, err
	}

	entry := &repository.PipelineEntry{
		CompanyID:      companyID,
		DeveloperID:    &dev.ID,
		CandidateEmail: dev.Email,
		Stage:          repository.StageRegistering,
	}
	if err := s.pipeline.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("company_id", companyID).
		Str("developer_id", developerID).
		Str("entry_id", entry.ID).
		Msg("Developer added to pipeline")

	// Best effort: pick up the developer's real funnel position right away.
	if synced, err := s.SyncStage(ctx, entry.ID, companyID); err == nil {
		return synced, nil
	}
	return entry, nil
}

// UpdateStage applies one of the two manual company-initiated transitions.
// Only HIRED and REJECTED may be requested, and only from ASSESSED or
// UNLOCKED.
func (s *PipelineService) UpdateStage(ctx context.Context, entryID, companyID string, target repository.Stage) (*repository.PipelineEntry, error) {
	if target != repository.StageHired && target != repository.StageRejected {
		return nil, apperrors.Newf(apperrors.CodeInvalidTransition, "stage %q cannot be set manually", target)
	}

	entry, err := s.pipeline.GetByID(ctx, entryID, companyID)
	if err != nil {
		return nil, err
	}
	if entry.IsPendingInvitation() {
		return nil, apperrors.New(apperrors.CodeInvalidState, "candidate has not registered yet")
	}
	if entry.Stage.Terminal() {
		return nil, apperrors.Newf(apperrors.CodeInvalidState, "pipeline entry is already %s", entry.Stage)
	}

	moved, err := s.pipeline.AdvanceStage(ctx, entryID, companyID, target,
		repository.StageAssessed, repository.StageUnlocked)
	if err != nil {
		return nil, err
	}
	if !moved {
		// Re-read: a concurrent writer may have reached a terminal stage, or
		// the entry is simply not assessed yet.
		current, err := s.pipeline.GetByID(ctx, entryID, companyID)
		if err != nil {
			return nil, err
		}
		if current.Stage.Terminal() {
			return nil, apperrors.Newf(apperrors.CodeInvalidState, "pipeline entry is already %s", current.Stage)
		}
		return nil, apperrors.Newf(apperrors.CodeInvalidTransition, "cannot move from %s to %s", current.Stage, target)
	}

	s.log.Info().
		Str("company_id", companyID).
		Str("entry_id", entryID).
		Str("stage", string(target)).
		Msg("Pipeline stage updated")

	return s.pipeline.GetByID(ctx, entryID, companyID)
}

// UpdateNotes replaces an entry's notes.
func (s *PipelineService) UpdateNotes(ctx context.Context, entryID, companyID, notes string) error {
	if len(notes) > maxNotesLength {
		return apperrors.InvalidInput("notes", "notes exceed maximum length")
	}
	return s.pipeline.UpdateNotes(ctx, entryID, companyID, notes)
}

// DeleteEntry removes the company's relationship to a candidate, unless an
// unlocked report protects it.
func (s *PipelineService) DeleteEntry(ctx context.Context, entryID, companyID string) error {
	if err := s.pipeline.Delete(ctx, entryID, companyID); err != nil {
		return err
	}
	s.log.Info().
		Str("company_id", companyID).
		Str("entry_id", entryID).
		Msg("Pipeline entry deleted")
	return nil
}

// assessmentStages maps the analysis engine's status values onto funnel
// stages. Anything outside this map is ignored as unknown.
var assessmentStages = map[string]repository.Stage{
	"REGISTERING":        repository.StageRegistering,
	"PROJECTS_SUBMITTED": repository.StageProjectsSubmitted,
	"ANALYZING":          repository.StageAnalyzing,
	"PENDING_ANALYSIS":   repository.StagePendingAnalysis,
	"ASSESSED":           repository.StageAssessed,
}

// SyncStage re-derives an entry's stage from the developer's current
// externally-reported assessment status. The reconciliation only ever moves
// forward; a status that appears to regress is logged as an anomaly and left
// unapplied.
func (s *PipelineService) SyncStage(ctx context.Context, entryID, companyID string) (*repository.PipelineEntry, error) {
	entry, err := s.pipeline.GetByID(ctx, entryID, companyID)
	if err != nil {
		return nil, err
	}

	// Unbound entries only ever report INVITED; nothing to reconcile.
	if entry.IsPendingInvitation() || entry.Stage.Terminal() {
		return entry, nil
	}

	assessment, err := s.analysis.GetAssessment(ctx, *entry.DeveloperID)
	if err != nil {
		// The stored stage is the best available answer when the engine is
		// unreachable.
		s.log.Warn().Err(err).
			Str("entry_id", entryID).
			Str("developer_id", *entry.DeveloperID).
			Msg("Stage sync skipped: analysis engine unavailable")
		return entry, nil
	}

	target, ok := assessmentStages[assessment.Status]
	if !ok {
		s.log.Warn().
			Str("entry_id", entryID).
			Str("status", assessment.Status).
			Msg("Stage sync skipped: unknown assessment status")
		return entry, nil
	}

	if target.Rank() < entry.Stage.Rank() {
		s.log.Warn().
			Str("entry_id", entryID).
			Str("current_stage", string(entry.Stage)).
			Str("reported_stage", string(target)).
			Msg("Assessment status regressed; keeping current stage")
		return entry, nil
	}
	if target.Rank() == entry.Stage.Rank() {
		return entry, nil
	}

	moved, err := s.pipeline.AdvanceStage(ctx, entryID, companyID, target, entry.Stage)
	if err != nil {
		return nil, err
	}
	if moved {
		s.log.Info().
			Str("entry_id", entryID).
			Str("from", string(entry.Stage)).
			Str("to", string(target)).
			Msg("Pipeline stage synced from assessment status")
	}

	return s.pipeline.GetByID(ctx, entryID, companyID)
}
