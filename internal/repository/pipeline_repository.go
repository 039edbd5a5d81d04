package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/devmatch/be-talent-pipeline/internal/apperrors"
	"github.com/devmatch/be-talent-pipeline/internal/database"
)

// likeEscaper neutralizes LIKE metacharacters so a search term matches
// literally instead of acting as a pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// PipelineRepository handles pipeline entry data operations.
type PipelineRepository struct {
	db *database.DB
}

// NewPipelineRepository creates a new pipeline repository.
func NewPipelineRepository(db *database.DB) *PipelineRepository {
	return &PipelineRepository{db: db}
}

const pipelineColumns = `id, company_id, developer_id, candidate_email, stage, notes, created_at, updated_at`

func scanPipelineEntry(row pgx.Row) (*PipelineEntry, error) {
	e := &PipelineEntry{}
	err := row.Scan(&e.ID, &e.CompanyID, &e.DeveloperID, &e.CandidateEmail,
		&e.Stage, &e.Notes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create inserts a new pipeline entry.
func (r *PipelineRepository) Create(ctx context.Context, entry *PipelineEntry) error {
	query := `
		INSERT INTO pipeline_entries (company_id, developer_id, candidate_email, stage, notes)
		VALUES ($1, $2, $3, $4::pipeline_stage, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		entry.CompanyID,
		entry.DeveloperID,
		entry.CandidateEmail,
		entry.Stage,
		entry.Notes,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)

	if database.IsUniqueViolation(err, "") {
		return apperrors.Conflict("candidate is already tracked in the pipeline")
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create pipeline entry")
	}
	return nil
}

// GetByID retrieves a company-owned pipeline entry.
func (r *PipelineRepository) GetByID(ctx context.Context, id, companyID string) (*PipelineEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM pipeline_entries WHERE id = $1 AND company_id = $2`, pipelineColumns)

	entry, err := scanPipelineEntry(r.db.QueryRow(ctx, query, id, companyID))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("pipeline entry", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get pipeline entry")
	}
	return entry, nil
}

// GetByDeveloper retrieves the entry binding a company to a developer.
func (r *PipelineRepository) GetByDeveloper(ctx context.Context, companyID, developerID string) (*PipelineEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM pipeline_entries WHERE company_id = $1 AND developer_id = $2`, pipelineColumns)

	entry, err := scanPipelineEntry(r.db.QueryRow(ctx, query, companyID, developerID))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("pipeline entry for developer", developerID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get pipeline entry")
	}
	return entry, nil
}

// List retrieves a company's entries with optional stage filter, candidate
// search, and pagination.
func (r *PipelineRepository) List(ctx context.Context, companyID string, stage *Stage, search *string, limit, offset int) ([]*PipelineEntry, int64, error) {
	query := fmt.Sprintf(`SELECT %s FROM pipeline_entries WHERE company_id = $1`, pipelineColumns)
	countQuery := `SELECT COUNT(*) FROM pipeline_entries WHERE company_id = $1`

	args := []any{companyID}
	argCount := 2

	if stage != nil {
		clause := fmt.Sprintf(" AND stage = $%d::pipeline_stage", argCount)
		query += clause
		countQuery += clause
		args = append(args, *stage)
		argCount++
	}

	if search != nil {
		clause := fmt.Sprintf(` AND candidate_email ILIKE '%%' || $%d || '%%' ESCAPE '\'`, argCount)
		query += clause
		countQuery += clause
		args = append(args, escapeLike(*search))
		argCount++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	queryArgs := append(args, limit, offset)

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to count pipeline entries")
	}

	rows, err := r.db.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list pipeline entries")
	}
	defer rows.Close()

	entries := make([]*PipelineEntry, 0)
	for rows.Next() {
		entry, err := scanPipelineEntry(rows)
		if err != nil {
			return nil, 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan pipeline entry")
		}
		entries = append(entries, entry)
	}

	return entries, total, nil
}

// Stats computes the per-stage projection for a company on demand.
func (r *PipelineRepository) Stats(ctx context.Context, companyID string) (*PipelineStats, error) {
	query := `
		SELECT stage, COUNT(*)
		FROM pipeline_entries
		WHERE company_id = $1
		GROUP BY stage
	`

	rows, err := r.db.Query(ctx, query, companyID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to compute pipeline stats")
	}
	defer rows.Close()

	stats := &PipelineStats{ByStage: make(map[Stage]int64)}
	for rows.Next() {
		var stage Stage
		var count int64
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan pipeline stats")
		}
		stats.ByStage[stage] = count
		stats.Total += count
	}

	stats.Unlocked = stats.ByStage[StageUnlocked]
	stats.Hired = stats.ByStage[StageHired]
	stats.Rejected = stats.ByStage[StageRejected]
	return stats, nil
}

// AdvanceStage moves an entry to the given stage only if its current stage is
// one of allowedFrom, re-checking the current value in the same statement as
// the write. Returns false when no row matched (wrong owner, missing entry,
// or a concurrent writer changed the stage first).
func (r *PipelineRepository) AdvanceStage(ctx context.Context, id, companyID string, to Stage, allowedFrom ...Stage) (bool, error) {
	from := make([]string, 0, len(allowedFrom))
	for _, s := range allowedFrom {
		from = append(from, string(s))
	}

	query := `
		UPDATE pipeline_entries
		SET stage = $3::pipeline_stage,
		    updated_at = NOW()
		WHERE id = $1 AND company_id = $2 AND stage = ANY($4::pipeline_stage[])
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, companyID, to, from).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.CodeInternal, "failed to advance pipeline stage")
	}
	return true, nil
}

// UpdateNotes replaces the free-text notes on an entry.
func (r *PipelineRepository) UpdateNotes(ctx context.Context, id, companyID, notes string) error {
	query := `
		UPDATE pipeline_entries
		SET notes = $3,
		    updated_at = NOW()
		WHERE id = $1 AND company_id = $2
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, companyID, notes).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return apperrors.NotFound("pipeline entry", id)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to update pipeline notes")
	}
	return nil
}

// Delete removes a company's relationship to a candidate. Entries backed by
// an unlocked report are never deleted; the unlock is permanent proof of
// payment.
func (r *PipelineRepository) Delete(ctx context.Context, id, companyID string) error {
	query := `
		DELETE FROM pipeline_entries e
		WHERE e.id = $1 AND e.company_id = $2
		  AND NOT EXISTS (
			SELECT 1 FROM unlocked_reports u
			WHERE u.company_id = e.company_id AND u.developer_id = e.developer_id
		  )
	`

	tag, err := r.db.Exec(ctx, query, id, companyID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to delete pipeline entry")
	}
	if tag.RowsAffected() == 0 {
		// Either not found/not owned, or protected by an unlock. Re-read to
		// return the distinguishing error.
		if _, err := r.GetByID(ctx, id, companyID); err != nil {
			return err
		}
		return apperrors.New(apperrors.CodeInvalidState, "cannot delete a pipeline entry with an unlocked report")
	}
	return nil
}
