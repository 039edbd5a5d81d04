package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/devmatch/be-talent-pipeline/internal/apperrors"
	"github.com/devmatch/be-talent-pipeline/internal/database"
)

// InvitationRepository handles invitation data operations.
type InvitationRepository struct {
	db *database.DB
}

// NewInvitationRepository creates a new invitation repository.
func NewInvitationRepository(db *database.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

const invitationColumns = `id, company_id, candidate_email, token, message, tracked,
	expires_at, sent_at, accepted_at, developer_id, created_at`

func scanInvitation(row pgx.Row) (*Invitation, error) {
	inv := &Invitation{}
	err := row.Scan(&inv.ID, &inv.CompanyID, &inv.CandidateEmail, &inv.Token,
		&inv.Message, &inv.Tracked, &inv.ExpiresAt, &inv.SentAt,
		&inv.AcceptedAt, &inv.DeveloperID, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// CreateWithEntry inserts the invitation and its linked pending pipeline
// entry as one atomic unit.
func (r *InvitationRepository) CreateWithEntry(ctx context.Context, inv *Invitation, entry *PipelineEntry) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO invitations (company_id, candidate_email, token, message, tracked, expires_at, sent_at)
			VALUES ($1, $2, $3, $4, FALSE, $5, NOW())
			RETURNING id, sent_at, created_at
		`

		err := tx.QueryRow(ctx, query,
			inv.CompanyID,
			inv.CandidateEmail,
			inv.Token,
			inv.Message,
			inv.ExpiresAt,
		).Scan(&inv.ID, &inv.SentAt, &inv.CreatedAt)

		if database.IsUniqueViolation(err, "invitations_token_key") {
			return apperrors.Conflict("invitation token collision")
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create invitation")
		}

		// A re-invite after expiry finds the previous invitation's pending
		// entry still in place; reuse it instead of failing on the partial
		// unique index.
		entryQuery := `
			INSERT INTO pipeline_entries (company_id, developer_id, candidate_email, stage, notes)
			VALUES ($1, NULL, $2, $3::pipeline_stage, '')
			ON CONFLICT (company_id, candidate_email) WHERE developer_id IS NULL
			DO UPDATE SET updated_at = NOW()
			RETURNING id, created_at, updated_at
		`

		err = tx.QueryRow(ctx, entryQuery,
			entry.CompanyID,
			entry.CandidateEmail,
			entry.Stage,
		).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create pending pipeline entry")
		}
		return nil
	})
}

// CreateTrackedWithEntry records a direct pipeline add for an already
// registered developer: a tracked invitation (no token, no expiry) plus the
// bound pipeline entry, atomically.
func (r *InvitationRepository) CreateTrackedWithEntry(ctx context.Context, inv *Invitation, entry *PipelineEntry) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO invitations (company_id, candidate_email, token, message, tracked, expires_at, sent_at, developer_id)
			VALUES ($1, $2, NULL, $3, TRUE, NULL, NOW(), $4)
			RETURNING id, sent_at, created_at
		`

		err := tx.QueryRow(ctx, query,
			inv.CompanyID,
			inv.CandidateEmail,
			inv.Message,
			inv.DeveloperID,
		).Scan(&inv.ID, &inv.SentAt, &inv.CreatedAt)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create tracked invitation")
		}

		entryQuery := `
			INSERT INTO pipeline_entries (company_id, developer_id, candidate_email, stage, notes)
			VALUES ($1, $2, $3, $4::pipeline_stage, '')
			RETURNING id, created_at, updated_at
		`

		err = tx.QueryRow(ctx, entryQuery,
			entry.CompanyID,
			entry.DeveloperID,
			entry.CandidateEmail,
			entry.Stage,
		).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)

		if database.IsUniqueViolation(err, "") {
			return apperrors.Conflict("developer is already tracked in the pipeline")
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create pipeline entry")
		}
		return nil
	})
}

// GetByToken retrieves an invitation by its opaque token.
func (r *InvitationRepository) GetByToken(ctx context.Context, token string) (*Invitation, error) {
	query := fmt.Sprintf(`SELECT %s FROM invitations WHERE token = $1`, invitationColumns)

	inv, err := scanInvitation(r.db.QueryRow(ctx, query, token))
	if err == pgx.ErrNoRows {
		return nil, apperrors.New(apperrors.CodeInvalidToken, "invitation token is not valid")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get invitation")
	}
	return inv, nil
}

// FindLivePending returns a company's unaccepted, unexpired invitation for a
// candidate email, or NotFound. Expiry is evaluated against now, not a
// stored status column.
func (r *InvitationRepository) FindLivePending(ctx context.Context, companyID, email string, now time.Time) (*Invitation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM invitations
		WHERE company_id = $1 AND candidate_email = $2
		  AND tracked = FALSE AND accepted_at IS NULL AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`, invitationColumns)

	inv, err := scanInvitation(r.db.QueryRow(ctx, query, companyID, email, now))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("pending invitation", email)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to find pending invitation")
	}
	return inv, nil
}

// List retrieves a company's invitations, newest first.
func (r *InvitationRepository) List(ctx context.Context, companyID string, limit, offset int) ([]*Invitation, int64, error) {
	countQuery := `SELECT COUNT(*) FROM invitations WHERE company_id = $1`

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, companyID).Scan(&total); err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to count invitations")
	}

	query := fmt.Sprintf(`
		SELECT %s FROM invitations
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, invitationColumns)

	rows, err := r.db.Query(ctx, query, companyID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list invitations")
	}
	defer rows.Close()

	invitations := make([]*Invitation, 0)
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan invitation")
		}
		invitations = append(invitations, inv)
	}

	return invitations, total, nil
}

// AcceptParams carries everything Accept binds in one transaction.
type AcceptParams struct {
	InvitationID string
	Developer    *Developer
	AcceptedAt   time.Time
}

// Accept creates the developer account, marks the invitation accepted, and
// binds the pending pipeline entry, advancing it from INVITED to
// REGISTERING. The three writes are indivisible: an account without a bound
// entry would be a correctness violation.
func (r *InvitationRepository) Accept(ctx context.Context, params AcceptParams) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		dev := params.Developer

		devQuery := `
			INSERT INTO developers (email, name, password_hash)
			VALUES ($1, $2, $3)
			RETURNING id, created_at
		`
		err := tx.QueryRow(ctx, devQuery, dev.Email, dev.Name, dev.PasswordHash).
			Scan(&dev.ID, &dev.CreatedAt)
		if database.IsUniqueViolation(err, "developers_email_key") {
			return apperrors.Conflict("an account already exists for this email")
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create developer account")
		}

		invQuery := `
			UPDATE invitations
			SET accepted_at = $2,
			    developer_id = $3
			WHERE id = $1 AND accepted_at IS NULL
			RETURNING id
		`
		var invID string
		err = tx.QueryRow(ctx, invQuery, params.InvitationID, params.AcceptedAt, dev.ID).Scan(&invID)
		if err == pgx.ErrNoRows {
			return apperrors.New(apperrors.CodeInvalidToken, "invitation has already been accepted")
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to accept invitation")
		}

		entryQuery := `
			UPDATE pipeline_entries e
			SET developer_id = $2,
			    stage = $3::pipeline_stage,
			    updated_at = NOW()
			FROM invitations i
			WHERE i.id = $1
			  AND e.company_id = i.company_id
			  AND e.candidate_email = i.candidate_email
			  AND e.developer_id IS NULL
			RETURNING e.id
		`
		var entryID string
		err = tx.QueryRow(ctx, entryQuery, params.InvitationID, dev.ID, StageRegistering).Scan(&entryID)
		if err == pgx.ErrNoRows {
			return apperrors.Wrap(pgx.ErrNoRows, apperrors.CodeInternal, "invitation has no pending pipeline entry")
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to bind pipeline entry")
		}
		return nil
	})
}
