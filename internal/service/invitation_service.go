package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/devmatch/be-talent-pipeline/internal/apperrors"
	"github.com/devmatch/be-talent-pipeline/internal/client"
	"github.com/devmatch/be-talent-pipeline/internal/logger"
	"github.com/devmatch/be-talent-pipeline/internal/repository"
)

// InvitationStore is the persistence surface the invitation service needs.
// Implemented by repository.InvitationRepository.
type InvitationStore interface {
	CreateWithEntry(ctx context.Context, inv *repository.Invitation, entry *repository.PipelineEntry) error
	CreateTrackedWithEntry(ctx context.Context, inv *repository.Invitation, entry *repository.PipelineEntry) error
	GetByToken(ctx context.Context, token string) (*repository.Invitation, error)
	FindLivePending(ctx context.Context, companyID, email string, now time.Time) (*repository.Invitation, error)
	List(ctx context.Context, companyID string, limit, offset int) ([]*repository.Invitation, int64, error)
	Accept(ctx context.Context, params repository.AcceptParams) error
}

// AccountStore resolves developer accounts and company display names.
// Implemented by repository.DeveloperRepository.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*repository.Developer, error)
	GetCompanyName(ctx context.Context, companyID string) (string, error)
}

// InvitationService issues, describes, and accepts invitations.
type InvitationService struct {
	invitations InvitationStore
	accounts    AccountStore
	email       client.EmailPublisherInterface
	log         *logger.Logger

	ttl       time.Duration
	acceptURL string
	clock     func() time.Time
	newToken  func() (string, error)
}

// NewInvitationService creates a new invitation service.
func NewInvitationService(
	invitations InvitationStore,
	accounts AccountStore,
	email client.EmailPublisherInterface,
	log *logger.Logger,
	ttl time.Duration,
	acceptURL string,
) *InvitationService {
	return &InvitationService{
		invitations: invitations,
		accounts:    accounts,
		email:       email,
		log:         log,
		ttl:         ttl,
		acceptURL:   acceptURL,
		clock:       time.Now,
		newToken:    newInviteToken,
	}
}

// newInviteToken mints a single-use token with 256 bits of entropy.
func newInviteToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invite token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// CreateInvitationRequest represents a create invitation request.
type CreateInvitationRequest struct {
	CompanyID      string
	CandidateEmail string
	Message        *string
	SendEmail      bool
}

// CreateInvitation invites a candidate by email. If the email already
// belongs to a registered developer the relationship becomes a direct
// tracked pipeline add instead (no token, no expiry).
func (s *InvitationService) CreateInvitation(ctx context.Context, req *CreateInvitationRequest) (*repository.Invitation, error) {
	email := strings.ToLower(strings.TrimSpace(req.CandidateEmail))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.InvalidInput("candidate_email", "not a valid email address")
	}

	now := s.clock().UTC()

	if _, err := s.invitations.FindLivePending(ctx, req.CompanyID, email, now); err == nil {
		return nil, apperrors.Conflict("a pending invitation already exists for this email")
	} else if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		return nil, err
	}

	// Already-registered candidates are tracked directly.
	dev, err := s.accounts.GetByEmail(ctx, email)
	if err == nil {
		inv := &repository.Invitation{
			CompanyID:      req.CompanyID,
			CandidateEmail: email,
			Message:        req.Message,
			Tracked:        true,
			DeveloperID:    &dev.ID,
		}
		entry := &repository.PipelineEntry{
			CompanyID:      req.CompanyID,
			DeveloperID:    &dev.ID,
			CandidateEmail: email,
			Stage:          repository.StageRegistering,
		}
		if err := s.invitations.CreateTrackedWithEntry(ctx, inv, entry); err != nil {
			return nil, err
		}

		s.log.Info().
			Str("company_id", req.CompanyID).
			Str("developer_id", dev.ID).
			Msg("Registered developer tracked directly")
		return inv, nil
	}
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		return nil, err
	}

	token, err := s.newToken()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to generate token")
	}

	expiresAt := now.Add(s.ttl)
	inv := &repository.Invitation{
		CompanyID:      req.CompanyID,
		CandidateEmail: email,
		Token:          &token,
		Message:        req.Message,
		ExpiresAt:      &expiresAt,
	}
	entry := &repository.PipelineEntry{
		CompanyID:      req.CompanyID,
		CandidateEmail: email,
		Stage:          repository.StageInvited,
	}

	if err := s.invitations.CreateWithEntry(ctx, inv, entry); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("company_id", req.CompanyID).
		Str("invitation_id", inv.ID).
		Time("expires_at", expiresAt).
		Msg("Invitation created")

	if req.SendEmail {
		companyName, nameErr := s.accounts.GetCompanyName(ctx, req.CompanyID)
		if nameErr != nil {
			companyName = ""
		}
		var message string
		if req.Message != nil {
			message = *req.Message
		}
		s.email.PublishInvitationEmail(ctx, client.InvitationEmail{
			CandidateEmail: email,
			Token:          token,
			Message:        message,
			CompanyName:    companyName,
			AcceptURL:      s.acceptURL,
		})
	}

	return inv, nil
}

// ListInvitations lists a company's invitations.
func (s *InvitationService) ListInvitations(ctx context.Context, companyID string, limit, offset int) ([]*repository.Invitation, int64, error) {
	return s.invitations.List(ctx, companyID, limit, offset)
}

// InvitationInfo is the public view of an invitation shown before a
// candidate registers.
type InvitationInfo struct {
	Valid          bool   `json:"valid"`
	Error          string `json:"error,omitempty"`
	CandidateEmail string `json:"candidateEmail,omitempty"`
	CompanyName    string `json:"companyName,omitempty"`
	Message        string `json:"message,omitempty"`
}

// GetInvitationInfo describes an invitation for the public accept page. It
// fails softly with the same generic reason for unknown, expired, and used
// tokens so the page never reveals which case applies.
func (s *InvitationService) GetInvitationInfo(ctx context.Context, token string) *InvitationInfo {
	invalid := &InvitationInfo{Valid: false, Error: "This invitation is not valid or has expired."}

	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		return invalid
	}
	if inv.Status(s.clock().UTC()) != repository.InvitationPending {
		return invalid
	}

	info := &InvitationInfo{
		Valid:          true,
		CandidateEmail: maskEmail(inv.CandidateEmail),
	}
	if inv.Message != nil {
		info.Message = *inv.Message
	}
	if name, err := s.accounts.GetCompanyName(ctx, inv.CompanyID); err == nil {
		info.CompanyName = name
	}
	return info
}

// AcceptInvitationRequest represents an accept invitation request.
type AcceptInvitationRequest struct {
	Token    string
	Name     string
	Password string
}

// AcceptInvitation redeems a token: creates the developer account, marks the
// invitation accepted, and binds the pending pipeline entry, all atomically.
func (s *InvitationService) AcceptInvitation(ctx context.Context, req *AcceptInvitationRequest) (*repository.Developer, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperrors.InvalidInput("name", "name is required")
	}
	if len(req.Password) < 8 {
		return nil, apperrors.InvalidInput("password", "password must be at least 8 characters")
	}

	inv, err := s.invitations.GetByToken(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	switch inv.Status(s.clock().UTC()) {
	case repository.InvitationPending:
	case repository.InvitationAccepted:
		return nil, apperrors.New(apperrors.CodeInvalidToken, "invitation has already been accepted")
	case repository.InvitationExpired:
		return nil, apperrors.New(apperrors.CodeInvalidToken, "invitation has expired")
	default:
		return nil, apperrors.New(apperrors.CodeInvalidToken, "invitation token is not valid")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to hash password")
	}

	dev := &repository.Developer{
		Email:        inv.CandidateEmail,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
	}

	err = s.invitations.Accept(ctx, repository.AcceptParams{
		InvitationID: inv.ID,
		Developer:    dev,
		AcceptedAt:   s.clock().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("invitation_id", inv.ID).
		Str("company_id", inv.CompanyID).
		Str("developer_id", dev.ID).
		Msg("Invitation accepted")

	return dev, nil
}

// maskEmail hides most of the local part: "dev@x.com" → "d**@x.com".
func maskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 1 {
		return email
	}
	return email[:1] + strings.Repeat("*", at-1) + email[at:]
}
