// Package handler exposes the service layer over HTTP/JSON.
package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/devmatch/be-talent-pipeline/internal/apperrors"
	"github.com/devmatch/be-talent-pipeline/internal/logger"
	"github.com/devmatch/be-talent-pipeline/internal/middleware"
	"github.com/devmatch/be-talent-pipeline/internal/repository"
	"github.com/devmatch/be-talent-pipeline/internal/service"
)

// HTTPHandler handles HTTP requests.
type HTTPHandler struct {
	invitations *service.InvitationService
	pipeline    *service.PipelineService
	unlocks     *service.UnlockService
	credits     *service.CreditService
	log         *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(
	invitations *service.InvitationService,
	pipeline *service.PipelineService,
	unlocks *service.UnlockService,
	credits *service.CreditService,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		invitations: invitations,
		pipeline:    pipeline,
		unlocks:     unlocks,
		credits:     credits,
		log:         log,
	}
}

// ── Response plumbing ────────────────────────────────────────────────────────

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("request failed")
	}
	h.writeJSON(w, status, map[string]string{"error": string(code)})
}

// companyID extracts the authenticated company identity, or writes 403.
func (h *HTTPHandler) companyID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok || id.Role != middleware.RoleCompany {
		h.writeJSON(w, http.StatusForbidden, map[string]string{"error": string(apperrors.CodeUnauthorized)})
		return "", false
	}
	return id.SubjectID, true
}

// ── DTOs ─────────────────────────────────────────────────────────────────────

type pipelineEntryDTO struct {
	ID                  string            `json:"id"`
	DeveloperID         *string           `json:"developerId,omitempty"`
	CandidateEmail      string            `json:"candidateEmail"`
	Stage               repository.Stage  `json:"stage"`
	IsPendingInvitation bool              `json:"isPendingInvitation"`
	Notes               string            `json:"notes"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

func toEntryDTO(e *repository.PipelineEntry) pipelineEntryDTO {
	return pipelineEntryDTO{
		ID:                  e.ID,
		DeveloperID:         e.DeveloperID,
		CandidateEmail:      e.CandidateEmail,
		Stage:               e.EffectiveStage(),
		IsPendingInvitation: e.IsPendingInvitation(),
		Notes:               e.Notes,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

type invitationDTO struct {
	ID             string                      `json:"id"`
	CandidateEmail string                      `json:"candidateEmail"`
	Status         repository.InvitationStatus `json:"status"`
	Message        *string                     `json:"message,omitempty"`
	ExpiresAt      *time.Time                  `json:"expiresAt,omitempty"`
	SentAt         time.Time                   `json:"sentAt"`
	AcceptedAt     *time.Time                  `json:"acceptedAt,omitempty"`
	DeveloperID    *string                     `json:"developerId,omitempty"`
}

func toInvitationDTO(inv *repository.Invitation, now time.Time) invitationDTO {
	return invitationDTO{
		ID:             inv.ID,
		CandidateEmail: inv.CandidateEmail,
		Status:         inv.Status(now),
		Message:        inv.Message,
		ExpiresAt:      inv.ExpiresAt,
		SentAt:         inv.SentAt,
		AcceptedAt:     inv.AcceptedAt,
		DeveloperID:    inv.DeveloperID,
	}
}

type transactionDTO struct {
	ID                 string                     `json:"id"`
	Type               repository.TransactionType `json:"type"`
	Amount             int64                      `json:"amount"`
	BalanceAfter       int64                      `json:"balanceAfter"`
	RelatedDeveloperID *string                    `json:"relatedDeveloperId,omitempty"`
	CreatedAt          time.Time                  `json:"createdAt"`
}

func toTransactionDTO(t *repository.CreditTransaction) transactionDTO {
	return transactionDTO{
		ID:                 t.ID,
		Type:               t.Type,
		Amount:             t.Amount,
		BalanceAfter:       t.BalanceAfter,
		RelatedDeveloperID: t.RelatedDeveloperID,
		CreatedAt:          t.CreatedAt,
	}
}

// ── Invitations ──────────────────────────────────────────────────────────────

// CreateInvitation handles POST /api/v1/invitations.
func (h *HTTPHandler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	var req struct {
		CandidateEmail string  `json:"candidateEmail"`
		Message        *string `json:"message"`
		SendEmail      *bool   `json:"sendEmail"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.InvalidInput("body", "invalid request body"))
		return
	}

	sendEmail := true
	if req.SendEmail != nil {
		sendEmail = *req.SendEmail
	}

	inv, err := h.invitations.CreateInvitation(r.Context(), &service.CreateInvitationRequest{
		CompanyID:      companyID,
		CandidateEmail: req.CandidateEmail,
		Message:        req.Message,
		SendEmail:      sendEmail,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toInvitationDTO(inv, time.Now().UTC()))
}

// ListInvitations handles GET /api/v1/invitations.
func (h *HTTPHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r, 50)
	invitations, total, err := h.invitations.ListInvitations(r.Context(), companyID, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	now := time.Now().UTC()
	dtos := make([]invitationDTO, 0, len(invitations))
	for _, inv := range invitations {
		dtos = append(dtos, toInvitationDTO(inv, now))
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"invitations": dtos,
		"total":       total,
	})
}

// GetInvitationInfo handles GET /api/v1/invitations/info?token=...
// Public route: always 200, invalid tokens answer {valid:false}.
func (h *HTTPHandler) GetInvitationInfo(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	h.writeJSON(w, http.StatusOK, h.invitations.GetInvitationInfo(r.Context(), token))
}

// AcceptInvitation handles POST /api/v1/invitations/accept. Public route.
func (h *HTTPHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.InvalidInput("body", "invalid request body"))
		return
	}

	dev, err := h.invitations.AcceptInvitation(r.Context(), &service.AcceptInvitationRequest{
		Token:    req.Token,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"developerId": dev.ID,
		"email":       dev.Email,
	})
}

// ── Pipeline ─────────────────────────────────────────────────────────────────

// ListPipeline handles GET /api/v1/pipeline.
func (h *HTTPHandler) ListPipeline(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	var stage *repository.Stage
	if s := r.URL.Query().Get("stage"); s != "" {
		st := repository.Stage(s)
		stage = &st
	}
	var search *string
	if q := r.URL.Query().Get("search"); q != "" {
		search = &q
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	entries, total, err := h.pipeline.ListEntries(r.Context(), companyID, stage, search, page, pageSize)
	if err != nil {
		h.writeError(w, err)
		return
	}

	dtos := make([]pipelineEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"entries":  dtos,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// GetPipelineEntry handles GET /api/v1/pipeline/entry?id=... The entry's
// stage is reconciled against the analysis engine before it is returned.
func (h *HTTPHandler) GetPipelineEntry(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	entryID := r.URL.Query().Get("id")
	if entryID == "" {
		h.writeError(w, apperrors.InvalidInput("id", "entry id is required"))
		return
	}

	entry, err := h.pipeline.GetEntry(r.Context(), entryID, companyID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// AddPipelineDeveloper handles POST /api/v1/pipeline/add.
func (h *HTTPHandler) AddPipelineDeveloper(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	var req struct {
		DeveloperID string `json:"developerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeveloperID == "" {
		h.writeError(w, apperrors.InvalidInput("developerId", "developer id is required"))
		return
	}

	entry, err := h.pipeline.AddDeveloper(r.Context(), companyID, req.DeveloperID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// GetPipelineStats handles GET /api/v1/pipeline/stats.
func (h *HTTPHandler) GetPipelineStats(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	stats, err := h.pipeline.GetStats(r.Context(), companyID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// UpdatePipelineStage handles POST /api/v1/pipeline/stage.
func (h *HTTPHandler) UpdatePipelineStage(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	var req struct {
		EntryID string `json:"entryId"`
		Stage   string `json:"stage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EntryID == "" {
		h.writeError(w, apperrors.InvalidInput("entryId", "entry id is required"))
		return
	}

	entry, err := h.pipeline.UpdateStage(r.Context(), req.EntryID, companyID, repository.Stage(req.Stage))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// UpdatePipelineNotes handles POST /api/v1/pipeline/notes.
func (h *HTTPHandler) UpdatePipelineNotes(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	var req struct {
		EntryID string `json:"entryId"`
		Notes   string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EntryID == "" {
		h.writeError(w, apperrors.InvalidInput("entryId", "entry id is required"))
		return
	}

	if err := h.pipeline.UpdateNotes(r.Context(), req.EntryID, companyID, req.Notes); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// DeletePipelineEntry handles DELETE /api/v1/pipeline/delete?id=...
func (h *HTTPHandler) DeletePipelineEntry(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	entryID := r.URL.Query().Get("id")
	if entryID == "" {
		h.writeError(w, apperrors.InvalidInput("id", "entry id is required"))
		return
	}

	if err := h.pipeline.DeleteEntry(r.Context(), entryID, companyID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Unlocks and credits ──────────────────────────────────────────────────────

// UnlockReport handles POST /api/v1/reports/unlock.
func (h *HTTPHandler) UnlockReport(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	var req struct {
		DeveloperID string `json:"developerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeveloperID == "" {
		h.writeError(w, apperrors.InvalidInput("developerId", "developer id is required"))
		return
	}

	outcome, err := h.unlocks.UnlockReport(r.Context(), companyID, req.DeveloperID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, outcome)
}

// GetBalance handles GET /api/v1/credits/balance.
func (h *HTTPHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	balance, err := h.credits.GetBalance(r.Context(), companyID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

// GetTransactionHistory handles GET /api/v1/credits/history.
func (h *HTTPHandler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r, 50)
	txs, total, err := h.credits.GetTransactionHistory(r.Context(), companyID, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	dtos := make([]transactionDTO, 0, len(txs))
	for _, t := range txs {
		dtos = append(dtos, toTransactionDTO(t))
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"transactions": dtos,
		"total":        total,
	})
}

// StartCheckout handles POST /api/v1/credits/checkout.
func (h *HTTPHandler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	var req struct {
		Credits int64 `json:"credits"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.InvalidInput("body", "invalid request body"))
		return
	}

	checkout, err := h.credits.StartCheckout(r.Context(), companyID, req.Credits)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, checkout)
}

// PaymentCallback handles POST /api/v1/credits/callback. Public route,
// authenticated by HMAC signature instead of a session.
func (h *HTTPHandler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.writeError(w, apperrors.InvalidInput("body", "unreadable request body"))
		return
	}

	tx, err := h.credits.HandlePaymentCallback(r.Context(), body, r.Header.Get("X-Payment-Signature"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

func pagination(r *http.Request, defaultLimit int) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = defaultLimit
	}
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
