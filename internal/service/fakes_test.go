package service

import (
	"context"
	"fmt"
	"time"

	"github.com/devmatch/be-talent-pipeline/internal/apperrors"
	"github.com/devmatch/be-talent-pipeline/internal/client"
	"github.com/devmatch/be-talent-pipeline/internal/repository"
)

// ── Invitation store ─────────────────────────────────────────────────────────

type fakeInvitationStore struct {
	byToken     map[string]*repository.Invitation
	livePending map[string]*repository.Invitation // key: companyID + "/" + email
	created     []*repository.Invitation
	tracked     []*repository.Invitation
	accepted    []repository.AcceptParams
	acceptErr   error

	// pendingEntries mirrors the one-pending-entry-per-candidate upsert:
	// a re-invite reuses the existing entry.
	pendingEntries map[string]*repository.PipelineEntry // key: companyID + "/" + email
}

func newFakeInvitationStore() *fakeInvitationStore {
	return &fakeInvitationStore{
		byToken:        make(map[string]*repository.Invitation),
		livePending:    make(map[string]*repository.Invitation),
		pendingEntries: make(map[string]*repository.PipelineEntry),
	}
}

func (f *fakeInvitationStore) CreateWithEntry(ctx context.Context, inv *repository.Invitation, entry *repository.PipelineEntry) error {
	inv.ID = fmt.Sprintf("inv-%d", len(f.created)+1)
	inv.SentAt = time.Now()
	key := entry.CompanyID + "/" + entry.CandidateEmail
	if existing, ok := f.pendingEntries[key]; ok {
		entry.ID = existing.ID
	} else {
		entry.ID = fmt.Sprintf("entry-%d", len(f.pendingEntries)+1)
		f.pendingEntries[key] = entry
	}
	f.created = append(f.created, inv)
	return nil
}

func (f *fakeInvitationStore) CreateTrackedWithEntry(ctx context.Context, inv *repository.Invitation, entry *repository.PipelineEntry) error {
	inv.ID = fmt.Sprintf("tracked-%d", len(f.tracked)+1)
	f.tracked = append(f.tracked, inv)
	return nil
}

func (f *fakeInvitationStore) GetByToken(ctx context.Context, token string) (*repository.Invitation, error) {
	inv, ok := f.byToken[token]
	if !ok {
		return nil, apperrors.New(apperrors.CodeInvalidToken, "invitation token is not valid")
	}
	return inv, nil
}

func (f *fakeInvitationStore) FindLivePending(ctx context.Context, companyID, email string, now time.Time) (*repository.Invitation, error) {
	inv, ok := f.livePending[companyID+"/"+email]
	if !ok {
		return nil, apperrors.NotFound("pending invitation", email)
	}
	return inv, nil
}

func (f *fakeInvitationStore) List(ctx context.Context, companyID string, limit, offset int) ([]*repository.Invitation, int64, error) {
	return f.created, int64(len(f.created)), nil
}

func (f *fakeInvitationStore) Accept(ctx context.Context, params repository.AcceptParams) error {
	if f.acceptErr != nil {
		return f.acceptErr
	}
	params.Developer.ID = "dev-new"
	f.accepted = append(f.accepted, params)
	return nil
}

// ── Account store ────────────────────────────────────────────────────────────

type fakeAccountStore struct {
	byEmail      map[string]*repository.Developer
	byID         map[string]*repository.Developer
	companyNames map[string]string
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{
		byEmail:      make(map[string]*repository.Developer),
		byID:         make(map[string]*repository.Developer),
		companyNames: make(map[string]string),
	}
}

func (f *fakeAccountStore) GetByEmail(ctx context.Context, email string) (*repository.Developer, error) {
	dev, ok := f.byEmail[email]
	if !ok {
		return nil, apperrors.NotFound("developer", email)
	}
	return dev, nil
}

func (f *fakeAccountStore) GetByID(ctx context.Context, id string) (*repository.Developer, error) {
	dev, ok := f.byID[id]
	if !ok {
		return nil, apperrors.NotFound("developer", id)
	}
	return dev, nil
}

func (f *fakeAccountStore) GetCompanyName(ctx context.Context, companyID string) (string, error) {
	name, ok := f.companyNames[companyID]
	if !ok {
		return "", apperrors.NotFound("company", companyID)
	}
	return name, nil
}

// ── Email publisher ──────────────────────────────────────────────────────────

type fakeEmailPublisher struct {
	published []client.InvitationEmail
}

func (f *fakeEmailPublisher) PublishInvitationEmail(ctx context.Context, email client.InvitationEmail) {
	f.published = append(f.published, email)
}

// ── Pipeline store ───────────────────────────────────────────────────────────

type fakePipelineStore struct {
	entries map[string]*repository.PipelineEntry
	deleted []string
}

func newFakePipelineStore(entries ...*repository.PipelineEntry) *fakePipelineStore {
	f := &fakePipelineStore{entries: make(map[string]*repository.PipelineEntry)}
	for _, e := range entries {
		f.entries[e.ID] = e
	}
	return f
}

func (f *fakePipelineStore) Create(ctx context.Context, entry *repository.PipelineEntry) error {
	entry.ID = fmt.Sprintf("entry-%d", len(f.entries)+1)
	f.entries[entry.ID] = entry
	return nil
}

func (f *fakePipelineStore) GetByID(ctx context.Context, id, companyID string) (*repository.PipelineEntry, error) {
	e, ok := f.entries[id]
	if !ok || e.CompanyID != companyID {
		return nil, apperrors.NotFound("pipeline entry", id)
	}
	copied := *e
	return &copied, nil
}

func (f *fakePipelineStore) GetByDeveloper(ctx context.Context, companyID, developerID string) (*repository.PipelineEntry, error) {
	for _, e := range f.entries {
		if e.CompanyID == companyID && e.DeveloperID != nil && *e.DeveloperID == developerID {
			copied := *e
			return &copied, nil
		}
	}
	return nil, apperrors.NotFound("pipeline entry for developer", developerID)
}

func (f *fakePipelineStore) List(ctx context.Context, companyID string, stage *repository.Stage, search *string, limit, offset int) ([]*repository.PipelineEntry, int64, error) {
	var out []*repository.PipelineEntry
	for _, e := range f.entries {
		if e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakePipelineStore) Stats(ctx context.Context, companyID string) (*repository.PipelineStats, error) {
	stats := &repository.PipelineStats{ByStage: make(map[repository.Stage]int64)}
	for _, e := range f.entries {
		if e.CompanyID != companyID {
			continue
		}
		stats.ByStage[e.EffectiveStage()]++
		stats.Total++
	}
	stats.Unlocked = stats.ByStage[repository.StageUnlocked]
	stats.Hired = stats.ByStage[repository.StageHired]
	stats.Rejected = stats.ByStage[repository.StageRejected]
	return stats, nil
}

func (f *fakePipelineStore) AdvanceStage(ctx context.Context, id, companyID string, to repository.Stage, allowedFrom ...repository.Stage) (bool, error) {
	e, ok := f.entries[id]
	if !ok || e.CompanyID != companyID {
		return false, nil
	}
	for _, from := range allowedFrom {
		if e.Stage == from {
			e.Stage = to
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePipelineStore) UpdateNotes(ctx context.Context, id, companyID, notes string) error {
	e, ok := f.entries[id]
	if !ok || e.CompanyID != companyID {
		return apperrors.NotFound("pipeline entry", id)
	}
	e.Notes = notes
	return nil
}

func (f *fakePipelineStore) Delete(ctx context.Context, id, companyID string) error {
	e, ok := f.entries[id]
	if !ok || e.CompanyID != companyID {
		return apperrors.NotFound("pipeline entry", id)
	}
	delete(f.entries, id)
	f.deleted = append(f.deleted, e.ID)
	return nil
}

// ── Analysis client ──────────────────────────────────────────────────────────

type fakeAnalysisClient struct {
	assessments map[string]*client.Assessment
	err         error
}

func (f *fakeAnalysisClient) GetAssessment(ctx context.Context, developerID string) (*client.Assessment, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.assessments[developerID]
	if !ok {
		return nil, apperrors.NotFound("assessment", developerID)
	}
	return a, nil
}

// ── Ledger store ─────────────────────────────────────────────────────────────

// fakeLedgerStore keeps real ledger bookkeeping so tests can assert the
// sum-of-amounts == balance invariant over whole operation sequences.
type fakeLedgerStore struct {
	balance     int64
	txs         []*repository.CreditTransaction
	unlocks     map[string]*repository.UnlockedReport // key: companyID + "/" + developerID
	paymentRefs map[string]*repository.CreditTransaction
	execCalls   int

	// pipeline, when set, mirrors the unlock transaction's side effect of
	// moving an ASSESSED entry to UNLOCKED.
	pipeline *fakePipelineStore
}

func newFakeLedgerStore(balance int64) *fakeLedgerStore {
	return &fakeLedgerStore{
		balance:     balance,
		unlocks:     make(map[string]*repository.UnlockedReport),
		paymentRefs: make(map[string]*repository.CreditTransaction),
	}
}

func (f *fakeLedgerStore) GetBalance(ctx context.Context, companyID string) (int64, error) {
	return f.balance, nil
}

func (f *fakeLedgerStore) History(ctx context.Context, companyID string, limit, offset int) ([]*repository.CreditTransaction, int64, error) {
	return f.txs, int64(len(f.txs)), nil
}

func (f *fakeLedgerStore) AppendPurchase(ctx context.Context, companyID string, credits int64, paymentRef string) (*repository.CreditTransaction, bool, error) {
	if existing, ok := f.paymentRefs[paymentRef]; ok {
		return existing, false, nil
	}
	f.balance += credits
	tx := &repository.CreditTransaction{
		ID:           fmt.Sprintf("tx-%d", len(f.txs)+1),
		CompanyID:    companyID,
		Type:         repository.TxPurchase,
		Amount:       credits,
		BalanceAfter: f.balance,
		PaymentRef:   &paymentRef,
	}
	f.txs = append(f.txs, tx)
	f.paymentRefs[paymentRef] = tx
	return tx, true, nil
}

func (f *fakeLedgerStore) GetUnlock(ctx context.Context, companyID, developerID string) (*repository.UnlockedReport, error) {
	report, ok := f.unlocks[companyID+"/"+developerID]
	if !ok {
		return nil, apperrors.NotFound("unlocked report", developerID)
	}
	return report, nil
}

func (f *fakeLedgerStore) ExecuteUnlock(ctx context.Context, companyID, developerID string) (*repository.UnlockResult, error) {
	f.execCalls++
	if f.balance < 1 {
		return nil, apperrors.New(apperrors.CodeInsufficientCredits, "no credits available")
	}
	key := companyID + "/" + developerID
	if _, ok := f.unlocks[key]; ok {
		return nil, repository.ErrAlreadyUnlocked
	}
	f.balance--
	report := &repository.UnlockedReport{
		ID:          fmt.Sprintf("report-%d", len(f.unlocks)+1),
		CompanyID:   companyID,
		DeveloperID: developerID,
	}
	f.unlocks[key] = report
	debit := &repository.CreditTransaction{
		ID:                 fmt.Sprintf("tx-%d", len(f.txs)+1),
		CompanyID:          companyID,
		Type:               repository.TxUnlockDebit,
		Amount:             -1,
		BalanceAfter:       f.balance,
		RelatedDeveloperID: &developerID,
	}
	f.txs = append(f.txs, debit)
	if f.pipeline != nil {
		for _, e := range f.pipeline.entries {
			if e.CompanyID == companyID && e.DeveloperID != nil && *e.DeveloperID == developerID &&
				e.Stage == repository.StageAssessed {
				e.Stage = repository.StageUnlocked
			}
		}
	}
	return &repository.UnlockResult{Report: report, Debit: debit, NewBalance: f.balance}, nil
}

func (f *fakeLedgerStore) amountSum() int64 {
	var sum int64
	for _, tx := range f.txs {
		sum += tx.Amount
	}
	return sum
}

// ── Payment client ───────────────────────────────────────────────────────────

type fakePaymentClient struct {
	checkouts []int64
	err       error
}

func (f *fakePaymentClient) CreateCheckout(ctx context.Context, companyID string, credits int64) (*client.Checkout, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.checkouts = append(f.checkouts, credits)
	return &client.Checkout{Reference: "pay-1", CheckoutURL: "https://pay.example/pay-1"}, nil
}
