package repository

import "time"

// ── Pipeline ─────────────────────────────────────────────────────────────────

// Stage is a pipeline entry's position in the hiring funnel.
type Stage string

const (
	StageInvited           Stage = "INVITED"
	StageRegistering       Stage = "REGISTERING"
	StageProjectsSubmitted Stage = "PROJECTS_SUBMITTED"
	StageAnalyzing         Stage = "ANALYZING"
	StagePendingAnalysis   Stage = "PENDING_ANALYSIS"
	StageAssessed          Stage = "ASSESSED"
	StageUnlocked          Stage = "UNLOCKED"
	StageHired             Stage = "HIRED"
	StageRejected          Stage = "REJECTED"
)

// stageRank orders the funnel. HIRED and REJECTED share the terminal rank;
// they are alternatives, not a sequence.
var stageRank = map[Stage]int{
	StageInvited:           0,
	StageRegistering:       1,
	StageProjectsSubmitted: 2,
	StageAnalyzing:         3,
	StagePendingAnalysis:   4,
	StageAssessed:          5,
	StageUnlocked:          6,
	StageHired:             7,
	StageRejected:          7,
}

// Rank returns the funnel position of a stage, or -1 for unknown values.
func (s Stage) Rank() int {
	r, ok := stageRank[s]
	if !ok {
		return -1
	}
	return r
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool { return s.Rank() >= 0 }

// Terminal reports whether s permits no further transitions.
func (s Stage) Terminal() bool { return s == StageHired || s == StageRejected }

// PipelineEntry is a company's tracked relationship to one candidate,
// whether or not that candidate has registered yet.
type PipelineEntry struct {
	ID             string
	CompanyID      string
	DeveloperID    *string // nil until the invited candidate registers
	CandidateEmail string
	Stage          Stage
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsPendingInvitation reports whether the entry has no bound developer yet.
func (e *PipelineEntry) IsPendingInvitation() bool { return e.DeveloperID == nil }

// EffectiveStage is the stage reported to callers. Unbound entries only ever
// report INVITED regardless of the stored value.
func (e *PipelineEntry) EffectiveStage() Stage {
	if e.IsPendingInvitation() {
		return StageInvited
	}
	return e.Stage
}

// PipelineStats is an on-demand projection over a company's entries. It is
// never persisted; the entries table is the single source of truth.
type PipelineStats struct {
	Total    int64            `json:"total"`
	ByStage  map[Stage]int64  `json:"byStage"`
	Unlocked int64            `json:"unlocked"`
	Hired    int64            `json:"hired"`
	Rejected int64            `json:"rejected"`
}

// ── Invitations ──────────────────────────────────────────────────────────────

// InvitationStatus is the derived lifecycle status of an invitation.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationExpired  InvitationStatus = "EXPIRED"
	InvitationTracked  InvitationStatus = "TRACKED"
)

// Invitation is a time-boxed, single-use offer for a candidate to join.
type Invitation struct {
	ID             string
	CompanyID      string
	CandidateEmail string
	Token          *string // nil for tracked relationships
	Message        *string
	Tracked        bool
	ExpiresAt      *time.Time // fixed at creation, never extended; nil for tracked
	SentAt         time.Time
	AcceptedAt     *time.Time
	DeveloperID    *string
	CreatedAt      time.Time
}

// Status derives the lifecycle status at the given instant. Expiry is
// computed from expires_at, never cached in a mutable column.
func (i *Invitation) Status(now time.Time) InvitationStatus {
	if i.Tracked {
		return InvitationTracked
	}
	if i.AcceptedAt != nil {
		return InvitationAccepted
	}
	if i.ExpiresAt != nil && now.After(*i.ExpiresAt) {
		return InvitationExpired
	}
	return InvitationPending
}

// ── Credit ledger ────────────────────────────────────────────────────────────

// TransactionType is the business reason for a ledger row.
type TransactionType string

const (
	TxPurchase    TransactionType = "PURCHASE"
	TxUnlockDebit TransactionType = "UNLOCK_DEBIT"
	TxAdjustment  TransactionType = "ADJUSTMENT"
)

// CreditTransaction is one immutable row in the append-only credit ledger.
// The sum of Amount over a company's rows always equals its current balance.
type CreditTransaction struct {
	ID                 string
	CompanyID          string
	Type               TransactionType
	Amount             int64 // positive for purchases, negative for debits
	BalanceAfter       int64
	RelatedDeveloperID *string
	PaymentRef         *string // set for PURCHASE rows; unique, idempotency key
	CreatedAt          time.Time
}

// UnlockedReport is durable proof that a company paid to view a developer's
// report. Unique on (company, developer): pay once, view forever.
type UnlockedReport struct {
	ID          string
	CompanyID   string
	DeveloperID string
	CreatedAt   time.Time
}

// ── Accounts ─────────────────────────────────────────────────────────────────

// Company is the paying side of the marketplace.
type Company struct {
	ID            string
	Name          string
	CreditBalance int64
	CreatedAt     time.Time
}

// Developer is a registered candidate account.
type Developer struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}
