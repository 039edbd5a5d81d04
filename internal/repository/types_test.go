package repository

import (
	"testing"
	"time"
)

func TestStageRankOrdersFunnel(t *testing.T) {
	funnel := []Stage{
		StageInvited,
		StageRegistering,
		StageProjectsSubmitted,
		StageAnalyzing,
		StagePendingAnalysis,
		StageAssessed,
		StageUnlocked,
	}
	for i := 1; i < len(funnel); i++ {
		if funnel[i].Rank() <= funnel[i-1].Rank() {
			t.Fatalf("%s (rank %d) must come after %s (rank %d)",
				funnel[i], funnel[i].Rank(), funnel[i-1], funnel[i-1].Rank())
		}
	}
	if StageHired.Rank() != StageRejected.Rank() {
		t.Fatalf("terminal stages must share a rank: HIRED=%d REJECTED=%d",
			StageHired.Rank(), StageRejected.Rank())
	}
	if StageHired.Rank() <= StageUnlocked.Rank() {
		t.Fatal("terminal rank must sit above UNLOCKED")
	}
	if Stage("BOGUS").Rank() != -1 {
		t.Fatalf("unknown stage rank = %d, want -1", Stage("BOGUS").Rank())
	}
}

func TestStageValidAndTerminal(t *testing.T) {
	if !StageInvited.Valid() || !StageRejected.Valid() {
		t.Fatal("known stages must be valid")
	}
	if Stage("").Valid() || Stage("bogus").Valid() {
		t.Fatal("unknown stages must be invalid")
	}
	for _, s := range []Stage{StageHired, StageRejected} {
		if !s.Terminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
	for _, s := range []Stage{StageInvited, StageAssessed, StageUnlocked} {
		if s.Terminal() {
			t.Fatalf("%s must not be terminal", s)
		}
	}
}

func TestEffectiveStageForUnboundEntry(t *testing.T) {
	entry := &PipelineEntry{CandidateEmail: "dev@x.com", Stage: StageInvited}
	if !entry.IsPendingInvitation() {
		t.Fatal("entry without a developer is a pending invitation")
	}
	if got := entry.EffectiveStage(); got != StageInvited {
		t.Fatalf("unbound entry reports %s, want INVITED", got)
	}

	devID := "dev-1"
	entry.DeveloperID = &devID
	entry.Stage = StageAssessed
	if entry.IsPendingInvitation() {
		t.Fatal("bound entry is not a pending invitation")
	}
	if got := entry.EffectiveStage(); got != StageAssessed {
		t.Fatalf("bound entry reports %s, want its stored stage", got)
	}
}

func TestInvitationStatusIsDerived(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	token := "tok"
	expiresAt := now.Add(7 * 24 * time.Hour)
	acceptedAt := now.Add(time.Hour)

	inv := &Invitation{Token: &token, ExpiresAt: &expiresAt}
	if got := inv.Status(now); got != InvitationPending {
		t.Fatalf("fresh invitation status = %s, want PENDING", got)
	}
	if got := inv.Status(expiresAt); got != InvitationPending {
		t.Fatalf("status at the expiry instant = %s, want PENDING", got)
	}
	if got := inv.Status(expiresAt.Add(time.Second)); got != InvitationExpired {
		t.Fatalf("status past expiry = %s, want EXPIRED", got)
	}

	inv.AcceptedAt = &acceptedAt
	if got := inv.Status(expiresAt.Add(time.Hour)); got != InvitationAccepted {
		t.Fatalf("accepted invitation status = %s, want ACCEPTED even past expiry", got)
	}

	tracked := &Invitation{Tracked: true}
	if got := tracked.Status(now); got != InvitationTracked {
		t.Fatalf("tracked relationship status = %s, want TRACKED", got)
	}
}
