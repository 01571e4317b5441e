package governance

import (
	"testing"
	"time"
)

func TestClassify_Thresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  TierName
	}{
		{0.99, TierEliteAuthority},
		{0.90, TierEliteAuthority},
		{0.89, TierHighTrust},
		{0.70, TierHighTrust},
		{0.69, TierStandardOperational},
		{0.40, TierStandardOperational},
		{0.39, TierRestricted},
		{0.20, TierRestricted},
		{0.19, TierProbationary},
		{0.0, TierProbationary},
	}

	for _, c := range cases {
		got := Classify(c.score, "", time.Now())
		if got.Tier != c.want {
			t.Errorf("Classify(%v) = %v, want %v", c.score, got.Tier, c.want)
		}
	}
}

func TestClassify_EliteAuthorityScenario(t *testing.T) {
	profile := Classify(0.99, "", time.Now())
	if profile.Tier != TierEliteAuthority {
		t.Fatalf("expected ELITE_AUTHORITY, got %v", profile.Tier)
	}
	if !profile.HasPermission(PermissionSudo) {
		t.Error("expected ELITE_AUTHORITY to include SUDO")
	}
	if profile.Budget.Ceiling != 1_000_000 {
		t.Errorf("unexpected budget ceiling: %v", profile.Budget.Ceiling)
	}
}

func TestClassify_StandardOperationalScenario(t *testing.T) {
	profile := Classify(0.65, "", time.Now())
	if profile.Tier != TierStandardOperational && profile.Tier != TierHighTrust {
		t.Fatalf("expected composite 0.65 at or below STANDARD_OPERATIONAL/HIGH_TRUST, got %v", profile.Tier)
	}
}

func TestClassify_MonotoneCeilingAndPermissions(t *testing.T) {
	scores := []float64{0.0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.7, 0.8, 0.9, 1.0}
	for i := 0; i < len(scores)-1; i++ {
		s1, s2 := scores[i], scores[i+1]
		if ceilingFor(s1) > ceilingFor(s2) {
			t.Errorf("ceiling not monotone: ceiling(%v)=%v > ceiling(%v)=%v", s1, ceilingFor(s1), s2, ceilingFor(s2))
		}

		p1 := Classify(s1, "", time.Now())
		p2 := Classify(s2, "", time.Now())
		for _, perm := range p1.Permissions {
			if !p2.HasPermission(perm) {
				t.Errorf("permission set not monotone: %v granted at %v but not at %v", perm, s1, s2)
			}
		}
	}
}

func TestClassify_ProbationaryHasNoBudget(t *testing.T) {
	profile := Classify(0.0, "", time.Now())
	if profile.Budget.Ceiling != 0 || profile.Budget.Daily != 0 || profile.Budget.SingleTransaction != 0 {
		t.Errorf("expected zero budget for PROBATIONARY, got %+v", profile.Budget)
	}
	if profile.Delegation.Max != 0 {
		t.Errorf("expected zero delegation for PROBATIONARY, got %v", profile.Delegation.Max)
	}
}
