package trust

import (
	"testing"
	"time"
)

func perfAllOnes() Performance {
	return Performance{
		Reliability:         f64p(1),
		Uptime:              f64p(1),
		Consistency:         f64p(1),
		TaskSuccessRate:     f64p(1),
		TaskComplexityScore: f64p(1),
		BudgetEfficiency:    f64p(1),
		CooperationScore:    f64p(1),
		ComplianceHistory:   f64p(1),
		RiskExposure:        f64p(0.01),
		PolicyViolations:    intp(0),
		ROI:                 f64p(100),
		PnL:                 &PnL{},
	}
}

func TestComputeTrustScore_Deterministic(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	perf := perfAllOnes()

	p1 := ComputeTrustScore(perf, nil, now)
	p2 := ComputeTrustScore(perf, nil, now)

	if p1 != p2 {
		t.Fatalf("scoring is not deterministic: %+v vs %+v", p1, p2)
	}
}

func TestComputeTrustScore_EliteAuthorityScenario(t *testing.T) {
	now := time.Now()
	perf := perfAllOnes()

	profile := ComputeTrustScore(perf, nil, now)
	if profile.Composite < 0.98 {
		t.Errorf("expected composite close to 0.99, got %v", profile.Composite)
	}
}

func TestComputeTrustScore_DimensionsBounded(t *testing.T) {
	now := time.Now()
	perf := Performance{
		RiskExposure:     f64p(5.0), // deliberately out of normal range
		PolicyViolations: intp(50),
		ROI:              f64p(-200),
	}

	profile := ComputeTrustScore(perf, nil, now)
	for name, v := range map[string]float64{
		"reliability": profile.Dimensions.Reliability,
		"efficiency":  profile.Dimensions.Efficiency,
		"cooperation": profile.Dimensions.Cooperation,
		"compliance":  profile.Dimensions.Compliance,
		"riskSafety":  profile.Dimensions.RiskSafety,
		"competence":  profile.Dimensions.Competence,
		"composite":   profile.Composite,
	} {
		if v < 0 || v > 1 {
			t.Errorf("dimension %s out of [0,1]: %v", name, v)
		}
	}
}

func TestComputeTrustScore_CompositeIsWeightedSum(t *testing.T) {
	now := time.Now()
	perf := perfAllOnes()
	profile := ComputeTrustScore(perf, nil, now)

	d := profile.Dimensions
	want := round4(0.15*d.Reliability + 0.15*d.Efficiency + 0.20*d.Cooperation +
		0.20*d.Compliance + 0.15*d.RiskSafety + 0.15*d.Competence)

	if profile.Composite != want {
		t.Errorf("composite %v does not equal weighted sum %v", profile.Composite, want)
	}
}

func TestComputeTrustScore_RiskSafetyPenalizesWorseningTrend(t *testing.T) {
	now := time.Now()
	prior := Performance{RiskExposure: f64p(0.1)}
	current := Performance{RiskExposure: f64p(0.2)}

	withHistory := ComputeTrustScore(current, []Performance{prior}, now)
	withoutHistory := ComputeTrustScore(current, nil, now)

	if withHistory.Dimensions.RiskSafety >= withoutHistory.Dimensions.RiskSafety {
		t.Errorf("expected worsening risk trend to reduce riskSafety: with=%v without=%v",
			withHistory.Dimensions.RiskSafety, withoutHistory.Dimensions.RiskSafety)
	}
}

func TestContexts_Lookup(t *testing.T) {
	c := Contexts{Financial: 0.5}
	v, ok := c.Context("financial")
	if !ok || v != 0.5 {
		t.Errorf("expected financial=0.5, got %v ok=%v", v, ok)
	}
	if _, ok := c.Context("nonexistent"); ok {
		t.Error("expected unknown context name to return ok=false")
	}
}
