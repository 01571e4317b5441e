package trust

import (
	"math"
	"time"
)

// Evolution constants, fixed by the scoring contract — never tune these
// per deployment without also re-deriving the end-to-end test fixtures.
const (
	DecayRateDaily        = 0.015
	DecayGracePeriodHours = 18.0
	MinMetricFloor        = 0.15
	RecencyWeight         = 0.65
	RecoveryAcceleration  = 0.1
	ImpactVolatility      = 1.2
	ConsistencyThreshold  = 0.85
	maxRiskExposureDelta  = 0.4
)

// ActionOutcome is a single recent action folded into reputation evolution.
type ActionOutcome struct {
	Success     bool
	Cooperation *float64 // defaults to 0.9 on success, 0.5 on failure
	Quality     *float64 // defaults to 0.95 on success, 0.2 on failure
}

// Evolve applies temporal decay, action-impact blending, and the
// consistency bonus/penalty to perf, returning a new Performance snapshot.
// perf is never mutated. now is the evolution timestamp; elapsed is
// derived from perf's lastUpdated.
func Evolve(perf Performance, recentActions []ActionOutcome, now time.Time) Performance {
	out := perf.Clone()

	applyTemporalDecay(&out, now)
	applyActionImpact(&out, recentActions)

	t := now
	out.LastUpdated = &t
	return out
}

func applyTemporalDecay(p *Performance, now time.Time) {
	last := p.LastUpdated
	if last == nil {
		return
	}
	elapsed := now.Sub(*last)
	if elapsed.Hours() <= DecayGracePeriodHours {
		return
	}

	days := elapsed.Hours() / 24.0
	factor := math.Pow(1-DecayRateDaily, days)

	p.Reliability = f64p(floorAt(*scaleOr(p.Reliability, 1.0, factor), MinMetricFloor))
	p.CooperationScore = f64p(floorAt(*scaleOr(p.CooperationScore, 1.0, factor), MinMetricFloor))
	p.Consistency = f64p(floorAt(*scaleOr(p.Consistency, p.reliability(), factor), MinMetricFloor))
	p.TaskSuccessRate = f64p(floorAt(*scaleOr(p.TaskSuccessRate, 1.0, factor), MinMetricFloor))
	p.ComplianceHistory = f64p(floorAt(*scaleOr(p.ComplianceHistory, 1.0, factor), MinMetricFloor))

	riskDelta := 0.005 * days
	if riskDelta > maxRiskExposureDelta {
		riskDelta = maxRiskExposureDelta
	}
	p.RiskExposure = f64p(p.riskExposure() + riskDelta)
}

func scaleOr(v *float64, def, factor float64) *float64 {
	base := def
	if v != nil {
		base = *v
	}
	scaled := base * factor
	return &scaled
}

func floorAt(v, floor float64) float64 {
	if v < floor {
		return floor
	}
	return v
}

func applyActionImpact(p *Performance, actions []ActionOutcome) {
	if len(actions) == 0 {
		return
	}

	var successes int
	var coopSum, qualitySum float64
	for _, a := range actions {
		if a.Success {
			successes++
		}
		if a.Cooperation != nil {
			coopSum += *a.Cooperation
		} else if a.Success {
			coopSum += 0.9
		} else {
			coopSum += 0.5
		}
		if a.Quality != nil {
			qualitySum += *a.Quality
		} else if a.Success {
			qualitySum += 0.95
		} else {
			qualitySum += 0.2
		}
	}

	n := len(actions)
	successRate := float64(successes) / float64(n)
	reliabilityFromActions := minF(1.0, float64(n)/3.0)
	cooperation := coopSum / float64(n)
	avgQuality := qualitySum / float64(n)

	p.TaskSuccessRate = f64p(blend(p.taskSuccessRate(), successRate))
	p.Reliability = f64p(blend(p.reliability(), reliabilityFromActions))
	p.CooperationScore = f64p(blend(p.cooperationScore(), cooperation))
	p.Consistency = f64p(blend(p.consistency(), avgQuality))

	applyConsistencyAdjustment(p, avgQuality)
}

// blend folds a newly observed value into the stored metric. A decline
// (new < old) is absorbed faster: the volatility-scaled weight leans more
// heavily on the new observation than an improvement does.
func blend(old, new float64) float64 {
	weight := RecencyWeight
	if new < old {
		weight = minF(0.95, RecencyWeight*ImpactVolatility)
	}
	return weight*new + (1-weight)*old
}

func applyConsistencyAdjustment(p *Performance, avgQuality float64) {
	switch {
	case avgQuality >= ConsistencyThreshold:
		consistency := minF(1.0, p.consistency()+RecoveryAcceleration*(avgQuality-0.5))
		p.Consistency = f64p(consistency)

		compliance := minF(1.0, p.complianceHistory()+0.02)
		p.ComplianceHistory = f64p(compliance)

		risk := p.riskExposure() - 0.01
		if risk < 0.01 {
			risk = 0.01
		}
		p.RiskExposure = f64p(risk)

	case avgQuality < 0.4:
		consistency := p.consistency() - 0.1
		if consistency < 0.1 {
			consistency = 0.1
		}
		p.Consistency = f64p(consistency)
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
